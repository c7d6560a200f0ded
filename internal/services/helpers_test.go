package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"savvycent/internal/core"
	"savvycent/internal/storage"
)

var fixedNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestLedger(t *testing.T) (*LedgerService, *storage.SQLiteRepository) {
	t.Helper()
	repo := newTestStore(t)
	svc := NewLedgerService(repo)
	clock := fixedNow
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, repo
}

func mustUser(t *testing.T, svc *LedgerService, id string) core.User {
	t.Helper()
	u, err := svc.EnsureUser(context.Background(), core.User{ID: id, Email: id + "@example.com", Name: "Name " + id})
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	return u
}

func mustAccount(t *testing.T, svc *LedgerService, userID, name, balance string) core.Account {
	t.Helper()
	a, err := svc.CreateAccount(context.Background(), userID, AccountInput{
		Name: name, Type: core.Checking, Balance: core.MustParseMoney(balance),
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	return a
}

func mustTransaction(t *testing.T, svc *LedgerService, userID string, in TransactionInput) core.Transaction {
	t.Helper()
	tx, err := svc.CreateTransaction(context.Background(), userID, in)
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	return tx
}

func expense(accountID, amount string, date time.Time) TransactionInput {
	return TransactionInput{
		AccountID: accountID, Type: core.Expense, Amount: core.MustParseMoney(amount),
		Date: date, Category: "groceries",
	}
}

func income(accountID, amount string, date time.Time) TransactionInput {
	in := expense(accountID, amount, date)
	in.Type = core.Income
	in.Category = "salary"
	return in
}

func balanceOf(t *testing.T, repo *storage.SQLiteRepository, userID, accountID string) string {
	t.Helper()
	a, err := repo.Queries().GetAccount(context.Background(), userID, accountID)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	return a.Balance.String()
}

// fakeNotifier records notifications and optionally fails them.
type fakeNotifier struct {
	mu      sync.Mutex
	alerts  []core.BudgetAlert
	reports []core.MonthlyReport
	err     error
}

func (f *fakeNotifier) SendBudgetAlert(_ context.Context, a core.BudgetAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return f.err
}

func (f *fakeNotifier) SendMonthlyReport(_ context.Context, r core.MonthlyReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return f.err
}

type staticInsights []string

func (s staticInsights) GenerateInsights(context.Context, core.MonthlyStats) []string { return s }

// recordingPublisher collects published due events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []core.RecurringDueEvent
	err    error
}

func (p *recordingPublisher) PublishRecurringDue(_ context.Context, ev core.RecurringDueEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}
