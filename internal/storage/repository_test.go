package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"savvycent/internal/core"
)

var testNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUser(t *testing.T, q *Queries, id string) {
	t.Helper()
	if err := q.UpsertUser(context.Background(), core.User{ID: id, Email: id + "@example.com", Name: id}, testNow); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
}

func seedAccount(t *testing.T, q *Queries, userID, id string, isDefault bool, balance string) {
	t.Helper()
	err := q.CreateAccount(context.Background(), core.Account{
		ID: id, UserID: userID, Name: id, Type: core.Checking,
		Balance: core.MustParseMoney(balance), IsDefault: isDefault,
		CreatedAt: testNow, UpdatedAt: testNow,
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	if err := RunMigrations(DSN(path)); err != nil {
		t.Fatalf("first RunMigrations() error = %v", err)
	}
	if err := RunMigrations(DSN(path)); err != nil {
		t.Fatalf("second RunMigrations() error = %v", err)
	}
}

func TestUpsertUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()

	seedUser(t, q, "u1")
	if err := q.UpsertUser(ctx, core.User{ID: "u1", Email: "new@example.com"}, testNow.Add(time.Hour)); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	u, err := q.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if u.Email != "new@example.com" || u.Name != "u1" {
		t.Errorf("GetUser() = %+v, want refreshed email and kept name", u)
	}
	if _, err := q.GetUser(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetUser(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSingleDefaultAccountPerUser(t *testing.T) {
	repo := newTestRepo(t)
	q := repo.Queries()
	seedUser(t, q, "u1")
	seedAccount(t, q, "u1", "a1", true, "0")

	err := q.CreateAccount(context.Background(), core.Account{
		ID: "a2", UserID: "u1", Name: "second", Type: core.Savings, IsDefault: true,
		CreatedAt: testNow, UpdatedAt: testNow,
	})
	if err == nil {
		t.Fatal("CreateAccount() with a second default succeeded, want unique index violation")
	}
}

func TestExecTx_RollsBackOnError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo.Queries(), "u1")
	seedAccount(t, repo.Queries(), "u1", "a1", true, "100")

	boom := errors.New("boom")
	err := repo.ExecTx(ctx, func(q *Queries) error {
		if _, err := q.AddAccountBalance(ctx, "a1", core.MustParseMoney("-30"), testNow); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ExecTx() error = %v, want boom", err)
	}

	a, err := repo.Queries().GetAccount(ctx, "u1", "a1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if a.Balance.String() != "100.00" {
		t.Errorf("balance after rollback = %s, want 100.00", a.Balance)
	}
}

func TestAddAccountBalance(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()
	seedUser(t, q, "u1")
	seedAccount(t, q, "u1", "a1", true, "100")

	got, err := q.AddAccountBalance(ctx, "a1", core.MustParseMoney("-0.10"), testNow)
	if err != nil {
		t.Fatalf("AddAccountBalance() error = %v", err)
	}
	if got.String() != "99.90" {
		t.Errorf("AddAccountBalance() = %s, want 99.90", got)
	}
	if _, err := q.AddAccountBalance(ctx, "nope", core.MustParseMoney("1"), testNow); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("AddAccountBalance(missing) error = %v, want ErrNotFound", err)
	}
}

func recurringTx(id string, last, next *time.Time) core.Transaction {
	return core.Transaction{
		ID: id, UserID: "u1", AccountID: "a1", Type: core.Expense,
		Amount: core.MustParseMoney("9.99"), Date: testNow.AddDate(0, -1, 0), Category: "bills",
		IsRecurring: true, RecurringInterval: core.Monthly, Status: core.StatusCompleted,
		NextRecurringDate: next, LastProcessed: last, CreatedAt: testNow, UpdatedAt: testNow,
	}
}

func TestListDueRecurringAndMarkProcessed(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()
	seedUser(t, q, "u1")
	seedAccount(t, q, "u1", "a1", true, "0")

	past := testNow.Add(-24 * time.Hour)
	future := testNow.Add(24 * time.Hour)
	inactive := recurringTx("inactive", nil, &past)
	inactive.Status = core.StatusPending
	for _, tx := range []core.Transaction{
		recurringTx("pending", nil, &future),
		recurringTx("due", &past, &past),
		recurringTx("scheduled", &past, &future),
		inactive,
	} {
		if err := q.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction(%s) error = %v", tx.ID, err)
		}
	}

	due, err := q.ListDueRecurring(ctx, testNow)
	if err != nil {
		t.Fatalf("ListDueRecurring() error = %v", err)
	}
	got := map[string]bool{}
	for _, tx := range due {
		got[tx.ID] = true
	}
	if len(got) != 2 || !got["pending"] || !got["due"] {
		t.Fatalf("ListDueRecurring() = %v, want pending and due", got)
	}

	ok, err := q.MarkRecurringProcessed(ctx, "due", testNow, future)
	if err != nil || !ok {
		t.Fatalf("MarkRecurringProcessed() = %v, %v, want true", ok, err)
	}
	ok, err = q.MarkRecurringProcessed(ctx, "due", testNow, future)
	if err != nil || ok {
		t.Fatalf("second MarkRecurringProcessed() = %v, %v, want false", ok, err)
	}
}

func TestTransactionRecurringCheckConstraint(t *testing.T) {
	repo := newTestRepo(t)
	q := repo.Queries()
	seedUser(t, q, "u1")
	seedAccount(t, q, "u1", "a1", true, "0")

	tx := recurringTx("bad", nil, nil)
	if err := q.CreateTransaction(context.Background(), tx); err == nil {
		t.Fatal("CreateTransaction() without next date succeeded, want CHECK violation")
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()
	seedUser(t, q, "u1")
	seedAccount(t, q, "u1", "a1", true, "0")
	next := testNow.AddDate(0, 1, 0)
	if err := q.CreateTransaction(ctx, recurringTx("t1", nil, &next)); err != nil {
		t.Fatal(err)
	}

	if err := q.DeleteAccount(ctx, "u1", "a1"); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}
	if _, err := q.GetTransaction(ctx, "u1", "t1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetTransaction() after cascade error = %v, want ErrNotFound", err)
	}
}

func TestSumAccountExpenses(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()
	seedUser(t, q, "u1")
	seedAccount(t, q, "u1", "a1", true, "0")

	start, end := core.MonthBounds(testNow)
	add := func(id string, typ core.TransactionType, amount string, date time.Time) {
		err := q.CreateTransaction(ctx, core.Transaction{
			ID: id, UserID: "u1", AccountID: "a1", Type: typ, Amount: core.MustParseMoney(amount),
			Date: date, Category: "food", Status: core.StatusCompleted, CreatedAt: testNow, UpdatedAt: testNow,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	add("e1", core.Expense, "0.10", start)
	add("e2", core.Expense, "0.20", testNow)
	add("i1", core.Income, "500", testNow)
	add("old", core.Expense, "99", start.Add(-time.Second))
	add("next", core.Expense, "99", end)

	total, err := q.SumAccountExpenses(ctx, "a1", start, end)
	if err != nil {
		t.Fatalf("SumAccountExpenses() error = %v", err)
	}
	if total.String() != "0.30" {
		t.Errorf("SumAccountExpenses() = %s, want 0.30", total)
	}
}

func TestBudgetCandidatesAndReportClaim(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()
	seedUser(t, q, "u1")
	seedUser(t, q, "u2")
	seedAccount(t, q, "u1", "a1", true, "0")
	seedAccount(t, q, "u2", "a2", false, "0")

	for _, uid := range []string{"u1", "u2"} {
		err := q.UpsertBudget(ctx, core.Budget{ID: "b-" + uid, UserID: uid, Amount: core.MustParseMoney("100"), CreatedAt: testNow, UpdatedAt: testNow})
		if err != nil {
			t.Fatal(err)
		}
	}

	cands, err := q.ListBudgetCandidates(ctx)
	if err != nil {
		t.Fatalf("ListBudgetCandidates() error = %v", err)
	}
	if len(cands) != 1 || cands[0].Account.ID != "a1" || cands[0].User.Email != "u1@example.com" {
		t.Fatalf("ListBudgetCandidates() = %+v, want only u1 with a1", cands)
	}

	if err := q.SetBudgetLastAlert(ctx, "b-u1", testNow); err != nil {
		t.Fatal(err)
	}
	b, err := q.GetBudget(ctx, "u1")
	if err != nil || b.LastAlertSent == nil || !b.LastAlertSent.Equal(testNow) {
		t.Fatalf("GetBudget() = %+v, %v", b, err)
	}

	ok, err := q.ClaimUserReport(ctx, "u1", "2025-02", testNow)
	if err != nil || !ok {
		t.Fatalf("ClaimUserReport() = %v, %v, want true", ok, err)
	}
	ok, _ = q.ClaimUserReport(ctx, "u1", "2025-02", testNow)
	if ok {
		t.Error("second ClaimUserReport() for the same month = true, want false")
	}
}
