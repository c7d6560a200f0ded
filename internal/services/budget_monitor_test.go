package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"savvycent/internal/core"
)

func TestBudgetAlertMonitor_Threshold(t *testing.T) {
	svc, repo := newTestLedger(t)
	ctx := context.Background()
	mustUser(t, svc, "u1")
	acc := mustAccount(t, svc, "u1", "Main", "1000")
	other := mustAccount(t, svc, "u1", "Side", "1000")
	if _, err := svc.UpsertBudget(ctx, "u1", core.MustParseMoney("100")); err != nil {
		t.Fatal(err)
	}

	mustTransaction(t, svc, "u1", expense(acc.ID, "79.99", fixedNow))
	mustTransaction(t, svc, "u1", expense(other.ID, "500", fixedNow))
	mustTransaction(t, svc, "u1", expense(acc.ID, "500", fixedNow.AddDate(0, -1, 0)))
	mustTransaction(t, svc, "u1", income(acc.ID, "500", fixedNow))

	notifier := &fakeNotifier{}
	m := NewBudgetAlertMonitor(repo, notifier, BudgetMonitorConfig{})

	res, err := m.CheckBudgets(ctx, fixedNow)
	if err != nil {
		t.Fatalf("CheckBudgets() error = %v", err)
	}
	if res.Checked != 1 || res.Alerted != 0 || len(notifier.alerts) != 0 {
		t.Fatalf("at 79.99%%: result = %+v, alerts = %d, want no alert", res, len(notifier.alerts))
	}

	mustTransaction(t, svc, "u1", expense(acc.ID, "0.01", fixedNow))
	res, err = m.CheckBudgets(ctx, fixedNow)
	if err != nil {
		t.Fatalf("CheckBudgets() error = %v", err)
	}
	if res.Alerted != 1 || len(notifier.alerts) != 1 {
		t.Fatalf("at 80%%: result = %+v, alerts = %d, want one alert", res, len(notifier.alerts))
	}
	alert := notifier.alerts[0]
	if !alert.PercentageUsed.Equal(decimal.NewFromInt(80)) ||
		alert.TotalExpenses.String() != "80.00" ||
		alert.BudgetAmount.String() != "100.00" ||
		alert.AccountName != "Main" ||
		alert.Email != "u1@example.com" {
		t.Errorf("alert = %+v", alert)
	}

	mustTransaction(t, svc, "u1", expense(acc.ID, "50", fixedNow))
	if _, err := m.CheckBudgets(ctx, fixedNow.Add(6*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if len(notifier.alerts) != 1 {
		t.Errorf("second crossing in the same month sent %d alerts, want 1", len(notifier.alerts))
	}

	nextMonth := fixedNow.AddDate(0, 1, 0)
	mustTransaction(t, svc, "u1", expense(acc.ID, "90", nextMonth))
	if _, err := m.CheckBudgets(ctx, nextMonth); err != nil {
		t.Fatal(err)
	}
	if len(notifier.alerts) != 2 {
		t.Errorf("new month sent %d alerts total, want 2", len(notifier.alerts))
	}
}

func TestBudgetAlertMonitor_DispatchFailureStillMarks(t *testing.T) {
	svc, repo := newTestLedger(t)
	ctx := context.Background()
	mustUser(t, svc, "u1")
	acc := mustAccount(t, svc, "u1", "Main", "0")
	if _, err := svc.UpsertBudget(ctx, "u1", core.MustParseMoney("10")); err != nil {
		t.Fatal(err)
	}
	mustTransaction(t, svc, "u1", expense(acc.ID, "20", fixedNow))

	notifier := &fakeNotifier{err: errors.New("smtp down")}
	m := NewBudgetAlertMonitor(repo, notifier, DefaultBudgetMonitorConfig())
	res, err := m.CheckBudgets(ctx, fixedNow)
	if err != nil {
		t.Fatalf("CheckBudgets() error = %v", err)
	}
	if res.Alerted != 1 || res.Failed != 0 {
		t.Errorf("result = %+v, want alert recorded despite dispatch failure", res)
	}

	b, err := repo.Queries().GetBudget(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if b.LastAlertSent == nil || !b.LastAlertSent.Equal(fixedNow) {
		t.Errorf("LastAlertSent = %v, want %v", b.LastAlertSent, fixedNow)
	}

	if _, err := m.CheckBudgets(ctx, fixedNow); err != nil {
		t.Fatal(err)
	}
	if len(notifier.alerts) != 1 {
		t.Errorf("dispatch attempts = %d, want 1 per month", len(notifier.alerts))
	}
}

func TestBudgetAlertMonitor_SkipsUsersWithoutDefaultAccount(t *testing.T) {
	svc, repo := newTestLedger(t)
	ctx := context.Background()
	mustUser(t, svc, "u1")
	if _, err := svc.UpsertBudget(ctx, "u1", core.MustParseMoney("10")); err != nil {
		t.Fatal(err)
	}

	m := NewBudgetAlertMonitor(repo, &fakeNotifier{}, DefaultBudgetMonitorConfig())
	res, err := m.CheckBudgets(ctx, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	if res.Checked != 0 {
		t.Errorf("Checked = %d, want 0", res.Checked)
	}
}

func TestBudgetAlertMonitor_CustomThreshold(t *testing.T) {
	svc, repo := newTestLedger(t)
	ctx := context.Background()
	mustUser(t, svc, "u1")
	acc := mustAccount(t, svc, "u1", "Main", "0")
	if _, err := svc.UpsertBudget(ctx, "u1", core.MustParseMoney("100")); err != nil {
		t.Fatal(err)
	}
	mustTransaction(t, svc, "u1", expense(acc.ID, "50", fixedNow))

	notifier := &fakeNotifier{}
	m := NewBudgetAlertMonitor(repo, notifier, BudgetMonitorConfig{ThresholdPercent: decimal.NewFromInt(50), Concurrency: 1})
	if _, err := m.CheckBudgets(ctx, fixedNow); err != nil {
		t.Fatal(err)
	}
	if len(notifier.alerts) != 1 {
		t.Errorf("alerts = %d, want 1 at a 50%% threshold", len(notifier.alerts))
	}
}
