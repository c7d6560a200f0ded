package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"savvycent/internal/core"
	"savvycent/internal/storage"
)

const (
	defaultUserName    = "User"
	defaultAccountName = "Default Account"
)

// BudgetMonitorConfig holds configuration for the budget alert monitor
type BudgetMonitorConfig struct {
	// ThresholdPercent triggers an alert when reached (default: 80)
	ThresholdPercent decimal.Decimal

	// Concurrency bounds budgets checked at once (default: 4)
	Concurrency int
}

// DefaultBudgetMonitorConfig returns sensible defaults
func DefaultBudgetMonitorConfig() BudgetMonitorConfig {
	return BudgetMonitorConfig{
		ThresholdPercent: decimal.NewFromInt(80),
		Concurrency:      4,
	}
}

// BudgetCheckResult summarizes one monitor cycle.
type BudgetCheckResult struct {
	Checked int
	Alerted int
	Failed  int
}

// BudgetAlertMonitor compares current-month expenses on each user's default
// account with their budget and notifies at most once per calendar month.
type BudgetAlertMonitor struct {
	storage  *storage.SQLiteRepository
	notifier Notifier
	config   BudgetMonitorConfig
}

func NewBudgetAlertMonitor(storage *storage.SQLiteRepository, notifier Notifier, config BudgetMonitorConfig) *BudgetAlertMonitor {
	def := DefaultBudgetMonitorConfig()
	if !config.ThresholdPercent.IsPositive() {
		config.ThresholdPercent = def.ThresholdPercent
	}
	if config.Concurrency <= 0 {
		config.Concurrency = def.Concurrency
	}
	return &BudgetAlertMonitor{storage: storage, notifier: notifier, config: config}
}

// CheckBudgets runs one cycle at now. A failing budget is logged and counted;
// it never stops the others.
func (m *BudgetAlertMonitor) CheckBudgets(ctx context.Context, now time.Time) (BudgetCheckResult, error) {
	candidates, err := m.storage.Queries().ListBudgetCandidates(ctx)
	if err != nil {
		return BudgetCheckResult{}, fmt.Errorf("list budgets: %w", err)
	}

	var alerted, failed int64
	var g errgroup.Group
	g.SetLimit(m.config.Concurrency)
	for _, c := range candidates {
		g.Go(func() error {
			sent, err := m.checkBudget(ctx, c, now)
			if err != nil {
				atomic.AddInt64(&failed, 1)
				slog.ErrorContext(ctx, "Budget check failed",
					"budget_id", c.Budget.ID,
					"user_id", c.Budget.UserID,
					"error", err)
				return nil
			}
			if sent {
				atomic.AddInt64(&alerted, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := BudgetCheckResult{
		Checked: len(candidates),
		Alerted: int(alerted),
		Failed:  int(failed),
	}
	slog.InfoContext(ctx, "Budget alert check complete",
		"checked", result.Checked,
		"alerted", result.Alerted,
		"failed", result.Failed)
	return result, nil
}

// checkBudget reports whether an alert was recorded for c.
func (m *BudgetAlertMonitor) checkBudget(ctx context.Context, c storage.BudgetCandidate, now time.Time) (bool, error) {
	if !c.Budget.Amount.IsPositive() {
		return false, nil
	}
	if c.Budget.AlertedInMonth(now) {
		return false, nil
	}

	q := m.storage.Queries()
	start, end := core.MonthBounds(now)
	total, err := q.SumAccountExpenses(ctx, c.Account.ID, start, end)
	if err != nil {
		return false, err
	}

	pct := core.PercentageOf(total, c.Budget.Amount)
	if pct.LessThan(m.config.ThresholdPercent) {
		return false, nil
	}

	alert := core.BudgetAlert{
		UserName:       nonEmpty(c.User.Name, defaultUserName),
		Email:          c.User.Email,
		AccountName:    nonEmpty(c.Account.Name, defaultAccountName),
		PercentageUsed: pct,
		BudgetAmount:   c.Budget.Amount,
		TotalExpenses:  total,
	}
	// The marker is written even when dispatch fails: one attempt per month.
	if err := m.notifier.SendBudgetAlert(ctx, alert); err != nil {
		slog.ErrorContext(ctx, "Budget alert dispatch failed",
			"budget_id", c.Budget.ID,
			"user_id", c.Budget.UserID,
			"error", err)
	}
	if err := q.SetBudgetLastAlert(ctx, c.Budget.ID, now); err != nil {
		return false, err
	}

	slog.InfoContext(ctx, "Budget alert recorded",
		"budget_id", c.Budget.ID,
		"user_id", c.Budget.UserID,
		"percentage_used", pct.StringFixed(1))
	return true, nil
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
