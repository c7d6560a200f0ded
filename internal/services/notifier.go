package services

import (
	"context"

	"savvycent/internal/core"
)

// Notifier delivers user notifications. Implementations live in internal/notify.
type Notifier interface {
	SendBudgetAlert(ctx context.Context, alert core.BudgetAlert) error
	SendMonthlyReport(ctx context.Context, report core.MonthlyReport) error
}

// InsightGenerator turns monthly statistics into short observations. It
// never fails; implementations fall back to generic text.
type InsightGenerator interface {
	GenerateInsights(ctx context.Context, stats core.MonthlyStats) []string
}
