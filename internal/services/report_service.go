package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"savvycent/internal/core"
	"savvycent/internal/storage"
)

// ReportService builds monthly statistics and sends the monthly report email.
type ReportService struct {
	storage     *storage.SQLiteRepository
	insights    InsightGenerator
	notifier    Notifier
	concurrency int
}

func NewReportService(storage *storage.SQLiteRepository, insights InsightGenerator, notifier Notifier) *ReportService {
	return &ReportService{storage: storage, insights: insights, notifier: notifier, concurrency: 4}
}

// MonthlyStats aggregates the user's transactions for year/month.
func (s *ReportService) MonthlyStats(ctx context.Context, userID string, year, month int) (core.MonthlyStats, error) {
	if month < 1 || month > 12 {
		return core.MonthlyStats{}, fmt.Errorf("month %d: %w", month, core.ErrValidation)
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	txs, err := s.storage.Queries().ListUserTransactions(ctx, userID, start, start.AddDate(0, 1, 0))
	if err != nil {
		return core.MonthlyStats{}, err
	}
	return core.ComputeMonthlyStats(year, month, txs), nil
}

// MonthlyInsights returns stats and generated observations for year/month.
func (s *ReportService) MonthlyInsights(ctx context.Context, userID string, year, month int) (core.MonthlyStats, []string, error) {
	stats, err := s.MonthlyStats(ctx, userID, year, month)
	if err != nil {
		return core.MonthlyStats{}, nil, err
	}
	return stats, s.insights.GenerateInsights(ctx, stats), nil
}

// GenerateMonthlyReports sends every user the report for the month before
// now. Each user is claimed for that month before sending, so repeated calls
// within the month send nothing; a failed send is logged and not retried.
func (s *ReportService) GenerateMonthlyReports(ctx context.Context, now time.Time) (int, error) {
	thisMonth, _ := core.MonthBounds(now)
	prev := thisMonth.AddDate(0, -1, 0)
	monthKey := core.MonthKey(prev)

	users, err := s.storage.Queries().ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	var sent int64
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, u := range users {
		g.Go(func() error {
			ok, err := s.reportUser(ctx, u, prev, monthKey, now)
			if err != nil {
				slog.ErrorContext(ctx, "Monthly report failed",
					"user_id", u.ID,
					"month", monthKey,
					"error", err)
				return nil
			}
			if ok {
				atomic.AddInt64(&sent, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.InfoContext(ctx, "Monthly reports complete",
		"month", monthKey,
		"users", len(users),
		"sent", sent)
	return int(sent), nil
}

func (s *ReportService) reportUser(ctx context.Context, u core.User, month time.Time, monthKey string, now time.Time) (bool, error) {
	claimed, err := s.storage.Queries().ClaimUserReport(ctx, u.ID, monthKey, now)
	if err != nil || !claimed {
		return false, err
	}

	stats, insights, err := s.MonthlyInsights(ctx, u.ID, month.Year(), int(month.Month()))
	if err != nil {
		return false, err
	}

	report := core.MonthlyReport{
		UserName: nonEmpty(u.Name, defaultUserName),
		Email:    u.Email,
		Stats:    stats,
		Insights: insights,
	}
	if err := s.notifier.SendMonthlyReport(ctx, report); err != nil {
		return false, err
	}
	return true, nil
}
