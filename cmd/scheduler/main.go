// Command scheduler drives the periodic jobs: the recurring sweep, the budget
// alert check and the monthly report check. With AMQP configured, due events
// are published for cmd/recurring-worker; otherwise they are processed here.
package main

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"savvycent/internal/amqp"
	"savvycent/internal/cli"
	"savvycent/internal/config"
	applog "savvycent/internal/log"
	"savvycent/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(config.Load().LogLevel, applog.ComponentScheduler)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	mailer := cli.InitMailer(context.Background(), logger, cfg)
	insights := cli.NewInsightClient(logger, cfg)

	var (
		publisher services.DueEventPublisher
		queue     *services.ThrottledQueue
		client    *amqp.Client
	)
	if cfg.AMQPEnabled() {
		var err error
		client, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPPrefetch)
		if err != nil {
			logger.Error("Failed to connect to AMQP", applog.FieldError, err)
			os.Exit(1)
		}
		publisher = client
		logger.Info("Due events published to AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		processor := services.NewRecurringProcessor(repo)
		queue = services.NewThrottledQueue(services.ThrottledQueueConfig{
			PerUserLimit:  cfg.RecurringPerUserLimit,
			Period:        cfg.RecurringPeriod,
			MaxConcurrent: cfg.RecurringMaxConcurrent,
		}, processor.Handler(time.Now))
		publisher = queue
		logger.Info("AMQP disabled - due events processed in-process")
	}

	scheduler := services.NewRecurringScheduler(repo, publisher)
	monitor := services.NewBudgetAlertMonitor(repo, mailer, services.BudgetMonitorConfig{
		ThresholdPercent: cfg.BudgetAlertThreshold,
	})
	reports := services.NewReportService(repo, insights, mailer)

	var wg sync.WaitGroup
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		wg.Wait()
		if queue != nil {
			if err := queue.Stop(ctx); err != nil {
				logger.Error("Throttled queue stop failed", applog.FieldError, err)
			}
		}
		if client != nil {
			client.Close()
		}
	})

	if queue != nil {
		if err := queue.Start(ctx); err != nil {
			logger.Error("Failed to start throttled queue", applog.FieldError, err)
		}
	}

	jobs := []job{
		{
			name:     "recurring_sweep",
			interval: cfg.RecurringSweepInterval,
			run: func(ctx context.Context, now time.Time) error {
				published, err := scheduler.Sweep(ctx, now)
				if err == nil {
					logger.Info("Recurring sweep done", "published", published)
				}
				return err
			},
		},
		{
			name:     "budget_check",
			interval: cfg.BudgetCheckInterval,
			run: func(ctx context.Context, now time.Time) error {
				res, err := monitor.CheckBudgets(ctx, now)
				if err == nil {
					logger.Info("Budget check done",
						"checked", res.Checked,
						"alerted", res.Alerted,
						"failed", res.Failed)
				}
				return err
			},
		},
		{
			name:     "monthly_report",
			interval: cfg.ReportCheckInterval,
			run: func(ctx context.Context, now time.Time) error {
				sent, err := reports.GenerateMonthlyReports(ctx, now)
				if err == nil && sent > 0 {
					logger.Info("Monthly reports sent", "count", sent)
				}
				return err
			},
		},
	}

	for _, j := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.loop(ctx, logger)
		}()
	}

	logger.Info("Scheduler started",
		"sweep_interval", cfg.RecurringSweepInterval,
		"budget_interval", cfg.BudgetCheckInterval,
		"report_interval", cfg.ReportCheckInterval)
	cli.WaitForShutdown(ctx, done)
}

// job is a periodic task. It runs once at startup, then on every tick.
type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context, now time.Time) error
}

func (j job) loop(ctx context.Context, logger *applog.Logger) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.runOnce(ctx, logger, time.Now().UTC())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			j.runOnce(ctx, logger, now.UTC())
		}
	}
}

func (j job) runOnce(ctx context.Context, logger *applog.Logger, now time.Time) {
	start := time.Now()
	err := j.run(ctx, now)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Scheduled job failed",
			"job", j.name,
			applog.FieldError, err)
		return
	}
	logger.Debug("Scheduled job finished",
		"job", j.name,
		applog.FieldDuration, time.Since(start).Milliseconds(),
		"next_run", now.Add(j.interval).Format(time.RFC3339))
}
