// Command recurring-worker consumes recurring due events from AMQP and
// generates the occurrences through a per-user throttled queue.
package main

import (
	"context"
	"os"
	"time"

	"savvycent/internal/amqp"
	"savvycent/internal/cli"
	"savvycent/internal/config"
	applog "savvycent/internal/log"
	"savvycent/internal/services"
	"savvycent/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(config.Load().LogLevel, applog.ComponentRecurring)
	cfg := cli.LoadAndValidateConfig(logger)

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for recurring-worker; without it the scheduler processes events itself")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPPrefetch)
	if err != nil {
		logger.Error("Failed to connect to AMQP", applog.FieldError, err)
		os.Exit(1)
	}

	processor := services.NewRecurringProcessor(repo)
	queue := services.NewThrottledQueue(services.ThrottledQueueConfig{
		PerUserLimit:  cfg.RecurringPerUserLimit,
		Period:        cfg.RecurringPeriod,
		MaxConcurrent: cfg.RecurringMaxConcurrent,
	}, processor.Handler(time.Now))

	w := worker.NewRecurringWorker(client, queue, cfg.AMQPMaxPerUser)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := w.Stop(ctx); err != nil {
			logger.Error("Throttled queue stop failed", applog.FieldError, err)
		}
		client.Close()
	})

	logger.Info("Recurring worker started",
		"queue", cfg.AMQPQueue,
		"prefetch", cfg.AMQPPrefetch,
		"max_per_user", cfg.AMQPMaxPerUser,
		"per_user_limit", cfg.RecurringPerUserLimit,
		"period", cfg.RecurringPeriod)

	if err := w.Run(ctx); err != nil {
		logger.Error("Recurring worker stopped", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
