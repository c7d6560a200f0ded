// Command savvycent serves the JSON API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"savvycent/internal/cli"
	"savvycent/internal/config"
	apphttp "savvycent/internal/http"
	applog "savvycent/internal/log"
	"savvycent/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(config.Load().LogLevel, applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	insights := cli.NewInsightClient(logger, cfg)
	mailer := cli.InitMailer(context.Background(), logger, cfg)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:   services.NewLedgerService(repo),
		Reports:  services.NewReportService(repo, insights, mailer),
		Receipts: insights,
		Store:    repo,
		Logger:   logger,
	}, apphttp.Options{
		TxRateLimit:       cfg.TxRateLimit,
		TxRatePeriod:      cfg.TxRatePeriod,
		InsightsCacheSize: cfg.InsightsCacheSize,
		InsightsCacheTTL:  cfg.InsightsCacheTTL,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Starting savvycent server",
		"port", cfg.Port,
		"sqlite_db", cfg.SQLiteDBPath,
		"ai_enabled", insights.Enabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
