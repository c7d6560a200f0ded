// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/savvycent, cmd/scheduler and cmd/recurring-worker.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"savvycent/internal/config"
	"savvycent/internal/insight"
	applog "savvycent/internal/log"
	"savvycent/internal/notify"
	"savvycent/internal/storage"
)

// SetupLogger initializes structured logging for a command and installs it
// as the slog default.
func SetupLogger(level slog.Level, component string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = level
	cfg.Component = component
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the ledger store at dbPath, applying migrations.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *applog.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// NewTransport returns the mail transport selected by MAIL_TRANSPORT.
func NewTransport(ctx context.Context, cfg *config.Config) (notify.Transport, error) {
	switch cfg.MailTransport {
	case config.MailTransportGmail:
		clientJSON, err := cfg.GoogleOAuthClient()
		if err != nil {
			return nil, err
		}
		return notify.NewGmailTransport(ctx, notify.GmailConfig{
			ClientJSON: clientJSON,
			TokenFile:  cfg.GoogleOAuthTokenFile,
			From:       cfg.MailFrom,
		})
	case config.MailTransportLog, "":
		return notify.LogTransport{}, nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.MailTransport)
	}
}

// InitMailer builds the notification mailer or exits the process.
func InitMailer(ctx context.Context, logger *applog.Logger, cfg *config.Config) *notify.Mailer {
	transport, err := NewTransport(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize mail transport", applog.FieldError, err, "transport", cfg.MailTransport)
		os.Exit(1)
	}
	mailer, err := notify.NewMailer(transport)
	if err != nil {
		logger.Error("Failed to parse mail templates", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Mailer initialized", "transport", cfg.MailTransport)
	return mailer
}

// NewInsightClient returns the OpenAI-backed insight client. Without an API
// key it only serves fallback insights.
func NewInsightClient(logger *applog.Logger, cfg *config.Config) *insight.Client {
	client := insight.New(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if !client.Enabled() {
		logger.Warn("OPENAI_API_KEY not set - insights use fallback text and receipt scanning is disabled")
	}
	return client
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// The returned context is cancelled on SIGINT or SIGTERM; cleanup then runs
// with a context bounded by timeout, and done is closed when it returns.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
