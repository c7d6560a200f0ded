package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Mail transports
const (
	MailTransportLog   = "log"
	MailTransportGmail = "gmail"
)

type Config struct {
	// HTTP Server
	Port string

	LogLevel slog.Level

	// Database
	SQLiteDBPath string

	// AMQP. An empty URL processes due events in-process.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	AMQPPrefetch int

	// AMQPMaxPerUser caps one user's unsettled deliveries. Keep it below
	// AMQPPrefetch so other users always have free slots.
	AMQPMaxPerUser int

	// Mail
	MailTransport         string
	MailFrom              string
	GoogleOAuthClientFile string
	GoogleOAuthClientJSON string
	GoogleOAuthTokenFile  string

	// OpenAI. Without a key insights fall back to generic text and receipt scanning is off.
	OpenAIAPIKey string
	OpenAIModel  string

	// Scheduler
	RecurringSweepInterval time.Duration
	BudgetCheckInterval    time.Duration
	ReportCheckInterval    time.Duration
	BudgetAlertThreshold   decimal.Decimal

	// Recurring worker throttling
	RecurringPerUserLimit  int
	RecurringPeriod        time.Duration
	RecurringMaxConcurrent int

	// Transaction creation rate limit, per user
	TxRateLimit  int
	TxRatePeriod time.Duration

	// Insights cache
	InsightsCacheSize int
	InsightsCacheTTL  time.Duration
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		LogLevel:     getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/savvycent.db"),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "savvycent"),
		AMQPQueue:      getEnv("AMQP_QUEUE", "recurring_due"),
		AMQPPrefetch:   getEnvInt("AMQP_PREFETCH", 20),
		AMQPMaxPerUser: getEnvInt("AMQP_MAX_PER_USER", 5),

		MailTransport:         getEnv("MAIL_TRANSPORT", MailTransportLog),
		MailFrom:              getEnv("MAIL_FROM", "SavvyCent <no-reply@savvycent.local>"),
		GoogleOAuthClientFile: getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthClientJSON: getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenFile:  getEnv("GOOGLE_OAUTH_TOKEN_FILE", "token.json"),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		RecurringSweepInterval: getEnvDuration("RECURRING_SWEEP_INTERVAL", 24*time.Hour),
		BudgetCheckInterval:    getEnvDuration("BUDGET_CHECK_INTERVAL", 6*time.Hour),
		ReportCheckInterval:    getEnvDuration("REPORT_CHECK_INTERVAL", 24*time.Hour),
		BudgetAlertThreshold:   getEnvDecimal("BUDGET_ALERT_THRESHOLD", decimal.NewFromInt(80)),

		RecurringPerUserLimit:  getEnvInt("RECURRING_PER_USER_LIMIT", 10),
		RecurringPeriod:        getEnvDuration("RECURRING_PERIOD", time.Minute),
		RecurringMaxConcurrent: getEnvInt("RECURRING_MAX_CONCURRENT", 4),

		TxRateLimit:  getEnvInt("TX_RATE_LIMIT", 10),
		TxRatePeriod: getEnvDuration("TX_RATE_PERIOD", time.Hour),

		InsightsCacheSize: getEnvInt("INSIGHTS_CACHE_SIZE", 256),
		InsightsCacheTTL:  getEnvDuration("INSIGHTS_CACHE_TTL", time.Hour),
	}
}

// AMQPEnabled reports whether due events go through the broker.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

// GoogleOAuthClient returns the OAuth client credentials from inline JSON or file.
func (c *Config) GoogleOAuthClient() ([]byte, error) {
	if c.GoogleOAuthClientJSON != "" {
		return []byte(c.GoogleOAuthClientJSON), nil
	}
	b, err := os.ReadFile(c.GoogleOAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}
	return b, nil
}

// Validate checks the whole configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPPrefetch < 1 {
			errors = append(errors, fmt.Sprintf("invalid AMQP prefetch %d: must be at least 1", c.AMQPPrefetch))
		}
		if c.AMQPMaxPerUser < 1 {
			errors = append(errors, fmt.Sprintf("invalid AMQP max per user %d: must be at least 1", c.AMQPMaxPerUser))
		}
	}

	switch c.MailTransport {
	case MailTransportLog:
	case MailTransportGmail:
		if c.GoogleOAuthClientFile == "" && c.GoogleOAuthClientJSON == "" {
			errors = append(errors, "either GOOGLE_OAUTH_CLIENT_FILE or GOOGLE_OAUTH_CLIENT_JSON must be provided for gmail transport")
		}
		if c.GoogleOAuthClientFile != "" {
			if _, err := os.Stat(c.GoogleOAuthClientFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth client file does not exist: %s", c.GoogleOAuthClientFile))
			}
		}
		if _, err := os.Stat(c.GoogleOAuthTokenFile); err != nil {
			errors = append(errors, fmt.Sprintf("Google OAuth token file does not exist: %s", c.GoogleOAuthTokenFile))
		}
		if strings.TrimSpace(c.MailFrom) == "" {
			errors = append(errors, "MAIL_FROM is required for gmail transport")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid mail transport '%s': must be one of [%s %s]", c.MailTransport, MailTransportLog, MailTransportGmail))
	}

	errors = append(errors, checkInterval("recurring sweep interval", c.RecurringSweepInterval, time.Minute, 7*24*time.Hour)...)
	errors = append(errors, checkInterval("budget check interval", c.BudgetCheckInterval, time.Minute, 7*24*time.Hour)...)
	errors = append(errors, checkInterval("report check interval", c.ReportCheckInterval, time.Minute, 7*24*time.Hour)...)
	errors = append(errors, checkInterval("recurring period", c.RecurringPeriod, time.Second, 24*time.Hour)...)
	errors = append(errors, checkInterval("transaction rate period", c.TxRatePeriod, time.Second, 24*time.Hour)...)

	if !c.BudgetAlertThreshold.IsPositive() || c.BudgetAlertThreshold.GreaterThan(decimal.NewFromInt(100)) {
		errors = append(errors, fmt.Sprintf("invalid budget alert threshold %s: must be in (0, 100]", c.BudgetAlertThreshold))
	}
	if c.RecurringPerUserLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid recurring per-user limit %d: must be at least 1", c.RecurringPerUserLimit))
	}
	if c.RecurringMaxConcurrent < 1 {
		errors = append(errors, fmt.Sprintf("invalid recurring max concurrency %d: must be at least 1", c.RecurringMaxConcurrent))
	}
	if c.TxRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid transaction rate limit %d: must be at least 1", c.TxRateLimit))
	}
	if c.InsightsCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid insights cache size %d: must be at least 1", c.InsightsCacheSize))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func checkInterval(name string, d, min, max time.Duration) []string {
	if d < min {
		return []string{fmt.Sprintf("invalid %s %v: must be at least %v", name, d, min)}
	}
	if d > max {
		return []string{fmt.Sprintf("invalid %s %v: must be at most %v", name, d, max)}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvLevel(key string, defaultValue slog.Level) slog.Level {
	var level slog.Level
	if value := os.Getenv(key); value != "" {
		if err := level.UnmarshalText([]byte(value)); err == nil {
			return level
		}
	}
	return defaultValue
}
