package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	// HTTP Server
	Port               string
	RequestTimeout     time.Duration
	RateLimitPerMinute int

	// Storage
	DataBackend  string
	SQLiteDBPath string

	// Budget ceilings
	BudgetSource string
	BudgetsFile  string

	// Google Sheets budget source
	GoogleSpreadsheetID   string
	GoogleBudgetSheetName string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string
	GoogleSheetsCacheTTL  time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Secrets
	SecretProvider     string
	SecretPrefix       string
	SecretCacheTTL     time.Duration
	SecretBankAccounts string
	SecretFinance      string
	SecretGoals        string

	// Bank aggregator
	AggregatorURL          string
	AggregatorClientID     string
	AggregatorClientSecret string
	AggregatorFixtures     string

	// Worker
	SyncBatchSize       int
	SyncInterval        time.Duration
	SyncMaxRetries      int
	SyncStaleAfter      time.Duration
	SyncFreshnessPolicy string
	SyncRetryFailed     bool

	// Analysis
	InsightsMax               int
	IncomeRecurrencePolicy    string
	IncomeRecurrenceThreshold string
	CategorizeByDescription   bool
	ProjectionIncludeIncome   bool
	AnalysisCacheTTL          time.Duration
	AnalysisCacheSize         int

	LogLevel  string
	LogFormat string
}

var (
	validBackends          = []string{"memory", "sqlite"}
	validBudgetSources     = []string{"file", "sheets", "sqlite"}
	validSecretProviders   = []string{"aws", "env", "kms"}
	validRecurrencePolicy  = []string{"category", "default", "none", "threshold"}
	validFreshnessPolicies = []string{"coverage", "never", "stale"}
	validLogLevels         = []string{"debug", "error", "info", "warn"}
	validLogFormats        = []string{"json", "text"}
)

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finey.db"),

		BudgetSource: getEnv("BUDGET_SOURCE", "sqlite"),
		BudgetsFile:  getEnv("BUDGETS_FILE", ""),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleBudgetSheetName: getEnv("GOOGLE_BUDGET_SHEET_NAME", "Budgets"),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),
		GoogleSheetsCacheTTL:  getEnvDuration("GOOGLE_SHEETS_CACHE_TTL", 5*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finey"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "bank_sync"),

		SecretProvider:     getEnv("SECRET_PROVIDER", "env"),
		SecretPrefix:       getEnv("SECRET_PREFIX", ""),
		SecretCacheTTL:     getEnvDuration("SECRET_CACHE_TTL", 15*time.Minute),
		SecretBankAccounts: getEnv("SECRET_BANK_ACCOUNTS", "bank-accounts"),
		SecretFinance:      getEnv("SECRET_FINANCE", "finance"),
		SecretGoals:        getEnv("SECRET_GOALS", "goals"),

		AggregatorURL:          getEnv("AGGREGATOR_URL", ""),
		AggregatorClientID:     getEnv("AGGREGATOR_CLIENT_ID", ""),
		AggregatorClientSecret: getEnv("AGGREGATOR_CLIENT_SECRET", ""),
		AggregatorFixtures:     getEnv("AGGREGATOR_FIXTURES", ""),

		SyncBatchSize:       getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:        getEnvDuration("SYNC_INTERVAL", 30*time.Second),
		SyncMaxRetries:      getEnvInt("SYNC_MAX_RETRIES", 3),
		SyncStaleAfter:      getEnvDuration("SYNC_STALE_AFTER", time.Hour),
		SyncFreshnessPolicy: getEnv("SYNC_FRESHNESS_POLICY", "stale"),
		SyncRetryFailed:     getEnvBool("SYNC_RETRY_FAILED", false),

		InsightsMax:               getEnvInt("INSIGHTS_MAX", 5),
		IncomeRecurrencePolicy:    getEnv("INCOME_RECURRENCE_POLICY", "default"),
		IncomeRecurrenceThreshold: getEnv("INCOME_RECURRENCE_THRESHOLD", "1000"),
		CategorizeByDescription:   getEnvBool("CATEGORIZE_BY_DESCRIPTION", false),
		ProjectionIncludeIncome:   getEnvBool("PROJECTION_INCLUDE_INCOME", false),
		AnalysisCacheTTL:          getEnvDuration("ANALYSIS_CACHE_TTL", time.Minute),
		AnalysisCacheSize:         getEnvInt("ANALYSIS_CACHE_SIZE", 256),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RequestTimeout < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must be at least 100ms", c.RequestTimeout))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" || c.BudgetSource == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if !slices.Contains(validBudgetSources, c.BudgetSource) {
		errors = append(errors, fmt.Sprintf("invalid budget source '%s': must be one of %v", c.BudgetSource, validBudgetSources))
	}
	if c.BudgetSource == "sqlite" && c.DataBackend == "memory" {
		errors = append(errors, "budget source 'sqlite' requires the sqlite data backend")
	}

	if c.BudgetSource == "file" {
		if c.BudgetsFile == "" {
			errors = append(errors, "BUDGETS_FILE is required when using the file budget source")
		} else if _, err := os.Stat(c.BudgetsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("budgets file does not exist: %s", c.BudgetsFile))
		}
	}

	if c.BudgetSource == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using the sheets budget source")
		}
		if c.GoogleBudgetSheetName == "" {
			errors = append(errors, "Google budget sheet name is required when using the sheets budget source")
		}
		if c.GoogleCredentialsFile != "" {
			if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
			}
		}
	}

	// Validate AMQP URL if provided
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
	}

	if !slices.Contains(validSecretProviders, c.SecretProvider) {
		errors = append(errors, fmt.Sprintf("invalid secret provider '%s': must be one of %v", c.SecretProvider, validSecretProviders))
	}
	if c.SecretBankAccounts == "" || c.SecretFinance == "" || c.SecretGoals == "" {
		errors = append(errors, "secret names SECRET_BANK_ACCOUNTS, SECRET_FINANCE and SECRET_GOALS cannot be empty")
	}
	if c.SecretCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid secret cache TTL %v: must not be negative", c.SecretCacheTTL))
	}

	if c.AggregatorURL != "" {
		if parsedURL, err := url.Parse(c.AggregatorURL); err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid aggregator URL '%s': must be an http(s) URL", c.AggregatorURL))
		}
		if c.AggregatorClientID == "" || c.AggregatorClientSecret == "" {
			errors = append(errors, "AGGREGATOR_CLIENT_ID and AGGREGATOR_CLIENT_SECRET are required with AGGREGATOR_URL")
		}
	}
	if c.AggregatorFixtures != "" {
		if _, err := os.Stat(c.AggregatorFixtures); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("aggregator fixtures file does not exist: %s", c.AggregatorFixtures))
		}
	}
	if c.DataBackend == "memory" && c.AggregatorFixtures == "" {
		errors = append(errors, "AGGREGATOR_FIXTURES is required to seed the memory backend")
	}

	// Validate worker configuration
	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.SyncMaxRetries < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync max retries %d: must be at least 1", c.SyncMaxRetries))
	}
	if c.SyncStaleAfter < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid sync stale-after %v: must be at least 1 minute", c.SyncStaleAfter))
	}
	if !slices.Contains(validFreshnessPolicies, c.SyncFreshnessPolicy) {
		errors = append(errors, fmt.Sprintf("invalid sync freshness policy '%s': must be one of %v", c.SyncFreshnessPolicy, validFreshnessPolicies))
	}

	// Validate analysis configuration
	if c.InsightsMax < 1 || c.InsightsMax > 50 {
		errors = append(errors, fmt.Sprintf("invalid insights max %d: must be between 1 and 50", c.InsightsMax))
	}
	if !slices.Contains(validRecurrencePolicy, c.IncomeRecurrencePolicy) {
		errors = append(errors, fmt.Sprintf("invalid income recurrence policy '%s': must be one of %v", c.IncomeRecurrencePolicy, validRecurrencePolicy))
	}
	if d, err := decimal.NewFromString(c.IncomeRecurrenceThreshold); err != nil || d.IsNegative() {
		errors = append(errors, fmt.Sprintf("invalid income recurrence threshold '%s': must be a non-negative decimal", c.IncomeRecurrenceThreshold))
	}
	if c.AnalysisCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid analysis cache TTL %v: must not be negative", c.AnalysisCacheTTL))
	}
	if c.AnalysisCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid analysis cache size %d: must be at least 1", c.AnalysisCacheSize))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// RecurrenceThreshold returns the parsed income threshold. Call after Validate.
func (c *Config) RecurrenceThreshold() decimal.Decimal {
	d, err := decimal.NewFromString(c.IncomeRecurrenceThreshold)
	if err != nil {
		return decimal.NewFromInt(1000)
	}
	return d
}

// SlogLevel maps LogLevel onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
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

// getEnvDuration accepts Go durations; "0" disables TTL-style settings.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
