package backend

import (
	"fmt"

	"finey/internal/config"
	gsheet "finey/internal/sheets/google"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	cfg := Config{
		Type: backendType,

		SQLiteDBPath:    appConfig.SQLiteDBPath,
		AMQPURL:         appConfig.AMQPURL,
		AMQPExchange:    appConfig.AMQPExchange,
		AMQPQueue:       appConfig.AMQPQueue,
		FreshnessPolicy: appConfig.SyncFreshnessPolicy,
		StaleAfter:      appConfig.SyncStaleAfter,

		FixturesFile: appConfig.AggregatorFixtures,

		Budgets:     BudgetSourceType(appConfig.BudgetSource),
		BudgetsFile: appConfig.BudgetsFile,
		Sheets: gsheet.Config{
			SpreadsheetID:   appConfig.GoogleSpreadsheetID,
			SheetName:       appConfig.GoogleBudgetSheetName,
			CredentialsJSON: appConfig.GoogleCredentialsJSON,
			CredentialsFile: appConfig.GoogleCredentialsFile,
			CacheTTL:        appConfig.GoogleSheetsCacheTTL,
		},
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if !c.Budgets.IsValid() {
		return fmt.Errorf("invalid budget source: %s", c.Budgets)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
		// AMQP is optional, so we don't validate it

	case MemoryBackend:
		if c.FixturesFile == "" {
			return fmt.Errorf("a fixtures file is required to seed the memory backend")
		}
		if c.Budgets == SQLiteBudgets {
			return fmt.Errorf("budget source %q requires the sqlite backend", c.Budgets)
		}
	}

	switch c.Budgets {
	case FileBudgets:
		if c.BudgetsFile == "" {
			return fmt.Errorf("a budgets file is required for the file budget source")
		}
	case SheetsBudgets:
		if c.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for the sheets budget source")
		}
	}

	return nil
}
