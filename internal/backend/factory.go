package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finey/internal/adapters"
	"finey/internal/amqp"
	"finey/internal/analysis"
	"finey/internal/budgets"
	"finey/internal/cache"
	"finey/internal/integrator"
	"finey/internal/services"
	gsheet "finey/internal/sheets/google"
	"finey/internal/storage"
	"finey/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
	caches *cache.Manager
}

// NewFactory creates a new backend factory. Caches owned by the backends it
// builds are registered with caches when it is not nil.
func NewFactory(logger *slog.Logger, caches *cache.Manager) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
		caches: caches,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		repo   *storage.SQLiteRepository
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, repo, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		result, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	budgetSource, err := f.createBudgetSource(ctx, config, repo)
	if err != nil {
		if result.Cleanup != nil {
			_ = result.Cleanup()
		}
		return nil, err
	}
	result.Backend.Budgets = budgetSource

	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, *storage.SQLiteRepository, error) {
	// Initialize SQLite repository
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	freshness, err := services.GetFreshnessChecker(config.FreshnessPolicy)
	if err != nil {
		_ = sqliteRepo.Close()
		return nil, nil, err
	}

	// Initialize AMQP client (optional)
	var publisher services.Publisher
	if config.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, jobs left to the worker poll loop", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			publisher = amqpClient
		}
	}

	txService := services.NewTransactionService(sqliteRepo, publisher, freshness, config.StaleAfter)
	store := adapters.NewSyncingStore(sqliteRepo, txService)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"freshness_policy", config.FreshnessPolicy,
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Backend: Backend{Transactions: store, Goals: sqliteRepo},
		Cleanup: func() error {
			return errors.Join(txService.Close(), sqliteRepo.Close())
		},
	}, sqliteRepo, nil
}

// createMemoryBackend seeds an in-memory store from the aggregator fixtures.
func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	fixtures, err := integrator.LoadFixtures(config.FixturesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixtures: %w", err)
	}

	store := memory.New()
	accounts, txs := fixtures.Snapshot()
	ctx := context.Background()
	for _, a := range accounts {
		if err := store.UpsertAccount(ctx, a); err != nil {
			return nil, fmt.Errorf("seed account %s: %w", a.ID, err)
		}
	}
	if err := store.UpsertTransactions(ctx, txs); err != nil {
		return nil, fmt.Errorf("seed transactions: %w", err)
	}

	f.logger.Info("Initialized memory backend",
		"fixtures", config.FixturesFile,
		"accounts", len(accounts),
		"transactions", len(txs))

	return &BackendResult{
		Backend: Backend{Transactions: store, Goals: store},
	}, nil
}

func (f *DefaultFactory) createBudgetSource(ctx context.Context, config Config, repo *storage.SQLiteRepository) (analysis.BudgetSource, error) {
	switch config.Budgets {
	case SQLiteBudgets:
		if repo == nil {
			return nil, fmt.Errorf("budget source %q requires the sqlite backend", config.Budgets)
		}
		return repo, nil

	case FileBudgets:
		src, err := budgets.NewFileSource(config.BudgetsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load budgets file: %w", err)
		}
		f.logger.Info("Using budgets file", "path", config.BudgetsFile)
		return src, nil

	case SheetsBudgets:
		cli, err := gsheet.New(ctx, config.Sheets)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		if f.caches != nil {
			f.caches.Register("sheets", cli.RowCache())
		}
		f.logger.Info("Initialized Google Sheets budget source", "sheet", config.Sheets.SheetName)
		return cli, nil
	}
	return nil, fmt.Errorf("unsupported budget source: %s", config.Budgets)
}
