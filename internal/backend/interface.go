package backend

import (
	"context"
	"time"

	"finey/internal/adapters"
	"finey/internal/analysis"
	"finey/internal/services"
	gsheet "finey/internal/sheets/google"
)

// Backend is everything the API reads: the transaction mirror the engine
// aggregates, the goal store and the budget ceilings.
type Backend struct {
	Transactions adapters.Store
	Goals        services.GoalStore
	Budgets      analysis.BudgetSource
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Bank sync, sqlite only. An empty AMQPURL leaves queued jobs to the
	// worker's poll loop.
	AMQPURL         string
	AMQPExchange    string
	AMQPQueue       string
	FreshnessPolicy string
	StaleAfter      time.Duration

	// Memory backend specific
	FixturesFile string

	Budgets     BudgetSourceType
	BudgetsFile string
	Sheets      gsheet.Config
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// BudgetSourceType selects where budget ceilings are read from.
type BudgetSourceType string

const (
	SQLiteBudgets BudgetSourceType = "sqlite"
	FileBudgets   BudgetSourceType = "file"
	SheetsBudgets BudgetSourceType = "sheets"
)

func (bs BudgetSourceType) IsValid() bool {
	switch bs {
	case SQLiteBudgets, FileBudgets, SheetsBudgets:
		return true
	default:
		return false
	}
}
