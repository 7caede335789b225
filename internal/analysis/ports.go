// Package analysis is the period aggregation engine: it normalizes a range,
// fetches the selected accounts' transactions once and derives the financial
// views served to the mobile client.
package analysis

import (
	"context"

	"github.com/shopspring/decimal"

	"finey/internal/core"
)

// TransactionStore returns every transaction of the given accounts whose day
// falls in [start, end]. Implementations must answer with a single bounded
// query regardless of how many accounts are selected.
type TransactionStore interface {
	FindByAccountsAndDateRange(ctx context.Context, accountIDs []string, start, end core.Date) ([]core.Transaction, error)
}

// BudgetSource returns spending ceilings keyed by category name.
type BudgetSource interface {
	GetBudgetCeilings(ctx context.Context, accountIDs []string) (map[string]decimal.Decimal, error)
}

// AccountSource supplies account metadata, chiefly current balances.
type AccountSource interface {
	FindAccounts(ctx context.Context, accountIDs []string) ([]core.Account, error)
}
