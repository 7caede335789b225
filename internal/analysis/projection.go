package analysis

import (
	"github.com/shopspring/decimal"

	"finey/internal/core"
)

// ComputeProjection extrapolates the end-of-range balance from the average
// daily expense observed between the range start and today. Income is only
// extrapolated when includeIncome is set.
func ComputeProjection(balance decimal.Decimal, current []core.Transaction, r core.DateRange, today core.Date, includeIncome bool) (BalanceProjection, error) {
	elapsed, remaining := r.Elapsed(today)
	if elapsed == 0 {
		return BalanceProjection{}, &core.InsufficientDataError{View: ViewProjection, Reason: "no days elapsed in range"}
	}

	spent, earned := decimal.Zero, decimal.Zero
	for _, tx := range current {
		if tx.Day().After(today.Time) {
			continue
		}
		switch tx.Type {
		case core.Expense:
			spent = spent.Add(tx.Magnitude())
		case core.Income:
			earned = earned.Add(tx.Magnitude())
		}
	}

	days := decimal.NewFromInt(int64(elapsed))
	left := decimal.NewFromInt(int64(remaining))
	dailyExpense := core.Money(spent.Div(days))
	dailyIncome := core.Money(earned.Div(days))

	projectedSpending := core.Money(dailyExpense.Mul(left))
	projected := balance.Sub(projectedSpending)
	if includeIncome {
		projected = projected.Add(dailyIncome.Mul(left))
	}

	return BalanceProjection{
		CurrentBalance:      core.Money(balance),
		ProjectedBalance:    core.Money(projected),
		DaysElapsed:         elapsed,
		DaysRemaining:       remaining,
		DailyAverageExpense: dailyExpense,
		DailyAverageIncome:  dailyIncome,
		ProjectedSpending:   projectedSpending,
	}, nil
}

// WalletBalance sums account balances.
func WalletBalance(accounts []core.Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}
