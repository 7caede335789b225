package analysis

import (
	"sort"

	"github.com/shopspring/decimal"

	"finey/internal/core"
)

// ComputeTotals sums income and expense magnitudes. Transfers are ignored.
func ComputeTotals(txs []core.Transaction) TotalsView {
	var out TotalsView
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			out.Income = out.Income.Add(tx.Magnitude())
		case core.Expense:
			out.Expenses = out.Expenses.Add(tx.Magnitude())
		}
	}
	return out
}

// expensesByCategory returns per-category expense sums and their total.
func expensesByCategory(txs []core.Transaction, cat Categorizer) (map[string]decimal.Decimal, decimal.Decimal) {
	sums := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		name := cat.Categorize(tx)
		sums[name] = sums[name].Add(tx.Magnitude())
		total = total.Add(tx.Magnitude())
	}
	return sums, total
}

// ComputeExpenseBreakdown groups current expenses by category with their
// share of the total. When prior has expenses, each bucket also carries the
// prior share and the percentage-point delta.
func ComputeExpenseBreakdown(current, prior []core.Transaction, cat Categorizer) ExpenseBreakdown {
	sums, total := expensesByCategory(current, cat)
	priorSums, priorTotal := expensesByCategory(prior, cat)

	out := ExpenseBreakdown{Total: total, Categories: make([]CategoryShare, 0, len(sums))}
	if total.IsZero() {
		return out
	}

	for name, amount := range sums {
		share := core.Percent(amount, total)
		cs := CategoryShare{Name: name, Icon: CategoryIcon(name), Amount: amount, Share: share}
		if !priorTotal.IsZero() {
			ps := core.Percent(priorSums[name], priorTotal)
			delta := share.Sub(ps)
			cs.PriorShare, cs.Delta = &ps, &delta
		}
		out.Categories = append(out.Categories, cs)
	}

	sort.Slice(out.Categories, func(i, j int) bool {
		a, b := out.Categories[i], out.Categories[j]
		if c := a.Amount.Cmp(b.Amount); c != 0 {
			return c > 0
		}
		return a.Name < b.Name
	})
	return out
}

// ComputeBudgetReality compares spend per category against its ceiling.
// Categories without a ceiling are left out; no ceilings at all is an
// InsufficientDataError.
func ComputeBudgetReality(current []core.Transaction, cat Categorizer, ceilings map[string]decimal.Decimal) (BudgetReality, error) {
	if len(ceilings) == 0 {
		return BudgetReality{}, &core.InsufficientDataError{View: ViewBudget, Reason: "no budget ceilings configured"}
	}

	sums, _ := expensesByCategory(current, cat)
	out := BudgetReality{Lines: make([]BudgetLine, 0, len(ceilings))}
	for name, ceiling := range ceilings {
		if !ceiling.IsPositive() {
			continue
		}
		spent := sums[name]
		out.Lines = append(out.Lines, BudgetLine{
			Category: name,
			Icon:     CategoryIcon(name),
			Ceiling:  ceiling,
			Spent:    spent,
			Consumed: core.Percent(spent, ceiling),
		})
		out.TotalCeiling = out.TotalCeiling.Add(ceiling)
		out.TotalSpent = out.TotalSpent.Add(spent)
	}
	if len(out.Lines) == 0 {
		return BudgetReality{}, &core.InsufficientDataError{View: ViewBudget, Reason: "no positive budget ceilings"}
	}

	sort.Slice(out.Lines, func(i, j int) bool {
		a, b := out.Lines[i], out.Lines[j]
		if c := a.Consumed.Cmp(b.Consumed); c != 0 {
			return c > 0
		}
		return a.Category < b.Category
	})
	return out, nil
}
