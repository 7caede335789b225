package analysis

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"finey/internal/core"
)

var (
	savingWeight     = decimal.NewFromInt(60)
	investmentWeight = decimal.NewFromInt(30)
	surplusBonus     = decimal.NewFromInt(10)
	maxScore         = decimal.NewFromInt(100)
	savingTarget     = decimal.RequireFromString("0.2")
)

type FinancialScore struct {
	Score decimal.Decimal // 0..100, two decimal places
	// IncomeChange is the percent change of income against the previous
	// calendar month, nil when that month had no income.
	IncomeChange *decimal.Decimal
	Details      string
	Insights     []Insight
}

func clampUnit(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return d
}

// ComputeFinancialScore rates the period from 0 to 100: 60 points scale with
// the saving rate, 30 with the share of income invested and 10 are granted
// when income exceeds expenses. A period without income scores zero.
func ComputeFinancialScore(r core.DateRange, current TotalsView, invested decimal.Decimal, previousMonth TotalsView) FinancialScore {
	var out FinancialScore

	saving := decimal.Zero
	if current.Income.IsPositive() {
		saving = current.Net().Div(current.Income)
		score := savingWeight.Mul(clampUnit(saving)).
			Add(investmentWeight.Mul(clampUnit(invested.Div(current.Income))))
		if current.Net().IsPositive() {
			score = score.Add(surplusBonus)
		}
		if score.GreaterThan(maxScore) {
			score = maxScore
		}
		out.Score = score.Round(2)
	}

	if previousMonth.Income.IsPositive() {
		change := current.Income.Sub(previousMonth.Income).Div(previousMonth.Income).Mul(decimal.NewFromInt(100)).Round(2)
		out.IncomeChange = &change
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Financial score for %s: %s of 100.", r, out.Score.StringFixed(2))
	if out.IncomeChange != nil {
		fmt.Fprintf(&b, " Income change against the previous month: %s%%.", out.IncomeChange.StringFixed(2))
	} else {
		b.WriteString(" Income change against the previous month: n/a.")
	}
	out.Details = b.String()

	out.Insights = scoreInsights(r, current, saving)
	return out
}

func scoreInsights(r core.DateRange, current TotalsView, saving decimal.Decimal) []Insight {
	out := []Insight{}
	if !current.Income.IsPositive() && !current.Expenses.IsPositive() {
		return out
	}
	if current.Expenses.GreaterThan(current.Income) {
		out = append(out, Insight{
			ID:         "spending-over-income",
			Text:       "Your expenses are above your income for this period.",
			Icon:       "⚠️",
			ActionText: "See cash flow",
			ActionType: ActionViewCashFlow,
			Params:     ActionParams{CurrentSpending: current.Expenses, Period: r.String()},
		})
	}
	if saving.LessThan(savingTarget) {
		out = append(out, Insight{
			ID:         "saving-target-missed",
			Text:       fmt.Sprintf("You saved %s%% of your income, below the %s%% target.", core.Percent(clampUnit(saving), decimal.NewFromInt(1)).StringFixed(0), savingTarget.Mul(maxScore).StringFixed(0)),
			Icon:       "💸",
			ActionText: "Review spending",
			ActionType: ActionViewCashFlow,
			Params:     ActionParams{CurrentSpending: current.Expenses, Period: r.String()},
		})
	}
	return out
}
