package analysis

import (
	"github.com/shopspring/decimal"

	"finey/internal/core"
)

// View names, used for logging and failure reporting.
const (
	ViewTotals      = "totals"
	ViewSummary     = "financialSummary"
	ViewProjection  = "currentBalanceProjection"
	ViewExpenses    = "expenseCategories"
	ViewBudget      = "budgetReality"
	ViewIncome      = "incomeBreakdown"
	ViewInvestments = "savingsInvestments"
	ViewInsights    = "aiInsights"
	ViewScore       = "financialScore"
)

type TotalsView struct {
	Income   decimal.Decimal
	Expenses decimal.Decimal
}

// Net is income minus expenses.
func (t TotalsView) Net() decimal.Decimal {
	return t.Income.Sub(t.Expenses)
}

type CategoryShare struct {
	Name   string
	Icon   string
	Amount decimal.Decimal
	Share  decimal.Decimal // percent of total expenses
	// PriorShare and Delta are set only when the prior period had expenses.
	PriorShare *decimal.Decimal
	Delta      *decimal.Decimal // percentage points
}

type ExpenseBreakdown struct {
	Total      decimal.Decimal
	Categories []CategoryShare
}

type IncomeSource struct {
	Name      string
	Icon      string
	Amount    decimal.Decimal
	Share     decimal.Decimal
	Recurring bool
}

type IncomeBreakdown struct {
	Total     decimal.Decimal
	Recurring decimal.Decimal
	Variable  decimal.Decimal
	Sources   []IncomeSource
}

type BudgetLine struct {
	Category string
	Icon     string
	Ceiling  decimal.Decimal
	Spent    decimal.Decimal
	Consumed decimal.Decimal // percent of ceiling
}

type BudgetReality struct {
	TotalCeiling decimal.Decimal
	TotalSpent   decimal.Decimal
	Lines        []BudgetLine
}

type BalanceProjection struct {
	CurrentBalance      decimal.Decimal
	ProjectedBalance    decimal.Decimal
	DaysElapsed         int
	DaysRemaining       int
	DailyAverageExpense decimal.Decimal
	DailyAverageIncome  decimal.Decimal
	ProjectedSpending   decimal.Decimal
}

type InvestmentPosition struct {
	Type          string
	Icon          string
	Amount        decimal.Decimal
	Return        decimal.Decimal
	ReturnPercent decimal.Decimal
}

type InvestmentSummary struct {
	TotalInvested decimal.Decimal
	TotalReturn   decimal.Decimal
	ReturnPercent decimal.Decimal
	Positions     []InvestmentPosition
}

// Trend labels a period-over-period change.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

type Growth struct {
	Value   decimal.Decimal
	Percent decimal.Decimal // one decimal place
	Trend   Trend
}

type InvestmentCategoryFlag struct {
	Name   string
	Active bool
}

// Status labels a sign: positive, negative or neutral.
type Status string

const (
	StatusPositive Status = "positive"
	StatusNegative Status = "negative"
	StatusNeutral  Status = "neutral"
)

type FinancialSummary struct {
	Income          Growth
	Expenses        Growth
	WalletBalance   decimal.Decimal
	WalletStatus    Status
	Investments     decimal.Decimal
	InvestmentFlags []InvestmentCategoryFlag
	ReturnRate      decimal.Decimal
	ReturnStatus    Status
	Months          []string
}

// ActionParams carries what the client needs to act on an insight.
type ActionParams struct {
	Category        string
	CurrentSpending decimal.Decimal
	Period          string
}

type Insight struct {
	ID         string
	Text       string
	Icon       string
	ActionText string
	ActionType string
	Params     ActionParams
}

// Report is the composite result. A nil view failed; its error is in Failures.
type Report struct {
	Range       core.DateRange
	Totals      *TotalsView
	Summary     *FinancialSummary
	Projection  *BalanceProjection
	Expenses    *ExpenseBreakdown
	Budget      *BudgetReality
	Income      *IncomeBreakdown
	Investments *InvestmentSummary
	Score       *FinancialScore
	Insights    []Insight
	Failures    map[string]error
}
