package http

import (
	"time"

	"github.com/shopspring/decimal"

	"finey/internal/analysis"
	"finey/internal/core"
	"finey/internal/schema"
)

// Wire shapes of the analysis endpoints. Every amount, percentage and
// insight text is a token sealed under the finance secret; names, icons and
// status labels travel in plaintext.

type totalPeriodPayload struct {
	TotalEarnings string `json:"totalEarnings"`
	TotalExpenses string `json:"totalExpenses"`
}

type homeAnalysisPayload struct {
	AnalysisPeriod           string                    `json:"analysisPeriod"`
	FinancialSummary         *financialSummaryPayload  `json:"financialSummary"`
	CurrentBalanceProjection *projectionPayload        `json:"currentBalanceProjection"`
	ExpenseCategories        *expenseCategoriesPayload `json:"expenseCategories"`
	BudgetReality            *budgetRealityPayload     `json:"budgetReality"`
	AIInsights               []insightPayload          `json:"aiInsights"`
	IncomeBreakdown          *incomeBreakdownPayload   `json:"incomeBreakdown"`
	SavingsInvestments       *savingsPayload           `json:"savingsInvestments"`
	FinancialScore           *financialScorePayload    `json:"financialScore"`
	Totals                   *totalPeriodPayload       `json:"totals"`
}

type growthPayload struct {
	Value      string `json:"value"`
	Percentage string `json:"percentage"`
	Status     string `json:"status"`
}

type valueStatusPayload struct {
	Value  string `json:"value"`
	Status string `json:"status"`
}

type investmentCategoryPayload struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type investmentDataPayload struct {
	Value      string                      `json:"value"`
	Categories []investmentCategoryPayload `json:"categories"`
	ReturnRate string                      `json:"returnRate"`
	Status     string                      `json:"status"`
}

type returnRatePayload struct {
	Percentage string `json:"percentage"`
	Status     string `json:"status"`
}

type financialSummaryPayload struct {
	Income          growthPayload         `json:"income"`
	Expenses        growthPayload         `json:"expenses"`
	Investments     investmentDataPayload `json:"investments"`
	WalletBalance   valueStatusPayload    `json:"walletBalance"`
	TotalReturnRate returnRatePayload     `json:"totalReturnRate"`
	Months          []string              `json:"months"`
}

type projectionPayload struct {
	CurrentBalance      string `json:"currentBalance"`
	ProjectedBalance    string `json:"projectedBalance"`
	DaysElapsed         int    `json:"daysElapsed"`
	DaysLeftInMonth     int    `json:"daysLeftInMonth"`
	DailyAverageExpense string `json:"dailyAverageExpense"`
	DailyAverageIncome  string `json:"dailyAverageIncome"`
	ProjectedSpending   string `json:"projectedSpending"`
}

type expenseCategoryPayload struct {
	Name               string  `json:"name"`
	Icon               string  `json:"icon"`
	Amount             string  `json:"amount"`
	Percentage         string  `json:"percentage"`
	PreviousPercentage *string `json:"previousPercentage"`
	Delta              *string `json:"delta"`
}

type expenseCategoriesPayload struct {
	Categories    []expenseCategoryPayload `json:"categories"`
	TotalExpenses string                   `json:"totalExpenses"`
}

type budgetCategoryPayload struct {
	Name         string `json:"name"`
	Icon         string `json:"icon"`
	BudgetAmount string `json:"budgetAmount"`
	SpentAmount  string `json:"spentAmount"`
	Percentage   string `json:"percentage"`
}

type budgetRealityPayload struct {
	BudgetCategories []budgetCategoryPayload `json:"budgetCategories"`
	TotalBudget      string                  `json:"totalBudget"`
	TotalSpent       string                  `json:"totalSpent"`
}

type actionParamsPayload struct {
	Category        string `json:"category,omitempty"`
	CurrentSpending string `json:"currentSpending"`
	Period          string `json:"period"`
}

type insightPayload struct {
	ID           string              `json:"id"`
	Text         string              `json:"text"`
	Icon         string              `json:"icon"`
	ActionText   string              `json:"actionText"`
	ActionType   string              `json:"actionType"`
	ActionParams actionParamsPayload `json:"actionParams"`
}

type incomeSourcePayload struct {
	Name        string `json:"name"`
	Amount      string `json:"amount"`
	Percentage  string `json:"percentage"`
	IsRecurring bool   `json:"isRecurring"`
	Icon        string `json:"icon"`
}

type incomeBreakdownPayload struct {
	IncomeSources   []incomeSourcePayload `json:"incomeSources"`
	TotalIncome     string                `json:"totalIncome"`
	RecurringIncome string                `json:"recurringIncome"`
	VariableIncome  string                `json:"variableIncome"`
}

type investmentReturnPayload struct {
	Value      string `json:"value"`
	Percentage string `json:"percentage"`
	IsPositive bool   `json:"isPositive"`
}

type investmentPayload struct {
	Type             string                  `json:"type"`
	Amount           string                  `json:"amount"`
	InvestmentReturn investmentReturnPayload `json:"investmentReturn"`
	Icon             string                  `json:"icon"`
}

type savingsPayload struct {
	TotalInvested         string              `json:"totalInvested"`
	TotalReturn           string              `json:"totalReturn"`
	TotalReturnPercentage string              `json:"totalReturnPercentage"`
	Investments           []investmentPayload `json:"investments"`
}

type financialScorePayload struct {
	Period     string           `json:"period"`
	Score      string           `json:"score"`
	Percentage *string          `json:"percentage"`
	Details    string           `json:"details"`
	Insights   []insightPayload `json:"insights"`
}

type goalPayload struct {
	ID               string `json:"id"`
	GoalName         string `json:"goalName"`
	GoalDescription  string `json:"goalDescription,omitempty"`
	GoalIcon         string `json:"goalIcon,omitempty"`
	GoalColor        string `json:"goalColor,omitempty"`
	GoalTargetAmount string `json:"goalTargetAmount"`
	GoalDate         string `json:"goalDate"`
	CreatedAt        string `json:"createdAt"`
}

func renderGoal(g core.Goal) goalPayload {
	return goalPayload{
		ID:               g.ID,
		GoalName:         g.Name,
		GoalDescription:  g.Description,
		GoalIcon:         g.Icon,
		GoalColor:        g.Color,
		GoalTargetAmount: g.TargetAmount,
		GoalDate:         g.Date.String(),
		CreatedAt:        g.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// renderer turns analysis views into sealed payloads. Check s.Err() once
// after rendering.
type renderer struct {
	s *schema.Sealer
}

func (rd renderer) totals(t analysis.TotalsView) *totalPeriodPayload {
	return &totalPeriodPayload{
		TotalEarnings: rd.s.SealAmount(t.Income),
		TotalExpenses: rd.s.SealAmount(t.Expenses),
	}
}

func (rd renderer) optionalNumber(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	v := rd.s.SealNumber(*d)
	return &v
}

func (rd renderer) report(rep *analysis.Report) homeAnalysisPayload {
	out := homeAnalysisPayload{AnalysisPeriod: rep.Range.String()}

	if rep.Totals != nil {
		out.Totals = rd.totals(*rep.Totals)
	}
	if rep.Summary != nil {
		out.FinancialSummary = rd.summary(*rep.Summary)
	}
	if rep.Projection != nil {
		p := rep.Projection
		out.CurrentBalanceProjection = &projectionPayload{
			CurrentBalance:      rd.s.SealAmount(p.CurrentBalance),
			ProjectedBalance:    rd.s.SealAmount(p.ProjectedBalance),
			DaysElapsed:         p.DaysElapsed,
			DaysLeftInMonth:     p.DaysRemaining,
			DailyAverageExpense: rd.s.SealAmount(p.DailyAverageExpense),
			DailyAverageIncome:  rd.s.SealAmount(p.DailyAverageIncome),
			ProjectedSpending:   rd.s.SealAmount(p.ProjectedSpending),
		}
	}
	if rep.Expenses != nil {
		out.ExpenseCategories = rd.expenses(*rep.Expenses)
	}
	if rep.Budget != nil {
		out.BudgetReality = rd.budget(*rep.Budget)
	}
	if rep.Income != nil {
		out.IncomeBreakdown = rd.income(*rep.Income)
	}
	if rep.Investments != nil {
		out.SavingsInvestments = rd.investments(*rep.Investments)
	}
	if rep.Score != nil {
		out.FinancialScore = &financialScorePayload{
			Period:     rep.Range.String(),
			Score:      rd.s.SealNumber(rep.Score.Score),
			Percentage: rd.optionalNumber(rep.Score.IncomeChange),
			Details:    rd.s.Seal(rep.Score.Details),
			Insights:   rd.insights(rep.Score.Insights),
		}
	}
	if _, failed := rep.Failures[analysis.ViewInsights]; !failed {
		out.AIInsights = rd.insights(rep.Insights)
	}
	return out
}

func (rd renderer) growth(g analysis.Growth) growthPayload {
	return growthPayload{
		Value:      rd.s.SealAmount(g.Value),
		Percentage: rd.s.SealNumber(g.Percent),
		Status:     string(g.Trend),
	}
}

func (rd renderer) summary(fs analysis.FinancialSummary) *financialSummaryPayload {
	flags := make([]investmentCategoryPayload, 0, len(fs.InvestmentFlags))
	for _, f := range fs.InvestmentFlags {
		flags = append(flags, investmentCategoryPayload{Name: f.Name, Active: f.Active})
	}
	investStatus := "inactive"
	if fs.Investments.IsPositive() {
		investStatus = "active"
	}
	return &financialSummaryPayload{
		Income:   rd.growth(fs.Income),
		Expenses: rd.growth(fs.Expenses),
		Investments: investmentDataPayload{
			Value:      rd.s.SealAmount(fs.Investments),
			Categories: flags,
			ReturnRate: rd.s.SealNumber(fs.ReturnRate),
			Status:     investStatus,
		},
		WalletBalance: valueStatusPayload{
			Value:  rd.s.SealAmount(fs.WalletBalance),
			Status: string(fs.WalletStatus),
		},
		TotalReturnRate: returnRatePayload{
			Percentage: rd.s.SealNumber(fs.ReturnRate),
			Status:     string(fs.ReturnStatus),
		},
		Months: fs.Months,
	}
}

func (rd renderer) expenses(b analysis.ExpenseBreakdown) *expenseCategoriesPayload {
	cats := make([]expenseCategoryPayload, 0, len(b.Categories))
	for _, c := range b.Categories {
		cats = append(cats, expenseCategoryPayload{
			Name:               c.Name,
			Icon:               c.Icon,
			Amount:             rd.s.SealAmount(c.Amount),
			Percentage:         rd.s.SealNumber(c.Share),
			PreviousPercentage: rd.optionalNumber(c.PriorShare),
			Delta:              rd.optionalNumber(c.Delta),
		})
	}
	return &expenseCategoriesPayload{
		Categories:    cats,
		TotalExpenses: rd.s.SealAmount(b.Total),
	}
}

func (rd renderer) budget(b analysis.BudgetReality) *budgetRealityPayload {
	lines := make([]budgetCategoryPayload, 0, len(b.Lines))
	for _, l := range b.Lines {
		lines = append(lines, budgetCategoryPayload{
			Name:         l.Category,
			Icon:         l.Icon,
			BudgetAmount: rd.s.SealAmount(l.Ceiling),
			SpentAmount:  rd.s.SealAmount(l.Spent),
			Percentage:   rd.s.SealNumber(l.Consumed),
		})
	}
	return &budgetRealityPayload{
		BudgetCategories: lines,
		TotalBudget:      rd.s.SealAmount(b.TotalCeiling),
		TotalSpent:       rd.s.SealAmount(b.TotalSpent),
	}
}

func (rd renderer) income(b analysis.IncomeBreakdown) *incomeBreakdownPayload {
	sources := make([]incomeSourcePayload, 0, len(b.Sources))
	for _, src := range b.Sources {
		sources = append(sources, incomeSourcePayload{
			Name:        src.Name,
			Amount:      rd.s.SealAmount(src.Amount),
			Percentage:  rd.s.SealNumber(src.Share),
			IsRecurring: src.Recurring,
			Icon:        src.Icon,
		})
	}
	return &incomeBreakdownPayload{
		IncomeSources:   sources,
		TotalIncome:     rd.s.SealAmount(b.Total),
		RecurringIncome: rd.s.SealAmount(b.Recurring),
		VariableIncome:  rd.s.SealAmount(b.Variable),
	}
}

func (rd renderer) investments(inv analysis.InvestmentSummary) *savingsPayload {
	positions := make([]investmentPayload, 0, len(inv.Positions))
	for _, p := range inv.Positions {
		positions = append(positions, investmentPayload{
			Type:   p.Type,
			Amount: rd.s.SealAmount(p.Amount),
			InvestmentReturn: investmentReturnPayload{
				Value:      rd.s.SealAmount(p.Return),
				Percentage: rd.s.SealNumber(p.ReturnPercent),
				IsPositive: !p.Return.IsNegative(),
			},
			Icon: p.Icon,
		})
	}
	return &savingsPayload{
		TotalInvested:         rd.s.SealAmount(inv.TotalInvested),
		TotalReturn:           rd.s.SealAmount(inv.TotalReturn),
		TotalReturnPercentage: rd.s.SealNumber(inv.ReturnPercent),
		Investments:           positions,
	}
}

func (rd renderer) insights(in []analysis.Insight) []insightPayload {
	out := make([]insightPayload, 0, len(in))
	for _, i := range in {
		out = append(out, insightPayload{
			ID:         i.ID,
			Text:       rd.s.Seal(i.Text),
			Icon:       i.Icon,
			ActionText: i.ActionText,
			ActionType: i.ActionType,
			ActionParams: actionParamsPayload{
				Category:        i.Params.Category,
				CurrentSpending: rd.s.SealAmount(i.Params.CurrentSpending),
				Period:          i.Params.Period,
			},
		})
	}
	return out
}
