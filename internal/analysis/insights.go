package analysis

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Action types understood by the mobile client.
const (
	ActionViewCategory = "VIEW_CATEGORY"
	ActionAdjustBudget = "ADJUST_BUDGET"
	ActionViewCashFlow = "VIEW_CASH_FLOW"
	ActionInvest       = "VIEW_INVESTMENTS"
)

// DefaultInsightsMax caps the insight list when no cap is configured.
const DefaultInsightsMax = 5

var (
	nearBudgetFloor    = decimal.NewFromInt(80)
	fullBudget         = decimal.NewFromInt(100)
	spikeThreshold     = decimal.NewFromInt(10)
	concentrationFloor = decimal.NewFromInt(50)
)

// insightRule inspects the already computed views. Nil views are skipped.
type insightRule func(r *Report) []Insight

// insightRules run in priority order: budget overruns first, informational
// nudges last.
var insightRules = []insightRule{
	overBudgetInsights,
	negativeProjectionInsight,
	negativeCashFlowInsight,
	nearBudgetInsights,
	categorySpikeInsights,
	concentrationInsight,
	idleCashInsight,
}

// DeriveInsights evaluates every rule against the report's views and keeps
// the first limit results.
func DeriveInsights(r *Report, limit int) []Insight {
	if limit <= 0 {
		limit = DefaultInsightsMax
	}
	out := make([]Insight, 0, limit)
	for _, rule := range insightRules {
		for _, in := range rule(r) {
			if len(out) == limit {
				return out
			}
			in.Params.Period = r.Range.String()
			out = append(out, in)
		}
	}
	return out
}

func overBudgetInsights(r *Report) []Insight {
	if r.Budget == nil {
		return nil
	}
	var out []Insight
	for _, l := range r.Budget.Lines {
		if !l.Consumed.GreaterThan(fullBudget) {
			continue
		}
		out = append(out, Insight{
			ID:         "over-budget:" + l.Category,
			Text:       fmt.Sprintf("You spent %s%% of your %s budget.", l.Consumed.StringFixed(0), l.Category),
			Icon:       "🚨",
			ActionText: "Review budget",
			ActionType: ActionAdjustBudget,
			Params:     ActionParams{Category: l.Category, CurrentSpending: l.Spent},
		})
	}
	return out
}

func nearBudgetInsights(r *Report) []Insight {
	if r.Budget == nil {
		return nil
	}
	var out []Insight
	for _, l := range r.Budget.Lines {
		if l.Consumed.LessThan(nearBudgetFloor) || l.Consumed.GreaterThan(fullBudget) {
			continue
		}
		out = append(out, Insight{
			ID:         "near-budget:" + l.Category,
			Text:       fmt.Sprintf("%s is at %s%% of its budget.", l.Category, l.Consumed.StringFixed(0)),
			Icon:       "⚠️",
			ActionText: "See spending",
			ActionType: ActionViewCategory,
			Params:     ActionParams{Category: l.Category, CurrentSpending: l.Spent},
		})
	}
	return out
}

func categorySpikeInsights(r *Report) []Insight {
	if r.Expenses == nil {
		return nil
	}
	var out []Insight
	for _, c := range r.Expenses.Categories {
		if c.Delta == nil || !c.Delta.GreaterThan(spikeThreshold) {
			continue
		}
		out = append(out, Insight{
			ID:         "spike:" + c.Name,
			Text:       fmt.Sprintf("%s grew %s points compared to the previous period.", c.Name, c.Delta.StringFixed(1)),
			Icon:       "📈",
			ActionText: "See category",
			ActionType: ActionViewCategory,
			Params:     ActionParams{Category: c.Name, CurrentSpending: c.Amount},
		})
	}
	return out
}

func negativeCashFlowInsight(r *Report) []Insight {
	if r.Totals == nil || !r.Totals.Net().IsNegative() {
		return nil
	}
	return []Insight{{
		ID:         "negative-cash-flow",
		Text:       fmt.Sprintf("You spent %s more than you earned in this period.", r.Totals.Net().Abs().StringFixed(2)),
		Icon:       "💸",
		ActionText: "See cash flow",
		ActionType: ActionViewCashFlow,
		Params:     ActionParams{CurrentSpending: r.Totals.Expenses},
	}}
}

func negativeProjectionInsight(r *Report) []Insight {
	if r.Projection == nil || !r.Projection.ProjectedBalance.IsNegative() {
		return nil
	}
	return []Insight{{
		ID:         "negative-projection",
		Text:       fmt.Sprintf("At this pace your balance ends the period at %s.", r.Projection.ProjectedBalance.StringFixed(2)),
		Icon:       "📉",
		ActionText: "See cash flow",
		ActionType: ActionViewCashFlow,
		Params:     ActionParams{CurrentSpending: r.Projection.ProjectedSpending},
	}}
}

func concentrationInsight(r *Report) []Insight {
	if r.Expenses == nil || len(r.Expenses.Categories) < 2 {
		return nil
	}
	top := r.Expenses.Categories[0]
	if !top.Share.GreaterThan(concentrationFloor) {
		return nil
	}
	return []Insight{{
		ID:         "concentration:" + top.Name,
		Text:       fmt.Sprintf("%s accounts for %s%% of your expenses.", top.Name, top.Share.StringFixed(0)),
		Icon:       "🎯",
		ActionText: "See category",
		ActionType: ActionViewCategory,
		Params:     ActionParams{Category: top.Name, CurrentSpending: top.Amount},
	}}
}

func idleCashInsight(r *Report) []Insight {
	if r.Totals == nil || r.Investments == nil {
		return nil
	}
	if !r.Totals.Net().IsPositive() || r.Investments.TotalInvested.IsPositive() {
		return nil
	}
	return []Insight{{
		ID:         "idle-cash",
		Text:       fmt.Sprintf("You kept %s this period and invested nothing.", r.Totals.Net().StringFixed(2)),
		Icon:       "💡",
		ActionText: "Explore investments",
		ActionType: ActionInvest,
		Params:     ActionParams{CurrentSpending: r.Totals.Expenses},
	}}
}
