package analysis

import (
	"github.com/shopspring/decimal"

	"finey/internal/core"
)

var (
	maxReturnRate     = decimal.NewFromInt(50)
	defaultReturnRate = decimal.RequireFromString("2.5")
)

// GrowthOf compares current against prior in percent, one decimal place.
// A zero prior yields 100 when current is positive and 0 otherwise.
func GrowthOf(current, prior decimal.Decimal) Growth {
	g := Growth{Value: current}
	switch {
	case prior.IsZero() && current.IsPositive():
		g.Percent = decimal.NewFromInt(100)
	case prior.IsZero():
		g.Percent = decimal.Zero
	default:
		g.Percent = current.Sub(prior).Div(prior).Mul(decimal.NewFromInt(100)).Round(1)
	}

	switch g.Percent.Sign() {
	case 1:
		g.Trend = TrendUp
	case -1:
		g.Trend = TrendDown
	default:
		g.Trend = TrendFlat
	}
	return g
}

func statusOf(d decimal.Decimal) Status {
	switch d.Sign() {
	case 1:
		return StatusPositive
	case -1:
		return StatusNegative
	}
	return StatusNeutral
}

// ComputeFinancialSummary combines period totals, their growth against the
// prior period, the wallet balance and the investment position.
func ComputeFinancialSummary(r core.DateRange, current, prior TotalsView, wallet decimal.Decimal, inv InvestmentSummary) FinancialSummary {
	active := make(map[string]bool, len(inv.Positions))
	for _, p := range inv.Positions {
		active[p.Type] = true
	}
	flags := make([]InvestmentCategoryFlag, 0, len(InvestmentTypes))
	for _, name := range InvestmentTypes {
		flags = append(flags, InvestmentCategoryFlag{Name: name, Active: active[name]})
	}

	net := current.Net()
	var rate decimal.Decimal
	switch {
	case inv.TotalInvested.IsPositive():
		rate = net.Div(inv.TotalInvested).Mul(decimal.NewFromInt(100)).Round(2)
		if rate.GreaterThan(maxReturnRate) {
			rate = maxReturnRate
		} else if rate.LessThan(maxReturnRate.Neg()) {
			rate = maxReturnRate.Neg()
		}
	case net.IsPositive():
		rate = defaultReturnRate
	default:
		rate = decimal.Zero
	}

	return FinancialSummary{
		Income:          GrowthOf(current.Income, prior.Income),
		Expenses:        GrowthOf(current.Expenses, prior.Expenses),
		WalletBalance:   core.Money(wallet),
		WalletStatus:    statusOf(wallet),
		Investments:     inv.TotalInvested,
		InvestmentFlags: flags,
		ReturnRate:      rate,
		ReturnStatus:    statusOf(rate),
		Months:          r.Months(),
	}
}
