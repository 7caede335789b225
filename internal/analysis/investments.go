package analysis

import (
	"sort"

	"github.com/shopspring/decimal"

	"finey/internal/core"
)

// Investment types, in display order.
const (
	InvestFixedIncome    = "Renda Fixa"
	InvestVariableIncome = "Renda Variável"
	InvestFunds          = "Fundos"
	InvestPension        = "Previdência"
	InvestSavings        = "Poupança"
	InvestCrypto         = "Criptomoedas"
	InvestOther          = "Outros"
)

// InvestmentTypes are the six classified types reported as summary flags.
var InvestmentTypes = []string{InvestFixedIncome, InvestVariableIncome, InvestFunds, InvestPension, InvestSavings, InvestCrypto}

var investmentRules = []keywordRule{
	{InvestFixedIncome, []string{"cdb", "lci", "lca", "tesouro", "selic", "ipca"}},
	{InvestVariableIncome, []string{"acao", "acoes", "fii", "etf", "bovespa", "b3"}},
	{InvestFunds, []string{"fundo", "investimento"}},
	{InvestPension, []string{"pgbl", "vgbl", "previdencia"}},
	{InvestSavings, []string{"poupanca"}},
	{InvestCrypto, []string{"bitcoin", "btc", "ethereum", "crypto", "binance"}},
}

// detection-only keywords: they mark a movement as an investment without
// telling its type.
var investmentHints = []keywordRule{
	{InvestOther, []string{"aplicacao", "resgate", "xp", "rico", "nubank invest", "bradesco invest"}},
}

// estimatedMonthlyReturn is the assumed monthly yield per type. Redemptions
// give back principal, so movements in the other direction never count as
// return.
var estimatedMonthlyReturn = map[string]decimal.Decimal{
	InvestFixedIncome:    decimal.RequireFromString("0.012"),
	InvestVariableIncome: decimal.RequireFromString("0.015"),
	InvestFunds:          decimal.RequireFromString("0.010"),
	InvestPension:        decimal.RequireFromString("0.008"),
	InvestSavings:        decimal.RequireFromString("0.006"),
	InvestCrypto:         decimal.RequireFromString("0.025"),
	InvestOther:          decimal.RequireFromString("0.008"),
}

var investmentIcons = map[string]string{
	InvestFixedIncome:    "💰",
	InvestVariableIncome: "📈",
	InvestFunds:          "🏦",
	InvestPension:        "🛡️",
	InvestSavings:        "🐷",
	InvestCrypto:         "₿",
}

// InvestmentTypeOf classifies tx, reporting false when it is not an investment.
func InvestmentTypeOf(tx core.Transaction) (string, bool) {
	if name, ok := matchKeywords(tx.Description, investmentRules); ok {
		return name, true
	}
	if _, ok := matchKeywords(tx.Description, investmentHints); ok {
		return InvestOther, true
	}
	return "", false
}

func investmentIcon(name string) string {
	if icon, ok := investmentIcons[name]; ok {
		return icon
	}
	return "💼"
}

// ComputeInvestments totals outgoing investment movements in current and
// estimates their return at the monthly rate of each type.
func ComputeInvestments(current []core.Transaction) InvestmentSummary {
	invested := make(map[string]decimal.Decimal)
	for _, tx := range current {
		if tx.Type == core.Income {
			continue
		}
		kind, ok := InvestmentTypeOf(tx)
		if !ok {
			continue
		}
		invested[kind] = invested[kind].Add(tx.Magnitude())
	}

	var out InvestmentSummary
	out.Positions = make([]InvestmentPosition, 0, len(invested))
	for kind, amount := range invested {
		ret := core.Money(amount.Mul(estimatedMonthlyReturn[kind]))
		out.TotalInvested = out.TotalInvested.Add(amount)
		out.TotalReturn = out.TotalReturn.Add(ret)
		out.Positions = append(out.Positions, InvestmentPosition{
			Type:          kind,
			Icon:          investmentIcon(kind),
			Amount:        amount,
			Return:        ret,
			ReturnPercent: core.Percent(ret, amount),
		})
	}
	out.ReturnPercent = core.Percent(out.TotalReturn, out.TotalInvested)

	sort.Slice(out.Positions, func(i, j int) bool {
		a, b := out.Positions[i], out.Positions[j]
		if c := a.Amount.Cmp(b.Amount); c != 0 {
			return c > 0
		}
		return a.Type < b.Type
	})
	return out
}
