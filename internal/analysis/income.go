package analysis

import (
	"sort"
	"strings"

	"finey/internal/core"
)

// OtherIncome is the bucket for income no rule could place.
const OtherIncome = "Other"

var incomeRules = []keywordRule{
	{"Salário", []string{"salario", "ordenado", "vencimento", "salary", "payroll"}},
	{"Freelance", []string{"freelance", "projeto", "consultoria", "servico"}},
	{"Investimentos", []string{"dividendo", "juros", "rendimento", "investimento"}},
	{"Aluguel", []string{"aluguel", "locacao", "imovel"}},
	{"Vendas", []string{"venda", "produto", "mercadoria", "comercio"}},
	{"Transferências", []string{"pix", "ted", "doc", "transferencia"}},
}

var incomeIcons = map[string]string{
	"Salário":        "💼",
	"Freelance":      "💻",
	"Investimentos":  "📈",
	"Aluguel":        "🏠",
	"Vendas":         "🛒",
	"Transferências": "💸",
}

// IncomeSourceOf names the source of an income transaction: its category
// when set, otherwise a keyword match on the description.
func IncomeSourceOf(tx core.Transaction) string {
	if c := strings.TrimSpace(tx.Category); c != "" {
		return c
	}
	if name, ok := matchKeywords(tx.Description, incomeRules); ok {
		return name
	}
	return OtherIncome
}

func incomeIcon(name string) string {
	if icon, ok := incomeIcons[name]; ok {
		return icon
	}
	return "💰"
}

// ComputeIncomeBreakdown groups income by source and flags each source
// through policy.
func ComputeIncomeBreakdown(txs []core.Transaction, policy RecurrencePolicy) IncomeBreakdown {
	facts := make(map[string]*SourceFacts)
	var out IncomeBreakdown

	for _, tx := range txs {
		if tx.Type != core.Income {
			continue
		}
		name := IncomeSourceOf(tx)
		f, ok := facts[name]
		if !ok {
			f = &SourceFacts{Name: name}
			facts[name] = f
		}
		amount := tx.Magnitude()
		f.Total = f.Total.Add(amount)
		f.Count++
		if amount.GreaterThan(f.Largest) {
			f.Largest = amount
		}
		out.Total = out.Total.Add(amount)
	}

	out.Sources = make([]IncomeSource, 0, len(facts))
	for _, f := range facts {
		recurring := policy.IsRecurring(*f)
		if recurring {
			out.Recurring = out.Recurring.Add(f.Total)
		} else {
			out.Variable = out.Variable.Add(f.Total)
		}
		out.Sources = append(out.Sources, IncomeSource{
			Name:      f.Name,
			Icon:      incomeIcon(f.Name),
			Amount:    f.Total,
			Share:     core.Percent(f.Total, out.Total),
			Recurring: recurring,
		})
	}

	sort.Slice(out.Sources, func(i, j int) bool {
		a, b := out.Sources[i], out.Sources[j]
		if c := a.Amount.Cmp(b.Amount); c != 0 {
			return c > 0
		}
		return a.Name < b.Name
	})
	return out
}
