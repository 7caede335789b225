package analysis

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finey/internal/core"
)

func TestExpenseSharesSumToHundred(t *testing.T) {
	txs := []core.Transaction{
		tx("1", "A", core.Expense, "-33.33", "a", "2025-01-01"),
		tx("2", "A", core.Expense, "-33.33", "b", "2025-01-02"),
		tx("3", "A", core.Expense, "-33.34", "c", "2025-01-03"),
		tx("4", "A", core.Expense, "-7", "", "2025-01-04"),
		tx("5", "A", core.Income, "500", "", "2025-01-04"),
	}
	b := ComputeExpenseBreakdown(txs, nil, CategoryField{})

	sum := decimal.Zero
	names := map[string]bool{}
	for _, c := range b.Categories {
		sum = sum.Add(c.Share)
		names[c.Name] = true
	}
	assert.True(t, sum.Sub(decimal.NewFromInt(100)).Abs().LessThanOrEqual(d("0.05")), "shares sum to %s", sum)
	assert.True(t, names[core.Uncategorized])
	assert.True(t, b.Total.Equal(d("107")))
}

func TestExpenseBreakdownEmpty(t *testing.T) {
	b := ComputeExpenseBreakdown([]core.Transaction{tx("1", "A", core.Income, "10", "", "2025-01-01")}, nil, CategoryField{})
	assert.Empty(t, b.Categories)
	assert.True(t, b.Total.IsZero())
}

func TestKeywordCategorizer(t *testing.T) {
	cases := []struct {
		desc, category, want string
	}{
		{"SUPERMERCADO EXTRA", "", "Alimentação"},
		{"POSTO SHELL COMBUSTIVEL", "", "Transporte"},
		{"FARMÁCIA PAGUE MENOS", "", "Saúde"},
		{"NETFLIX ASSINATURA", "", "Lazer"},
		{"PAGAMENTO XYZ", "", core.Uncategorized},
		{"Uber Eats pedido", "", "Alimentação"},
		{"Conta de gas natural", "", "Moradia"},
		{"Gastos gerais", "", core.Uncategorized},
		{"Loja 1999", "", "Vestuário"},
		{"Corrida 99", "", "Transporte"},
		{"SUPERMERCADO", "Groceries", "Groceries"},
	}
	for _, tc := range cases {
		got := KeywordCategorizer{}.Categorize(core.Transaction{Description: tc.desc, Category: tc.category})
		assert.Equal(t, tc.want, got, tc.desc)
	}
	assert.Equal(t, "🚗", CategoryIcon("Transporte"))
	assert.Equal(t, "📊", CategoryIcon("whatever"))
}

func TestKeywordsMatchWholeWords(t *testing.T) {
	cases := []struct {
		desc, want string
	}{
		{"TED RECEBIDO", "Transferências"},
		{"Documento 123", OtherIncome},
		{"Tedesco LTDA", OtherIncome},
		{"DIVIDENDOS ITSA4", "Investimentos"},
		{"Vendas online", "Vendas"},
		{"PIX-RECEBIDO", "Transferências"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IncomeSourceOf(core.Transaction{Description: tc.desc}), tc.desc)
	}

	_, ok := InvestmentTypeOf(core.Transaction{Description: "Compra B3 SA"})
	assert.True(t, ok)
	_, ok = InvestmentTypeOf(core.Transaction{Description: "Rua B31"})
	assert.False(t, ok)
}

func TestIncomeBreakdownWithPolicies(t *testing.T) {
	mk := func(id, amount, desc string) core.Transaction {
		t := tx(id, "A", core.Income, amount, "", "2025-01-05")
		t.Description = desc
		return t
	}
	txs := []core.Transaction{
		mk("1", "5000", "SALARIO ACME"),
		mk("2", "1500", "PIX RECEBIDO"),
		mk("3", "2000", "Bonus"),
		mk("4", "200", "Cashback"),
	}

	tests := []struct {
		policy    string
		recurring string
		variable  string
	}{
		{"default", "7200", "1500"},
		{"category", "5000", "3700"},
		{"threshold", "8700", "0"},
		{"none", "0", "8700"},
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			p, err := GetRecurrencePolicy(tt.policy, DefaultRecurrenceThreshold)
			require.NoError(t, err)

			b := ComputeIncomeBreakdown(txs, p)
			assert.True(t, b.Total.Equal(d("8700")))
			assert.True(t, b.Recurring.Equal(d(tt.recurring)), "recurring %s", b.Recurring)
			assert.True(t, b.Variable.Equal(d(tt.variable)), "variable %s", b.Variable)
		})
	}

	b := ComputeIncomeBreakdown(txs, DefaultPolicy{Threshold: DefaultRecurrenceThreshold})
	require.Len(t, b.Sources, 3)
	assert.Equal(t, "Salário", b.Sources[0].Name)
	assert.Equal(t, "💼", b.Sources[0].Icon)
	assert.True(t, b.Sources[0].Recurring)
	assert.Equal(t, OtherIncome, b.Sources[1].Name)
	assert.Equal(t, "Transferências", b.Sources[2].Name)
	assert.False(t, b.Sources[2].Recurring)

	_, err := GetRecurrencePolicy("bogus", DefaultRecurrenceThreshold)
	assert.Error(t, err)
}

func TestRegisterRecurrencePolicy(t *testing.T) {
	RegisterRecurrencePolicy("always", func(decimal.Decimal) RecurrencePolicy { return alwaysRecurring{} })
	p, err := GetRecurrencePolicy("always", decimal.Zero)
	require.NoError(t, err)
	assert.True(t, p.IsRecurring(SourceFacts{Name: "anything"}))
}

type alwaysRecurring struct{}

func (alwaysRecurring) IsRecurring(SourceFacts) bool { return true }

func TestBudgetReality(t *testing.T) {
	txs := []core.Transaction{
		tx("1", "A", core.Expense, "-150", "food", "2025-01-05"),
		tx("2", "A", core.Expense, "-80", "fun", "2025-01-05"),
	}

	_, err := ComputeBudgetReality(txs, CategoryField{}, nil)
	assert.True(t, core.IsInsufficientData(err))

	b, err := ComputeBudgetReality(txs, CategoryField{}, map[string]decimal.Decimal{"food": d("100"), "rent": d("1000")})
	require.NoError(t, err)
	require.Len(t, b.Lines, 2, "categories without ceilings are excluded")
	assert.Equal(t, "food", b.Lines[0].Category)
	assert.True(t, b.Lines[0].Consumed.Equal(d("150")))
	assert.Equal(t, "rent", b.Lines[1].Category)
	assert.True(t, b.Lines[1].Consumed.IsZero())
	assert.True(t, b.TotalSpent.Equal(d("150")))
}

func TestComputeProjection(t *testing.T) {
	r := core.DateRange{Start: core.NewDate(2025, 1, 1), End: core.NewDate(2025, 1, 31)}
	txs := []core.Transaction{
		tx("1", "A", core.Expense, "-100", "", "2025-01-05"),
		tx("2", "A", core.Income, "200", "", "2025-01-06"),
		tx("3", "A", core.Expense, "-1000", "", "2025-01-20"),
	}

	p, err := ComputeProjection(d("5000"), txs, r, core.NewDate(2025, 1, 10), false)
	require.NoError(t, err)
	assert.Equal(t, 10, p.DaysElapsed)
	assert.Equal(t, 21, p.DaysRemaining)
	assert.True(t, p.DailyAverageExpense.Equal(d("10")))
	assert.True(t, p.ProjectedSpending.Equal(d("210")))
	assert.True(t, p.ProjectedBalance.Equal(d("4790")))

	p, err = ComputeProjection(d("5000"), txs, r, core.NewDate(2025, 1, 10), true)
	require.NoError(t, err)
	assert.True(t, p.ProjectedBalance.Equal(d("5210")))

	p, err = ComputeProjection(d("1"), nil, core.DateRange{Start: core.NewDate(2025, 1, 1), End: core.NewDate(2025, 1, 3)}, core.NewDate(2025, 1, 1), false)
	require.NoError(t, err)
	assert.True(t, p.DailyAverageExpense.IsZero())

	_, err = ComputeProjection(d("5000"), txs, r, core.NewDate(2024, 12, 31), false)
	assert.True(t, core.IsInsufficientData(err))
}

func TestComputeInvestments(t *testing.T) {
	mk := func(id string, typ core.TransactionType, amount, desc, day string) core.Transaction {
		t := tx(id, "A", typ, amount, "", day)
		t.Description = desc
		return t
	}
	current := []core.Transaction{
		mk("1", core.Expense, "-1000", "APLICACAO CDB BANCO X", "2025-01-05"),
		mk("2", core.Transfer, "-500", "Compra BTC Binance", "2025-01-06"),
		mk("3", core.Expense, "-50", "Padaria", "2025-01-06"),
	}

	inv := ComputeInvestments(current)
	assert.True(t, inv.TotalInvested.Equal(d("1500")))
	require.Len(t, inv.Positions, 2)
	assert.Equal(t, InvestFixedIncome, inv.Positions[0].Type)
	assert.True(t, inv.Positions[0].Return.Equal(d("12")))
	assert.True(t, inv.Positions[0].ReturnPercent.Equal(d("1.2")))
	assert.Equal(t, InvestCrypto, inv.Positions[1].Type)
	assert.True(t, inv.Positions[1].Return.Equal(d("12.5")))
	assert.True(t, inv.TotalReturn.Equal(d("24.5")))
}

func TestRedemptionIsNotReturn(t *testing.T) {
	apply := tx("1", "A", core.Expense, "-1000", "", "2025-01-05")
	apply.Description = "Aplicacao CDB"
	redeem := tx("2", "A", core.Income, "500", "", "2025-01-20")
	redeem.Description = "Resgate CDB"

	inv := ComputeInvestments([]core.Transaction{apply, redeem})
	assert.True(t, inv.TotalInvested.Equal(d("1000")))
	assert.True(t, inv.TotalReturn.Equal(d("12")), "got %s", inv.TotalReturn)
	assert.True(t, inv.ReturnPercent.Equal(d("1.2")))
}

func TestGrowthOf(t *testing.T) {
	cases := []struct {
		cur, prior, want string
		trend            Trend
	}{
		{"150", "100", "50", TrendUp},
		{"50", "100", "-50", TrendDown},
		{"100", "0", "100", TrendUp},
		{"0", "0", "0", TrendFlat},
		{"100", "300", "-66.7", TrendDown},
	}
	for _, tc := range cases {
		g := GrowthOf(d(tc.cur), d(tc.prior))
		assert.True(t, g.Percent.Equal(d(tc.want)), "%s vs %s: %s", tc.cur, tc.prior, g.Percent)
		assert.Equal(t, tc.trend, g.Trend)
	}
}

func TestFinancialSummaryReturnRate(t *testing.T) {
	r := core.DateRange{Start: core.NewDate(2025, 1, 15), End: core.NewDate(2025, 2, 14)}
	cur := TotalsView{Income: d("3000"), Expenses: d("1000")}

	s := ComputeFinancialSummary(r, cur, TotalsView{}, d("-10"), InvestmentSummary{})
	assert.True(t, s.ReturnRate.Equal(d("2.5")))
	assert.Equal(t, StatusNegative, s.WalletStatus)
	assert.Equal(t, []string{"2025-01", "2025-02"}, s.Months)
	require.Len(t, s.InvestmentFlags, 6)
	for _, f := range s.InvestmentFlags {
		assert.False(t, f.Active)
	}

	inv := InvestmentSummary{TotalInvested: d("1000"), Positions: []InvestmentPosition{{Type: InvestCrypto}}}
	s = ComputeFinancialSummary(r, cur, TotalsView{}, d("10"), inv)
	assert.True(t, s.ReturnRate.Equal(d("50")), "clamped to 50, got %s", s.ReturnRate)
	assert.True(t, s.InvestmentFlags[5].Active)

	s = ComputeFinancialSummary(r, TotalsView{Expenses: d("100")}, TotalsView{}, d("0"), InvestmentSummary{})
	assert.True(t, s.ReturnRate.IsZero())
	assert.Equal(t, StatusNeutral, s.ReturnStatus)
}

func TestDeriveInsightsCap(t *testing.T) {
	rep := &Report{
		Range:  core.DateRange{Start: core.NewDate(2025, 1, 1), End: core.NewDate(2025, 1, 31)},
		Totals: &TotalsView{Income: d("100"), Expenses: d("500")},
		Budget: &BudgetReality{Lines: []BudgetLine{
			{Category: "a", Consumed: d("150")},
			{Category: "b", Consumed: d("120")},
			{Category: "c", Consumed: d("110")},
			{Category: "d", Consumed: d("90")},
		}},
	}
	got := DeriveInsights(rep, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "over-budget:a", got[0].ID)
	assert.Equal(t, "over-budget:b", got[1].ID)

	all := DeriveInsights(rep, 10)
	assert.Len(t, all, 5)
	assert.Equal(t, "near-budget:d", all[4].ID)

	assert.Len(t, DeriveInsights(&Report{}, 0), 0)
}

func TestComputeFinancialScore(t *testing.T) {
	r := core.DateRange{Start: core.NewDate(2025, 1, 1), End: core.NewDate(2025, 1, 31)}
	cases := []struct {
		name                       string
		income, expenses, invested string
		prevIncome                 string
		score                      string
		change                     string
		insights                   []string
	}{
		{"balanced", "1000", "600", "200", "800", "40", "25", nil},
		{"ceiling", "1000", "0", "1000", "0", "100", "", nil},
		{"overspent", "1000", "1500", "2000", "1000", "30", "0", []string{"spending-over-income", "saving-target-missed"}},
		{"no income", "0", "100", "0", "500", "0", "-100", []string{"spending-over-income", "saving-target-missed"}},
		{"thin margin", "1000", "900", "0", "0", "16", "", []string{"saving-target-missed"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc := ComputeFinancialScore(r,
				TotalsView{Income: d(tc.income), Expenses: d(tc.expenses)},
				d(tc.invested),
				TotalsView{Income: d(tc.prevIncome)})

			assert.True(t, sc.Score.Equal(d(tc.score)), "score %s", sc.Score)
			if tc.change == "" {
				assert.Nil(t, sc.IncomeChange)
			} else {
				require.NotNil(t, sc.IncomeChange)
				assert.True(t, sc.IncomeChange.Equal(d(tc.change)), "change %s", sc.IncomeChange)
			}
			var ids []string
			for _, in := range sc.Insights {
				ids = append(ids, in.ID)
				assert.Equal(t, "2025-01-01 to 2025-01-31", in.Params.Period)
			}
			assert.Equal(t, tc.insights, ids)
			assert.Contains(t, sc.Details, "2025-01-01 to 2025-01-31")
		})
	}
}
