package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finey/internal/core"
)

type fakeStore struct {
	mu    sync.Mutex
	txs   []core.Transaction
	err   error
	delay time.Duration
	calls []core.DateRange
}

func (f *fakeStore) FindByAccountsAndDateRange(ctx context.Context, ids []string, start, end core.Date) ([]core.Transaction, error) {
	f.mu.Lock()
	f.calls = append(f.calls, core.DateRange{Start: start, End: end})
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []core.Transaction
	for _, tx := range f.txs {
		d := tx.Day()
		if want[tx.AccountID] && !d.Before(start.Time) && !d.After(end.Time) {
			out = append(out, tx)
		}
	}
	return out, nil
}

type fakeBudgets map[string]decimal.Decimal

func (f fakeBudgets) GetBudgetCeilings(context.Context, []string) (map[string]decimal.Decimal, error) {
	return f, nil
}

type fakeAccounts []core.Account

func (f fakeAccounts) FindAccounts(_ context.Context, ids []string) ([]core.Account, error) {
	var out []core.Account
	for _, a := range f {
		for _, id := range ids {
			if a.ID == id {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tx(id, account string, typ core.TransactionType, amount, category, day string) core.Transaction {
	t, err := time.Parse(time.DateOnly, day)
	if err != nil {
		panic(err)
	}
	return core.Transaction{
		ID: id, AccountID: account, Type: typ, Amount: d(amount), Category: category,
		OccurredAt: t.Add(10 * time.Hour), Approved: true, CurrencyCode: "BRL",
	}
}

func fixedNow(day string) func() time.Time {
	t, _ := time.Parse(time.DateOnly, day)
	return func() time.Time { return t.Add(12 * time.Hour) }
}

var january = core.RangeDescriptor{Start: core.NewDate(2025, 1, 1), End: core.NewDate(2025, 1, 31)}

func TestTotalsAndBreakdownExample(t *testing.T) {
	store := &fakeStore{txs: []core.Transaction{
		tx("1", "A", core.Expense, "-100", "food", "2025-01-05"),
		tx("2", "A", core.Income, "1000", "", "2025-01-02"),
	}}
	e := NewEngine(store, nil, nil, Options{Now: fixedNow("2025-01-10")})

	r, totals, err := e.Totals(context.Background(), core.AccountSelector{"A"}, january)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01 to 2025-01-31", r.String())
	assert.True(t, totals.Income.Equal(d("1000")))
	assert.True(t, totals.Expenses.Equal(d("100")))

	rep, err := e.Analyze(context.Background(), core.AccountSelector{"A"}, january)
	require.NoError(t, err)
	require.NotNil(t, rep.Expenses)
	require.Len(t, rep.Expenses.Categories, 1)
	c := rep.Expenses.Categories[0]
	assert.Equal(t, "food", c.Name)
	assert.True(t, c.Amount.Equal(d("100")))
	assert.True(t, c.Share.Equal(d("100")))
	assert.Nil(t, c.Delta, "no prior expenses means no delta")
}

func TestAnalyzeFetchesOnceCoveringPriorPeriod(t *testing.T) {
	store := &fakeStore{}
	e := NewEngine(store, fakeBudgets{"food": d("500")}, fakeAccounts{}, Options{Now: fixedNow("2025-01-10")})

	_, err := e.Analyze(context.Background(), core.AccountSelector{"A", "B", "C"}, january)
	require.NoError(t, err)

	require.Len(t, store.calls, 1)
	assert.Equal(t, "2024-12-01 to 2025-01-31", store.calls[0].String())
}

func TestMissingBudgetLeavesSiblingsIntact(t *testing.T) {
	store := &fakeStore{txs: []core.Transaction{
		tx("1", "A", core.Expense, "-100", "food", "2025-01-05"),
		tx("2", "A", core.Income, "1000", "", "2025-01-02"),
	}}
	e := NewEngine(store, fakeBudgets{}, fakeAccounts{{ID: "A", Balance: d("2000")}}, Options{Now: fixedNow("2025-01-10")})

	rep, err := e.Analyze(context.Background(), core.AccountSelector{"A"}, january)
	require.NoError(t, err)

	assert.Nil(t, rep.Budget)
	assert.True(t, core.IsInsufficientData(rep.Failures[ViewBudget]))
	assert.NotNil(t, rep.Totals)
	assert.NotNil(t, rep.Expenses)
	assert.NotNil(t, rep.Income)
	assert.NotNil(t, rep.Projection)
	assert.NotNil(t, rep.Summary)
	assert.NotNil(t, rep.Investments)
}

func TestProjectionNullWhenNoDaysElapsed(t *testing.T) {
	store := &fakeStore{}
	e := NewEngine(store, fakeBudgets{"food": d("10")}, fakeAccounts{{ID: "A", Balance: d("10")}}, Options{Now: fixedNow("2024-12-15")})

	rep, err := e.Analyze(context.Background(), core.AccountSelector{"A"}, january)
	require.NoError(t, err)
	assert.Nil(t, rep.Projection)
	assert.True(t, core.IsInsufficientData(rep.Failures[ViewProjection]))
	assert.NotNil(t, rep.Budget)
}

func TestEmptySelectorYieldsZeroViews(t *testing.T) {
	store := &fakeStore{}
	e := NewEngine(store, fakeBudgets{}, fakeAccounts{}, Options{Now: fixedNow("2024-12-15")})

	rep, err := e.Analyze(context.Background(), core.AccountSelector{}, january)
	require.NoError(t, err)
	assert.Empty(t, store.calls, "no store call for an empty selector")
	assert.Empty(t, rep.Failures)

	require.NotNil(t, rep.Totals)
	assert.True(t, rep.Totals.Income.IsZero())
	assert.Empty(t, rep.Expenses.Categories)
	assert.Empty(t, rep.Income.Sources)
	assert.Empty(t, rep.Budget.Lines)
	assert.True(t, rep.Projection.ProjectedBalance.IsZero())
	assert.True(t, rep.Investments.TotalInvested.IsZero())
	assert.NotNil(t, rep.Summary)
	assert.Empty(t, rep.Insights)
}

func TestAnalyzeRangeErrors(t *testing.T) {
	e := NewEngine(&fakeStore{}, nil, nil, Options{})

	_, err := e.Analyze(context.Background(), core.AccountSelector{"A"}, core.RangeDescriptor{Start: core.NewDate(2025, 2, 1), End: core.NewDate(2025, 1, 1)})
	var re *core.InvalidRangeError
	assert.True(t, errors.As(err, &re))

	_, err = e.Analyze(context.Background(), core.AccountSelector{"A"}, core.RangeDescriptor{})
	assert.True(t, core.IsValidation(err))
}

func TestStoreFailureIsUpstreamUnavailable(t *testing.T) {
	e := NewEngine(&fakeStore{err: errors.New("database is locked")}, nil, nil, Options{})
	_, err := e.Analyze(context.Background(), core.AccountSelector{"A"}, january)

	var up *core.UpstreamUnavailableError
	require.True(t, errors.As(err, &up))
	assert.True(t, up.Retryable())
}

func TestLateStoreResponseIsUpstreamUnavailable(t *testing.T) {
	e := NewEngine(&fakeStore{delay: time.Second}, nil, nil, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := e.Analyze(ctx, core.AccountSelector{"A"}, january)
	var up *core.UpstreamUnavailableError
	require.True(t, errors.As(err, &up))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPendingTransactionsAreIgnored(t *testing.T) {
	pending := tx("2", "A", core.Expense, "-999", "food", "2025-01-03")
	pending.Approved = false
	store := &fakeStore{txs: []core.Transaction{
		tx("1", "A", core.Expense, "-100", "food", "2025-01-05"),
		pending,
	}}
	e := NewEngine(store, nil, nil, Options{})

	_, totals, err := e.Totals(context.Background(), core.AccountSelector{"A"}, january)
	require.NoError(t, err)
	assert.True(t, totals.Expenses.Equal(d("100")))
}

func TestPendingInvestmentMovementsAreIgnored(t *testing.T) {
	apply := tx("1", "A", core.Expense, "-1000", "", "2025-01-05")
	apply.Description = "Aplicacao CDB"
	pendingApply := tx("2", "A", core.Expense, "-400", "", "2025-01-06")
	pendingApply.Description = "Aplicacao CDB"
	pendingApply.Approved = false
	pendingRedeem := tx("3", "A", core.Income, "500", "", "2025-01-07")
	pendingRedeem.Description = "Resgate CDB"
	pendingRedeem.Approved = false
	store := &fakeStore{txs: []core.Transaction{apply, pendingApply, pendingRedeem}}
	e := NewEngine(store, nil, fakeAccounts{{ID: "A"}}, Options{Now: fixedNow("2025-01-10")})

	rep, err := e.Analyze(context.Background(), core.AccountSelector{"A"}, january)
	require.NoError(t, err)
	require.NotNil(t, rep.Investments)
	assert.True(t, rep.Investments.TotalInvested.Equal(d("1000")))
	assert.True(t, rep.Investments.TotalReturn.Equal(d("12")), "got %s", rep.Investments.TotalReturn)
	assert.True(t, rep.Investments.ReturnPercent.Equal(d("1.2")))
	assert.True(t, rep.Summary.Investments.Equal(d("1000")))
}

func TestScoreComparesWithPreviousCalendarMonth(t *testing.T) {
	store := &fakeStore{txs: []core.Transaction{
		tx("1", "A", core.Income, "500", "", "2024-12-05"),
		tx("2", "A", core.Income, "1000", "", "2025-01-20"),
		tx("3", "A", core.Expense, "-500", "food", "2025-01-21"),
	}}
	e := NewEngine(store, nil, fakeAccounts{{ID: "A"}}, Options{Now: fixedNow("2025-02-01")})

	desc := core.RangeDescriptor{Start: core.NewDate(2025, 1, 15), End: core.NewDate(2025, 2, 14)}
	rep, err := e.Analyze(context.Background(), core.AccountSelector{"A"}, desc)
	require.NoError(t, err)

	require.Len(t, store.calls, 1)
	assert.Equal(t, "2024-12-01 to 2025-02-14", store.calls[0].String())

	require.NotNil(t, rep.Score)
	require.NotNil(t, rep.Score.IncomeChange)
	assert.True(t, rep.Score.IncomeChange.Equal(d("100")), "got %s", rep.Score.IncomeChange)
	assert.True(t, rep.Score.Score.Equal(d("40")), "got %s", rep.Score.Score)
}

func TestAnalyzeComputesDeltasAndInsights(t *testing.T) {
	store := &fakeStore{txs: []core.Transaction{
		// December: food 50%, transport 50%
		tx("p1", "A", core.Expense, "-100", "food", "2024-12-10"),
		tx("p2", "A", core.Expense, "-100", "transport", "2024-12-11"),
		// January: food 80%, transport 20%, over budget on food
		tx("c1", "A", core.Expense, "-400", "food", "2025-01-03"),
		tx("c2", "A", core.Expense, "-100", "transport", "2025-01-04"),
		tx("c3", "A", core.Income, "300", "Salário", "2025-01-05"),
	}}
	e := NewEngine(store, fakeBudgets{"food": d("300"), "transport": d("120")}, fakeAccounts{{ID: "A", Balance: d("100")}},
		Options{Now: fixedNow("2025-01-10"), InsightsMax: 3})

	rep, err := e.Analyze(context.Background(), core.AccountSelector{"A"}, january)
	require.NoError(t, err)

	food := rep.Expenses.Categories[0]
	require.Equal(t, "food", food.Name)
	require.NotNil(t, food.Delta)
	assert.True(t, food.PriorShare.Equal(d("50")))
	assert.True(t, food.Delta.Equal(d("30")))

	require.Len(t, rep.Insights, 3)
	assert.Equal(t, "over-budget:food", rep.Insights[0].ID)
	assert.Equal(t, "negative-projection", rep.Insights[1].ID)
	assert.Equal(t, "negative-cash-flow", rep.Insights[2].ID)
	for _, in := range rep.Insights {
		assert.Equal(t, "2025-01-01 to 2025-01-31", in.Params.Period)
	}

	assert.True(t, rep.Summary.Expenses.Percent.Equal(d("150")))
	assert.Equal(t, TrendUp, rep.Summary.Expenses.Trend)
	assert.Equal(t, []string{"2025-01"}, rep.Summary.Months)
}

func TestAnalyzeIsSafeForConcurrentUse(t *testing.T) {
	store := &fakeStore{txs: []core.Transaction{
		tx("1", "A", core.Expense, "-100", "food", "2025-01-05"),
		tx("2", "B", core.Income, "1000", "", "2025-01-02"),
	}}
	e := NewEngine(store, fakeBudgets{"food": d("200")}, fakeAccounts{{ID: "A", Balance: d("50")}}, Options{Now: fixedNow("2025-01-10")})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rep, err := e.Analyze(context.Background(), core.AccountSelector{"A", "B"}, january)
			if err != nil || rep.Totals == nil || !rep.Totals.Income.Equal(d("1000")) {
				t.Errorf("unexpected result: %v", err)
			}
		}()
	}
	wg.Wait()
}
