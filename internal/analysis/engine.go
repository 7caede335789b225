package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"finey/internal/core"
)

// Options tunes the engine. Zero values select the documented defaults.
type Options struct {
	InsightsMax      int
	ProjectionIncome bool
	RecurrencePolicy RecurrencePolicy
	Categorizer      Categorizer
	Now              func() time.Time
}

// Engine computes analysis reports. It keeps no per-request state, so one
// Engine serves concurrent requests.
type Engine struct {
	store    TransactionStore
	budgets  BudgetSource
	accounts AccountSource
	opts     Options
}

func NewEngine(store TransactionStore, budgets BudgetSource, accounts AccountSource, opts Options) *Engine {
	if opts.InsightsMax <= 0 {
		opts.InsightsMax = DefaultInsightsMax
	}
	if opts.RecurrencePolicy == nil {
		opts.RecurrencePolicy = DefaultPolicy{Threshold: DefaultRecurrenceThreshold}
	}
	if opts.Categorizer == nil {
		opts.Categorizer = CategoryField{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{store: store, budgets: budgets, accounts: accounts, opts: opts}
}

// Totals returns income and expense sums for the normalized range.
func (e *Engine) Totals(ctx context.Context, sel core.AccountSelector, desc core.RangeDescriptor) (core.DateRange, TotalsView, error) {
	r, err := core.NormalizeRange(desc)
	if err != nil {
		return core.DateRange{}, TotalsView{}, err
	}
	txs, err := e.fetch(ctx, sel, r)
	if err != nil {
		return r, TotalsView{}, err
	}
	return r, ComputeTotals(approved(txs)), nil
}

// Analyze builds the composite report. The transaction fetch covers the prior
// period, the previous calendar month and the requested range in one call; views are then computed
// concurrently and a failing view is reported as nil without failing the
// report. Only range errors and an unavailable store fail the call.
func (e *Engine) Analyze(ctx context.Context, sel core.AccountSelector, desc core.RangeDescriptor) (*Report, error) {
	start := time.Now()

	r, err := core.NormalizeRange(desc)
	if err != nil {
		return nil, err
	}
	prior := r.Prior()
	lastMonth := r.PreviousMonth()

	all, err := e.fetch(ctx, sel, r.Span(prior).Span(lastMonth))
	if err != nil {
		return nil, err
	}
	current, previous := partition(all, r, prior)

	rep := &Report{Range: r, Failures: map[string]error{}}
	today := core.DateOf(e.opts.Now().UTC())
	cat := e.opts.Categorizer

	loadAccounts := sync.OnceValues(func() ([]core.Account, error) {
		if sel.IsEmpty() || e.accounts == nil {
			return nil, nil
		}
		return e.accounts.FindAccounts(ctx, sel)
	})

	var mu sync.Mutex
	fail := func(view string, err error) {
		mu.Lock()
		rep.Failures[view] = err
		mu.Unlock()
		if core.IsInsufficientData(err) {
			slog.DebugContext(ctx, "View skipped", "view", view, "reason", err)
			return
		}
		slog.WarnContext(ctx, "View failed", "view", view, "error", err)
	}

	var g errgroup.Group

	g.Go(func() error {
		t := ComputeTotals(current)
		rep.Totals = &t
		return nil
	})
	g.Go(func() error {
		b := ComputeExpenseBreakdown(current, previous, cat)
		rep.Expenses = &b
		return nil
	})
	g.Go(func() error {
		inc := ComputeIncomeBreakdown(current, e.opts.RecurrencePolicy)
		rep.Income = &inc
		return nil
	})
	g.Go(func() error {
		inv := ComputeInvestments(current)
		rep.Investments = &inv
		return nil
	})
	g.Go(func() error {
		b, err := e.budgetReality(ctx, sel, current)
		if err != nil {
			fail(ViewBudget, err)
			return nil
		}
		rep.Budget = &b
		return nil
	})
	g.Go(func() error {
		accounts, err := loadAccounts()
		if err != nil {
			fail(ViewProjection, fmt.Errorf("load accounts: %w", err))
			return nil
		}
		if sel.IsEmpty() {
			rep.Projection = &BalanceProjection{}
			return nil
		}
		p, err := ComputeProjection(WalletBalance(accounts), current, r, today, e.opts.ProjectionIncome)
		if err != nil {
			fail(ViewProjection, err)
			return nil
		}
		rep.Projection = &p
		return nil
	})
	g.Go(func() error {
		accounts, err := loadAccounts()
		if err != nil {
			fail(ViewSummary, fmt.Errorf("load accounts: %w", err))
			return nil
		}
		s := ComputeFinancialSummary(r, ComputeTotals(current), ComputeTotals(previous), WalletBalance(accounts), ComputeInvestments(current))
		rep.Summary = &s
		return nil
	})
	g.Go(func() error {
		sc := ComputeFinancialScore(r, ComputeTotals(current), ComputeInvestments(current).TotalInvested, ComputeTotals(within(all, lastMonth)))
		rep.Score = &sc
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep.Insights = DeriveInsights(rep, e.opts.InsightsMax)

	slog.InfoContext(ctx, "Analysis completed",
		"range", r.String(),
		"accounts", len(sel),
		"transactions", len(all),
		"failed_views", len(rep.Failures),
		"insights", len(rep.Insights),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rep, nil
}

func (e *Engine) budgetReality(ctx context.Context, sel core.AccountSelector, current []core.Transaction) (BudgetReality, error) {
	if sel.IsEmpty() {
		return BudgetReality{Lines: []BudgetLine{}}, nil
	}
	if e.budgets == nil {
		return BudgetReality{}, &core.InsufficientDataError{View: ViewBudget, Reason: "no budget source"}
	}
	ceilings, err := e.budgets.GetBudgetCeilings(ctx, sel)
	if err != nil {
		return BudgetReality{}, fmt.Errorf("load budget ceilings: %w", err)
	}
	return ComputeBudgetReality(current, e.opts.Categorizer, ceilings)
}

// fetch performs the single bounded store call. Store failures, including a
// missed deadline, surface as UpstreamUnavailableError.
func (e *Engine) fetch(ctx context.Context, sel core.AccountSelector, r core.DateRange) ([]core.Transaction, error) {
	if sel.IsEmpty() {
		return nil, nil
	}
	txs, err := e.store.FindByAccountsAndDateRange(ctx, sel, r.Start, r.End)
	if err != nil {
		var up *core.UpstreamUnavailableError
		if errors.As(err, &up) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, &core.UpstreamUnavailableError{Service: "transaction store", Err: err}
	}
	return txs, nil
}

// partition splits approved transactions into the requested range and the
// prior comparison period.
func partition(all []core.Transaction, r, prior core.DateRange) (current, previous []core.Transaction) {
	for _, tx := range all {
		if !tx.Approved {
			continue
		}
		switch {
		case r.Contains(tx.OccurredAt):
			current = append(current, tx)
		case prior.Contains(tx.OccurredAt):
			previous = append(previous, tx)
		}
	}
	return current, previous
}

// within keeps the approved transactions falling inside r.
func within(all []core.Transaction, r core.DateRange) []core.Transaction {
	var out []core.Transaction
	for _, tx := range all {
		if tx.Approved && r.Contains(tx.OccurredAt) {
			out = append(out, tx)
		}
	}
	return out
}

func approved(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Approved {
			out = append(out, tx)
		}
	}
	return out
}
