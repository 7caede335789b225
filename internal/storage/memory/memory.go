// Package memory is a process-local store used by DATA_BACKEND=memory and
// by tests. It mirrors the query semantics of the SQLite repository.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"finey/internal/core"
)

type Store struct {
	mu       sync.RWMutex
	txs      map[string]core.Transaction
	accounts map[string]core.Account
	budgets  map[string]map[string]decimal.Decimal
	goals    []core.Goal
}

func New() *Store {
	return &Store{
		txs:      map[string]core.Transaction{},
		accounts: map[string]core.Account{},
		budgets:  map[string]map[string]decimal.Decimal{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) FindByAccountsAndDateRange(ctx context.Context, ids []string, start, end core.Date) ([]core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Transaction
	for _, tx := range s.txs {
		if _, ok := want[tx.AccountID]; !ok {
			continue
		}
		day := tx.Day()
		if day.Before(start.Time) || day.After(end.Time) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpsertTransactions(_ context.Context, txs []core.Transaction) error {
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("transaction %q: %w", tx.ID, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		s.txs[tx.ID] = tx
	}
	return nil
}

func (s *Store) FindAccounts(_ context.Context, ids []string) ([]core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Account
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpsertAccount(_ context.Context, a core.Account) error {
	if strings.TrimSpace(a.ID) == "" {
		return core.ErrEmptyAccountID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	return nil
}

// GetBudgetCeilings sums the selected accounts' ceilings and the global ones.
func (s *Store) GetBudgetCeilings(_ context.Context, ids []string) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]decimal.Decimal{}
	for _, owner := range append([]string{""}, ids...) {
		for cat, v := range s.budgets[owner] {
			out[cat] = out[cat].Add(v)
		}
	}
	return out, nil
}

func (s *Store) SetBudget(_ context.Context, accountID, category string, ceiling decimal.Decimal) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return fmt.Errorf("budget category is required")
	}
	accountID = strings.TrimSpace(accountID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.budgets[accountID] == nil {
		s.budgets[accountID] = map[string]decimal.Decimal{}
	}
	s.budgets[accountID][category] = ceiling
	return nil
}

func (s *Store) CreateGoal(_ context.Context, g core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.goals {
		if existing.ID == g.ID {
			return fmt.Errorf("insert goal: duplicate id %s", g.ID)
		}
	}
	s.goals = append(s.goals, g)
	return nil
}

// ListGoals returns goals ordered by target date, then creation time.
func (s *Store) ListGoals(context.Context) ([]core.Goal, error) {
	s.mu.RLock()
	out := append([]core.Goal(nil), s.goals...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
