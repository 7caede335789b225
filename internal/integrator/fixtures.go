package integrator

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"finey/internal/core"
)

// FixtureFile is the YAML layout read by LoadFixtures.
type FixtureFile struct {
	Accounts     []RemoteAccount     `yaml:"accounts"`
	Transactions []RemoteTransaction `yaml:"transactions"`
}

// FixtureAggregator answers from a YAML document loaded once.
type FixtureAggregator struct {
	accounts map[string]core.Account
	txs      map[string][]core.Transaction
}

func LoadFixtures(path string) (*FixtureAggregator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var doc FixtureFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing YAML file: %w", err)
	}
	return NewFixtureAggregator(doc, time.Now())
}

func NewFixtureAggregator(doc FixtureFile, loadedAt time.Time) (*FixtureAggregator, error) {
	f := &FixtureAggregator{
		accounts: make(map[string]core.Account, len(doc.Accounts)),
		txs:      map[string][]core.Transaction{},
	}
	for _, ra := range doc.Accounts {
		a, err := ra.toCore(loadedAt)
		if err != nil {
			return nil, err
		}
		f.accounts[a.ID] = a
	}
	txs, err := convert("", doc.Transactions)
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if _, ok := f.accounts[tx.AccountID]; !ok {
			return nil, fmt.Errorf("transaction %s references unknown account %q", tx.ID, tx.AccountID)
		}
		f.txs[tx.AccountID] = append(f.txs[tx.AccountID], tx)
	}
	return f, nil
}

func (f *FixtureAggregator) FetchAccount(_ context.Context, accountID string) (core.Account, error) {
	a, ok := f.accounts[accountID]
	if !ok {
		return core.Account{}, fmt.Errorf("account %s: %w", accountID, ErrAccountNotFound)
	}
	return a, nil
}

func (f *FixtureAggregator) FetchTransactions(ctx context.Context, accountID string, r core.DateRange) ([]core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := f.accounts[accountID]; !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, ErrAccountNotFound)
	}
	var out []core.Transaction
	for _, tx := range f.txs[accountID] {
		if r.Contains(tx.OccurredAt) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// Snapshot returns every account and transaction, for seeding a store.
func (f *FixtureAggregator) Snapshot() ([]core.Account, []core.Transaction) {
	accounts := make([]core.Account, 0, len(f.accounts))
	var txs []core.Transaction
	for id, a := range f.accounts {
		accounts = append(accounts, a)
		txs = append(txs, f.txs[id]...)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	sort.Slice(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })
	return accounts, txs
}
