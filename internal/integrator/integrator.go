// Package integrator pulls accounts and transactions from a bank
// aggregator. The HTTP client talks to an open-banking REST API; the fixture
// client serves YAML files for local development and tests.
package integrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finey/internal/core"
)

// Aggregator is the source of truth the sync worker mirrors into the store.
type Aggregator interface {
	FetchAccount(ctx context.Context, accountID string) (core.Account, error)
	FetchTransactions(ctx context.Context, accountID string, r core.DateRange) ([]core.Transaction, error)
}

// ErrAccountNotFound is returned when the aggregator does not know the account.
var ErrAccountNotFound = errors.New("account not found at aggregator")

// RemoteAccount is the aggregator's account document.
type RemoteAccount struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Balance      string `json:"balance" yaml:"balance"`
	CurrencyCode string `json:"currencyCode" yaml:"currencyCode"`
}

// RemoteTransaction is the aggregator's transaction document.
type RemoteTransaction struct {
	ID            string `json:"id" yaml:"id"`
	AccountID     string `json:"accountId" yaml:"accountId"`
	Amount        string `json:"amount" yaml:"amount"`
	CurrencyCode  string `json:"currencyCode" yaml:"currencyCode"`
	Description   string `json:"description" yaml:"description"`
	Category      string `json:"category" yaml:"category"`
	Date          string `json:"date" yaml:"date"`
	Type          string `json:"type" yaml:"type"`
	OperationType string `json:"operationType" yaml:"operationType"`
	Status        string `json:"status" yaml:"status"`
}

func (a RemoteAccount) toCore(now time.Time) (core.Account, error) {
	balance, err := decimal.NewFromString(strings.TrimSpace(a.Balance))
	if err != nil {
		return core.Account{}, fmt.Errorf("account %s balance %q: %w", a.ID, a.Balance, err)
	}
	return core.Account{
		ID:           a.ID,
		Name:         a.Name,
		Balance:      balance,
		CurrencyCode: a.CurrencyCode,
		UpdatedAt:    now,
	}, nil
}

// toCore maps the aggregator's CREDIT/DEBIT vocabulary onto transaction
// types. Transfers are recognized by operation type; pending transactions
// are kept but not approved.
func (t RemoteTransaction) toCore() (core.Transaction, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(t.Amount))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s amount %q: %w", t.ID, t.Amount, err)
	}
	when, err := parseWhen(t.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s date %q: %w", t.ID, t.Date, err)
	}

	var typ core.TransactionType
	switch op := strings.ToUpper(t.OperationType); {
	case strings.Contains(op, "TRANSFER"):
		typ = core.Transfer
	case strings.EqualFold(t.Type, "CREDIT"), strings.EqualFold(t.Type, string(core.Income)):
		typ = core.Income
	case strings.EqualFold(t.Type, "DEBIT"), strings.EqualFold(t.Type, string(core.Expense)):
		typ = core.Expense
	case strings.EqualFold(t.Type, string(core.Transfer)):
		typ = core.Transfer
	default:
		return core.Transaction{}, fmt.Errorf("transaction %s: %w %q", t.ID, core.ErrInvalidTransactionTy, t.Type)
	}

	tx := core.Transaction{
		ID:           t.ID,
		AccountID:    t.AccountID,
		Amount:       amount,
		CurrencyCode: t.CurrencyCode,
		Category:     strings.TrimSpace(t.Category),
		Description:  strings.TrimSpace(t.Description),
		Type:         typ,
		OccurredAt:   when,
		Approved:     !strings.EqualFold(t.Status, "PENDING"),
	}
	return tx, tx.Validate()
}

func parseWhen(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, s)
}

func convert(accountID string, remote []RemoteTransaction) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(remote))
	for _, rt := range remote {
		if rt.AccountID == "" {
			rt.AccountID = accountID
		}
		tx, err := rt.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}
