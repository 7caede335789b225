package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income   TransactionType = "INCOME"
	Expense  TransactionType = "EXPENSE"
	Transfer TransactionType = "TRANSFER"
)

// Uncategorized is the reserved bucket for transactions without a category.
const Uncategorized = "Uncategorized"

type (
	TransactionType string

	Date struct {
		time.Time
	}

	Transaction struct {
		ID           string
		AccountID    string
		Amount       decimal.Decimal // signed
		CurrencyCode string
		Category     string // optional
		Description  string
		Type         TransactionType
		OccurredAt   time.Time
		Approved     bool
	}

	Account struct {
		ID           string
		Name         string
		Balance      decimal.Decimal
		CurrencyCode string
		UpdatedAt    time.Time
	}

	// Goal holds client-encrypted values; the server stores them as received.
	Goal struct {
		ID           string
		Name         string
		Description  string
		Icon         string
		Color        string
		TargetAmount string
		Date         Date
		CreatedAt    time.Time
	}

	// AccountSelector is an ordered set of account ids.
	AccountSelector []string
)

var (
	ErrEmptyAccountID       = errors.New("empty account id")
	ErrEmptyTransactionID   = errors.New("empty transaction id")
	ErrInvalidTransactionTy = errors.New("invalid transaction type")
	ErrZeroOccurredAt       = errors.New("transaction date cannot be zero")
	ErrInvalidAmount        = errors.New("invalid amount")
)

// NewAccountSelector trims ids, drops empties and duplicates, and keeps the
// order of first appearance.
func NewAccountSelector(ids []string) AccountSelector {
	seen := make(map[string]struct{}, len(ids))
	sel := make(AccountSelector, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		sel = append(sel, id)
	}
	return sel
}

// IsEmpty reports whether the selector scopes no accounts.
func (s AccountSelector) IsEmpty() bool {
	return len(s) == 0
}

func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyTransactionID
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrEmptyAccountID
	}
	if !t.Type.Valid() {
		return ErrInvalidTransactionTy
	}
	if t.OccurredAt.IsZero() {
		return ErrZeroOccurredAt
	}
	return nil
}

// Magnitude returns the absolute amount; expenses arrive negative from some banks.
func (t Transaction) Magnitude() decimal.Decimal {
	return t.Amount.Abs()
}

// Day returns the UTC calendar day the transaction occurred on.
func (t Transaction) Day() Date {
	return DateOf(t.OccurredAt.UTC())
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// AddDays returns the date n days later (or earlier when n is negative).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

// DaysUntil counts whole days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time).Hours() / 24)
}
