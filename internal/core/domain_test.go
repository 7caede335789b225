package core

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewAccountSelector(t *testing.T) {
	cases := []struct {
		in   []string
		want AccountSelector
	}{
		{nil, AccountSelector{}},
		{[]string{"A"}, AccountSelector{"A"}},
		{[]string{" A ", "B", "A", ""}, AccountSelector{"A", "B"}},
		{[]string{"b", "a", "b"}, AccountSelector{"b", "a"}},
	}
	for i, tc := range cases {
		got := NewAccountSelector(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("case %d: got %v, want %v", i, got, tc.want)
		}
	}
	if !NewAccountSelector([]string{" "}).IsEmpty() {
		t.Fatalf("blank ids should produce an empty selector")
	}
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		ID:         "t1",
		AccountID:  "A",
		Amount:     decimal.NewFromInt(-10),
		Type:       Expense,
		OccurredAt: time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"missing id", func(tx *Transaction) { tx.ID = "" }, ErrEmptyTransactionID},
		{"missing account", func(tx *Transaction) { tx.AccountID = " " }, ErrEmptyAccountID},
		{"bad type", func(tx *Transaction) { tx.Type = "DEBIT" }, ErrInvalidTransactionTy},
		{"zero date", func(tx *Transaction) { tx.OccurredAt = time.Time{} }, ErrZeroOccurredAt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := valid
			tc.mutate(&tx)
			if err := tx.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTransactionMagnitudeAndDay(t *testing.T) {
	tx := Transaction{Amount: decimal.RequireFromString("-42.10"), OccurredAt: time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC)}
	if !tx.Magnitude().Equal(decimal.RequireFromString("42.10")) {
		t.Fatalf("magnitude = %s", tx.Magnitude())
	}
	if tx.Day().String() != "2025-03-09" {
		t.Fatalf("day = %s", tx.Day())
	}

	saoPaulo := time.FixedZone("BRT", -3*60*60)
	late := Transaction{OccurredAt: time.Date(2025, 3, 9, 22, 30, 0, 0, saoPaulo)}
	if late.Day().String() != "2025-03-10" {
		t.Fatalf("day of %s = %s, want the UTC day", late.OccurredAt, late.Day())
	}
	if !(DateRange{Start: NewDate(2025, 3, 10), End: NewDate(2025, 3, 10)}).Contains(late.OccurredAt) {
		t.Fatal("range disagrees with Day")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2025-02-28 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 2025 || d.Month() != time.February || d.Day() != 28 {
		t.Fatalf("parsed %v", d)
	}
	for _, bad := range []string{"", "2025-02-30", "28/02/2025"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}
