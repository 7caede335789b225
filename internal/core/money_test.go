package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"-100", "-100", true},
		{" 2.50 ", "2.5", true},
		{"0.1", "0.1", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestPercent(t *testing.T) {
	cases := []struct {
		part, total, want string
	}{
		{"100", "100", "100"},
		{"1", "3", "33.33"},
		{"2", "3", "66.67"},
		{"5", "0", "0"},
		{"0", "10", "0"},
	}
	for _, tc := range cases {
		got := Percent(decimal.RequireFromString(tc.part), decimal.RequireFromString(tc.total))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("Percent(%s, %s) = %s, want %s", tc.part, tc.total, got, tc.want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(decimal.RequireFromString("1000")); got != "1000.00" {
		t.Fatalf("got %s", got)
	}
	if got := FormatAmount(Money(decimal.RequireFromString("2.345"))); got != "2.35" {
		t.Fatalf("got %s", got)
	}
}
