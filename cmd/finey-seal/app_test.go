package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"finey/internal/storage"
)

const testMaterial = "seal-test-material-0001"

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	out, err := run(t, "", "encrypt", "-m", testMaterial, "1250.00")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	token := strings.TrimSpace(out)
	if token == "" || token == "1250.00" {
		t.Fatalf("token = %q", token)
	}

	again, _ := run(t, "", "encrypt", "-m", testMaterial, "1250.00")
	if strings.TrimSpace(again) != token {
		t.Fatalf("encryption is not deterministic: %q vs %q", again, token)
	}

	plain, err := run(t, "", "decrypt", "-m", testMaterial, token)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if strings.TrimSpace(plain) != "1250.00" {
		t.Fatalf("plain = %q", plain)
	}
}

func TestEncryptReadsStdin(t *testing.T) {
	out, err := run(t, "a\n\nb\n", "encrypt", "-m", testMaterial)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Fields(out); len(lines) != 2 {
		t.Fatalf("got %d tokens, want 2: %q", len(lines), out)
	}
}

func TestDecryptRejectsForeignToken(t *testing.T) {
	out, _ := run(t, "", "encrypt", "-m", testMaterial, "x")
	if _, err := run(t, "", "decrypt", "-m", "another-material-00001", strings.TrimSpace(out)); err == nil {
		t.Fatal("expected error for token sealed under another secret")
	}
}

func TestCheck(t *testing.T) {
	out, _ := run(t, "", "encrypt", "-m", testMaterial, "42")
	token := strings.TrimSpace(out)

	report, err := run(t, "", "check", "-m", testMaterial, token)
	if err != nil {
		t.Fatalf("check sealed: %v", err)
	}
	if !strings.Contains(report, "sealed") {
		t.Fatalf("report = %q", report)
	}

	report, err = run(t, "", "check", "-m", testMaterial, token, "42")
	if err == nil {
		t.Fatal("expected error when a value is plaintext")
	}
	if !strings.Contains(report, "plaintext 42") {
		t.Fatalf("report = %q", report)
	}
}

func TestBudgetSetAndList(t *testing.T) {
	db := filepath.Join(t.TempDir(), "budgets.db")

	out, err := run(t, "", "budget", "set", "--db", db, "Food", "500")
	if err != nil {
		t.Fatalf("set global: %v", err)
	}
	if !strings.Contains(out, "Food 500.00 (global)") {
		t.Fatalf("set output = %q", out)
	}
	if _, err := run(t, "", "budget", "set", "--db", db, "-a", "acc-1", "Food", "250,50"); err != nil {
		t.Fatalf("set account: %v", err)
	}
	if _, err := run(t, "", "budget", "set", "--db", db, "-a", "acc-2", "Rent", "900"); err != nil {
		t.Fatalf("set other account: %v", err)
	}

	out, err = run(t, "", "budget", "list", "--db", db, "acc-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "750.50") || strings.Contains(out, "Rent") {
		t.Fatalf("list acc-1 = %q", out)
	}

	repo, err := storage.NewSQLiteRepository(db)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	ceilings, err := repo.GetBudgetCeilings(context.Background(), []string{"acc-2"})
	if err != nil {
		t.Fatal(err)
	}
	if !ceilings["Rent"].Equal(decimal.NewFromInt(900)) || !ceilings["Food"].Equal(decimal.NewFromInt(500)) {
		t.Fatalf("ceilings = %v", ceilings)
	}
}

func TestBudgetSetRejectsBadCeiling(t *testing.T) {
	db := filepath.Join(t.TempDir(), "budgets.db")
	for _, v := range []string{"abc", "0", "-10"} {
		if _, err := run(t, "", "budget", "set", "--db", db, "--", "Food", v); err == nil {
			t.Errorf("ceiling %q accepted", v)
		}
	}
}
