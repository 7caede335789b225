package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"finey/internal/config"
	"finey/internal/core"
	"finey/internal/crypto"
)

func secretConfig() *config.Config {
	return &config.Config{
		SecretProvider:     "env",
		SecretPrefix:       "test-",
		SecretCacheTTL:     time.Minute,
		SecretBankAccounts: "accounts-v2",
		SecretFinance:      "finance-v1",
		SecretGoals:        "goals-v1",
	}
}

func TestBuildGateResolvesAliasedSecrets(t *testing.T) {
	t.Setenv("FINEY_SECRET_TEST_ACCOUNTS_V2", "bank-accounts-material-0001")
	t.Setenv("FINEY_SECRET_TEST_FINANCE_V1", "base64:ZmluYW5jZS1tYXRlcmlhbC0wMDAwMDAwMDE=")
	t.Setenv("FINEY_SECRET_TEST_GOALS_V1", "goals-material-00000000001")

	ctx := context.Background()
	gate, err := BuildGate(ctx, secretConfig())
	if err != nil {
		t.Fatalf("BuildGate() error = %v", err)
	}

	tok, err := gate.Encrypt(ctx, crypto.SecretFinance, "1250.00")
	if err != nil {
		t.Fatal(err)
	}
	got, err := gate.Decrypt(ctx, crypto.SecretFinance, tok)
	if err != nil || got != "1250.00" {
		t.Fatalf("round trip = %q, %v", got, err)
	}
}

func TestBuildGateFailsOnMissingSecret(t *testing.T) {
	t.Setenv("FINEY_SECRET_TEST_ACCOUNTS_V2", "bank-accounts-material-0001")
	t.Setenv("FINEY_SECRET_TEST_FINANCE_V1", "")
	t.Setenv("FINEY_SECRET_TEST_GOALS_V1", "goals-material-00000000001")

	_, err := BuildGate(context.Background(), secretConfig())
	var ce *core.CryptoError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want CryptoError", err)
	}
}

func TestSecretProviderRejectsUnknownKind(t *testing.T) {
	cfg := secretConfig()
	cfg.SecretProvider = "vault"
	if _, err := SecretProvider(context.Background(), cfg); err == nil {
		t.Fatal("expected error")
	}
}
