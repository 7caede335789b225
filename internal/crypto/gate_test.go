package crypto

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finey/internal/core"
)

const testMaterial = "0123456789abcdef0123456789abcdef"

func mustKey(t *testing.T, name, material string) Key {
	t.Helper()
	k, err := DeriveKey(name, []byte(material))
	require.NoError(t, err)
	return k
}

func TestRoundTrip(t *testing.T) {
	key := mustKey(t, SecretFinance, testMaterial)

	for _, pt := range []string{"", "1000.00", "acc-123", "ção ünïcode", strings.Repeat("x", 4096)} {
		ct, err := Encrypt(pt, key)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(ct, "v1."))
		assert.True(t, IsEncrypted(ct, key), "token should validate: %q", pt)

		got, err := Decrypt(ct, key)
		require.NoError(t, err)
		assert.Equal(t, pt, got)
	}
}

func TestDeterministic(t *testing.T) {
	key := mustKey(t, SecretBankAccounts, testMaterial)

	a, err := Encrypt("account-1", key)
	require.NoError(t, err)
	b, err := Encrypt("account-1", key)
	require.NoError(t, err)
	c, err := Encrypt("account-2", key)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestIsEncryptedRejectsPlaintextAndForeignTokens(t *testing.T) {
	key := mustKey(t, SecretFinance, testMaterial)
	other := mustKey(t, SecretGoals, testMaterial)

	foreign, err := Encrypt("100.00", other)
	require.NoError(t, err)

	for _, v := range []string{"", "100.00", "v1.", "v1.!!!", "v2.AAAA", foreign} {
		assert.False(t, IsEncrypted(v, key), "value %q", v)
	}
	assert.False(t, IsEncrypted("anything", Key{}))
}

func TestDecryptFailures(t *testing.T) {
	key := mustKey(t, SecretFinance, testMaterial)
	ct, err := Encrypt("42.00", key)
	require.NoError(t, err)

	raw, err := encoding.DecodeString(strings.TrimPrefix(ct, "v1."))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := "v1." + encoding.EncodeToString(raw)

	tests := []struct {
		name  string
		token string
		key   Key
		want  error
	}{
		{"tampered", tampered, key, ErrAuthentication},
		{"wrong key", ct, mustKey(t, SecretFinance, testMaterial+"x"), ErrAuthentication},
		{"bad prefix", "x" + ct, key, ErrMalformedToken},
		{"too short", "v1.AAAA", key, ErrMalformedToken},
		{"no key", ct, Key{}, ErrKeyUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.token, tt.key)
			var ce *core.CryptoError
			require.True(t, errors.As(err, &ce), "expected CryptoError, got %v", err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDeriveKeyRejectsWeakMaterial(t *testing.T) {
	_, err := DeriveKey("finance", nil)
	assert.ErrorIs(t, err, ErrKeyUnavailable)

	_, err = DeriveKey("finance", []byte("short"))
	assert.ErrorIs(t, err, ErrWeakSecret)

	_, err = Encrypt("x", Key{})
	var ce *core.CryptoError
	assert.True(t, errors.As(err, &ce))
}

func TestSecretNameSaltsDerivation(t *testing.T) {
	a := mustKey(t, SecretFinance, testMaterial)
	b := mustKey(t, SecretGoals, testMaterial)

	ta, err := Encrypt("same", a)
	require.NoError(t, err)
	tb, err := Encrypt("same", b)
	require.NoError(t, err)
	assert.NotEqual(t, ta, tb)
}

type countingProvider struct {
	calls int32
	inner SecretProvider
}

func (p *countingProvider) GetSecret(ctx context.Context, name string) ([]byte, error) {
	atomic.AddInt32(&p.calls, 1)
	return p.inner.GetSecret(ctx, name)
}

func TestGateCachesKeys(t *testing.T) {
	p := &countingProvider{inner: StaticProvider{SecretFinance: []byte(testMaterial)}}
	g := NewGate(p, time.Minute)
	ctx := context.Background()

	ct, err := g.Encrypt(ctx, SecretFinance, "12.50")
	require.NoError(t, err)
	ok, err := g.IsEncrypted(ctx, SecretFinance, ct)
	require.NoError(t, err)
	assert.True(t, ok)
	pt, err := g.Decrypt(ctx, SecretFinance, ct)
	require.NoError(t, err)
	assert.Equal(t, "12.50", pt)

	assert.Equal(t, int32(1), atomic.LoadInt32(&p.calls))
}

func TestGateMissingSecret(t *testing.T) {
	g := NewGate(StaticProvider{}, time.Minute)

	_, err := g.Encrypt(context.Background(), SecretGoals, "x")
	var ce *core.CryptoError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, SecretGoals, ce.Secret)
	assert.ErrorIs(t, err, ErrSecretNotFound)

	_, err = g.IsEncrypted(context.Background(), SecretGoals, "x")
	assert.Error(t, err)
}

func TestEnvProvider(t *testing.T) {
	env := map[string]string{
		"FINEY_SECRET_BANK_ACCOUNTS":  testMaterial,
		"FINEY_SECRET_PROD_FINANCE":   "base64:MDEyMzQ1Njc4OWFiY2RlZg==",
		"FINEY_SECRET_PROD_BAD_VALUE": "base64:***",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	p := &EnvProvider{Lookup: lookup}
	assert.Equal(t, "FINEY_SECRET_BANK_ACCOUNTS", p.VarName("bank-accounts"))
	m, err := p.GetSecret(context.Background(), "bank-accounts")
	require.NoError(t, err)
	assert.Equal(t, testMaterial, string(m))

	_, err = p.GetSecret(context.Background(), "goals")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	prefixed := &EnvProvider{Prefix: "prod/", Lookup: lookup}
	m, err = prefixed.GetSecret(context.Background(), "finance")
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", string(m))

	_, err = prefixed.GetSecret(context.Background(), "bad-value")
	assert.Error(t, err)
}

func TestAliasProvider(t *testing.T) {
	p := AliasProvider{
		Provider: StaticProvider{"prod/finance-key": []byte(testMaterial), SecretGoals: []byte(testMaterial)},
		Names:    map[string]string{SecretFinance: "prod/finance-key"},
	}

	got, err := p.GetSecret(context.Background(), SecretFinance)
	require.NoError(t, err)
	assert.Equal(t, testMaterial, string(got))

	_, err = p.GetSecret(context.Background(), SecretGoals)
	assert.NoError(t, err, "unaliased references pass through")

	_, err = p.GetSecret(context.Background(), SecretBankAccounts)
	assert.ErrorIs(t, err, ErrSecretNotFound)
}
