package crypto

import (
	"context"
	"log/slog"
	"time"

	"finey/internal/cache"
	"finey/internal/core"
)

// Well-known secret references. Each data domain seals under its own secret.
const (
	SecretBankAccounts = "bank-accounts"
	SecretFinance      = "finance"
	SecretGoals        = "goals"
)

// Gate resolves secret references through a provider and caches derived keys.
type Gate struct {
	provider SecretProvider
	lru      *cache.LRUCache[Key]
	keys     *cache.Loader[Key]
}

// NewGate creates a gate whose derived keys live for ttl. A zero ttl
// re-resolves the secret on every call.
func NewGate(provider SecretProvider, ttl time.Duration) *Gate {
	lru := cache.NewLRUCache[Key](64, ttl)
	return &Gate{
		provider: provider,
		lru:      lru,
		keys:     cache.NewLoader[Key](lru),
	}
}

// KeyCache exposes the key cache so it can be swept by a cache.Manager.
func (g *Gate) KeyCache() cache.Cleaner { return g.lru }

// Key returns the derived key for ref.
func (g *Gate) Key(ctx context.Context, ref string) (Key, error) {
	key, _, err := g.keys.GetOrLoad(ctx, ref, func(ctx context.Context) (Key, error) {
		material, err := g.provider.GetSecret(ctx, ref)
		if err != nil {
			slog.WarnContext(ctx, "Secret resolution failed", "secret", ref, "error", err)
			return Key{}, &core.CryptoError{Op: "resolve key", Secret: ref, Err: err}
		}
		return DeriveKey(ref, material)
	})
	return key, err
}

func (g *Gate) Encrypt(ctx context.Context, ref, plaintext string) (string, error) {
	key, err := g.Key(ctx, ref)
	if err != nil {
		return "", err
	}
	return Encrypt(plaintext, key)
}

func (g *Gate) Decrypt(ctx context.Context, ref, token string) (string, error) {
	key, err := g.Key(ctx, ref)
	if err != nil {
		return "", err
	}
	return Decrypt(token, key)
}

// IsEncrypted reports whether value is a valid token under ref. The error is
// non-nil only when the key itself could not be resolved.
func (g *Gate) IsEncrypted(ctx context.Context, ref, value string) (bool, error) {
	key, err := g.Key(ctx, ref)
	if err != nil {
		return false, err
	}
	return IsEncrypted(value, key), nil
}
