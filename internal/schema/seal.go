package schema

import (
	"context"

	"github.com/shopspring/decimal"

	"finey/internal/core"
	"finey/internal/crypto"
)

// Sealer encrypts outbound values under one secret. The first failure is
// kept and every later call returns "", so a renderer can seal a whole view
// and check Err once.
type Sealer struct {
	key crypto.Key
	err error
}

func NewSealer(ctx context.Context, keys KeyResolver, secret string) *Sealer {
	key, err := keys.Key(ctx, secret)
	return &Sealer{key: key, err: err}
}

func (s *Sealer) Seal(plaintext string) string {
	if s.err != nil {
		return ""
	}
	ct, err := crypto.Encrypt(plaintext, s.key)
	if err != nil {
		s.err = err
		return ""
	}
	return ct
}

// SealAmount seals a monetary value with exactly two decimals.
func (s *Sealer) SealAmount(d decimal.Decimal) string {
	return s.Seal(core.FormatAmount(d))
}

// SealNumber seals a value in its shortest exact representation.
func (s *Sealer) SealNumber(d decimal.Decimal) string {
	return s.Seal(d.String())
}

func (s *Sealer) Err() error { return s.err }
