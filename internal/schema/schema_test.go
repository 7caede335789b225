package schema

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finey/internal/core"
	"finey/internal/crypto"
)

func newGate() *crypto.Gate {
	return crypto.NewGate(crypto.StaticProvider{
		crypto.SecretBankAccounts: []byte("bank-accounts-material-0001"),
		crypto.SecretGoals:        []byte("goals-material-00000000001"),
		crypto.SecretFinance:      []byte("finance-material-000000001"),
	}, time.Minute)
}

func seal(t *testing.T, g *crypto.Gate, ref, v string) string {
	t.Helper()
	ct, err := g.Encrypt(context.Background(), ref, v)
	require.NoError(t, err)
	return ct
}

func TestValidateAnalysisRequest(t *testing.T) {
	g := newGate()
	v := NewValidator(g)
	ctx := context.Background()

	ok := Values{}
	ok.Set(FieldAccountIDs, seal(t, g, crypto.SecretBankAccounts, "A"), seal(t, g, crypto.SecretBankAccounts, "B"))
	ok.Set(FieldReferenceDate, "2025-01-15")
	require.NoError(t, v.Validate(ctx, AnalysisRequest, ok))

	empty := Values{}
	assert.NoError(t, v.Validate(ctx, AnalysisRequest, empty), "empty selector is valid")

	bad := Values{}
	bad.Set(FieldAccountIDs, "A")
	bad.Set(FieldStartDate, "15/01/2025")
	bad.Set(FieldEndDate, "2025-01-31")
	err := v.Validate(ctx, AnalysisRequest, bad)

	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []core.FieldProblem{
		{Field: FieldAccountIDs, Reason: "must be encrypted"},
		{Field: FieldStartDate, Reason: "must be a date in YYYY-MM-DD format"},
	}, ve.Problems)
}

func TestValidateRejectsTokenFromOtherSecret(t *testing.T) {
	g := newGate()
	vals := Values{}
	vals.Set(FieldAccountIDs, seal(t, g, crypto.SecretGoals, "A"))

	err := NewValidator(g).Validate(context.Background(), AnalysisRequest, vals)
	assert.True(t, core.IsValidation(err))
}

func TestOpenDecryptsSensitiveFields(t *testing.T) {
	g := newGate()
	vals := Values{}
	vals.Set(FieldAccountIDs, seal(t, g, crypto.SecretBankAccounts, "acc-1"), " ", seal(t, g, crypto.SecretBankAccounts, "acc-2"))
	vals.Set(FieldStartDate, "2025-01-01")

	out, err := NewValidator(g).Open(context.Background(), AnalysisRequest, vals)
	require.NoError(t, err)
	assert.Equal(t, []string{"acc-1", "acc-2"}, out[FieldAccountIDs])
	assert.Equal(t, "2025-01-01", out.First(FieldStartDate))
}

func TestOpenFailsWhenSecretMissing(t *testing.T) {
	g := crypto.NewGate(crypto.StaticProvider{}, time.Minute)
	vals := Values{}
	vals.Set(FieldAccountIDs, "v1.whatever")

	_, err := NewValidator(g).Open(context.Background(), AnalysisRequest, vals)
	var ce *core.CryptoError
	assert.True(t, errors.As(err, &ce))
}

func TestGoalSchema(t *testing.T) {
	g := newGate()
	now := func() time.Time { return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC) }
	s := Goal(now)

	vals := Values{}
	vals.Set(FieldGoalName, seal(t, g, crypto.SecretGoals, "Trip"))
	vals.Set(FieldGoalDescription, seal(t, g, crypto.SecretGoals, "Lisbon in May"))
	vals.Set(FieldGoalIcon, seal(t, g, crypto.SecretGoals, "✈️"))
	vals.Set(FieldGoalColor, seal(t, g, crypto.SecretGoals, "#3366ff"))
	vals.Set(FieldGoalTarget, seal(t, g, crypto.SecretGoals, "5000,00"))
	vals.Set(FieldGoalDate, "2025-06-10")
	require.NoError(t, NewValidator(g).Validate(context.Background(), s, vals))

	vals.Set(FieldGoalDate, "2025-06-09")
	vals.Set(FieldGoalName)
	vals.Set(FieldGoalColor, "  ")
	err := NewValidator(g).Validate(context.Background(), s, vals)
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []core.FieldProblem{
		{Field: FieldGoalName, Reason: "is required"},
		{Field: FieldGoalColor, Reason: "is required"},
		{Field: FieldGoalDate, Reason: "must not be in the past"},
	}, ve.Problems)
}

func TestGoalTargetMustOpenToPositiveAmount(t *testing.T) {
	g := newGate()
	s := Goal(func() time.Time { return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC) })

	for _, target := range []string{"lots", "0", "-10.00"} {
		vals := Values{}
		for _, name := range []string{FieldGoalName, FieldGoalDescription, FieldGoalIcon, FieldGoalColor} {
			vals.Set(name, seal(t, g, crypto.SecretGoals, "x"))
		}
		vals.Set(FieldGoalTarget, seal(t, g, crypto.SecretGoals, target))
		vals.Set(FieldGoalDate, "2025-07-01")

		err := NewValidator(g).Validate(context.Background(), s, vals)
		var ve *core.ValidationError
		require.True(t, errors.As(err, &ve), target)
		assert.Equal(t, []core.FieldProblem{{Field: FieldGoalTarget, Reason: "must be a positive amount"}}, ve.Problems, target)
	}
}

func TestSealer(t *testing.T) {
	g := newGate()
	ctx := context.Background()

	s := NewSealer(ctx, g, crypto.SecretFinance)
	amount := s.SealAmount(decimal.RequireFromString("1000"))
	number := s.SealNumber(decimal.RequireFromString("12.5"))
	require.NoError(t, s.Err())

	pt, err := g.Decrypt(ctx, crypto.SecretFinance, amount)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", pt)
	pt, err = g.Decrypt(ctx, crypto.SecretFinance, number)
	require.NoError(t, err)
	assert.Equal(t, "12.5", pt)

	broken := NewSealer(ctx, crypto.NewGate(crypto.StaticProvider{}, 0), crypto.SecretFinance)
	assert.Equal(t, "", broken.Seal("x"))
	assert.Error(t, broken.Err())
}
