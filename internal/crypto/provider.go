package crypto

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// ErrSecretNotFound is returned by providers that have no material for a name.
var ErrSecretNotFound = errors.New("secret not found")

// SecretProvider resolves a secret reference to raw key material.
type SecretProvider interface {
	GetSecret(ctx context.Context, name string) ([]byte, error)
}

// EnvProvider reads secrets from environment variables named
// FINEY_SECRET_<PREFIX><NAME>, upper-cased with non-alphanumerics as '_'.
// Values starting with "base64:" are decoded.
type EnvProvider struct {
	Prefix string
	Lookup func(string) (string, bool)
}

func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix, Lookup: os.LookupEnv}
}

// VarName returns the environment variable consulted for name.
func (p *EnvProvider) VarName(name string) string {
	return "FINEY_SECRET_" + strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, p.Prefix+name)
}

func (p *EnvProvider) GetSecret(_ context.Context, name string) ([]byte, error) {
	lookup := p.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(p.VarName(name))
	if !ok || v == "" {
		return nil, fmt.Errorf("%s: %w", p.VarName(name), ErrSecretNotFound)
	}
	return DecodeMaterial(v)
}

// DecodeMaterial turns a textual secret into bytes, honouring a "base64:" prefix.
func DecodeMaterial(v string) ([]byte, error) {
	if enc, ok := strings.CutPrefix(v, "base64:"); ok {
		b, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("decode base64 secret: %w", err)
		}
		return b, nil
	}
	return []byte(v), nil
}

// StaticProvider serves secrets from memory. The ops CLI uses it for
// material passed on the command line.
type StaticProvider map[string][]byte

func (p StaticProvider) GetSecret(_ context.Context, name string) ([]byte, error) {
	m, ok := p[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrSecretNotFound)
	}
	return m, nil
}

// AliasProvider maps the gate's secret references to the names the backing
// store knows them by. References without an alias pass through unchanged.
type AliasProvider struct {
	Provider SecretProvider
	Names    map[string]string
}

func (p AliasProvider) GetSecret(ctx context.Context, ref string) ([]byte, error) {
	name := ref
	if alias, ok := p.Names[ref]; ok && alias != "" {
		name = alias
	}
	return p.Provider.GetSecret(ctx, name)
}
