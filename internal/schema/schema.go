// Package schema describes which payload fields are sensitive and under which
// secret, and runs the inbound validation pass and outbound sealing against
// those descriptors.
package schema

import (
	"context"
	"strings"

	"finey/internal/core"
	"finey/internal/crypto"
)

// Rule checks a plain value and returns a rejection reason, or "" when valid.
type Rule func(value string) string

// Field describes one payload field. On a sensitive field Rule runs against
// the decrypted value.
type Field struct {
	Name      string
	Sensitive bool
	Secret    string
	Required  bool
	Rule      Rule
}

type Schema struct {
	Name   string
	Fields []Field
}

// Values carries payload fields by name. Scalar fields hold one element.
type Values map[string][]string

func (v Values) Set(name string, values ...string) {
	v[name] = values
}

// First returns the first value for name, or "".
func (v Values) First(name string) string {
	if vs := v[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// KeyResolver returns the derived key for a secret reference. *crypto.Gate
// implements it.
type KeyResolver interface {
	Key(ctx context.Context, ref string) (crypto.Key, error)
}

type Validator struct {
	keys KeyResolver
}

func NewValidator(keys KeyResolver) *Validator {
	return &Validator{keys: keys}
}

// Validate checks every field of s against values and reports all problems
// in one core.ValidationError. A secret that cannot be resolved aborts with
// the underlying core.CryptoError instead.
func (v *Validator) Validate(ctx context.Context, s Schema, values Values) error {
	problems := &core.ValidationError{}
	keys := map[string]crypto.Key{}

	for _, f := range s.Fields {
		vals := nonBlank(values[f.Name])
		if len(vals) == 0 {
			if f.Required {
				problems.Add(f.Name, "is required")
			}
			continue
		}

		if f.Sensitive {
			key, ok := keys[f.Secret]
			if !ok {
				var err error
				if key, err = v.keys.Key(ctx, f.Secret); err != nil {
					return err
				}
				keys[f.Secret] = key
			}
			if reason := checkSealed(vals, key, f.Rule); reason != "" {
				problems.Add(f.Name, reason)
			}
			continue
		}

		if f.Rule != nil {
			for _, val := range vals {
				if reason := f.Rule(val); reason != "" {
					problems.Add(f.Name, reason)
					break
				}
			}
		}
	}
	return problems.Err()
}

// Open validates values and returns a copy with every sensitive field
// decrypted. Blank entries are dropped.
func (v *Validator) Open(ctx context.Context, s Schema, values Values) (Values, error) {
	if err := v.Validate(ctx, s, values); err != nil {
		return nil, err
	}

	out := make(Values, len(values))
	for name, vals := range values {
		out[name] = nonBlank(vals)
	}
	for _, f := range s.Fields {
		if !f.Sensitive || len(out[f.Name]) == 0 {
			continue
		}
		key, err := v.keys.Key(ctx, f.Secret)
		if err != nil {
			return nil, err
		}
		plain := make([]string, 0, len(out[f.Name]))
		for _, val := range out[f.Name] {
			pt, err := crypto.Decrypt(val, key)
			if err != nil {
				return nil, err
			}
			plain = append(plain, pt)
		}
		out[f.Name] = plain
	}
	return out, nil
}

// checkSealed requires every value to be a token under key and, when rule is
// set, applies it to the opened plaintext.
func checkSealed(vals []string, key crypto.Key, rule Rule) string {
	for _, val := range vals {
		if !crypto.IsEncrypted(val, key) {
			return "must be encrypted"
		}
		if rule == nil {
			continue
		}
		pt, err := crypto.Decrypt(val, key)
		if err != nil {
			return "must be encrypted"
		}
		if reason := rule(pt); reason != "" {
			return reason
		}
	}
	return ""
}

func nonBlank(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
