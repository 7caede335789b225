// Package awssecrets provides crypto.SecretProvider implementations backed by
// AWS Secrets Manager and AWS KMS.
package awssecrets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-secretsmanager-caching-go/v2/secretcache"

	"finey/internal/crypto"
)

type secretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type kmsAPI interface {
	Decrypt(ctx context.Context, in *kms.DecryptInput, opts ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// SecretsManagerProvider reads key material from Secrets Manager under
// <prefix><name>. String secrets honour the "base64:" prefix.
type SecretsManagerProvider struct {
	client secretsAPI
	cache  *secretcache.Cache
	prefix string
}

// NewSecretsManagerProvider loads the default AWS configuration and wraps the
// client with the Secrets Manager caching library. When the cache cannot be
// built the provider falls back to direct API calls.
func NewSecretsManagerProvider(ctx context.Context, prefix string) (*SecretsManagerProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := secretsmanager.NewFromConfig(cfg)

	sc, err := secretcache.New(func(c *secretcache.Cache) {
		c.Client = client
	})
	if err != nil {
		slog.WarnContext(ctx, "Secret cache unavailable, using direct calls", "error", err)
		sc = nil
	}
	return &SecretsManagerProvider{client: client, cache: sc, prefix: prefix}, nil
}

func (p *SecretsManagerProvider) GetSecret(ctx context.Context, name string) ([]byte, error) {
	id := p.prefix + name

	if p.cache != nil {
		s, err := p.cache.GetSecretString(id)
		if err == nil {
			return crypto.DecodeMaterial(s)
		}
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", id, crypto.ErrSecretNotFound)
		}
		slog.DebugContext(ctx, "Secret cache miss, calling API", "secret", id, "error", err)
	}

	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", id, crypto.ErrSecretNotFound)
		}
		return nil, fmt.Errorf("get secret %s: %w", id, err)
	}
	switch {
	case out.SecretString != nil:
		return crypto.DecodeMaterial(*out.SecretString)
	case len(out.SecretBinary) > 0:
		return out.SecretBinary, nil
	}
	return nil, fmt.Errorf("%s: %w", id, crypto.ErrSecretNotFound)
}

func isNotFound(err error) bool {
	var nf *smtypes.ResourceNotFoundException
	if errors.As(err, &nf) {
		return true
	}
	return strings.Contains(err.Error(), "ResourceNotFoundException")
}

// KMSProvider stores data keys encrypted under a KMS key. The wrapped
// provider returns the base64 ciphertext blob, and KMS returns the plaintext
// material. The secret name is bound as encryption context.
type KMSProvider struct {
	client  kmsAPI
	wrapped crypto.SecretProvider
}

func NewKMSProvider(ctx context.Context, wrapped crypto.SecretProvider) (*KMSProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &KMSProvider{client: kms.NewFromConfig(cfg), wrapped: wrapped}, nil
}

func (p *KMSProvider) GetSecret(ctx context.Context, name string) ([]byte, error) {
	enc, err := p.wrapped.GetSecret(ctx, name)
	if err != nil {
		return nil, err
	}
	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(enc)))
	if err != nil {
		return nil, fmt.Errorf("decode wrapped key %s: %w", name, err)
	}

	out, err := p.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob:    blob,
		EncryptionContext: map[string]string{"secret": name},
	})
	if err != nil {
		return nil, fmt.Errorf("kms decrypt %s: %w", name, err)
	}
	return out.Plaintext, nil
}
