// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/finey, cmd/finey-sync-worker and cmd/finey-seal.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finey/internal/config"
	"finey/internal/crypto"
	"finey/internal/crypto/awssecrets"
	"finey/internal/log"
	"finey/internal/storage"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// makes it the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logCfg := log.DefaultConfig()
	logCfg.Component = component
	if cfg != nil {
		logCfg.Level = cfg.SlogLevel()
		logCfg.JSON = cfg.LogFormat == "json"
	}
	logger := log.New(logCfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	sqliteRepo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return sqliteRepo
}

// SecretProvider builds the provider named by SECRET_PROVIDER. The
// configured secret names are mapped onto the gate's well-known references.
func SecretProvider(ctx context.Context, cfg *config.Config) (crypto.SecretProvider, error) {
	var provider crypto.SecretProvider
	switch cfg.SecretProvider {
	case "env":
		provider = crypto.NewEnvProvider(cfg.SecretPrefix)
	case "aws":
		sm, err := awssecrets.NewSecretsManagerProvider(ctx, cfg.SecretPrefix)
		if err != nil {
			return nil, err
		}
		provider = sm
	case "kms":
		wrapped, err := awssecrets.NewKMSProvider(ctx, crypto.NewEnvProvider(cfg.SecretPrefix))
		if err != nil {
			return nil, err
		}
		provider = wrapped
	default:
		return nil, fmt.Errorf("unknown secret provider: %s", cfg.SecretProvider)
	}

	return crypto.AliasProvider{
		Provider: provider,
		Names: map[string]string{
			crypto.SecretBankAccounts: cfg.SecretBankAccounts,
			crypto.SecretFinance:      cfg.SecretFinance,
			crypto.SecretGoals:        cfg.SecretGoals,
		},
	}, nil
}

// BuildGate creates the field crypto gate and checks that every well-known
// secret resolves, so a misconfigured deployment fails at startup.
func BuildGate(ctx context.Context, cfg *config.Config) (*crypto.Gate, error) {
	provider, err := SecretProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("secret provider: %w", err)
	}
	gate := crypto.NewGate(provider, cfg.SecretCacheTTL)

	for _, ref := range []string{crypto.SecretBankAccounts, crypto.SecretFinance, crypto.SecretGoals} {
		if _, err := gate.Key(ctx, ref); err != nil {
			return nil, err
		}
	}
	return gate, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
