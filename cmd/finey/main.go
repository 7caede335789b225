package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finey/internal/analysis"
	"finey/internal/backend"
	"finey/internal/cache"
	"finey/internal/cli"
	apphttp "finey/internal/http"
	"finey/internal/log"
	"finey/internal/schema"
	"finey/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx := context.Background()

	gate, err := cli.BuildGate(ctx, cfg)
	if err != nil {
		logger.Error("Failed to resolve secrets", "error", err, "provider", cfg.SecretProvider)
		os.Exit(1)
	}

	caches := cache.NewManager()
	caches.Register("secrets", gate.KeyCache())

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Logger, caches).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	policy, err := analysis.GetRecurrencePolicy(cfg.IncomeRecurrencePolicy, cfg.RecurrenceThreshold())
	if err != nil {
		logger.Error("Invalid recurrence policy", "error", err, "policy", cfg.IncomeRecurrencePolicy)
		os.Exit(1)
	}
	var categorizer analysis.Categorizer = analysis.CategoryField{}
	if cfg.CategorizeByDescription {
		categorizer = analysis.KeywordCategorizer{}
	}

	engine := analysis.NewEngine(res.Backend.Transactions, res.Backend.Budgets, res.Backend.Transactions, analysis.Options{
		InsightsMax:      cfg.InsightsMax,
		ProjectionIncome: cfg.ProjectionIncludeIncome,
		RecurrencePolicy: policy,
		Categorizer:      categorizer,
	})
	goals := services.NewGoalService(res.Backend.Goals, schema.NewValidator(gate))

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RequestTimeout:     cfg.RequestTimeout,
		AnalysisCacheTTL:   cfg.AnalysisCacheTTL,
		AnalysisCacheSize:  cfg.AnalysisCacheSize,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, apphttp.Deps{
		Engine: engine,
		Goals:  goals,
		Keys:   gate,
		Store:  res.Backend.Transactions,
		Logger: logger,
		Caches: caches,
	})
	caches.StartCleanup(5 * time.Minute)

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	})

	logger.Info("Starting finey server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"budgets", cfg.BudgetSource,
		"secrets", cfg.SecretProvider)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
