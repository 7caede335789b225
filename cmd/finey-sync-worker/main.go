package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finey/internal/amqp"
	"finey/internal/cli"
	"finey/internal/config"
	"finey/internal/integrator"
	"finey/internal/log"
	"finey/internal/services"
	"finey/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting finey-sync-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	aggregator, err := newAggregator(cfg)
	if err != nil {
		logger.Error("Failed to initialize aggregator", "error", err)
		os.Exit(1)
	}

	processorCfg := services.DefaultSyncProcessorConfig()
	processorCfg.PollInterval = cfg.SyncInterval
	processorCfg.BatchSize = cfg.SyncBatchSize
	processorCfg.MaxRetries = cfg.SyncMaxRetries
	processor := services.NewSyncProcessor(repo, aggregator, processorCfg)
	syncWorker := worker.NewSyncWorker(processor)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
	} else {
		logger.Info("AMQP disabled - relying on queue polling only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Sync processor stop error", "error", err)
		}
	})

	if err := syncWorker.StartupSyncCheck(ctx, cfg.SyncRetryFailed); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", "error", err)
		os.Exit(1)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeBankSync(ctx, syncWorker.HandleBankSyncMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
}

// newAggregator prefers the live REST client and falls back to fixtures.
func newAggregator(cfg *config.Config) (integrator.Aggregator, error) {
	if cfg.AggregatorURL != "" {
		client, err := integrator.NewHTTPClient(integrator.HTTPConfig{
			BaseURL:      cfg.AggregatorURL,
			ClientID:     cfg.AggregatorClientID,
			ClientSecret: cfg.AggregatorClientSecret,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	if cfg.AggregatorFixtures != "" {
		fixtures, err := integrator.LoadFixtures(cfg.AggregatorFixtures)
		if err != nil {
			return nil, err
		}
		return fixtures, nil
	}
	return nil, errors.New("set AGGREGATOR_URL or AGGREGATOR_FIXTURES")
}
