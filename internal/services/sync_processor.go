package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finey/internal/core"
	"finey/internal/integrator"
	"finey/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor. The poll
// loop is the fallback for jobs whose AMQP message was lost.
type SyncProcessorConfig struct {
	// PollInterval is how often to check for due jobs (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of jobs to run per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the maximum retry attempts before marking as failed (default: 3)
	MaxRetries int

	// CleanupInterval is how often to clean up completed jobs (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old completed jobs must be before cleanup (default: 24h)
	CleanupAge time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// SyncStore is the storage the processor drives: the job queue, the
// transaction mirror and the per-account sync state.
type SyncStore interface {
	GetSyncJob(ctx context.Context, id string) (storage.SyncJob, error)
	DequeueSyncBatch(ctx context.Context, limit int64) ([]storage.SyncJob, error)
	MarkSyncProcessing(ctx context.Context, id string) error
	MarkSyncComplete(ctx context.Context, id string) error
	MarkSyncFailed(ctx context.Context, id, msg string) error
	IncrementSyncAttempt(ctx context.Context, id, msg string) error
	ResetStaleProcessing(ctx context.Context) error
	RetryFailedSyncs(ctx context.Context) error
	CleanupCompletedSyncs(ctx context.Context, cutoff time.Time) (int64, error)
	GetSyncQueueStats(ctx context.Context) (storage.SyncQueueStats, error)
	UpsertTransactions(ctx context.Context, txs []core.Transaction) error
	UpsertAccount(ctx context.Context, a core.Account) error
	RecordSync(ctx context.Context, accountID string, rng core.DateRange, at time.Time) error
}

// SyncProcessor pulls queued accounts from the bank aggregator into SQLite
type SyncProcessor struct {
	storage    SyncStore
	aggregator integrator.Aggregator
	config     SyncProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(store SyncStore, aggregator integrator.Aggregator, config SyncProcessorConfig) *SyncProcessor {
	return &SyncProcessor{
		storage:    store,
		aggregator: aggregator,
		config:     config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	// Jobs left in processing by a crashed worker go back to the queue
	if err := p.storage.ResetStaleProcessing(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to reset stale sync jobs", "error", err)
	}

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	// Signal stop
	close(p.stopCh)

	// Wait for completion or context cancellation
	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// runLoop is the main processing loop
func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	// Process immediately on startup
	p.processBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.processBatch(ctx)
		case <-cleanupTicker.C:
			p.cleanupCompleted(ctx)
		}
	}
}

// processBatch runs a single batch of due jobs
func (p *SyncProcessor) processBatch(ctx context.Context) {
	jobs, err := p.storage.DequeueSyncBatch(ctx, int64(p.config.BatchSize))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to dequeue sync batch", "error", err)
		return
	}

	if len(jobs) == 0 {
		return
	}

	slog.DebugContext(ctx, "Processing sync batch", "count", len(jobs))

	for _, job := range jobs {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := p.run(ctx, job); err != nil {
			slog.ErrorContext(ctx, "Failed to run sync job", "id", job.ID, "error", err)
		}
	}
}

// ProcessJob runs the job a broker message points at. Jobs that are no
// longer pending, or not yet due for a retry, are skipped: the poller or an
// earlier delivery owns them. The error is non-nil only when the queue
// itself could not be read or updated, so the message is worth requeueing.
func (p *SyncProcessor) ProcessJob(ctx context.Context, id string) error {
	job, err := p.storage.GetSyncJob(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Sync job not found, dropping message", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get sync job: %w", err)
	}
	if job.Status != storage.SyncPending || job.NextAttemptAt.After(time.Now()) {
		slog.DebugContext(ctx, "Skipping sync job", "id", id, "status", job.Status)
		return nil
	}
	return p.run(ctx, job)
}

func (p *SyncProcessor) run(ctx context.Context, job storage.SyncJob) error {
	if err := p.storage.MarkSyncProcessing(ctx, job.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// claimed by another runner
			return nil
		}
		return fmt.Errorf("mark sync processing: %w", err)
	}

	if err := p.syncAccount(ctx, job); err != nil {
		p.handleFailure(ctx, job, err)
		return nil
	}
	p.handleSuccess(ctx, job)
	return nil
}

// syncAccount pulls the account and its transactions for the job's range.
func (p *SyncProcessor) syncAccount(ctx context.Context, job storage.SyncJob) error {
	if p.aggregator == nil {
		return fmt.Errorf("no bank aggregator configured")
	}

	account, err := p.aggregator.FetchAccount(ctx, job.AccountID)
	if err != nil {
		return fmt.Errorf("fetch account: %w", err)
	}

	txs, err := p.aggregator.FetchTransactions(ctx, job.AccountID, job.Range)
	if err != nil {
		return fmt.Errorf("fetch transactions: %w", err)
	}

	if err := p.storage.UpsertTransactions(ctx, txs); err != nil {
		return fmt.Errorf("store transactions: %w", err)
	}
	if err := p.storage.UpsertAccount(ctx, account); err != nil {
		return fmt.Errorf("store account: %w", err)
	}
	if err := p.storage.RecordSync(ctx, job.AccountID, job.Range, time.Now()); err != nil {
		return fmt.Errorf("record sync: %w", err)
	}

	slog.InfoContext(ctx, "Synced bank account",
		"job_id", job.ID,
		"account_id", job.AccountID,
		"range", job.Range.String(),
		"transactions", len(txs))
	return nil
}

// handleSuccess marks a job as completed
func (p *SyncProcessor) handleSuccess(ctx context.Context, job storage.SyncJob) {
	if err := p.storage.MarkSyncComplete(ctx, job.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark sync complete",
			"id", job.ID, "error", err)
	}
}

// handleFailure retries with backoff until MaxRetries, then gives up. An
// account the aggregator does not know fails at once.
func (p *SyncProcessor) handleFailure(ctx context.Context, job storage.SyncJob, processErr error) {
	slog.WarnContext(ctx, "Sync job failed",
		"id", job.ID,
		"account_id", job.AccountID,
		"attempt", job.Attempts+1,
		"error", processErr)

	permanent := errors.Is(processErr, integrator.ErrAccountNotFound)
	if permanent || job.Attempts+1 >= int64(p.config.MaxRetries) {
		if err := p.storage.MarkSyncFailed(ctx, job.ID, processErr.Error()); err != nil {
			slog.ErrorContext(ctx, "Failed to mark sync as failed",
				"id", job.ID, "error", err)
		}

		slog.ErrorContext(ctx, "Sync job failed permanently",
			"id", job.ID,
			"account_id", job.AccountID,
			"attempts", job.Attempts+1,
			"permanent", permanent)
		return
	}

	if err := p.storage.IncrementSyncAttempt(ctx, job.ID, processErr.Error()); err != nil {
		slog.ErrorContext(ctx, "Failed to increment sync attempt",
			"id", job.ID, "error", err)
	}
}

// cleanupCompleted removes old completed jobs
func (p *SyncProcessor) cleanupCompleted(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupAge)
	n, err := p.storage.CleanupCompletedSyncs(ctx, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to cleanup completed syncs", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Cleaned up completed sync jobs", "count", n)
	}
}

// Stats returns current queue statistics
func (p *SyncProcessor) Stats(ctx context.Context) (storage.SyncQueueStats, error) {
	return p.storage.GetSyncQueueStats(ctx)
}

// RetryFailed resets all failed jobs for retry
func (p *SyncProcessor) RetryFailed(ctx context.Context) error {
	return p.storage.RetryFailedSyncs(ctx)
}
