// Package worker turns broker deliveries into bank sync runs.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"finey/internal/amqp"
	"finey/internal/log"
	"finey/internal/storage"
)

// JobRunner runs queued sync jobs. *services.SyncProcessor implements it.
type JobRunner interface {
	ProcessJob(ctx context.Context, id string) error
	Stats(ctx context.Context) (storage.SyncQueueStats, error)
	RetryFailed(ctx context.Context) error
}

// SyncWorker handles bank sync messages from AMQP. The message only names a
// job; the job row in SQLite is authoritative for what gets synced.
type SyncWorker struct {
	jobs JobRunner
}

func NewSyncWorker(jobs JobRunner) *SyncWorker {
	return &SyncWorker{jobs: jobs}
}

// HandleBankSyncMessage processes a single bank sync message from AMQP.
// A returned error makes the broker requeue the delivery.
func (w *SyncWorker) HandleBankSyncMessage(ctx context.Context, msg *amqp.BankSyncMessage) error {
	logger := log.FromContext(ctx).WithComponent(log.ComponentWorker)

	fields := log.NewFields().WithSync(msg.JobID, msg.AccountID)
	if r, err := msg.Range(); err != nil {
		logger.WarnContext(ctx, "Sync message carries an unreadable range",
			log.NewFields().WithSync(msg.JobID, msg.AccountID).WithError(err).ToSlice()...)
	} else {
		fields[log.FieldRange] = r.String()
	}
	logger.InfoContext(ctx, "Processing sync message", fields.ToSlice()...)

	if err := w.jobs.ProcessJob(ctx, msg.JobID); err != nil {
		return fmt.Errorf("process sync job %s: %w", msg.JobID, err)
	}
	return nil
}

// StartupSyncCheck logs the queue state at worker startup and, when asked,
// puts permanently failed jobs back in the queue.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context, retryFailed bool) error {
	stats, err := w.jobs.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get sync queue stats: %w", err)
	}

	slog.InfoContext(ctx, "Sync queue on startup",
		"pending", stats.Pending,
		"processing", stats.Processing,
		"completed", stats.Completed,
		"failed", stats.Failed)

	if retryFailed && stats.Failed > 0 {
		if err := w.jobs.RetryFailed(ctx); err != nil {
			return fmt.Errorf("retry failed sync jobs: %w", err)
		}
		slog.InfoContext(ctx, "Failed sync jobs requeued", "count", stats.Failed)
	}
	return nil
}
