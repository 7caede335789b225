package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"finey/internal/amqp"
	"finey/internal/core"
	"finey/internal/log"
	"finey/internal/storage"
)

// SyncRequester is the part of the store the request path needs to decide
// on and queue bank syncs.
type SyncRequester interface {
	GetSyncStates(ctx context.Context, ids []string) (map[string]storage.SyncState, error)
	EnqueueSyncJob(ctx context.Context, accountID string, rng core.DateRange) (storage.SyncJob, bool, error)
}

// Publisher notifies the sync worker of a queued job.
type Publisher interface {
	PublishBankSync(ctx context.Context, msg *amqp.BankSyncMessage) error
}

// TransactionService keeps the local transaction mirror fresh. Jobs are
// written to SQLite first, so a lost message only delays the sync until the
// worker's next poll.
type TransactionService struct {
	store      SyncRequester
	publisher  Publisher
	freshness  FreshnessChecker
	staleAfter time.Duration
	now        func() time.Time
}

func NewTransactionService(store SyncRequester, publisher Publisher, freshness FreshnessChecker, staleAfter time.Duration) *TransactionService {
	if freshness == nil {
		freshness = StaleChecker{}
	}
	return &TransactionService{
		store:      store,
		publisher:  publisher,
		freshness:  freshness,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// EnsureFresh queues a sync for every account whose local data cannot answer
// r. It returns the jobs it created. The current request is still served
// from whatever is stored; the sync benefits the next one.
func (s *TransactionService) EnsureFresh(ctx context.Context, ids []string, r core.DateRange) ([]storage.SyncJob, error) {
	if len(ids) == 0 || s.store == nil {
		return nil, nil
	}
	if _, ok := s.freshness.(NeverChecker); ok {
		return nil, nil
	}

	states, err := s.store.GetSyncStates(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("read sync state: %w", err)
	}

	now := s.now()
	var created []storage.SyncJob
	for _, id := range ids {
		var state *storage.SyncState
		if st, ok := states[id]; ok {
			state = &st
		}
		if !s.freshness.NeedsSync(state, r, now, s.staleAfter) {
			continue
		}

		job, isNew, err := s.store.EnqueueSyncJob(ctx, id, r)
		if err != nil {
			return created, fmt.Errorf("enqueue sync for %s: %w", id, err)
		}
		if !isNew {
			slog.DebugContext(ctx, "Sync already queued", "account_id", id, "job_id", job.ID)
			continue
		}
		created = append(created, job)
		log.NewStructuredLogger(log.FromContext(ctx).WithComponent(log.ComponentSync)).
			LogSyncQueued(ctx, job.ID, id, r)

		if err := s.publish(ctx, job); err != nil {
			slog.ErrorContext(ctx, "Failed to publish bank sync message",
				"job_id", job.ID,
				"account_id", id,
				"error", err)
		}
	}

	if len(created) > 0 {
		slog.InfoContext(ctx, "Queued bank syncs", "count", len(created), "range", r.String())
	}
	return created, nil
}

func (s *TransactionService) publish(ctx context.Context, job storage.SyncJob) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, job left for the poller", "job_id", job.ID)
		return nil
	}
	return s.publisher.PublishBankSync(ctx, amqp.NewBankSyncMessage(job.ID, job.AccountID, job.Range))
}

// Close closes the publisher when it owns a connection.
func (s *TransactionService) Close() error {
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close amqp: %w", err)
		}
	}
	return nil
}
