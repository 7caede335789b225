package adapters

import (
	"context"
	"log/slog"

	"finey/internal/core"
	"finey/internal/storage"
)

// Store is the read side the analysis engine needs from the transaction
// mirror. *storage.SQLiteRepository and *memory.Store implement it.
type Store interface {
	FindByAccountsAndDateRange(ctx context.Context, accountIDs []string, start, end core.Date) ([]core.Transaction, error)
	FindAccounts(ctx context.Context, accountIDs []string) ([]core.Account, error)
	Ping(ctx context.Context) error
}

// Freshener queues bank syncs for accounts whose local data is out of date.
// *services.TransactionService implements it.
type Freshener interface {
	EnsureFresh(ctx context.Context, ids []string, r core.DateRange) ([]storage.SyncJob, error)
}

// SyncingStore adapts a Store so every range read first asks the freshener
// to queue whatever syncs it needs. The read itself is never blocked on the
// bank: it answers from the local mirror.
type SyncingStore struct {
	Store
	fresh Freshener
}

func NewSyncingStore(store Store, fresh Freshener) *SyncingStore {
	return &SyncingStore{Store: store, fresh: fresh}
}

// FindByAccountsAndDateRange implements analysis.TransactionStore
func (s *SyncingStore) FindByAccountsAndDateRange(ctx context.Context, ids []string, start, end core.Date) ([]core.Transaction, error) {
	if s.fresh != nil && len(ids) > 0 {
		if _, err := s.fresh.EnsureFresh(ctx, ids, core.DateRange{Start: start, End: end}); err != nil {
			slog.WarnContext(ctx, "Failed to queue bank sync", "accounts", len(ids), "error", err)
		}
	}
	return s.Store.FindByAccountsAndDateRange(ctx, ids, start, end)
}
