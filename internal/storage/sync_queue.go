package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"finey/internal/core"
)

// Sync job states.
const (
	SyncPending    = "pending"
	SyncProcessing = "processing"
	SyncCompleted  = "completed"
	SyncFailed     = "failed"
)

// retryBaseDelay is the first retry delay; each further attempt doubles it.
const retryBaseDelay = 30 * time.Second

// SyncJob asks the worker to pull one account's transactions for a range.
// Ids are ULIDs, so ordering by id is ordering by creation.
type SyncJob struct {
	ID            string
	AccountID     string
	Range         core.DateRange
	Status        string
	Attempts      int64
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SyncQueueStats counts jobs per state.
type SyncQueueStats struct {
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
}

// SyncState records which days of an account are known to mirror the bank.
type SyncState struct {
	AccountID    string
	CoveredFrom  core.Date
	CoveredTo    core.Date
	LastSyncedAt time.Time
}

// Covers reports whether the recorded coverage includes the whole range.
func (s SyncState) Covers(r core.DateRange) bool {
	return !s.CoveredFrom.After(r.Start.Time) && !s.CoveredTo.Before(r.End.Time)
}

// EnqueueSyncJob adds a pending job unless the account already has one
// pending or processing. The second return value reports whether a new job
// was created; when it is false the existing job is returned.
func (r *SQLiteRepository) EnqueueSyncJob(ctx context.Context, accountID string, rng core.DateRange) (SyncJob, bool, error) {
	if accountID == "" {
		return SyncJob{}, false, core.ErrEmptyAccountID
	}

	var (
		job     SyncJob
		created bool
	)
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanSyncJob(tx.QueryRowContext(ctx, `SELECT `+syncJobColumns+` FROM sync_jobs
			WHERE account_id = ? AND status IN (?, ?) ORDER BY id LIMIT 1`,
			accountID, SyncPending, SyncProcessing))
		switch {
		case err == nil:
			job = existing
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		now := time.Now().UTC()
		job = SyncJob{
			ID:            ulid.Make().String(),
			AccountID:     accountID,
			Range:         rng,
			Status:        SyncPending,
			NextAttemptAt: now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO sync_jobs
			(id, account_id, range_start, range_end, status, attempts, last_error, next_attempt_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 0, '', ?, ?, ?)`,
			job.ID, accountID, rng.Start.String(), rng.End.String(), SyncPending,
			formatTime(now), formatTime(now), formatTime(now)); err != nil {
			return fmt.Errorf("insert sync job: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return SyncJob{}, false, err
	}
	return job, created, nil
}

func (r *SQLiteRepository) GetSyncJob(ctx context.Context, id string) (SyncJob, error) {
	job, err := scanSyncJob(r.db.QueryRowContext(ctx, `SELECT `+syncJobColumns+` FROM sync_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return SyncJob{}, fmt.Errorf("sync job %s: %w", id, ErrNotFound)
	}
	return job, err
}

// DequeueSyncBatch returns up to limit pending jobs that are due.
func (r *SQLiteRepository) DequeueSyncBatch(ctx context.Context, limit int64) ([]SyncJob, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+syncJobColumns+` FROM sync_jobs
		WHERE status = ? AND next_attempt_at <= ?
		ORDER BY id LIMIT ?`, SyncPending, formatTime(time.Now()), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending sync jobs: %w", err)
	}
	defer rows.Close()

	var out []SyncJob
	for rows.Next() {
		job, err := scanSyncJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync jobs: %w", err)
	}
	return out, nil
}

// MarkSyncProcessing claims a pending job. Claiming a job another worker
// already took returns ErrNotFound.
func (r *SQLiteRepository) MarkSyncProcessing(ctx context.Context, id string) error {
	return r.updateJob(ctx, `UPDATE sync_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		SyncProcessing, formatTime(time.Now()), id, SyncPending)
}

func (r *SQLiteRepository) MarkSyncComplete(ctx context.Context, id string) error {
	return r.updateJob(ctx, `UPDATE sync_jobs SET status = ?, last_error = '', updated_at = ? WHERE id = ?`,
		SyncCompleted, formatTime(time.Now()), id)
}

func (r *SQLiteRepository) MarkSyncFailed(ctx context.Context, id, msg string) error {
	return r.updateJob(ctx, `UPDATE sync_jobs SET status = ?, attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?`,
		SyncFailed, msg, formatTime(time.Now()), id)
}

// IncrementSyncAttempt puts a job back in the queue after a failed attempt,
// delayed by an exponential backoff.
func (r *SQLiteRepository) IncrementSyncAttempt(ctx context.Context, id, msg string) error {
	job, err := r.GetSyncJob(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now()
	next := now.Add(RetryDelay(job.Attempts + 1))
	return r.updateJob(ctx, `UPDATE sync_jobs SET status = ?, attempts = attempts + 1, last_error = ?,
		next_attempt_at = ?, updated_at = ? WHERE id = ?`,
		SyncPending, msg, formatTime(next), formatTime(now), id)
}

// RetryDelay is the wait before the given attempt number (1-based).
func RetryDelay(attempt int64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 8 {
		attempt = 8
	}
	return retryBaseDelay << (attempt - 1)
}

// ResetStaleProcessing returns jobs left in processing by a crashed worker to
// the queue.
func (r *SQLiteRepository) ResetStaleProcessing(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sync_jobs SET status = ?, updated_at = ? WHERE status = ?`,
		SyncPending, formatTime(time.Now()), SyncProcessing)
	if err != nil {
		return fmt.Errorf("reset stale sync jobs: %w", err)
	}
	return nil
}

// RetryFailedSyncs gives every failed job a fresh set of attempts.
func (r *SQLiteRepository) RetryFailedSyncs(ctx context.Context) error {
	now := formatTime(time.Now())
	_, err := r.db.ExecContext(ctx, `UPDATE sync_jobs SET status = ?, attempts = 0, next_attempt_at = ?, updated_at = ? WHERE status = ?`,
		SyncPending, now, now, SyncFailed)
	if err != nil {
		return fmt.Errorf("retry failed sync jobs: %w", err)
	}
	return nil
}

// CleanupCompletedSyncs deletes completed jobs last updated before cutoff.
func (r *SQLiteRepository) CleanupCompletedSyncs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_jobs WHERE status = ? AND updated_at < ?`,
		SyncCompleted, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("cleanup completed sync jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *SQLiteRepository) GetSyncQueueStats(ctx context.Context) (SyncQueueStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_jobs GROUP BY status`)
	if err != nil {
		return SyncQueueStats{}, fmt.Errorf("query sync stats: %w", err)
	}
	defer rows.Close()

	var stats SyncQueueStats
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return SyncQueueStats{}, fmt.Errorf("scan sync stats: %w", err)
		}
		switch status {
		case SyncPending:
			stats.Pending = n
		case SyncProcessing:
			stats.Processing = n
		case SyncCompleted:
			stats.Completed = n
		case SyncFailed:
			stats.Failed = n
		}
	}
	return stats, rows.Err()
}

// GetSyncStates returns the recorded coverage of the given accounts. Accounts
// never synced are absent from the map.
func (r *SQLiteRepository) GetSyncStates(ctx context.Context, ids []string) (map[string]SyncState, error) {
	out := make(map[string]SyncState, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, `SELECT account_id, covered_from, covered_to, last_synced_at
		FROM sync_state WHERE account_id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query sync state: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s                      SyncState
			from, to, lastSyncedAt string
		)
		if err := rows.Scan(&s.AccountID, &from, &to, &lastSyncedAt); err != nil {
			return nil, fmt.Errorf("scan sync state: %w", err)
		}
		if s.CoveredFrom, err = core.ParseDate(from); err != nil {
			return nil, fmt.Errorf("sync state %s: %w", s.AccountID, err)
		}
		if s.CoveredTo, err = core.ParseDate(to); err != nil {
			return nil, fmt.Errorf("sync state %s: %w", s.AccountID, err)
		}
		if s.LastSyncedAt, err = parseTime(lastSyncedAt); err != nil {
			return nil, fmt.Errorf("sync state %s: %w", s.AccountID, err)
		}
		out[s.AccountID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync state: %w", err)
	}
	return out, nil
}

// RecordSync merges a freshly synced range into the account's coverage. A
// range that overlaps or touches the current coverage extends it; a disjoint
// one replaces it, since the days in between were never pulled.
func (r *SQLiteRepository) RecordSync(ctx context.Context, accountID string, rng core.DateRange, at time.Time) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		var from, to string
		err := tx.QueryRowContext(ctx, `SELECT covered_from, covered_to FROM sync_state WHERE account_id = ?`, accountID).
			Scan(&from, &to)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read sync state: %w", err)
		}

		merged := rng
		if err == nil {
			cur := core.DateRange{}
			if cur.Start, err = core.ParseDate(from); err != nil {
				return fmt.Errorf("sync state %s: %w", accountID, err)
			}
			if cur.End, err = core.ParseDate(to); err != nil {
				return fmt.Errorf("sync state %s: %w", accountID, err)
			}
			if !rng.Start.After(cur.End.AddDays(1).Time) && !cur.Start.After(rng.End.AddDays(1).Time) {
				merged = rng.Span(cur)
			}
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO sync_state (account_id, covered_from, covered_to, last_synced_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(account_id) DO UPDATE SET
				covered_from = excluded.covered_from,
				covered_to = excluded.covered_to,
				last_synced_at = excluded.last_synced_at`,
			accountID, merged.Start.String(), merged.End.String(), formatTime(at))
		if err != nil {
			return fmt.Errorf("write sync state: %w", err)
		}
		return nil
	})
}

const syncJobColumns = `id, account_id, range_start, range_end, status, attempts, last_error, next_attempt_at, created_at, updated_at`

func scanSyncJob(s scanner) (SyncJob, error) {
	var (
		job                           SyncJob
		start, end                    string
		nextAttempt, created, updated string
	)
	if err := s.Scan(&job.ID, &job.AccountID, &start, &end, &job.Status, &job.Attempts, &job.LastError,
		&nextAttempt, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SyncJob{}, err
		}
		return SyncJob{}, fmt.Errorf("scan sync job: %w", err)
	}

	var err error
	if job.Range.Start, err = core.ParseDate(start); err != nil {
		return SyncJob{}, fmt.Errorf("sync job %s range: %w", job.ID, err)
	}
	if job.Range.End, err = core.ParseDate(end); err != nil {
		return SyncJob{}, fmt.Errorf("sync job %s range: %w", job.ID, err)
	}
	for _, f := range []struct {
		dst *time.Time
		src string
	}{{&job.NextAttemptAt, nextAttempt}, {&job.CreatedAt, created}, {&job.UpdatedAt, updated}} {
		if *f.dst, err = parseTime(f.src); err != nil {
			return SyncJob{}, fmt.Errorf("sync job %s timestamp: %w", job.ID, err)
		}
	}
	return job, nil
}

func (r *SQLiteRepository) updateJob(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update sync job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sync job: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
