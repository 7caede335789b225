package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finey/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteRepository is the relational store behind the analysis engine, the
// goal endpoints and the bank sync queue. Amounts are stored as decimal text
// and timestamps as fixed-width RFC 3339 UTC text.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping backs the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const transactionColumns = `id, account_id, amount, currency_code, category, description, type, occurred_at, approved`

// FindByAccountsAndDateRange loads every transaction of the given accounts
// whose calendar day falls in [start, end], in one query.
func (r *SQLiteRepository) FindByAccountsAndDateRange(ctx context.Context, ids []string, start, end core.Date) ([]core.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(ids)+2)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, start.String(), end.String())

	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE account_id IN (` + placeholders(len(ids)) + `)
		AND occurred_on BETWEEN ? AND ?
		ORDER BY occurred_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func scanTransaction(rows *sql.Rows) (core.Transaction, error) {
	var (
		tx         core.Transaction
		amount     string
		typ        string
		occurredAt string
		approved   int64
	)
	if err := rows.Scan(&tx.ID, &tx.AccountID, &amount, &tx.CurrencyCode, &tx.Category,
		&tx.Description, &typ, &occurredAt, &approved); err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	var err error
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s amount %q: %w", tx.ID, amount, err)
	}
	if tx.OccurredAt, err = parseTime(occurredAt); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s date: %w", tx.ID, err)
	}
	tx.Type = core.TransactionType(typ)
	tx.Approved = approved != 0
	return tx, nil
}

// UpsertTransactions writes a batch atomically. Rows are keyed by the
// aggregator's transaction id, so replaying a sync is harmless.
func (r *SQLiteRepository) UpsertTransactions(ctx context.Context, txs []core.Transaction) error {
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("transaction %q: %w", tx.ID, err)
		}
	}

	return r.inTx(ctx, func(dbtx *sql.Tx) error {
		stmt, err := dbtx.PrepareContext(ctx, `INSERT INTO transactions
			(id, account_id, amount, currency_code, category, description, type, occurred_on, occurred_at, approved, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				account_id = excluded.account_id,
				amount = excluded.amount,
				currency_code = excluded.currency_code,
				category = excluded.category,
				description = excluded.description,
				type = excluded.type,
				occurred_on = excluded.occurred_on,
				occurred_at = excluded.occurred_at,
				approved = excluded.approved,
				updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		now := formatTime(time.Now())
		for _, tx := range txs {
			if _, err := stmt.ExecContext(ctx,
				tx.ID, tx.AccountID, tx.Amount.String(), tx.CurrencyCode, tx.Category, tx.Description,
				string(tx.Type), tx.Day().String(), formatTime(tx.OccurredAt), boolToInt(tx.Approved), now,
			); err != nil {
				return fmt.Errorf("upsert transaction %s: %w", tx.ID, err)
			}
		}
		return nil
	})
}

// FindAccounts returns the known accounts among ids. Unknown ids are skipped.
func (r *SQLiteRepository) FindAccounts(ctx context.Context, ids []string) ([]core.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, name, balance, currency_code, updated_at
		FROM accounts WHERE id IN (`+placeholders(len(ids))+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var (
			a                  core.Account
			balance, updatedAt string
		)
		if err := rows.Scan(&a.ID, &a.Name, &balance, &a.CurrencyCode, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		if a.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("account %s balance %q: %w", a.ID, balance, err)
		}
		if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("account %s updated_at: %w", a.ID, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpsertAccount(ctx context.Context, a core.Account) error {
	if strings.TrimSpace(a.ID) == "" {
		return core.ErrEmptyAccountID
	}
	updated := a.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO accounts (id, name, balance, currency_code, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			balance = excluded.balance,
			currency_code = excluded.currency_code,
			updated_at = excluded.updated_at`,
		a.ID, a.Name, a.Balance.String(), a.CurrencyCode, formatTime(updated))
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", a.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// timeLayout keeps a fixed width so text comparison in SQL orders correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
