package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finey/internal/core"
)

// GetBudgetCeilings sums, per category, the ceilings of the selected
// accounts plus the global ceilings stored under an empty account id.
func (r *SQLiteRepository) GetBudgetCeilings(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	args := []any{""}
	for _, id := range ids {
		args = append(args, id)
	}
	query := `SELECT category, ceiling FROM budgets WHERE account_id = ?`
	if len(ids) > 0 {
		query += ` OR account_id IN (` + placeholders(len(ids)) + `)`
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	out := map[string]decimal.Decimal{}
	for rows.Next() {
		var category, ceiling string
		if err := rows.Scan(&category, &ceiling); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		v, err := decimal.NewFromString(ceiling)
		if err != nil {
			return nil, fmt.Errorf("budget %s ceiling %q: %w", category, ceiling, err)
		}
		out[category] = out[category].Add(v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

// SetBudget stores a ceiling. An empty accountID makes it global.
func (r *SQLiteRepository) SetBudget(ctx context.Context, accountID, category string, ceiling decimal.Decimal) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return fmt.Errorf("budget category is required")
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO budgets (account_id, category, ceiling) VALUES (?, ?, ?)
		ON CONFLICT(account_id, category) DO UPDATE SET ceiling = excluded.ceiling`,
		strings.TrimSpace(accountID), category, ceiling.String())
	if err != nil {
		return fmt.Errorf("set budget %s: %w", category, err)
	}
	return nil
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) error {
	created := g.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO goals
		(id, name, description, icon, color, target_amount, goal_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Description, g.Icon, g.Color, g.TargetAmount, g.Date.String(), formatTime(created))
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

// ListGoals returns goals ordered by target date, then creation time.
func (r *SQLiteRepository) ListGoals(ctx context.Context) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description, icon, color, target_amount, goal_date, created_at
		FROM goals ORDER BY goal_date, created_at`)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGoal(s scanner) (core.Goal, error) {
	var (
		g                 core.Goal
		goalDate, created string
	)
	if err := s.Scan(&g.ID, &g.Name, &g.Description, &g.Icon, &g.Color, &g.TargetAmount, &goalDate, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Goal{}, err
		}
		return core.Goal{}, fmt.Errorf("scan goal: %w", err)
	}
	var err error
	if g.Date, err = core.ParseDate(goalDate); err != nil {
		return core.Goal{}, fmt.Errorf("goal %s date: %w", g.ID, err)
	}
	if g.CreatedAt, err = parseTime(created); err != nil {
		return core.Goal{}, fmt.Errorf("goal %s created_at: %w", g.ID, err)
	}
	return g, nil
}
