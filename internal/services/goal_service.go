package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"finey/internal/core"
	"finey/internal/schema"
)

type GoalStore interface {
	CreateGoal(ctx context.Context, g core.Goal) error
	ListGoals(ctx context.Context) ([]core.Goal, error)
}

// GoalService stores savings goals. Goal fields arrive sealed by the client
// and are kept sealed; only the target date is read in plaintext.
type GoalService struct {
	store     GoalStore
	validator *schema.Validator
	now       func() time.Time
}

func NewGoalService(store GoalStore, validator *schema.Validator) *GoalService {
	return &GoalService{store: store, validator: validator, now: time.Now}
}

// CreateGoal validates the payload and stores it under a new UUID.
func (s *GoalService) CreateGoal(ctx context.Context, values schema.Values) (core.Goal, error) {
	if err := s.validator.Validate(ctx, schema.Goal(s.now), values); err != nil {
		return core.Goal{}, err
	}

	date, err := core.ParseDate(values.First(schema.FieldGoalDate))
	if err != nil {
		return core.Goal{}, fmt.Errorf("parse goal date: %w", err)
	}

	g := core.Goal{
		ID:           uuid.NewString(),
		Name:         values.First(schema.FieldGoalName),
		Description:  values.First(schema.FieldGoalDescription),
		Icon:         values.First(schema.FieldGoalIcon),
		Color:        values.First(schema.FieldGoalColor),
		TargetAmount: values.First(schema.FieldGoalTarget),
		Date:         date,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateGoal(ctx, g); err != nil {
		return core.Goal{}, fmt.Errorf("save goal: %w", err)
	}

	slog.InfoContext(ctx, "Goal created", "goal_id", g.ID, "goal_date", g.Date.String())
	return g, nil
}

func (s *GoalService) ListGoals(ctx context.Context) ([]core.Goal, error) {
	goals, err := s.store.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}
