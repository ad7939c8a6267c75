package repository

import (
	"context"
	"encoding/json"
	"time"

	"meal-planner/internal/domain/model"
)

type MealPlanRepository interface {
	Save(ctx context.Context, tx Tx, p *model.MealPlan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.MealPlan, error)
	// FindByIDForUpdate must be called with a transaction; it row-locks the plan.
	FindByIDForUpdate(ctx context.Context, tx Tx, id string) (*model.MealPlan, error)
	SetDraft(ctx context.Context, tx Tx, id string, snapshot json.RawMessage, at time.Time) error
}
