package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"meal-planner/internal/domain"
	"meal-planner/internal/domain/model"
	"meal-planner/internal/domain/ports/repository"
)

var _ repository.MealPlanRepository = (*mealPlanRepo)(nil)

type mealPlanRepo struct {
	pool *pgxpool.Pool
}

func NewMealPlanRepo(pool *pgxpool.Pool) repository.MealPlanRepository {
	return &mealPlanRepo{pool: pool}
}

const planColumns = `
id::text, owner_id, week_start::text, days, status, plan_snapshot, draft_snapshot,
draft_created_at, created_at, updated_at`

func (r *mealPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.MealPlan) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = model.MealPlanStatusGenerated
	}

	const q = `
INSERT INTO meal_plans
  (id, owner_id, week_start, days, status, plan_snapshot, draft_snapshot, draft_created_at, created_at, updated_at)
VALUES ($1, $2, $3::text::date, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
  status           = EXCLUDED.status,
  plan_snapshot    = EXCLUDED.plan_snapshot,
  draft_snapshot   = EXCLUDED.draft_snapshot,
  draft_created_at = EXCLUDED.draft_created_at,
  updated_at       = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.OwnerID, p.WeekStart, p.Days, string(p.Status),
		[]byte(p.PlanSnapshot), nullableJSON(p.DraftSnapshot), p.DraftCreatedAt, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *mealPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.MealPlan, error) {
	return r.find(ctx, tx, `SELECT `+planColumns+` FROM meal_plans WHERE id = $1;`, id)
}

func (r *mealPlanRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.MealPlan, error) {
	if _, ok := tx.(pgx.Tx); !ok {
		return nil, domain.ErrInvalidExecContext
	}
	return r.find(ctx, tx, `SELECT `+planColumns+` FROM meal_plans WHERE id = $1 FOR UPDATE;`, id)
}

func (r *mealPlanRepo) find(ctx context.Context, tx repository.Tx, q, id string) (*model.MealPlan, error) {
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var p model.MealPlan
	var status string
	var plan, draft []byte
	err = row.Scan(&p.ID, &p.OwnerID, &p.WeekStart, &p.Days, &status, &plan, &draft,
		&p.DraftCreatedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.Status = model.MealPlanStatus(status)
	p.PlanSnapshot = plan
	p.DraftSnapshot = draft
	return &p, nil
}

func (r *mealPlanRepo) SetDraft(ctx context.Context, tx repository.Tx, id string, snapshot json.RawMessage, at time.Time) error {
	const q = `
UPDATE meal_plans
SET status = 'draft', draft_snapshot = $2, draft_created_at = $3, updated_at = $3
WHERE id = $1;`

	tag, err := execSQL(ctx, r.pool, tx, q, id, []byte(snapshot), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nullableJSON(b json.RawMessage) interface{} {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}
