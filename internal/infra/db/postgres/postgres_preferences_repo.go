package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"meal-planner/internal/domain"
	"meal-planner/internal/domain/model"
	"meal-planner/internal/domain/ports/repository"
)

var _ repository.PreferencesRepository = (*preferencesRepo)(nil)

type preferencesRepo struct {
	pool *pgxpool.Pool
}

func NewPreferencesRepo(pool *pgxpool.Pool) repository.PreferencesRepository {
	return &preferencesRepo{pool: pool}
}

func (r *preferencesRepo) FindByOwner(ctx context.Context, tx repository.Tx, ownerID string) (*model.Preferences, error) {
	const q = `
SELECT owner_id, shopping_day, lead_time_hours, diet_key, updated_at
FROM user_preferences
WHERE owner_id = $1;`

	row, err := pickRow(ctx, r.pool, tx, q, ownerID)
	if err != nil {
		return nil, err
	}
	var p model.Preferences
	var day int16
	var lead int16
	if err := row.Scan(&p.OwnerID, &day, &lead, &p.DietKey, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.ShoppingDay = time.Weekday(day)
	p.LeadTimeHours = int(lead)
	return &p, nil
}

func (r *preferencesRepo) Save(ctx context.Context, tx repository.Tx, p *model.Preferences) error {
	if p.OwnerID == "" {
		return domain.ErrInvalidArgument
	}
	p.UpdatedAt = time.Now()

	const q = `
INSERT INTO user_preferences (owner_id, shopping_day, lead_time_hours, diet_key, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (owner_id) DO UPDATE SET
  shopping_day    = EXCLUDED.shopping_day,
  lead_time_hours = EXCLUDED.lead_time_hours,
  diet_key        = EXCLUDED.diet_key,
  updated_at      = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q, p.OwnerID, int16(p.ShoppingDay), int16(p.LeadTimeHours), p.DietKey, p.UpdatedAt)
	return err
}
