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

var _ repository.MealPlanJobRepository = (*mealPlanJobRepo)(nil)

type mealPlanJobRepo struct {
	pool *pgxpool.Pool
}

func NewMealPlanJobRepo(pool *pgxpool.Pool) *mealPlanJobRepo {
	return &mealPlanJobRepo{pool: pool}
}

const jobColumns = `
id::text, owner_id, status, scheduled_for, week_start::text, attempt, max_attempts,
locked_at, locked_by, last_error_code, last_error_message, request_snapshot,
result_plan_id::text, created_at, updated_at`

// UpsertScheduled relies on the (owner_id, week_start) unique index. The
// conditional DO UPDATE returns no row when the existing job left scheduled,
// in which case the row is read back unchanged.
func (r *mealPlanJobRepo) UpsertScheduled(ctx context.Context, tx repository.Tx, job *model.MealPlanJob) (*repository.UpsertResult, error) {
	const q = `
INSERT INTO meal_plan_jobs
  (id, owner_id, status, scheduled_for, week_start, attempt, max_attempts, request_snapshot, created_at, updated_at)
VALUES ($1, $2, 'scheduled', $3, $4::text::date, 0, $5, $6, $7, $7)
ON CONFLICT (owner_id, week_start) DO UPDATE SET
  scheduled_for = EXCLUDED.scheduled_for,
  updated_at    = EXCLUDED.updated_at
WHERE meal_plan_jobs.status = 'scheduled'
RETURNING id::text, scheduled_for, status;`

	now := job.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}
	row, err := pickRow(ctx, r.pool, tx, q,
		job.ID, job.OwnerID, job.ScheduledFor, job.WeekStart, job.MaxAttempts, []byte(job.RequestSnapshot), now)
	if err != nil {
		return nil, err
	}

	res := repository.UpsertResult{Written: true}
	var status string
	err = row.Scan(&res.ID, &res.ScheduledFor, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		const sel = `
SELECT id::text, scheduled_for, status
FROM meal_plan_jobs
WHERE owner_id = $1 AND week_start = $2::text::date;`
		row, err = pickRow(ctx, r.pool, tx, sel, job.OwnerID, job.WeekStart)
		if err != nil {
			return nil, err
		}
		res.Written = false
		err = row.Scan(&res.ID, &res.ScheduledFor, &status)
	}
	if err != nil {
		return nil, err
	}
	res.Status = model.JobStatus(status)
	return &res, nil
}

func (r *mealPlanJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.MealPlanJob, error) {
	q := `SELECT ` + jobColumns + ` FROM meal_plan_jobs WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (r *mealPlanJobRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, limit int) ([]*model.MealPlanJob, error) {
	q := `SELECT ` + jobColumns + `
FROM meal_plan_jobs
WHERE owner_id = $1
ORDER BY scheduled_for DESC
LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, ownerID, limit)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

func (r *mealPlanJobRepo) FindDueCandidates(ctx context.Context, tx repository.Tx, f repository.DueFilter) ([]*model.MealPlanJob, error) {
	statuses := make([]string, 0, len(f.Statuses))
	for _, s := range f.Statuses {
		statuses = append(statuses, string(s))
	}
	if len(statuses) == 0 {
		return nil, domain.ErrInvalidArgument
	}

	q := `SELECT ` + jobColumns + `
FROM meal_plan_jobs
WHERE status = ANY($1::text[])
  AND locked_at IS NULL
  AND attempt < max_attempts
  AND scheduled_for <= $2
  AND ($3::text = '' OR owner_id = $3::text)
ORDER BY scheduled_for ASC
LIMIT $4;`
	rows, err := queryRows(ctx, r.pool, tx, q, statuses, f.Now, f.OwnerID, f.Limit)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

func (r *mealPlanJobRepo) TryLock(ctx context.Context, tx repository.Tx, req repository.LockRequest) (*model.ClaimedJob, error) {
	const q = `
UPDATE meal_plan_jobs
SET status = 'running',
    locked_at = $5,
    locked_by = $4,
    attempt = attempt + 1,
    updated_at = $5
WHERE id = $1
  AND status = $2
  AND locked_at IS NULL
  AND attempt = $3
  AND attempt < max_attempts
RETURNING id::text, owner_id, scheduled_for, attempt, max_attempts, request_snapshot;`

	row, err := pickRow(ctx, r.pool, tx, q, req.JobID, string(req.ObservedStatus), req.ObservedAttempt, req.Token, req.Now)
	if err != nil {
		return nil, err
	}
	var c model.ClaimedJob
	var snap []byte
	if err := row.Scan(&c.ID, &c.OwnerID, &c.ScheduledFor, &c.Attempt, &c.MaxAttempts, &snap); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.RequestSnapshot = snap
	return &c, nil
}

func (r *mealPlanJobRepo) MarkSucceeded(ctx context.Context, tx repository.Tx, id, token, planID string, now time.Time) (bool, error) {
	const q = `
UPDATE meal_plan_jobs
SET status = 'succeeded',
    result_plan_id = $3,
    last_error_code = NULL,
    last_error_message = NULL,
    locked_at = NULL,
    locked_by = NULL,
    updated_at = $4
WHERE id = $1 AND status = 'running' AND locked_by = $2;`

	tag, err := execSQL(ctx, r.pool, tx, q, id, token, planID, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *mealPlanJobRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, token, code, message string, now time.Time) (*repository.FailResult, error) {
	const q = `
UPDATE meal_plan_jobs
SET status = CASE WHEN attempt >= max_attempts THEN 'failed' ELSE 'scheduled' END,
    last_error_code = $3,
    last_error_message = $4,
    locked_at = NULL,
    locked_by = NULL,
    updated_at = $5
WHERE id = $1 AND status = 'running' AND locked_by = $2
RETURNING owner_id, status, attempt;`

	row, err := pickRow(ctx, r.pool, tx, q, id, token, code, message, now)
	if err != nil {
		return nil, err
	}
	var res repository.FailResult
	var status string
	if err := row.Scan(&res.OwnerID, &status, &res.Attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	res.Status = model.JobStatus(status)
	return &res, nil
}

func scanJob(row pgx.Row) (*model.MealPlanJob, error) {
	var j model.MealPlanJob
	var status string
	var snap []byte
	err := row.Scan(
		&j.ID, &j.OwnerID, &status, &j.ScheduledFor, &j.WeekStart, &j.Attempt, &j.MaxAttempts,
		&j.LockedAt, &j.LockedBy, &j.LastErrorCode, &j.LastErrorMessage, &snap,
		&j.ResultPlanID, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Status = model.JobStatus(status)
	j.RequestSnapshot = snap
	return &j, nil
}

func collectJobs(rows pgx.Rows) ([]*model.MealPlanJob, error) {
	defer rows.Close()
	var out []*model.MealPlanJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
