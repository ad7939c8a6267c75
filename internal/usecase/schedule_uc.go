package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"meal-planner/internal/domain"
	"meal-planner/internal/domain/model"
	"meal-planner/internal/domain/ports/repository"
	"meal-planner/internal/infra/metrics"
)

// Compile-time check
var _ ScheduleUseCase = (*scheduleUC)(nil)

type ScheduleResult struct {
	JobID        string
	ScheduledFor time.Time
	WeekStart    string
}

type ScheduleUseCase interface {
	// ScheduleNextRun writes (or moves) the owner's generation job for the coming week.
	ScheduleNextRun(ctx context.Context, ownerID string) (*ScheduleResult, error)
}

type scheduleUC struct {
	jobs        repository.MealPlanJobRepository
	prefs       repository.PreferencesRepository
	cal         *Calendar
	clock       Clock
	maxAttempts int
	log         *zerolog.Logger
}

func NewScheduleUseCase(
	jobs repository.MealPlanJobRepository,
	prefs repository.PreferencesRepository,
	cal *Calendar,
	clock Clock,
	maxAttempts int,
	logger *zerolog.Logger,
) *scheduleUC {
	if clock == nil {
		clock = SystemClock
	}
	if maxAttempts <= 0 {
		maxAttempts = model.DefaultMaxAttempts
	}
	l := logger.With().Str("component", "ScheduleUseCase").Logger()
	return &scheduleUC{jobs: jobs, prefs: prefs, cal: cal, clock: clock, maxAttempts: maxAttempts, log: &l}
}

func (uc *scheduleUC) ScheduleNextRun(ctx context.Context, ownerID string) (*ScheduleResult, error) {
	if ownerID == "" {
		return nil, domain.ErrAuth
	}

	prefs, err := uc.prefs.FindByOwner(ctx, repository.NoTX, ownerID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		prefs = model.DefaultPreferences(ownerID)
	case err != nil:
		uc.log.Error().Err(err).Str("owner_id", ownerID).Msg("failed to load preferences")
		return nil, fmt.Errorf("%w: load preferences: %v", domain.ErrStorage, err)
	}
	prefs.Normalize()

	now := uc.clock.Now()
	snap := model.RequestSnapshot{
		WeekStart: uc.cal.WeekStart(now),
		Days:      model.DefaultPlanDays,
		Settings: model.GenerationSettings{
			DietKey:       prefs.DietKey,
			ShoppingDay:   int(prefs.ShoppingDay),
			LeadTimeHours: prefs.LeadTimeHours,
			Timezone:      uc.cal.Loc.String(),
		},
	}
	raw, err := snap.Encode()
	if err != nil {
		return nil, err
	}

	job := &model.MealPlanJob{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		Status:          model.JobStatusScheduled,
		ScheduledFor:    uc.cal.NextRun(now, prefs.ShoppingDay, prefs.LeadTimeHours),
		WeekStart:       snap.WeekStart,
		MaxAttempts:     uc.maxAttempts,
		RequestSnapshot: raw,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	res, err := uc.jobs.UpsertScheduled(ctx, repository.NoTX, job)
	if err != nil {
		uc.log.Error().Err(err).Str("owner_id", ownerID).Msg("failed to upsert scheduled job")
		return nil, fmt.Errorf("%w: upsert job: %v", domain.ErrStorage, err)
	}

	if res.Written {
		metrics.IncJobScheduled("written")
	} else {
		metrics.IncJobScheduled("unchanged")
		uc.log.Debug().Str("job_id", res.ID).Str("status", string(res.Status)).Msg("job for week already past scheduling; left untouched")
	}
	return &ScheduleResult{JobID: res.ID, ScheduledFor: res.ScheduledFor.UTC(), WeekStart: snap.WeekStart}, nil
}
