package usecase

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"meal-planner/internal/domain/model"
	"meal-planner/internal/domain/ports/repository"
	"meal-planner/internal/infra/metrics"
)

// Compile-time check
var _ TickUseCase = (*tickUC)(nil)

type TickUseCase interface {
	// RunOneDueJobPrivileged claims and runs the globally oldest due job.
	RunOneDueJobPrivileged(ctx context.Context) (model.RunOutcome, error)
}

type tickUC struct {
	runner *jobUC
	plans  repository.MealPlanRepository
	tm     repository.TransactionManager
	log    *zerolog.Logger
}

func NewTickUseCase(runner *jobUC, plans repository.MealPlanRepository, tm repository.TransactionManager, logger *zerolog.Logger) *tickUC {
	l := logger.With().Str("component", "TickUseCase").Logger()
	return &tickUC{runner: runner, plans: plans, tm: tm, log: &l}
}

func (uc *tickUC) RunOneDueJobPrivileged(ctx context.Context) (model.RunOutcome, error) {
	token := NewLockToken()
	claimed, err := uc.runner.claimDue(ctx, scopeSystem, "", token, uc.runner.clock.Now())
	if err != nil {
		metrics.IncTick("error")
		return model.RunOutcome{}, err
	}
	if claimed == nil {
		metrics.IncTick(string(model.RunOutcomeNoDueJob))
		return model.NoDueJob(), nil
	}

	out, err := uc.runner.execute(ctx, claimed, token)
	if err != nil {
		metrics.IncTick("error")
		return model.RunOutcome{}, err
	}

	if out.Kind == model.RunOutcomeSucceeded {
		ctx, cancel := detached(ctx)
		defer cancel()
		promoted, err := uc.promoteDraft(ctx, out.PlanID)
		if err != nil {
			// The job already succeeded; the plan stays in its generated state.
			uc.log.Error().Err(err).Str("job_id", out.JobID).Str("plan_id", out.PlanID).Msg("draft promotion failed")
		} else {
			uc.log.Info().Str("job_id", out.JobID).Str("plan_id", out.PlanID).Bool("promoted", promoted).Msg("tick job succeeded")
			uc.runner.notices.send(ctx, planReadyNotice(claimed.OwnerID, out.JobID, out.PlanID))
		}
	}
	metrics.IncTick(string(out.Kind))
	return out, nil
}

// promoteDraft copies the generated snapshot into the draft columns unless the
// plan is already in draft review. It reports whether anything was written.
func (uc *tickUC) promoteDraft(ctx context.Context, planID string) (bool, error) {
	promoted := false
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		plan, err := uc.plans.FindByIDForUpdate(ctx, tx, planID)
		if err != nil {
			return fmt.Errorf("lock plan %s: %w", planID, err)
		}
		if plan.InDraftReview() {
			return nil
		}
		if err := uc.plans.SetDraft(ctx, tx, plan.ID, plan.PlanSnapshot, uc.runner.clock.Now()); err != nil {
			return fmt.Errorf("set draft %s: %w", planID, err)
		}
		promoted = true
		return nil
	})
	return promoted, err
}
