//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"meal-planner/internal/domain"
	"meal-planner/internal/domain/model"
	"meal-planner/internal/domain/ports/adapter"
	"meal-planner/internal/usecase"
)

type tickFixture struct {
	*jobFixture
	plans *memPlanRepo
	tick  usecase.TickUseCase
}

func newTickFixture() *tickFixture {
	f := &tickFixture{
		jobFixture: &jobFixture{
			jobs:     newMemJobRepo(),
			builder:  &mockPlanBuilder{},
			notifier: &mockNotifier{},
			clock:    newFixedClock(jobNow),
		},
		plans: newMemPlanRepo(),
	}
	runner := usecase.NewJobUseCase(f.jobs, f.builder, f.notifier, f.clock, 10, newTestLogger())
	f.uc = runner
	f.tick = usecase.NewTickUseCase(runner, f.plans, mockTxManager{}, newTestLogger())

	// The builder persists a generated plan like the real one does.
	f.builder.CreatePlanFunc = func(ctx context.Context, ownerID string, req adapter.PlanRequest) (string, error) {
		p := &model.MealPlan{
			ID:           uuid.NewString(),
			OwnerID:      ownerID,
			WeekStart:    req.WeekStart,
			Days:         req.Days,
			Status:       model.MealPlanStatusGenerated,
			PlanSnapshot: json.RawMessage(`{"days":[]}`),
		}
		return p.ID, f.plans.Save(ctx, nil, p)
	}
	return f
}

func TestTickUseCase_RunOneDueJobPrivileged(t *testing.T) {
	ctx := context.Background()

	t.Run("should report no due job", func(t *testing.T) {
		f := newTickFixture()

		out, err := f.tick.RunOneDueJobPrivileged(ctx)

		if err != nil || out.Kind != model.RunOutcomeNoDueJob {
			t.Errorf("expected no_due_job, but got %+v, %v", out, err)
		}
	})

	t.Run("should run the globally oldest due job and promote its plan to draft", func(t *testing.T) {
		// --- Arrange ---
		f := newTickFixture()
		oldest := f.jobs.seed(&model.MealPlanJob{OwnerID: "user-2", WeekStart: "2026-01-12", ScheduledFor: jobNow.Add(-2 * time.Hour)})
		f.dueJob("user-1")

		// --- Act ---
		out, err := f.tick.RunOneDueJobPrivileged(ctx)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if out.Kind != model.RunOutcomeSucceeded || out.JobID != oldest.ID {
			t.Fatalf("expected job %s to succeed, but got %+v", oldest.ID, out)
		}
		plan, err := f.plans.FindByID(ctx, nil, out.PlanID)
		if err != nil {
			t.Fatalf("expected plan to exist, but got: %v", err)
		}
		if plan.Status != model.MealPlanStatusDraft || plan.DraftCreatedAt == nil {
			t.Errorf("expected plan in draft review, but got %+v", plan)
		}
		if string(plan.DraftSnapshot) != string(plan.PlanSnapshot) {
			t.Errorf("expected draft snapshot to copy plan snapshot, but got %s", plan.DraftSnapshot)
		}
		ready := f.notifier.ofType(model.NotificationPlanReady)
		if len(ready) != 1 || ready[0].OwnerID != "user-2" {
			t.Errorf("expected one ready notification for user-2, but got %+v", ready)
		}
	})

	t.Run("should not touch a plan that is already in draft review", func(t *testing.T) {
		// --- Arrange ---
		f := newTickFixture()
		f.dueJob("user-1")
		draftedAt := jobNow.Add(-24 * time.Hour)
		existing := &model.MealPlan{
			ID:             uuid.NewString(),
			OwnerID:        "user-1",
			Status:         model.MealPlanStatusDraft,
			PlanSnapshot:   json.RawMessage(`{"days":["new"]}`),
			DraftSnapshot:  json.RawMessage(`{"days":["old"]}`),
			DraftCreatedAt: &draftedAt,
		}
		_ = f.plans.Save(ctx, nil, existing)
		f.builder.CreatePlanFunc = func(ctx context.Context, ownerID string, req adapter.PlanRequest) (string, error) {
			return existing.ID, nil
		}

		// --- Act ---
		out, err := f.tick.RunOneDueJobPrivileged(ctx)

		// --- Assert ---
		if err != nil || out.Kind != model.RunOutcomeSucceeded {
			t.Fatalf("expected success, but got %+v, %v", out, err)
		}
		plan, _ := f.plans.FindByID(ctx, nil, existing.ID)
		if string(plan.DraftSnapshot) != `{"days":["old"]}` || !plan.DraftCreatedAt.Equal(draftedAt) {
			t.Errorf("expected draft to be unchanged, but got %s at %v", plan.DraftSnapshot, plan.DraftCreatedAt)
		}
	})

	t.Run("should resolve a failing job without aborting the tick", func(t *testing.T) {
		f := newTickFixture()
		job := f.jobs.seed(&model.MealPlanJob{OwnerID: "user-1", WeekStart: "2026-01-12", ScheduledFor: jobNow, Attempt: 2, MaxAttempts: 3})
		f.builder.CreatePlanFunc = func(ctx context.Context, ownerID string, req adapter.PlanRequest) (string, error) {
			return "", &adapter.PlanBuildError{Code: adapter.PlanErrInsufficientData, Message: "no recipes for diet"}
		}

		out, err := f.tick.RunOneDueJobPrivileged(ctx)

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if out.Kind != model.RunOutcomeFailed || out.Status != model.JobStatusFailed || out.ErrorCode != adapter.PlanErrInsufficientData {
			t.Errorf("unexpected outcome: %+v", out)
		}
		if f.jobs.get(job.ID).Status != model.JobStatusFailed {
			t.Error("expected job to be failed")
		}
		if n := len(f.notifier.ofType(model.NotificationGenerationFailed)); n != 1 {
			t.Errorf("expected one failure notification, but got %d", n)
		}
		if n := len(f.notifier.ofType(model.NotificationPlanReady)); n != 0 {
			t.Errorf("expected no ready notification, but got %d", n)
		}
	})

	t.Run("should keep the success outcome when promotion fails", func(t *testing.T) {
		f := newTickFixture()
		f.dueJob("user-1")
		f.builder.CreatePlanFunc = func(ctx context.Context, ownerID string, req adapter.PlanRequest) (string, error) {
			return uuid.NewString(), nil // plan row never written
		}

		out, err := f.tick.RunOneDueJobPrivileged(ctx)

		if err != nil || out.Kind != model.RunOutcomeSucceeded {
			t.Errorf("expected success, but got %+v, %v", out, err)
		}
		if n := len(f.notifier.ofType(model.NotificationPlanReady)); n != 0 {
			t.Errorf("expected no ready notification, but got %d", n)
		}
	})

	t.Run("should promote and notify after the tick context is cancelled", func(t *testing.T) {
		// --- Arrange ---
		f := newTickFixture()
		job := f.dueJob("user-1")
		tickCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		save := f.builder.CreatePlanFunc
		f.builder.CreatePlanFunc = func(ctx context.Context, ownerID string, req adapter.PlanRequest) (string, error) {
			id, err := save(ctx, ownerID, req)
			cancel()
			return id, err
		}

		// --- Act ---
		out, err := f.tick.RunOneDueJobPrivileged(tickCtx)

		// --- Assert ---
		if err != nil || out.Kind != model.RunOutcomeSucceeded {
			t.Fatalf("expected success, but got %+v, %v", out, err)
		}
		if f.jobs.get(job.ID).Locked() {
			t.Error("expected the job lock to be released")
		}
		plan, _ := f.plans.FindByID(ctx, nil, out.PlanID)
		if plan.Status != model.MealPlanStatusDraft {
			t.Errorf("expected plan to be promoted to draft, but got %s", plan.Status)
		}
		if n := len(f.notifier.ofType(model.NotificationPlanReady)); n != 1 {
			t.Errorf("expected one ready notification, but got %d", n)
		}
	})

	t.Run("should surface storage errors", func(t *testing.T) {
		f := newTickFixture()
		f.jobs.scanErr = errors.New("db down")

		_, err := f.tick.RunOneDueJobPrivileged(ctx)

		if !errors.Is(err, domain.ErrStorage) {
			t.Errorf("expected ErrStorage, but got %v", err)
		}
	})
}
