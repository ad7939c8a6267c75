package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"meal-planner/internal/domain"
	"meal-planner/internal/domain/model"
	"meal-planner/internal/domain/ports/adapter"
	"meal-planner/internal/domain/ports/repository"
	"meal-planner/internal/infra/metrics"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

const (
	DefaultClaimBatchSize = 10

	DefaultListLimit = 20
	MaxListLimit     = 100

	minLockTokenLen = 8
	maxLockTokenLen = 128

	// closeTimeout bounds the writes that close an attempt once generation
	// returned, independent of the caller's deadline.
	closeTimeout = 15 * time.Second
)

// Claim scopes, used as metric labels.
const (
	scopeUser   = "user"
	scopeManual = "manual"
	scopeSystem = "system"
)

type JobUseCase interface {
	// ClaimDueJob locks the owner's oldest due scheduled job under lockToken.
	// It returns nil, nil when nothing is claimable or the race was lost.
	ClaimDueJob(ctx context.Context, ownerID, lockToken string, now *time.Time) (*model.ClaimedJob, error)
	// ClaimSpecificJob locks one job of the owner for a manual run.
	// A job that used all of its attempts answers INVALID_STATE, failed or not.
	ClaimSpecificJob(ctx context.Context, ownerID, jobID, lockToken string) (*model.ClaimedJob, error)
	CompleteJob(ctx context.Context, jobID, lockToken, resultPlanID string) (model.JobStatus, error)
	FailJob(ctx context.Context, jobID, lockToken, code, message string) (model.JobStatus, error)

	RunOneDueJob(ctx context.Context, ownerID string) (model.RunOutcome, error)
	RunJobNow(ctx context.Context, ownerID, jobID string) (model.RunOutcome, error)
	ListJobs(ctx context.Context, ownerID string, limit int) ([]*model.MealPlanJob, error)
}

type jobUC struct {
	jobs    repository.MealPlanJobRepository
	builder adapter.PlanBuilder
	notices notices
	clock   Clock
	batch   int
	log     *zerolog.Logger
}

func NewJobUseCase(
	jobs repository.MealPlanJobRepository,
	builder adapter.PlanBuilder,
	notifier adapter.Notifier,
	clock Clock,
	claimBatchSize int,
	logger *zerolog.Logger,
) *jobUC {
	if clock == nil {
		clock = SystemClock
	}
	if claimBatchSize <= 0 {
		claimBatchSize = DefaultClaimBatchSize
	}
	l := logger.With().Str("component", "JobUseCase").Logger()
	return &jobUC{
		jobs:    jobs,
		builder: builder,
		notices: notices{n: notifier, log: &l},
		clock:   clock,
		batch:   claimBatchSize,
		log:     &l,
	}
}

// detached keeps ctx values but drops its cancellation, so a claimed job is
// always closed even after the caller went away.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
}

// NewLockToken returns a fresh opaque claim token.
func NewLockToken() string {
	return ulid.Make().String()
}

func validateLockToken(token string) error {
	if n := len(token); n < minLockTokenLen || n > maxLockTokenLen {
		return fmt.Errorf("%w: lock token must be %d..%d characters", domain.ErrValidation, minLockTokenLen, maxLockTokenLen)
	}
	return nil
}

func validateJobID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: job id %q is not a uuid", domain.ErrValidation, id)
	}
	return nil
}

func (uc *jobUC) ClaimDueJob(ctx context.Context, ownerID, lockToken string, now *time.Time) (*model.ClaimedJob, error) {
	if ownerID == "" {
		return nil, domain.ErrAuth
	}
	if err := validateLockToken(lockToken); err != nil {
		return nil, err
	}
	at := uc.clock.Now()
	if now != nil {
		at = *now
	}
	return uc.claimDue(ctx, scopeUser, ownerID, lockToken, at)
}

// claimDue scans a bounded batch of due jobs and issues one compare-and-set
// on the first candidate with attempts left. An empty ownerID scans all owners.
func (uc *jobUC) claimDue(ctx context.Context, scope, ownerID, token string, now time.Time) (*model.ClaimedJob, error) {
	candidates, err := uc.jobs.FindDueCandidates(ctx, repository.NoTX, repository.DueFilter{
		OwnerID:  ownerID,
		Statuses: []model.JobStatus{model.JobStatusScheduled},
		Now:      now,
		Limit:    uc.batch,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan due jobs: %v", domain.ErrStorage, err)
	}

	var pick *model.MealPlanJob
	for _, c := range candidates {
		if c.AttemptsLeft() {
			pick = c
			break
		}
	}
	if pick == nil {
		return nil, nil
	}

	claimed, err := uc.jobs.TryLock(ctx, repository.NoTX, repository.LockRequest{
		JobID:           pick.ID,
		ObservedStatus:  pick.Status,
		ObservedAttempt: pick.Attempt,
		Token:           token,
		Now:             now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: lock job: %v", domain.ErrStorage, err)
	}
	if claimed == nil {
		metrics.IncClaimRace(scope)
		uc.log.Debug().Str("job_id", pick.ID).Str("scope", scope).Msg("claim lost race")
		return nil, nil
	}
	metrics.IncJobClaimed(scope)
	return claimed, nil
}

func (uc *jobUC) ClaimSpecificJob(ctx context.Context, ownerID, jobID, lockToken string) (*model.ClaimedJob, error) {
	if ownerID == "" {
		return nil, domain.ErrAuth
	}
	if err := validateJobID(jobID); err != nil {
		return nil, err
	}
	if err := validateLockToken(lockToken); err != nil {
		return nil, err
	}

	job, err := uc.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrLockMismatch
		}
		return nil, fmt.Errorf("%w: load job: %v", domain.ErrStorage, err)
	}
	if job.OwnerID != ownerID {
		return nil, domain.ErrLockMismatch
	}
	if !job.Claimable(model.JobStatusScheduled, model.JobStatusFailed) {
		return nil, fmt.Errorf("%w: job is %s with %d/%d attempts", domain.ErrInvalidJobState, job.Status, job.Attempt, job.MaxAttempts)
	}

	claimed, err := uc.jobs.TryLock(ctx, repository.NoTX, repository.LockRequest{
		JobID:           job.ID,
		ObservedStatus:  job.Status,
		ObservedAttempt: job.Attempt,
		Token:           lockToken,
		Now:             uc.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: lock job: %v", domain.ErrStorage, err)
	}
	if claimed == nil {
		metrics.IncClaimRace(scopeManual)
		return nil, domain.ErrLockMismatch
	}
	metrics.IncJobClaimed(scopeManual)
	return claimed, nil
}

func (uc *jobUC) CompleteJob(ctx context.Context, jobID, lockToken, resultPlanID string) (model.JobStatus, error) {
	if err := validateJobID(jobID); err != nil {
		return "", err
	}
	if err := validateLockToken(lockToken); err != nil {
		return "", err
	}
	ok, err := uc.jobs.MarkSucceeded(ctx, repository.NoTX, jobID, lockToken, resultPlanID, uc.clock.Now())
	if err != nil {
		return "", fmt.Errorf("%w: complete job: %v", domain.ErrStorage, err)
	}
	if !ok {
		return "", domain.ErrLockMismatch
	}
	metrics.IncJobFinished(string(model.JobStatusSucceeded))
	return model.JobStatusSucceeded, nil
}

func (uc *jobUC) FailJob(ctx context.Context, jobID, lockToken, code, message string) (model.JobStatus, error) {
	if err := validateJobID(jobID); err != nil {
		return "", err
	}
	if err := validateLockToken(lockToken); err != nil {
		return "", err
	}
	code, message = model.BoundFailure(code, message)

	res, err := uc.jobs.MarkFailed(ctx, repository.NoTX, jobID, lockToken, code, message, uc.clock.Now())
	if err != nil {
		return "", fmt.Errorf("%w: fail job: %v", domain.ErrStorage, err)
	}
	if res == nil {
		return "", domain.ErrLockMismatch
	}
	metrics.IncJobFinished(string(res.Status))

	if res.Status == model.JobStatusFailed {
		uc.log.Warn().Str("job_id", jobID).Str("owner_id", res.OwnerID).Str("code", code).Msg("job failed permanently")
		uc.notices.send(ctx, generationFailedNotice(res.OwnerID, jobID, res.Attempt, code, message))
	}
	return res.Status, nil
}

func (uc *jobUC) RunOneDueJob(ctx context.Context, ownerID string) (model.RunOutcome, error) {
	token := NewLockToken()
	claimed, err := uc.ClaimDueJob(ctx, ownerID, token, nil)
	if err != nil {
		return model.RunOutcome{}, err
	}
	if claimed == nil {
		return model.NoDueJob(), nil
	}
	return uc.execute(ctx, claimed, token)
}

func (uc *jobUC) RunJobNow(ctx context.Context, ownerID, jobID string) (model.RunOutcome, error) {
	token := NewLockToken()
	claimed, err := uc.ClaimSpecificJob(ctx, ownerID, jobID, token)
	if err != nil {
		return model.RunOutcome{}, err
	}
	return uc.execute(ctx, claimed, token)
}

func (uc *jobUC) ListJobs(ctx context.Context, ownerID string, limit int) ([]*model.MealPlanJob, error) {
	if ownerID == "" {
		return nil, domain.ErrAuth
	}
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	jobs, err := uc.jobs.ListByOwner(ctx, repository.NoTX, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %v", domain.ErrStorage, err)
	}
	return jobs, nil
}

// execute runs generation for a job claimed under token and closes the
// attempt on a detached context. Generation failures are recorded on the job
// and reported in the outcome. A failed success write is recorded as a
// DB_ERROR failure so the lock is released; only errors from closing the
// attempt are returned.
func (uc *jobUC) execute(ctx context.Context, job *model.ClaimedJob, token string) (model.RunOutcome, error) {
	l := uc.log.With().Str("job_id", job.ID).Int("attempt", job.Attempt).Logger()
	start := time.Now()

	planID, genErr := uc.generate(ctx, job)

	closeCtx, cancel := detached(ctx)
	defer cancel()

	if genErr != nil {
		code, msg := failureOf(genErr)
		l.Warn().Err(genErr).Str("code", code).Msg("plan generation failed")
		return uc.closeFailed(closeCtx, job.ID, token, code, msg, start)
	}

	if _, err := uc.CompleteJob(closeCtx, job.ID, token, planID); err != nil {
		if !errors.Is(err, domain.ErrStorage) {
			return model.RunOutcome{}, err
		}
		l.Error().Err(err).Str("plan_id", planID).Msg("recording success failed")
		return uc.closeFailed(closeCtx, job.ID, token, domain.CodeStorage, err.Error(), start)
	}
	metrics.ObserveJobRun(string(model.JobStatusSucceeded), time.Since(start).Seconds())
	l.Info().Str("plan_id", planID).Msg("plan generated")
	return model.RunOutcome{Kind: model.RunOutcomeSucceeded, JobID: job.ID, PlanID: planID, Status: model.JobStatusSucceeded}, nil
}

func (uc *jobUC) closeFailed(ctx context.Context, jobID, token, code, msg string, start time.Time) (model.RunOutcome, error) {
	status, err := uc.FailJob(ctx, jobID, token, code, msg)
	metrics.ObserveJobRun(string(model.JobStatusFailed), time.Since(start).Seconds())
	if err != nil {
		return model.RunOutcome{}, err
	}
	return model.RunOutcome{Kind: model.RunOutcomeFailed, JobID: jobID, ErrorCode: code, Status: status}, nil
}

func (uc *jobUC) generate(ctx context.Context, job *model.ClaimedJob) (string, error) {
	snap, err := model.DecodeRequestSnapshot(job.RequestSnapshot)
	if err != nil {
		return "", err
	}
	return uc.builder.CreatePlanForUser(ctx, job.OwnerID, adapter.PlanRequest{
		WeekStart: snap.WeekStart,
		Days:      snap.Days,
		Settings:  snap.Settings,
	})
}

// failureOf extracts the code and message recorded on the job for err.
func failureOf(err error) (string, string) {
	var pbe *adapter.PlanBuildError
	switch {
	case errors.As(err, &pbe):
		return pbe.Code, pbe.Message
	case errors.Is(err, domain.ErrInvalidJobState):
		return domain.CodeInvalidJobState, err.Error()
	default:
		return domain.CodeGenerationFailed, err.Error()
	}
}
