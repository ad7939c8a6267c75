package repository

import (
	"context"
	"time"

	"meal-planner/internal/domain/model"
)

// DueFilter narrows a candidate scan. An empty OwnerID scans every owner.
type DueFilter struct {
	OwnerID  string
	Statuses []model.JobStatus
	Now      time.Time
	Limit    int
}

// LockRequest is the compare-and-set input of a claim. The update applies only
// while the row still has ObservedStatus, no lock, and ObservedAttempt.
type LockRequest struct {
	JobID           string
	ObservedStatus  model.JobStatus
	ObservedAttempt int
	Token           string
	Now             time.Time
}

// UpsertResult describes the row that holds the job for (owner, week) after an upsert.
type UpsertResult struct {
	ID           string
	ScheduledFor time.Time
	Status       model.JobStatus
	// Written is false when an existing non-scheduled job was left untouched.
	Written bool
}

// FailResult is the state a running job was moved to by MarkFailed.
type FailResult struct {
	OwnerID string
	Status  model.JobStatus
	Attempt int
}

type MealPlanJobRepository interface {
	// UpsertScheduled creates the job for (owner, week) or moves scheduled_for of a
	// job that is still scheduled. Other jobs for that week are returned unchanged.
	UpsertScheduled(ctx context.Context, tx Tx, job *model.MealPlanJob) (*UpsertResult, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.MealPlanJob, error)
	ListByOwner(ctx context.Context, tx Tx, ownerID string, limit int) ([]*model.MealPlanJob, error)
	// FindDueCandidates returns unlocked jobs in the given statuses due at Now, oldest first.
	FindDueCandidates(ctx context.Context, tx Tx, f DueFilter) ([]*model.MealPlanJob, error)
	// TryLock returns nil, nil when the compare-and-set lost.
	TryLock(ctx context.Context, tx Tx, req LockRequest) (*model.ClaimedJob, error)
	// MarkSucceeded returns false when the job is not running under token.
	MarkSucceeded(ctx context.Context, tx Tx, id, token, planID string, now time.Time) (bool, error)
	// MarkFailed moves a running job back to scheduled, or to failed when its
	// attempts are exhausted. It returns nil, nil when the job is not running under token.
	MarkFailed(ctx context.Context, tx Tx, id, token, code, message string, now time.Time) (*FailResult, error)
}
