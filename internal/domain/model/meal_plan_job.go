package model

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

type JobStatus string

const (
	JobStatusScheduled JobStatus = "scheduled"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

const (
	DefaultMaxAttempts = 3

	MaxErrorCodeLen    = 64
	MaxErrorMessageLen = 500
)

// Valid reports whether s belongs to the closed status set.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusScheduled, JobStatusRunning, JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no scheduler transition leaves s.
// A failed job is terminal for the scheduler; only a manual re-run may claim it.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCancelled
}

// MealPlanJob is one scheduled attempt-series to generate a weekly meal plan.
type MealPlanJob struct {
	ID               string
	OwnerID          string
	Status           JobStatus
	ScheduledFor     time.Time
	WeekStart        string
	Attempt          int
	MaxAttempts      int
	LockedAt         *time.Time
	LockedBy         *string
	LastErrorCode    *string
	LastErrorMessage *string
	RequestSnapshot  json.RawMessage
	ResultPlanID     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Locked reports whether the job is held under a lock token.
func (j *MealPlanJob) Locked() bool {
	return j.LockedAt != nil || j.LockedBy != nil
}

// AttemptsLeft reports whether another claim is allowed by the attempt ceiling.
func (j *MealPlanJob) AttemptsLeft() bool {
	return j.Attempt < j.MaxAttempts
}

// Claimable applies the claim predicate for the given status set, ignoring due time.
func (j *MealPlanJob) Claimable(statuses ...JobStatus) bool {
	if j.Locked() || !j.AttemptsLeft() {
		return false
	}
	for _, s := range statuses {
		if j.Status == s {
			return true
		}
	}
	return false
}

// ClaimedJob holds the immutable fields a claimer needs to run a job.
type ClaimedJob struct {
	ID              string
	OwnerID         string
	ScheduledFor    time.Time
	Attempt         int
	MaxAttempts     int
	RequestSnapshot json.RawMessage
}

func (j *MealPlanJob) Claimed() *ClaimedJob {
	return &ClaimedJob{
		ID:              j.ID,
		OwnerID:         j.OwnerID,
		ScheduledFor:    j.ScheduledFor,
		Attempt:         j.Attempt,
		MaxAttempts:     j.MaxAttempts,
		RequestSnapshot: j.RequestSnapshot,
	}
}

type RunOutcomeKind string

const (
	RunOutcomeNoDueJob  RunOutcomeKind = "no_due_job"
	RunOutcomeSucceeded RunOutcomeKind = "succeeded"
	RunOutcomeFailed    RunOutcomeKind = "failed"
)

// RunOutcome is the compact result of one claim+run cycle.
type RunOutcome struct {
	Kind      RunOutcomeKind
	JobID     string
	PlanID    string
	ErrorCode string
	// Status is the job status after a failure: scheduled (retry pending) or failed.
	Status JobStatus
}

func NoDueJob() RunOutcome { return RunOutcome{Kind: RunOutcomeNoDueJob} }

// BoundFailure trims an error code and message to the column limits.
func BoundFailure(code, message string) (string, string) {
	code = strings.TrimSpace(code)
	if code == "" {
		code = "UNKNOWN"
	}
	return truncateRunes(code, MaxErrorCodeLen), truncateRunes(message, MaxErrorMessageLen)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
