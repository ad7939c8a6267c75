//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"meal-planner/internal/domain"
	"meal-planner/internal/domain/model"
	"meal-planner/internal/domain/ports/adapter"
	"meal-planner/internal/domain/ports/repository"
)

// -----------------------------
// Utilities
// -----------------------------

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFixedClock(t time.Time) *fixedClock { return &fixedClock{t: t} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func mustSnapshot(weekStart string) json.RawMessage {
	raw, err := model.RequestSnapshot{WeekStart: weekStart, Days: 7}.Encode()
	if err != nil {
		panic(err)
	}
	return raw
}

// =============================
// Repositories
// =============================

// memJobRepo is an in-memory job store whose TryLock/MarkSucceeded/MarkFailed
// apply the same compare-and-set predicates as the SQL implementation.
type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.MealPlanJob

	// afterScan runs after FindDueCandidates released the store lock.
	afterScan func()

	scanErr    error
	upsertErr  error
	succeedErr error
	lastLimit  int
}

var _ repository.MealPlanJobRepository = (*memJobRepo)(nil)

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[string]*model.MealPlanJob)}
}

func (m *memJobRepo) seed(j *model.MealPlanJob) *model.MealPlanJob {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.MaxAttempts == 0 {
		j.MaxAttempts = model.DefaultMaxAttempts
	}
	if j.Status == "" {
		j.Status = model.JobStatusScheduled
	}
	if j.RequestSnapshot == nil {
		j.RequestSnapshot = mustSnapshot("2026-01-12")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *j
	m.jobs[j.ID] = &cp
	return j
}

func (m *memJobRepo) get(id string) *model.MealPlanJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil
	}
	cp := *j
	return &cp
}

func (m *memJobRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

func (m *memJobRepo) UpsertScheduled(ctx context.Context, tx repository.Tx, job *model.MealPlanJob) (*repository.UpsertResult, error) {
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.OwnerID != job.OwnerID || j.WeekStart != job.WeekStart {
			continue
		}
		if j.Status != model.JobStatusScheduled {
			return &repository.UpsertResult{ID: j.ID, ScheduledFor: j.ScheduledFor, Status: j.Status}, nil
		}
		j.ScheduledFor = job.ScheduledFor
		j.UpdatedAt = job.UpdatedAt
		return &repository.UpsertResult{ID: j.ID, ScheduledFor: j.ScheduledFor, Status: j.Status, Written: true}, nil
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return &repository.UpsertResult{ID: job.ID, ScheduledFor: job.ScheduledFor, Status: job.Status, Written: true}, nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.MealPlanJob, error) {
	if j := m.get(id); j != nil {
		return j, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memJobRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, limit int) ([]*model.MealPlanJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	var out []*model.MealPlanJob
	for _, j := range m.jobs {
		if j.OwnerID == ownerID {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ScheduledFor.After(out[k].ScheduledFor) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memJobRepo) FindDueCandidates(ctx context.Context, tx repository.Tx, f repository.DueFilter) ([]*model.MealPlanJob, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	m.mu.Lock()
	var out []*model.MealPlanJob
	for _, j := range m.jobs {
		if f.OwnerID != "" && j.OwnerID != f.OwnerID {
			continue
		}
		if j.ScheduledFor.After(f.Now) || !j.Claimable(f.Statuses...) {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, k int) bool { return out[i].ScheduledFor.Before(out[k].ScheduledFor) })
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	if m.afterScan != nil {
		hook := m.afterScan
		m.afterScan = nil
		hook()
	}
	return out, nil
}

func (m *memJobRepo) TryLock(ctx context.Context, tx repository.Tx, req repository.LockRequest) (*model.ClaimedJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[req.JobID]
	if !ok || j.Status != req.ObservedStatus || j.LockedAt != nil || j.Attempt != req.ObservedAttempt || j.Attempt >= j.MaxAttempts {
		return nil, nil
	}
	now, token := req.Now, req.Token
	j.Status = model.JobStatusRunning
	j.Attempt++
	j.LockedAt = &now
	j.LockedBy = &token
	j.UpdatedAt = now
	return j.Claimed(), nil
}

func (m *memJobRepo) MarkSucceeded(ctx context.Context, tx repository.Tx, id, token, planID string, now time.Time) (bool, error) {
	if m.succeedErr != nil {
		return false, m.succeedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != model.JobStatusRunning || j.LockedBy == nil || *j.LockedBy != token {
		return false, nil
	}
	j.Status = model.JobStatusSucceeded
	j.ResultPlanID = &planID
	j.LastErrorCode, j.LastErrorMessage = nil, nil
	j.LockedAt, j.LockedBy = nil, nil
	j.UpdatedAt = now
	return true, nil
}

func (m *memJobRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, token, code, message string, now time.Time) (*repository.FailResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != model.JobStatusRunning || j.LockedBy == nil || *j.LockedBy != token {
		return nil, nil
	}
	if j.Attempt >= j.MaxAttempts {
		j.Status = model.JobStatusFailed
	} else {
		j.Status = model.JobStatusScheduled
	}
	j.LastErrorCode, j.LastErrorMessage = &code, &message
	j.LockedAt, j.LockedBy = nil, nil
	j.UpdatedAt = now
	return &repository.FailResult{OwnerID: j.OwnerID, Status: j.Status, Attempt: j.Attempt}, nil
}

// ctxJobRepo fails every write on a done context the way pgx does.
type ctxJobRepo struct {
	*memJobRepo
}

func (r ctxJobRepo) MarkSucceeded(ctx context.Context, tx repository.Tx, id, token, planID string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return r.memJobRepo.MarkSucceeded(ctx, tx, id, token, planID, now)
}

func (r ctxJobRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, token, code, message string, now time.Time) (*repository.FailResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.memJobRepo.MarkFailed(ctx, tx, id, token, code, message, now)
}

// ---- Preferences ----

type memPrefsRepo struct {
	mu    sync.Mutex
	store map[string]*model.Preferences
	err   error
}

var _ repository.PreferencesRepository = (*memPrefsRepo)(nil)

func newMemPrefsRepo() *memPrefsRepo {
	return &memPrefsRepo{store: make(map[string]*model.Preferences)}
}

func (m *memPrefsRepo) FindByOwner(ctx context.Context, tx repository.Tx, ownerID string) (*model.Preferences, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[ownerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPrefsRepo) Save(ctx context.Context, tx repository.Tx, p *model.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.OwnerID] = &cp
	return nil
}

// ---- Meal plans ----

type memPlanRepo struct {
	mu    sync.Mutex
	plans map[string]*model.MealPlan
}

var _ repository.MealPlanRepository = (*memPlanRepo)(nil)

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{plans: make(map[string]*model.MealPlan)}
}

func (m *memPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.MealPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.plans[p.ID] = &cp
	return nil
}

func (m *memPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.MealPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPlanRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.MealPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.FindByID(ctx, tx, id)
}

func (m *memPlanRepo) SetDraft(ctx context.Context, tx repository.Tx, id string, snapshot json.RawMessage, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = model.MealPlanStatusDraft
	p.DraftSnapshot = snapshot
	p.DraftCreatedAt = &at
	return nil
}

// ---- Transaction manager ----

type mockTxManager struct{}

func (mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// =============================
// Adapters
// =============================

type mockPlanBuilder struct {
	mu    sync.Mutex
	calls []adapter.PlanRequest

	CreatePlanFunc func(ctx context.Context, ownerID string, req adapter.PlanRequest) (string, error)
}

var _ adapter.PlanBuilder = (*mockPlanBuilder)(nil)

func (m *mockPlanBuilder) CreatePlanForUser(ctx context.Context, ownerID string, req adapter.PlanRequest) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.CreatePlanFunc != nil {
		return m.CreatePlanFunc(ctx, ownerID, req)
	}
	return uuid.NewString(), nil
}

func (m *mockPlanBuilder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockNotifier struct {
	mu   sync.Mutex
	Sent []*model.Notification
	Err  error
}

var _ adapter.Notifier = (*mockNotifier)(nil)

func (m *mockNotifier) Notify(ctx context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, n)
	return m.Err
}

func (m *mockNotifier) ofType(t model.NotificationType) []*model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Notification
	for _, n := range m.Sent {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}
