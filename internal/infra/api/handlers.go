package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"meal-planner/internal/domain"
	"meal-planner/internal/domain/model"
	"meal-planner/internal/infra/logging"
	"meal-planner/internal/infra/metrics"
	red "meal-planner/internal/infra/redis"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type scheduleResponse struct {
	JobID        string    `json:"jobId"`
	ScheduledFor time.Time `json:"scheduledFor"`
	WeekStart    string    `json:"weekStart"`
}

type outcomeResponse struct {
	Kind      model.RunOutcomeKind `json:"kind"`
	JobID     string               `json:"jobId,omitempty"`
	PlanID    string               `json:"planId,omitempty"`
	ErrorCode string               `json:"errorCode,omitempty"`
	Status    model.JobStatus      `json:"status,omitempty"`
}

type jobView struct {
	ID               string          `json:"id"`
	Status           model.JobStatus `json:"status"`
	ScheduledFor     time.Time       `json:"scheduledFor"`
	WeekStart        string          `json:"weekStart"`
	Attempt          int             `json:"attempt"`
	MaxAttempts      int             `json:"maxAttempts"`
	Locked           bool            `json:"locked"`
	LastErrorCode    *string         `json:"lastErrorCode,omitempty"`
	LastErrorMessage *string         `json:"lastErrorMessage,omitempty"`
	ResultPlanID     *string         `json:"resultPlanId,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

type listParams struct {
	Limit *int `form:"limit" json:"limit,omitempty"`
}

func toOutcome(o model.RunOutcome) outcomeResponse {
	return outcomeResponse{Kind: o.Kind, JobID: o.JobID, PlanID: o.PlanID, ErrorCode: o.ErrorCode, Status: o.Status}
}

func toJobView(j *model.MealPlanJob) jobView {
	return jobView{
		ID:               j.ID,
		Status:           j.Status,
		ScheduledFor:     j.ScheduledFor.UTC(),
		WeekStart:        j.WeekStart,
		Attempt:          j.Attempt,
		MaxAttempts:      j.MaxAttempts,
		Locked:           j.Locked(),
		LastErrorCode:    j.LastErrorCode,
		LastErrorMessage: j.LastErrorMessage,
		ResultPlanID:     j.ResultPlanID,
		CreatedAt:        j.CreatedAt.UTC(),
		UpdatedAt:        j.UpdatedAt.UTC(),
	}
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	res, err := s.schedule.ScheduleNextRun(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse{JobID: res.JobID, ScheduledFor: res.ScheduledFor, WeekStart: res.WeekStart})
}

func (s *Server) handleRunDue(w http.ResponseWriter, r *http.Request) {
	out, err := s.jobs.RunOneDueJob(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcome(out))
}

func (s *Server) handleRunNow(w http.ResponseWriter, r *http.Request) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: domain.CodeValidation, Message: err.Error()})
		return
	}
	ctx := logging.WithJobID(r.Context(), id)
	annotate(w, ctx)

	out, err := s.jobs.RunJobNow(ctx, ownerFrom(ctx), id)
	if err != nil {
		s.fail(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcome(out))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var params listParams
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: domain.CodeValidation, Message: err.Error()})
		return
	}
	limit := 0
	if params.Limit != nil {
		limit = *params.Limit
	}

	jobs, err := s.jobs.ListJobs(r.Context(), ownerFrom(r.Context()), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, toJobView(j))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	out, err := s.tick.RunOneDueJobPrivileged(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcome(out))
}

// rateLimit caps run requests per owner and route. Limiter errors let the request through.
func (s *Server) rateLimit(route string) Middleware {
	return func(next http.Handler) http.Handler {
		if s.limiter == nil || s.opts.RunLimit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := red.UserRouteKey(ownerFrom(r.Context()), route)
			ok, err := s.limiter.Allow(r.Context(), key, s.opts.RunLimit, s.opts.RunWindow)
			if err != nil {
				l := logging.With(r.Context(), s.log)
				l.Warn().Err(err).Str("route", route).Msg("rate limiter unavailable")
			} else if !ok {
				metrics.IncRateLimited(route)
				writeError(w, domain.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, err)
}

func statusFor(err error) int {
	switch domain.Code(err) {
	case domain.CodeAuth:
		return http.StatusUnauthorized
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeLockMismatch, domain.CodeInvalidJobState:
		return http.StatusConflict
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := domain.Code(err)
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrAuth):
		msg = "unauthorized"
	case code == domain.CodeInternal, code == domain.CodeStorage:
		msg = "internal error"
	}
	writeJSON(w, statusFor(err), errorBody{Code: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
