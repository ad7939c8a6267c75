package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"meal-planner/internal/usecase"
)

// Limiter is the rate limit check used on the run routes.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	RunLimit       int
	RunWindow      time.Duration
}

// Server exposes the meal plan job API.
type Server struct {
	schedule usecase.ScheduleUseCase
	jobs     usecase.JobUseCase
	tick     usecase.TickUseCase
	auth     *Authenticator
	limiter  Limiter
	opts     Options
	log      *zerolog.Logger
}

func NewServer(
	schedule usecase.ScheduleUseCase,
	jobs usecase.JobUseCase,
	tick usecase.TickUseCase,
	auth *Authenticator,
	limiter Limiter,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "APIServer").Logger()
	return &Server{schedule: schedule, jobs: jobs, tick: tick, auth: auth, limiter: limiter, opts: opts, log: &l}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))
	if len(s.opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Timeout(s.opts.RequestTimeout), s.auth.RequireCron)
		r.Post("/internal/cron/tick", s.handleTick)
	})

	r.Route("/api/v1/meal-plan-jobs", func(r chi.Router) {
		r.Use(Timeout(s.opts.RequestTimeout), s.auth.RequireUser)
		r.Get("/", s.handleListJobs)
		r.Post("/schedule", s.handleSchedule)
		r.With(s.rateLimit("run-due")).Post("/run-due", s.handleRunDue)
		r.With(s.rateLimit("run-now")).Post("/{id}/run", s.handleRunNow)
	})
	return r
}
