package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"meal-planner/internal/infra/metrics"
	"meal-planner/internal/infra/worker"
	"meal-planner/internal/usecase"
)

// TickWorker fires the privileged tick on a cron schedule. Each firing is
// handed to the worker pool; overlapping ticks only race through the job
// store's compare-and-set.
type TickWorker struct {
	schedule cron.Schedule
	spec     string
	loc      *time.Location
	tick     usecase.TickUseCase
	pool     *worker.Pool
	log      *zerolog.Logger
}

func NewTickWorker(spec string, loc *time.Location, tick usecase.TickUseCase, pool *worker.Pool, logger *zerolog.Logger) (*TickWorker, error) {
	if spec == "" {
		return nil, errors.New("tick cron spec is empty")
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse tick cron %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	l := logger.With().Str("component", "TickWorker").Logger()
	return &TickWorker{schedule: schedule, spec: spec, loc: loc, tick: tick, pool: pool, log: &l}, nil
}

// Run blocks until ctx is done.
func (w *TickWorker) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(w.loc), cron.WithLogger(cronLogger{w.log}))
	c.Schedule(w.schedule, cron.FuncJob(w.fire(ctx)))
	c.Start()
	w.log.Info().Str("spec", w.spec).Time("next", w.schedule.Next(time.Now().In(w.loc))).Msg("tick worker started")

	<-ctx.Done()
	<-c.Stop().Done()
	w.log.Info().Msg("tick worker stopped")
	return ctx.Err()
}

func (w *TickWorker) fire(ctx context.Context) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		if err := w.pool.Submit(w.RunOnce); err != nil {
			metrics.IncTick("dropped")
			w.log.Warn().Err(err).Msg("tick dropped")
		}
	}
}

// RunOnce runs a single privileged tick and logs its outcome.
func (w *TickWorker) RunOnce(ctx context.Context) error {
	out, err := w.tick.RunOneDueJobPrivileged(ctx)
	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	w.log.Debug().
		Str("outcome", string(out.Kind)).
		Str("job_id", out.JobID).
		Str("error_code", out.ErrorCode).
		Msg("tick finished")
	return nil
}

// cronLogger routes cron's internal logging to zerolog.
type cronLogger struct {
	log *zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Trace().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
