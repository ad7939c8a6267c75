// Command tick runs one privileged tick and exits. It is meant for an
// external cron; any normal outcome, including no due job, exits 0.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"meal-planner/internal/app"
	"meal-planner/internal/config"
	"meal-planner/internal/infra/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Global.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup")
	}
	defer a.Close()

	done := logging.TraceDuration(logger, "tick")
	out, err := a.Tick.RunOneDueJobPrivileged(ctx)
	done()
	if err != nil {
		logger.Error().Err(err).Msg("tick failed")
		a.Close()
		os.Exit(1)
	}
	logger.Info().
		Str("outcome", string(out.Kind)).
		Str("job_id", out.JobID).
		Str("plan_id", out.PlanID).
		Str("error_code", out.ErrorCode).
		Msg("tick finished")
}
