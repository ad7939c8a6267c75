// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"meal-planner/internal/app"
	"meal-planner/internal/config"
	"meal-planner/internal/infra/api"
	pg "meal-planner/internal/infra/db/postgres"
	"meal-planner/internal/infra/logging"
	"meal-planner/internal/infra/metrics"
	red "meal-planner/internal/infra/redis"
	"meal-planner/internal/infra/sched"
	"meal-planner/internal/infra/worker"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Global.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup")
	}
	defer a.Close()

	// ---- DB pool metrics ----
	go pg.NewPoolStatsPoller(a.Pool, cfg.Database.StatsInterval, logger).Start(ctx)

	// ---- In-process tick ----
	pool := worker.NewPool(cfg.Scheduler.TickWorkers, logger)
	pool.Start(ctx)
	defer pool.Stop()
	if cfg.Scheduler.TickCron != "" {
		tw, err := sched.NewTickWorker(cfg.Scheduler.TickCron, a.Calendar.Loc, a.Tick, pool, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("tick worker")
		}
		go func() { _ = tw.Run(ctx) }()
	} else {
		logger.Info().Msg("scheduler.tick_cron not set; relying on external cron")
	}

	// ---- HTTP ----
	var limiter api.Limiter
	if a.Redis != nil {
		limiter = red.NewRateLimiter(a.Redis)
	}
	srv := api.NewServer(a.Schedule, a.Jobs, a.Tick,
		api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.CronSecret),
		limiter,
		api.Options{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			RequestTimeout: cfg.HTTP.RequestTimeout,
			RunLimit:       cfg.RateLimit.RunLimit,
			RunWindow:      cfg.RateLimit.RunWindow,
		},
		logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
