// Package app assembles the meal plan job services from configuration.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"meal-planner/internal/config"
	"meal-planner/internal/domain/ports/adapter"
	"meal-planner/internal/domain/ports/repository"
	aiAdapters "meal-planner/internal/infra/adapters/ai"
	"meal-planner/internal/infra/adapters/planbuilder"
	pg "meal-planner/internal/infra/db/postgres"
	"meal-planner/internal/infra/logging"
	"meal-planner/internal/infra/notify"
	red "meal-planner/internal/infra/redis"
	"meal-planner/internal/usecase"
)

// App holds the wired services. Close releases the pool and the redis client.
type App struct {
	Pool     *pgxpool.Pool
	Redis    red.RedisClient
	Calendar *usecase.Calendar
	Schedule usecase.ScheduleUseCase
	Jobs     usecase.JobUseCase
	Tick     usecase.TickUseCase
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// Build connects to Postgres (and Redis when configured) and wires the use cases.
func Build(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	cal, err := usecase.NewCalendar(cfg.Scheduler.Timezone, cfg.Scheduler.RunHour)
	if err != nil {
		return nil, err
	}

	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &App{Pool: pool, Calendar: cal}

	var prefs repository.PreferencesRepository = pg.NewPreferencesRepo(pool)
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.Redis = rc
		prefs = pg.NewPreferencesRepoCacheDecorator(prefs, rc, cfg.Redis.TTL)
	} else {
		logger.Warn().Msg("redis.url not set; preferences cache and rate limiting disabled")
	}

	ai, err := NewAIAdapter(ctx, cfg.AI, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	jobsRepo := pg.NewMealPlanJobRepo(pool)
	plans := pg.NewMealPlanRepo(pool)
	builder := planbuilder.NewAIPlanBuilder(ai, plans, cfg.AI.DefaultModel, cfg.AI.MaxPromptTokens, logger)

	var alerts adapter.AlertSender = notify.NewNoopAlertSender(logger)
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegramAlertSender(cfg.Telegram.Token)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("telegram: %w", err)
		}
		alerts = tg
	}
	notifier := notify.NewNotifier(pg.NewNotificationRepo(pool), alerts, cfg.Telegram.AlertChatIDs, logger)

	jobs := usecase.NewJobUseCase(jobsRepo, builder, notifier, usecase.SystemClock, cfg.Scheduler.ClaimBatchSize, logger)
	a.Jobs = jobs
	a.Schedule = usecase.NewScheduleUseCase(jobsRepo, prefs, cal, usecase.SystemClock, cfg.Scheduler.MaxAttempts, logger)
	a.Tick = usecase.NewTickUseCase(jobs, plans, pg.NewTxManager(pool), logger)
	return a, nil
}

// NewAIAdapter picks the provider stack from cfg.Provider and caps concurrency.
func NewAIAdapter(ctx context.Context, cfg config.AIConfig, logger *zerolog.Logger) (adapter.AIServiceAdapter, error) {
	var (
		ai  adapter.AIServiceAdapter
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case "noop":
		ai = aiAdapters.NewNoopAIAdapter()
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("ai.provider=openai requires ai.openai_key")
		}
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.OpenAIKey, cfg.DefaultModel, cfg.OpenAIBaseURL, cfg.Timeout)
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("ai.provider=gemini requires ai.gemini_key")
		}
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.GeminiKey, "", cfg.DefaultModel, 0)
	case "multi":
		byProvider := map[string]adapter.AIServiceAdapter{}
		if cfg.OpenAIKey != "" {
			oa, err := aiAdapters.NewOpenAIAdapter(cfg.OpenAIKey, cfg.DefaultModel, cfg.OpenAIBaseURL, cfg.Timeout)
			if err != nil {
				return nil, fmt.Errorf("openai adapter: %w", err)
			}
			byProvider["openai"] = oa
		}
		if cfg.GeminiKey != "" {
			ga, err := aiAdapters.NewGeminiAdapter(ctx, cfg.GeminiKey, "", cfg.DefaultModel, 0)
			if err != nil {
				return nil, fmt.Errorf("gemini adapter: %w", err)
			}
			byProvider["gemini"] = ga
		}
		if len(byProvider) == 0 {
			return nil, aiAdapters.ErrNoProvider
		}
		ai = aiAdapters.NewMultiAIAdapter("openai", byProvider, nil)
	default:
		return nil, fmt.Errorf("unknown ai.provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%s adapter: %w", cfg.Provider, err)
	}
	logger.Info().
		Str("provider", cfg.Provider).
		Str("model", cfg.DefaultModel).
		Str("openai_key", logging.Redact(cfg.OpenAIKey, false)).
		Int("concurrency", cfg.ConcurrentLimit).
		Msg("ai adapter ready")
	return aiAdapters.NewLimitedAI(ai, cfg.ConcurrentLimit), nil
}
