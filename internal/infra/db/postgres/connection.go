package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"meal-planner/internal/config"
	"meal-planner/internal/infra/metrics"
)

// Connect opens a pool for cfg.URL and pings it.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("database url is required")
	}
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.ConnectConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// PoolStatsPoller publishes pool statistics as metrics until ctx is done.
type PoolStatsPoller struct {
	pool     *pgxpool.Pool
	interval time.Duration
	log      *zerolog.Logger
}

func NewPoolStatsPoller(pool *pgxpool.Pool, interval time.Duration, logger *zerolog.Logger) *PoolStatsPoller {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	l := logger.With().Str("component", "PoolStatsPoller").Logger()
	return &PoolStatsPoller{pool: pool, interval: interval, log: &l}
}

func (p *PoolStatsPoller) Start(ctx context.Context) {
	p.log.Info().Dur("interval", p.interval).Msg("pool stats poller started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.publish()
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("pool stats poller stopped")
			return
		case <-ticker.C:
			p.publish()
		}
	}
}

func (p *PoolStatsPoller) publish() {
	s := p.pool.Stat()
	metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns(), s.MaxConns())
}
