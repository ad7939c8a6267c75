package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"meal-planner/internal/domain/model"
	"meal-planner/internal/domain/ports/repository"
	"meal-planner/internal/infra/metrics"
	red "meal-planner/internal/infra/redis"
)

var _ repository.PreferencesRepository = (*preferencesRepoCacheDecorator)(nil)

// preferencesRepoCacheDecorator is a read-through cache over the preferences
// table. Misses, including missing preferences, always reach the inner repo.
type preferencesRepoCacheDecorator struct {
	inner repository.PreferencesRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewPreferencesRepoCacheDecorator(inner repository.PreferencesRepository, cache red.RedisClient, ttl time.Duration) repository.PreferencesRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &preferencesRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func prefsKey(ownerID string) string {
	return fmt.Sprintf("prefs:%s", ownerID)
}

func (d *preferencesRepoCacheDecorator) FindByOwner(ctx context.Context, tx repository.Tx, ownerID string) (*model.Preferences, error) {
	key := prefsKey(ownerID)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var p model.Preferences
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheRequest("preferences", "hit")
			return &p, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		metrics.IncCacheRequest("preferences", "error")
	}

	metrics.IncCacheRequest("preferences", "miss")
	p, err := d.inner.FindByOwner(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return p, nil
}

func (d *preferencesRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.Preferences) error {
	_ = d.cache.Del(ctx, prefsKey(p.OwnerID))
	return d.inner.Save(ctx, tx, p)
}
