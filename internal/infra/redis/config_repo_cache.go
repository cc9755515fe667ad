package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"logistics-payment-engine/internal/domain/model"
	"logistics-payment-engine/internal/domain/ports/repository"
	"logistics-payment-engine/internal/infra/metrics"
)

var _ repository.ConfigRepository = (*configRepoCacheDecorator)(nil)

// configRepoCacheDecorator caches single-key config reads. The TTL is short
// so hot-reloaded values (commission rates, grace days) converge across
// instances within seconds of an admin update.
type configRepoCacheDecorator struct {
	inner repository.ConfigRepository
	cache RedisClient
	ttl   time.Duration
}

func NewConfigRepoCacheDecorator(inner repository.ConfigRepository, cache RedisClient, ttl time.Duration) repository.ConfigRepository {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &configRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

func (d *configRepoCacheDecorator) Get(ctx context.Context, key string) (*model.PaymentConfig, error) {
	ck := fmt.Sprintf("config:%s", key)
	val, err := d.cache.Get(ctx, ck)
	if err == nil {
		metrics.IncCacheRequest("config", "hit")
		var cfg model.PaymentConfig
		if json.Unmarshal([]byte(val), &cfg) == nil {
			return &cfg, nil
		}
	}

	metrics.IncCacheRequest("config", "miss")
	cfg, err := d.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		bytes, _ := json.Marshal(cfg)
		_ = d.cache.Set(ctx, ck, bytes, d.ttl)
	}
	return cfg, nil
}

// ListByCategory is an admin read path; it goes straight to the database.
func (d *configRepoCacheDecorator) ListByCategory(ctx context.Context, category model.ConfigCategory) ([]*model.PaymentConfig, error) {
	return d.inner.ListByCategory(ctx, category)
}

func (d *configRepoCacheDecorator) Upsert(ctx context.Context, cfg *model.PaymentConfig) error {
	_ = d.cache.Del(ctx, fmt.Sprintf("config:%s", cfg.Key))
	return d.inner.Upsert(ctx, cfg)
}
