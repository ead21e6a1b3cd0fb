package homes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"energy-advisor/internal/shared/metrics"
	"energy-advisor/internal/shared/telemetry"
)

const redisKeyPrefix = "home:"

// RedisCache is a read-through cache shared between API replicas.
// Redis failures degrade to the backing repo instead of failing the request.
type RedisCache struct {
	next   Repo
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCache wraps next with a Redis cache using the given TTL.
func NewRedisCache(next Repo, client redis.UniversalClient, ttl time.Duration) (*RedisCache, error) {
	if next == nil {
		return nil, fmt.Errorf("homes: redis cache requires a backing repo")
	}
	if client == nil {
		return nil, fmt.Errorf("homes: redis cache requires a client")
	}
	return &RedisCache{next: next, client: client, ttl: ttl}, nil
}

// Create writes through to the backing repo and stores the home in Redis.
func (c *RedisCache) Create(ctx context.Context, home Home) error {
	if err := c.next.Create(ctx, home); err != nil {
		return err
	}
	c.store(ctx, home)
	return nil
}

// GetByID serves from Redis and falls back to the backing repo.
func (c *RedisCache) GetByID(ctx context.Context, homeID string) (Home, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+homeID).Bytes()
	switch {
	case err == nil:
		var home Home
		jsonErr := json.Unmarshal(raw, &home)
		if jsonErr == nil {
			metrics.ObserveCacheLookup("redis", true)
			return home, nil
		}
		telemetry.Warn("homes.cache.decode_failed", map[string]any{
			"home_id": homeID,
			"error":   jsonErr,
		})
	case !errors.Is(err, redis.Nil):
		telemetry.Warn("homes.cache.get_failed", map[string]any{
			"home_id": homeID,
			"error":   err,
		})
	}
	metrics.ObserveCacheLookup("redis", false)

	home, err := c.next.GetByID(ctx, homeID)
	if err != nil {
		return Home{}, err
	}
	c.store(ctx, home)
	return home, nil
}

func (c *RedisCache) store(ctx context.Context, home Home) {
	payload, err := json.Marshal(home)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+home.ID, payload, c.ttl).Err(); err != nil {
		telemetry.Warn("homes.cache.set_failed", map[string]any{
			"home_id": home.ID,
			"error":   err,
		})
	}
}

var _ Repo = (*RedisCache)(nil)
