// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"chart_backend/internal/feature/candles/domain/entity"
	"chart_backend/internal/feature/candles/usecase"
	"chart_backend/internal/platform/metrics"
)

// CachingCandleRepository decorates a CandleRepository with Redis caching.
// Every upsert for a series drops the cached reads of that series, so the
// TTL only bounds how long an idle entry stays around.
type CachingCandleRepository struct {
	inner     usecase.CandleRepository
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ usecase.CandleRepository = (*CachingCandleRepository)(nil)

// NewCachingCandleRepository decorates a CandleRepository with Redis caching.
// If ttl is 0, it defaults to 5 minutes. If namespace is empty, it uses "candles".
func NewCachingCandleRepository(rdb *redis.Client, ttl time.Duration, inner usecase.CandleRepository, namespace string) *CachingCandleRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "candles"
	}
	return &CachingCandleRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// UpsertBatch inserts or updates candles and invalidates the series' cache entries.
func (c *CachingCandleRepository) UpsertBatch(ctx context.Context, symbol, interval string, candles []entity.Candle) error {
	if err := c.inner.UpsertBatch(ctx, symbol, interval, candles); err != nil {
		return err
	}
	if c.rdb == nil || len(candles) == 0 {
		return nil
	}
	// Best effort: a failed invalidation only delays freshness until the TTL.
	_ = c.deleteByPattern(ctx, c.cacheKeyPrefix(symbol, interval)+"*")
	return nil
}

// Find retrieves candles, checking cache first then falling back to the inner repository.
func (c *CachingCandleRepository) Find(ctx context.Context, symbol, interval string, limit int) ([]entity.Candle, error) {
	if c.rdb == nil {
		return c.inner.Find(ctx, symbol, interval, limit)
	}

	key := c.cacheKey(symbol, interval, limit)

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []entity.Candle
		if err := json.Unmarshal(b, &out); err == nil {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return out, nil
		}
		metrics.CacheLookups.WithLabelValues("corrupt").Inc()
		_ = c.rdb.Del(ctx, key).Err()
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	// 2) Fallback to the store
	out, err := c.inner.Find(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}

	// 3) Store in cache (best effort)
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}

	return out, nil
}

func (c *CachingCandleRepository) cacheKey(symbol, interval string, limit int) string {
	return fmt.Sprintf("%s%d", c.cacheKeyPrefix(symbol, interval), limit)
}

func (c *CachingCandleRepository) cacheKeyPrefix(symbol, interval string) string {
	return fmt.Sprintf("%s:%s:%s:",
		c.namespace,
		safe(symbol),
		safe(interval),
	)
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingCandleRepository) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, "*", "_")
	return s
}
