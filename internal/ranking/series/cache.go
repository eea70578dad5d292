package series

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "series:"

// opTimeout bounds each redis round trip; a slow redis counts as a miss.
const opTimeout = 500 * time.Millisecond

// KV is the cache backend; pkg/redis.Client satisfies it.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Cache stores built Results in redis, keyed by keyword set. Redis failures
// degrade to a miss; a circuit breaker stops hammering a dead redis.
type Cache struct {
	kv      KV
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCache creates a Cache. m may be nil.
func NewCache(kv KV, ttl time.Duration, m *metrics.Metrics) *Cache {
	c := &Cache{
		kv:      kv,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "series-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
		OnStateChange: func(s resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues("redis").Set(float64(s))
			}
		},
	})
	return c
}

func (c *Cache) Get(ctx context.Context, keywords []string) (Result, bool) {
	key := BuildKey(keywords)
	var data string
	err := c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, opTimeout, "cache-get", func(ctx context.Context) error {
			v, err := c.kv.Get(ctx, key)
			if pkgredis.IsNilError(err) {
				return nil
			}
			data = v
			return err
		})
	})
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if data == "" {
		c.miss()
		return nil, false
	}
	var result Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return result, true
}

func (c *Cache) Set(ctx context.Context, keywords []string, result Result) {
	key := BuildKey(keywords)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, opTimeout, "cache-set", func(ctx context.Context) error {
			return c.kv.Set(ctx, key, data, c.ttl)
		})
	}); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrBuild returns the cached Result for keywords, or builds, caches and
// returns it. Concurrent misses on the same key share one build.
func (c *Cache) GetOrBuild(ctx context.Context, keywords []string, build func() (Result, error)) (Result, bool, error) {
	if result, ok := c.Get(ctx, keywords); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(BuildKey(keywords), func() (interface{}, error) {
		result, err := build()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, keywords, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(Result), false, nil
}

// InvalidateKeywordSet drops the cached Result of one keyword set and the
// all-sets Result that includes it.
func (c *Cache) InvalidateKeywordSet(ctx context.Context, keywords []string) error {
	if err := c.kv.Del(ctx, BuildKey(keywords), BuildKey(nil)); err != nil {
		return fmt.Errorf("invalidating series cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keywords", ranking.NormalizeKeywords(keywords))
	return nil
}

// Invalidate drops every cached Result.
func (c *Cache) Invalidate(ctx context.Context) error {
	deleted, err := c.kv.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating series cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey derives the cache key of a keyword filter; nil means all sets.
func BuildKey(keywords []string) string {
	hash := sha256.Sum256([]byte(ranking.NormalizeKeywords(keywords)))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
