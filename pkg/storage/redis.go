package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/jh125486/rubricscore/pkg/contextlog"
	"github.com/jh125486/rubricscore/pkg/rubrics"
)

// DefaultCacheTTL is how long a cached rubric or auto-test config lives.
const DefaultCacheTTL = 10 * time.Minute

// RedisCache caches rubric definitions and auto-test configs of a backing
// Storage in Redis. Both change rarely and are read on every grading request.
// Saves go to the backing store first and then drop the cached copy. Redis
// failures fall back to the backing store.
type RedisCache struct {
	Storage
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
}

// NewRedisCache wraps backing with a cache held in client. A non-positive ttl
// uses DefaultCacheTTL.
func NewRedisCache(backing Storage, client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{Storage: backing, client: client, ttl: ttl}
}

func rubricCacheKey(assignmentID string) string   { return "rubricscore:rubric:" + assignmentID }
func autoTestCacheKey(assignmentID string) string { return "rubricscore:autotest:" + assignmentID }

func (c *RedisCache) SaveRubric(ctx context.Context, def *rubrics.Definition) error {
	if err := c.Storage.SaveRubric(ctx, def); err != nil {
		return err
	}
	c.invalidate(ctx, rubricCacheKey(def.AssignmentID))
	return nil
}

func (c *RedisCache) LoadRubric(ctx context.Context, assignmentID string) (*rubrics.Definition, error) {
	return cached(ctx, c, rubricCacheKey(assignmentID), func(ctx context.Context) (*rubrics.Definition, error) {
		return c.Storage.LoadRubric(ctx, assignmentID)
	})
}

func (c *RedisCache) SaveAutoTestConfig(ctx context.Context, cfg *rubrics.AutoTestConfig) error {
	if err := c.Storage.SaveAutoTestConfig(ctx, cfg); err != nil {
		return err
	}
	c.invalidate(ctx, autoTestCacheKey(cfg.AssignmentID))
	return nil
}

func (c *RedisCache) LoadAutoTestConfig(ctx context.Context, assignmentID string) (*rubrics.AutoTestConfig, error) {
	return cached(ctx, c, autoTestCacheKey(assignmentID), func(ctx context.Context) (*rubrics.AutoTestConfig, error) {
		return c.Storage.LoadAutoTestConfig(ctx, assignmentID)
	})
}

// Close closes the Redis client and the backing store.
func (c *RedisCache) Close() error {
	return errors.Join(c.client.Close(), c.Storage.Close())
}

func (c *RedisCache) invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		contextlog.From(ctx).WarnContext(ctx, "Failed to invalidate cache entry",
			slog.String("key", key),
			slog.Any("error", err),
		)
	}
}

// cached serves key from Redis, or loads it once across concurrent callers
// and stores it. Missing records are not cached. The shared load runs
// detached from the caller's cancellation, since other callers may be
// waiting on it.
func cached[T any](ctx context.Context, c *RedisCache, key string, load func(context.Context) (*T, error)) (*T, error) {
	logger := contextlog.From(ctx)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		v, decErr := decode[T](data)
		if decErr == nil {
			logger.DebugContext(ctx, "Cache hit", slog.String("key", key))
			return v, nil
		}
		logger.WarnContext(ctx, "Dropping undecodable cache entry", slog.String("key", key), slog.Any("error", decErr))
	case errors.Is(err, redis.Nil):
	default:
		logger.WarnContext(ctx, "Cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		loadCtx := context.WithoutCancel(ctx)
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(v); err != nil {
			logger.WarnContext(loadCtx, "Failed to encode cache entry", slog.String("key", key), slog.Any("error", err))
		} else if err := c.client.Set(loadCtx, key, data, c.ttl).Err(); err != nil {
			logger.WarnContext(loadCtx, "Cache write failed", slog.String("key", key), slog.Any("error", err))
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	out, ok := v.(*T)
	if !ok {
		return nil, fmt.Errorf("unexpected cached value %T for %s", v, key)
	}
	return out, nil
}
