package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache is a small read-through cache for query results. Values are
// stored as JSON; Get reports a miss instead of an error when the key
// is absent.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePattern removes every key matching the glob pattern.
	DeletePattern(ctx context.Context, pattern string) error
	Close() error
}

type redisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(ctx context.Context, url string, logger *zap.Logger) (Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", opts.Addr))
	return &redisCache{client: client, logger: logger}, nil
}

func (c *redisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// stale or corrupt entry, drop it and treat as a miss
		c.client.Del(ctx, key)
		return false, nil
	}
	return true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *redisCache) DeletePattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return c.Delete(ctx, keys...)
}

func (c *redisCache) Close() error {
	return c.client.Close()
}

type noopCache struct{}

// NewNoopCache returns a cache that stores nothing. Used when caching
// is disabled in the configuration.
func NewNoopCache() Cache { return noopCache{} }

func (noopCache) Get(context.Context, string, any) (bool, error)          { return false, nil }
func (noopCache) Set(context.Context, string, any, time.Duration) error   { return nil }
func (noopCache) Delete(context.Context, ...string) error                 { return nil }
func (noopCache) DeletePattern(context.Context, string) error             { return nil }
func (noopCache) Close() error                                            { return nil }
