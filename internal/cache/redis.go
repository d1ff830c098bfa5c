package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache using a shared Redis instance.
// Keys are stored unprefixed so entries written by other clients of the same
// instance (lat=..&lon=..&units=..) are read back.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache parses a redis:// or rediss:// URL and returns a RedisCache.
// The connection is established lazily; call Ping to verify reachability.
func NewRedisCache(rawURL string, timeout time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if timeout > 0 {
		opt.DialTimeout = timeout
		opt.ReadTimeout = timeout
		opt.WriteTimeout = timeout
	}
	return NewRedisCacheFromClient(redis.NewClient(opt)), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get implements Cache.Get. redis.Nil is reported as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

// Set implements Cache.Set with SET ... PX semantics; the previous value is replaced.
func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Ping checks if Redis is reachable. Used for health checks.
func (c *RedisCache) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
