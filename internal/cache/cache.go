package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is the key-value store consulted before the weather provider.
// Values are opaque serialized text. Get returns (value, true, nil) on a hit,
// ("", false, nil) on a miss or expiry, and a non-nil error when the backend fails.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// InMemoryCache implements Cache using a map with TTL-based expiration.
// Expired entries are removed on access. Safe for concurrent use.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
	now  func() time.Time
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// NewInMemoryCache creates an in-memory cache using the wall clock.
func NewInMemoryCache() *InMemoryCache {
	return NewInMemoryCacheWithClock(time.Now)
}

// NewInMemoryCacheWithClock creates an in-memory cache that reads time from now.
// Tests use it to expire entries without sleeping.
func NewInMemoryCacheWithClock(now func() time.Time) *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
		now:  now,
	}
}

// Get returns the value for key if present and not expired.
func (c *InMemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return "", false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.data, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set stores value under key, replacing any previous entry. The entry is
// unavailable once ttl has elapsed.
func (c *InMemoryCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Len returns the number of stored entries, including ones not yet evicted.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
