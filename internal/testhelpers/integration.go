//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/weather-cache-service/internal/cache"
	"github.com/kjstillabower/weather-cache-service/internal/client"
	"github.com/kjstillabower/weather-cache-service/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey        string
	APIURL        string
	CacheBackend  string // in_memory, redis or memcached
	RedisURL      string
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}
	return IntegrationTestConfig{
		APIKey:        apiKey,
		APIURL:        envOr("WEATHER_API_URL", client.DefaultAPIURL),
		CacheBackend:  envOr("INTEGRATION_CACHE_BACKEND", "in_memory"),
		RedisURL:      envOr("REDIS_URL", "redis://localhost:6379/0"),
		MemcachedAddr: envOr("MEMCACHED_ADDRS", "localhost:11211"),
	}
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// SetupIntegrationFetcher wires a WeatherFetcher against the live API and the
// configured cache. An unreachable shared cache falls back to in-memory.
// Cleanup is registered with t.
func SetupIntegrationFetcher(t *testing.T, cfg IntegrationTestConfig) (*service.WeatherFetcher, cache.Cache) {
	t.Helper()
	weatherClient, err := client.NewOpenWeatherClient(cfg.APIKey, cfg.APIURL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}

	var c cache.Cache = cache.NewInMemoryCache()
	switch cfg.CacheBackend {
	case "redis":
		rc, err := cache.NewRedisCache(cfg.RedisURL, 500*time.Millisecond)
		if err == nil {
			err = rc.Ping()
		}
		if err != nil {
			t.Logf("Redis not available (%v), using in-memory cache", err)
			break
		}
		t.Cleanup(func() { _ = rc.Close() })
		c = rc
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil {
			err = mc.Ping()
		}
		if err != nil {
			t.Logf("Memcached not available (%v), using in-memory cache", err)
			break
		}
		t.Cleanup(func() { _ = mc.Close() })
		c = mc
	}

	return service.NewWeatherFetcher(weatherClient, c, zaptest.NewLogger(t)), c
}
