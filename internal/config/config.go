package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/weather-cache-service/internal/models"
)

// Cache backends accepted by cache.backend / CACHE_BACKEND.
const (
	BackendInMemory  = "in_memory"
	BackendRedis     = "redis"
	BackendMemcached = "memcached"
)

// Config holds service configuration loaded from .env, YAML and the environment.
type Config struct {
	OpsPort string

	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration
	RateLimitRPS      float64 // 0 disables outbound rate limiting
	RateLimitBurst    int

	CacheBackend string
	RedisURL     string
	RedisTimeout time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	WarmEnabled  bool
	WarmInterval time.Duration
	WarmQueries  []models.Query

	DegradedWindow   time.Duration
	DegradedErrorPct int // 0 disables the error-rate health check

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	WeatherAPI struct {
		URL            string  `yaml:"url"`
		Timeout        string  `yaml:"timeout"`
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst int     `yaml:"rate_limit_burst"`
	} `yaml:"weather_api"`

	Cache struct {
		Backend string `yaml:"backend"`
		Redis   struct {
			URL     string `yaml:"url"`
			Timeout string `yaml:"timeout"`
		} `yaml:"redis"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	CircuitBreaker struct {
		Enabled          *bool  `yaml:"enabled"`
		FailureThreshold int    `yaml:"failure_threshold"`
		SuccessThreshold int    `yaml:"success_threshold"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"circuit_breaker"`

	Warm struct {
		Enabled  bool           `yaml:"enabled"`
		Interval string         `yaml:"interval"`
		Queries  []models.Query `yaml:"queries"`
	} `yaml:"warm"`

	Ops struct {
		Port string `yaml:"port"`
	} `yaml:"ops"`

	Health struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct *int   `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

// Load reads .env (if present), config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml. The API key comes from WEATHER_API_KEY or the secrets
// file. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.WeatherAPIKey, err = loadAPIKey(cwd)
	if err != nil {
		return nil, err
	}

	cfg.WeatherAPIURL = strings.TrimSpace(fc.WeatherAPI.URL)
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = "https://api.openweathermap.org/data/3.0/onecall"
	}
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 5*time.Second)
	cfg.RateLimitRPS = fc.WeatherAPI.RateLimitRPS
	cfg.RateLimitBurst = fc.WeatherAPI.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 1
	}

	cfg.CacheBackend = envOr("CACHE_BACKEND", fc.Cache.Backend)
	cfg.CacheBackend = strings.ToLower(cfg.CacheBackend)
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = BackendInMemory
	}
	cfg.RedisURL = envOr("REDIS_URL", fc.Cache.Redis.URL)
	if cfg.RedisURL == "" {
		cfg.RedisURL = "redis://localhost:6379/0"
	}
	cfg.RedisTimeout = parseDuration(fc.Cache.Redis.Timeout, 500*time.Millisecond)
	cfg.MemcachedAddrs = envOr("MEMCACHED_ADDRS", fc.Cache.Memcached.Addrs)
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.CircuitBreakerEnabled = true
	if fc.CircuitBreaker.Enabled != nil {
		cfg.CircuitBreakerEnabled = *fc.CircuitBreaker.Enabled
	}
	cfg.CircuitBreakerFailureThreshold = fc.CircuitBreaker.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = fc.CircuitBreaker.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.CircuitBreaker.Timeout, 30*time.Second)

	cfg.WarmEnabled = fc.Warm.Enabled
	cfg.WarmInterval = parseDuration(fc.Warm.Interval, 5*time.Minute)
	cfg.WarmQueries = fc.Warm.Queries

	cfg.OpsPort = strings.TrimSpace(fc.Ops.Port)
	if cfg.OpsPort == "" {
		cfg.OpsPort = "9090"
	}
	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, time.Minute)
	cfg.DegradedErrorPct = 50
	if fc.Health.DegradedErrorPct != nil {
		cfg.DegradedErrorPct = *fc.Health.DegradedErrorPct
	}
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 10*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadAPIKey(cwd string) (string, error) {
	if key := strings.TrimSpace(os.Getenv("WEATHER_API_KEY")); key != "" {
		return key, nil
	}
	secretsData, err := os.ReadFile(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	if err == nil {
		var sec secretsFile
		if err := yaml.Unmarshal(secretsData, &sec); err != nil {
			return "", fmt.Errorf("parse secrets file: %w", err)
		}
		if key := strings.TrimSpace(sec.WeatherAPIKey); key != "" {
			return key, nil
		}
	}
	return "", fmt.Errorf("WEATHER_API_KEY required (set env, .env or config/secrets.yaml weather_api_key)")
}

// envOr returns the trimmed env var name if set, else the trimmed fallback.
func envOr(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return strings.TrimSpace(fallback)
}

// parseDuration parses s, falling back to defaultVal when s is empty, malformed or not positive.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero is parseDuration without the positivity check; validate rejects what it lets through.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate checks loaded values and normalizes warm query units.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("weather_api.rate_limit_rps must not be negative")
	}
	if cfg.DegradedErrorPct < 0 || cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("health.degraded_error_pct must be between 0 and 100, got %d", cfg.DegradedErrorPct)
	}
	switch cfg.CacheBackend {
	case BackendInMemory, BackendRedis, BackendMemcached:
	default:
		return fmt.Errorf("cache.backend must be in_memory, redis or memcached, got %q", cfg.CacheBackend)
	}
	for i := range cfg.WarmQueries {
		u, err := models.ParseUnits(string(cfg.WarmQueries[i].Units))
		if err != nil {
			return fmt.Errorf("warm.queries[%d]: %w", i, err)
		}
		cfg.WarmQueries[i].Units = u
	}
	if cfg.WarmEnabled && len(cfg.WarmQueries) == 0 {
		return fmt.Errorf("warm.enabled requires at least one warm.queries entry")
	}
	return nil
}
