package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-cache-service/internal/cache"
	"github.com/kjstillabower/weather-cache-service/internal/circuitbreaker"
	"github.com/kjstillabower/weather-cache-service/internal/client"
	"github.com/kjstillabower/weather-cache-service/internal/config"
	httphandler "github.com/kjstillabower/weather-cache-service/internal/http"
	"github.com/kjstillabower/weather-cache-service/internal/lifecycle"
	"github.com/kjstillabower/weather-cache-service/internal/models"
	"github.com/kjstillabower/weather-cache-service/internal/observability"
	"github.com/kjstillabower/weather-cache-service/internal/service"
	"github.com/kjstillabower/weather-cache-service/internal/traffic"
	"github.com/kjstillabower/weather-cache-service/internal/validation"
)

const usage = `usage: weather-cache <command> [flags]

commands:
  fetch -lat <lat> -lon <lon> [-units standard|metric|imperial]
        print the weather payload for one point, reading through the cache
  serve run cache warming and the ops listener (/health, /metrics)`

var errUsage = errors.New("usage")

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, os.Args[1:], os.Stdout, os.Stderr, logger)
	stop()

	if ferr := observability.FlushTelemetry(logger); ferr != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", ferr)
	}
	if errors.Is(err, errUsage) {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("weather-cache failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, logger *zap.Logger) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	if cmd != "fetch" && cmd != "serve" {
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cmd == "fetch" {
		return runFetch(ctx, cfg, rest, stdout, stderr, logger)
	}
	return runServe(ctx, cfg, logger)
}

// components is the wired object graph shared by both commands.
type components struct {
	client    *client.OpenWeatherClient
	breaker   *circuitbreaker.CircuitBreaker
	fetcher   *service.WeatherFetcher
	cachePing func() error
	closers   []io.Closer
}

func (c *components) Close(logger *zap.Logger) {
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			logger.Error("cache close", zap.Error(err))
		}
	}
}

func wire(cfg *config.Config, logger *zap.Logger) (*components, error) {
	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		return nil, fmt.Errorf("weather client: %w", err)
	}
	c := &components{client: weatherClient}

	if cfg.CircuitBreakerEnabled {
		c.breaker = circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        "weather_api",
			OnStateChange: func(component string, from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition(component, from.String(), to.String(), int(to))
				logger.Warn("circuit breaker transition",
					zap.String("component", component),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
		weatherClient.SetCircuitBreaker(c.breaker)
		observability.CircuitBreakerState.WithLabelValues("weather_api").Set(0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}
	if cfg.RateLimitRPS > 0 {
		weatherClient.SetRateLimiter(rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst))
	}

	var kv cache.Cache
	switch cfg.CacheBackend {
	case config.BackendRedis:
		rc, err := cache.NewRedisCache(cfg.RedisURL, cfg.RedisTimeout)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		kv, c.cachePing = rc, rc.Ping
		c.closers = append(c.closers, rc)
	case config.BackendMemcached:
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, fmt.Errorf("memcached cache: %w", err)
		}
		kv, c.cachePing = mc, mc.Ping
		c.closers = append(c.closers, mc)
	default:
		kv = cache.NewInMemoryCache()
	}
	logger.Info("cache backend", zap.String("backend", cfg.CacheBackend))
	if c.cachePing != nil {
		if err := c.cachePing(); err != nil {
			logger.Warn("cache unreachable at startup, lookups will fall through to the provider", zap.Error(err))
		}
	}

	c.fetcher = service.NewWeatherFetcher(weatherClient, kv, logger)
	return c, nil
}

func runFetch(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer, logger *zap.Logger) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	lat := fs.String("lat", "", "latitude in decimal degrees")
	lon := fs.String("lon", "", "longitude in decimal degrees")
	units := fs.String("units", string(models.UnitsStandard), "standard, metric or imperial")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	q, err := validation.ParseQuery(*lat, *lon, *units)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	c, err := wire(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close(logger)

	ctx = observability.WithCorrelationID(ctx, logger, uuid.NewString())
	payload, err := c.fetcher.Fetch(ctx, q.Coordinates, q.Units)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	c, err := wire(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close(logger)

	outcomes := traffic.NewTracker(cfg.DegradedWindow)
	c.fetcher.SetOutcomeRecorder(outcomes)

	process := lifecycle.NewProcess()
	checks := httphandler.HealthChecks{
		CachePing:        c.cachePing,
		DegradedErrorPct: cfg.DegradedErrorPct,
		ErrorRate: func() (int, int) {
			return outcomes.ErrorRate(cfg.DegradedWindow)
		},
		CacheFailures: func() int {
			return outcomes.CacheFailureCount(cfg.DegradedWindow)
		},
	}
	if c.breaker != nil {
		checks.BreakerState = c.breaker.State
	}
	handler := httphandler.NewHandler(c.client, process, checks, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.OpsPort,
		Handler:      httphandler.NewRouter(handler, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("ops listener starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	warmCtx, cancelWarm := context.WithCancel(ctx)
	defer cancelWarm()
	var wg sync.WaitGroup
	if cfg.WarmEnabled {
		warmer := cache.NewCacheWarmer(c.fetcher, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := warmer.WarmPeriodic(warmCtx, cfg.WarmQueries, cfg.WarmInterval); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("periodic cache warming stopped", zap.Error(err))
			}
		}()
	}

	var listenErr error
	select {
	case <-ctx.Done():
		logger.Info("graceful shutdown triggered")
	case err, ok := <-serveErr:
		if ok {
			listenErr = fmt.Errorf("ops listener: %w", err)
		}
	}

	process.BeginShutdown()
	cancelWarm()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops listener shutdown", zap.Error(err))
	}
	wg.Wait()
	logger.Info("shutdown complete")
	return listenErr
}
