package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-service/internal/cache"
	"github.com/kjstillabower/weather-cache-service/internal/client"
	"github.com/kjstillabower/weather-cache-service/internal/models"
	"github.com/kjstillabower/weather-cache-service/internal/observability"
)

// CacheTTL is how long a provider response stays in the cache.
const CacheTTL = 10 * time.Minute

// OutcomeRecorder receives one call per Fetch outcome. Cache failures are
// reported in addition to the success or error of the call.
type OutcomeRecorder interface {
	RecordSuccess()
	RecordError()
	RecordCacheFailure()
}

type nopRecorder struct{}

func (nopRecorder) RecordSuccess()      {}
func (nopRecorder) RecordError()        {}
func (nopRecorder) RecordCacheFailure() {}

// WeatherFetcher is a cache-aside accessor: it reads the cache first and, on a
// miss, calls the provider and stores the result. Cache trouble never fails a
// call; provider and decode trouble always does.
//
// Concurrent misses for one key are not collapsed. Each reaches the provider.
type WeatherFetcher struct {
	provider client.WeatherProvider
	cache    cache.Cache
	logger   *zap.Logger
	misses   *missTracker
	outcomes OutcomeRecorder
}

// NewWeatherFetcher wires a fetcher. A nil logger discards warnings.
func NewWeatherFetcher(provider client.WeatherProvider, c cache.Cache, logger *zap.Logger) *WeatherFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeatherFetcher{
		provider: provider,
		cache:    c,
		logger:   logger,
		misses:   newMissTracker(),
		outcomes: nopRecorder{},
	}
}

// SetOutcomeRecorder reports every fetch outcome to r. Call before first use.
func (f *WeatherFetcher) SetOutcomeRecorder(r OutcomeRecorder) {
	f.outcomes = r
}

// Fetch returns weather for coords in units. Per call it performs at most one
// cache read, one provider call and one cache write.
//
// A payload without a weather array is returned to the caller but not cached.
func (f *WeatherFetcher) Fetch(ctx context.Context, coords models.Coordinates, units models.Units) (models.WeatherPayload, error) {
	start := time.Now()
	key := models.CacheKey(coords, units)
	logger := observability.LoggerFromContext(ctx, f.logger).With(zap.String("key", key))
	observability.WeatherQueriesByUnitsTotal.WithLabelValues(string(units)).Inc()

	if payload, ok := f.readCache(ctx, logger, key); ok {
		observability.FetchesTotal.WithLabelValues("cache_hit").Inc()
		f.outcomes.RecordSuccess()
		logger.Debug("weather served", zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		return payload, nil
	}

	concurrent, done := f.misses.begin(key)
	defer done()
	if concurrent > 1 {
		observability.CacheStampedeDetectedTotal.Inc()
		observability.CacheStampedeConcurrency.Observe(float64(concurrent))
	}

	raw, err := f.provider.FetchWeather(ctx, coords, units)
	if err != nil {
		observability.FetchesTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIErrorsTotal.WithLabelValues(string(client.CategorizeError(err))).Inc()
		f.outcomes.RecordError()
		return nil, fmt.Errorf("fetch weather %s: %w", key, err)
	}

	payload, err := models.DecodePayload(raw)
	if err != nil {
		observability.FetchesTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIErrorsTotal.WithLabelValues(string(client.ErrorCategoryParsing)).Inc()
		f.outcomes.RecordError()
		return nil, &DecodeError{Err: err}
	}

	if payload.Valid() {
		f.writeCache(ctx, logger, key, raw)
	} else {
		observability.InvalidPayloadsTotal.WithLabelValues("provider").Inc()
		logger.Warn("provider payload has no weather array, not caching")
	}

	observability.FetchesTotal.WithLabelValues("provider").Inc()
	f.outcomes.RecordSuccess()
	logger.Debug("weather served", zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	return payload, nil
}

// readCache reports a usable hit. Backend errors, undecodable text and
// payloads without a weather array all count as a miss.
func (f *WeatherFetcher) readCache(ctx context.Context, logger *zap.Logger, key string) (models.WeatherPayload, bool) {
	getStart := time.Now()
	raw, ok, err := f.cache.Get(ctx, key)
	elapsed := time.Since(getStart).Seconds()
	if err != nil {
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(elapsed)
		observability.CacheLookupsTotal.WithLabelValues("error").Inc()
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		f.outcomes.RecordCacheFailure()
		logger.Warn("cache read failed, fetching from provider", zap.Error(&CacheReadFailure{Key: key, Err: err}))
		return nil, false
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(elapsed)
	if !ok {
		observability.CacheLookupsTotal.WithLabelValues("miss").Inc()
		logger.Debug("cache miss")
		return nil, false
	}

	payload, err := models.DecodePayload(raw)
	if err != nil {
		observability.CacheLookupsTotal.WithLabelValues("error").Inc()
		observability.CacheErrorsTotal.WithLabelValues("decode", "parsing").Inc()
		f.outcomes.RecordCacheFailure()
		logger.Warn("cached value does not decode, fetching from provider", zap.Error(&CacheReadFailure{Key: key, Err: err}))
		return nil, false
	}
	if !payload.Valid() {
		observability.CacheLookupsTotal.WithLabelValues("invalid").Inc()
		observability.InvalidPayloadsTotal.WithLabelValues("cache").Inc()
		logger.Warn("cached payload has no weather array, discarding")
		return nil, false
	}

	observability.CacheLookupsTotal.WithLabelValues("hit").Inc()
	logger.Debug("cache hit")
	return payload, true
}

func (f *WeatherFetcher) writeCache(ctx context.Context, logger *zap.Logger, key, raw string) {
	setStart := time.Now()
	err := f.cache.Set(ctx, key, raw, CacheTTL)
	elapsed := time.Since(setStart).Seconds()
	if err != nil {
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(elapsed)
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(err)).Inc()
		f.outcomes.RecordCacheFailure()
		logger.Warn("cache write failed", zap.Error(&CacheWriteFailure{Key: key, Err: err}))
		return
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(elapsed)
}

// categorizeCacheError returns a stable label for cache error metrics.
func categorizeCacheError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "dial") {
		return "connection"
	}
	return "unknown"
}
