package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-service/internal/models"
	"github.com/kjstillabower/weather-cache-service/internal/observability"
)

// PayloadFetcher is implemented by the service layer. Declared here so the
// warmer does not import the service package.
type PayloadFetcher interface {
	Fetch(ctx context.Context, coords models.Coordinates, units models.Units) (models.WeatherPayload, error)
}

// CacheWarmer prefetches a fixed set of queries so their entries are populated
// before callers ask for them.
type CacheWarmer struct {
	fetcher PayloadFetcher
	logger  *zap.Logger
}

func NewCacheWarmer(fetcher PayloadFetcher, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{fetcher: fetcher, logger: logger}
}

// Warm fetches every query concurrently. Each warm run gets its own
// correlation ID. The returned error joins every failed query.
func (w *CacheWarmer) Warm(ctx context.Context, queries []models.Query) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()

	ctx = observability.WithCorrelationID(ctx, w.logger, uuid.NewString())
	logger := observability.LoggerFromContext(ctx, w.logger)
	logger.Info("warming cache", zap.Int("queries", len(queries)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, q := range queries {
		wg.Add(1)
		go func(q models.Query) {
			defer wg.Done()
			if _, err := w.fetcher.Fetch(ctx, q.Coordinates, q.Units); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("warm %s: %w", models.CacheKey(q.Coordinates, q.Units), err))
				mu.Unlock()
			}
		}(q)
	}
	wg.Wait()

	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	logger.Info("cache warming complete",
		zap.Int("queries", len(queries)),
		zap.Int("errors", len(errs)),
		zap.Float64("duration_seconds", duration))
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}

// WarmPeriodic runs Warm once, then again every interval until ctx is done.
// Failed runs are logged and do not stop the loop.
func (w *CacheWarmer) WarmPeriodic(ctx context.Context, queries []models.Query, interval time.Duration) error {
	if err := w.Warm(ctx, queries); err != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, queries); err != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
