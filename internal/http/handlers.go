package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-service/internal/circuitbreaker"
	"github.com/kjstillabower/weather-cache-service/internal/lifecycle"
	"github.com/kjstillabower/weather-cache-service/internal/observability"
)

// KeyValidator checks that the weather API accepts our credential.
type KeyValidator interface {
	ValidateAPIKey(ctx context.Context) error
}

// HealthChecks holds the optional probes reported by /health.
type HealthChecks struct {
	// CachePing checks a shared cache backend. Nil for in_memory.
	CachePing func() error
	// BreakerState reports the provider circuit. Nil when the breaker is disabled.
	BreakerState func() circuitbreaker.State
	// ErrorRate returns (errors, total) fetches in the recent window. Nil disables the check.
	ErrorRate func() (errors, total int)
	// DegradedErrorPct is the fetch error percentage at or above which health reports degraded.
	DegradedErrorPct int
	// CacheFailures returns recovered cache failures in the recent window. Informational only.
	CacheFailures func() int
}

// Handler serves the ops endpoints.
type Handler struct {
	validator KeyValidator
	process   *lifecycle.Process
	checks    HealthChecks
	logger    *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

func NewHandler(validator KeyValidator, process *lifecycle.Process, checks HealthChecks, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		validator: validator,
		process:   process,
		checks:    checks,
		logger:    logger,
	}
}

type healthResult struct {
	status     string
	statusCode int
	reason     string
	checks     map[string]string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		observability.LoggerFromContext(r.Context(), h.logger).Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	body := map[string]interface{}{
		"status":        result.status,
		"service":       observability.ServiceName,
		"version":       "dev",
		"checks":        result.checks,
		"uptimeSeconds": int64(h.process.Uptime().Seconds()),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}
	if h.checks.CacheFailures != nil {
		body["recentCacheFailures"] = h.checks.CacheFailures()
	}
	writeJSON(w, result.statusCode, body)
}

// computeHealthStatus evaluates, in order: shutting-down, API key, circuit
// breaker, fetch error rate, cache. A failing cache still answers 200 because fetches fall
// through to the provider; the other failures make the process unfit for traffic.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	checks := make(map[string]string)
	if h.process.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal", checks}
	}

	apiErr := h.validator.ValidateAPIKey(ctx)
	checks["weatherApi"] = healthyString(apiErr == nil)

	breakerOpen := false
	if h.checks.BreakerState != nil {
		state := h.checks.BreakerState()
		checks["circuitBreaker"] = state.String()
		breakerOpen = state == circuitbreaker.StateOpen
	}

	errorRateBreached := false
	if h.checks.ErrorRate != nil && h.checks.DegradedErrorPct > 0 {
		errs, total := h.checks.ErrorRate()
		errorRateBreached = total > 0 && errs*100 >= h.checks.DegradedErrorPct*total
		checks["fetches"] = healthyString(!errorRateBreached)
	}

	cacheOK := true
	if h.checks.CachePing != nil {
		cacheOK = h.checks.CachePing() == nil
		checks["cache"] = healthyString(cacheOK)
	}

	switch {
	case apiErr != nil:
		observability.LoggerFromContext(ctx, h.logger).Debug("api key check failed", zap.Error(apiErr))
		return healthResult{"degraded", http.StatusServiceUnavailable, "api_key_invalid", checks}
	case breakerOpen:
		return healthResult{"degraded", http.StatusServiceUnavailable, "circuit_open", checks}
	case errorRateBreached:
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach", checks}
	case !cacheOK:
		return healthResult{"degraded", http.StatusOK, "cache_unreachable", checks}
	}
	return healthResult{"healthy", http.StatusOK, "", checks}
}

func healthyString(ok bool) string {
	if ok {
		return "healthy"
	}
	return "unhealthy"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
