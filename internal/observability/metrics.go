package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// Fetch outcomes by result (cache_hit, provider, error). Hit ratio = cache_hit / total.
	FetchesTotal *prometheus.CounterVec

	// Queries by unit system. Watch for: unexpected unit mix fragmenting the cache.
	WeatherQueriesByUnitsTotal *prometheus.CounterVec

	// Cache lookups by result (hit, miss, invalid, error).
	CacheLookupsTotal *prometheus.CounterVec

	// Recoverable cache failures by op (get, set, decode) and category. Watch for: sustained errors = cache down.
	CacheErrorsTotal *prometheus.CounterVec

	// Cache round-trip latency per op and result.
	CacheOperationDurationSeconds *prometheus.HistogramVec

	// Payloads lacking a weather array, by source (cache, provider).
	InvalidPayloadsTotal *prometheus.CounterVec

	// OpenWeather API call rate by status label. Watch for: error vs success ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// External API latency per request. Watch for: p95 > 2s (upstream degradation).
	WeatherAPIDuration *prometheus.HistogramVec

	// Failed fetches by error category (see client.CategorizeError).
	WeatherAPIErrorsTotal *prometheus.CounterVec

	// Concurrent misses on one key; misses are not collapsed, so each one reaches the provider.
	CacheStampedeDetectedTotal prometheus.Counter
	CacheStampedeConcurrency   prometheus.Histogram

	CacheWarmingTotal           prometheus.Counter
	CacheWarmingErrorsTotal     prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram

	// Circuit breaker state per component: 0 closed, 1 open, 2 half-open.
	CircuitBreakerState            *prometheus.GaugeVec
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Requests to the ops listener (/health, /metrics) by method, route and status class.
	OpsRequestsTotal   *prometheus.CounterVec
	OpsRequestDuration *prometheus.HistogramVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherFetchesTotal",
			Help: "Total number of weather fetches by result",
		},
		[]string{"result"},
	)
	WeatherQueriesByUnitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherQueriesByUnitsTotal",
			Help: "Weather fetches by requested unit system",
		},
		[]string{"units"},
	)
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheLookupsTotal",
			Help: "Cache lookups by result (hit, miss, invalid, error)",
		},
		[]string{"result"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Recoverable cache failures by operation and category",
		},
		[]string{"op", "category"},
	)
	CacheOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheOperationDurationSeconds",
			Help:    "Cache operation latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"op", "result"},
	)
	InvalidPayloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidPayloadsTotal",
			Help: "Payloads without a weather array, by source",
		},
		[]string{"source"},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of OpenWeather API calls",
		},
		[]string{"status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "OpenWeather API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	WeatherAPIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiErrorsTotal",
			Help: "Failed weather fetches by error category",
		},
		[]string{"category"},
	)
	CacheStampedeDetectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheStampedeDetectedTotal",
			Help: "Cache misses that overlapped another in-progress miss for the same key",
		},
	)
	CacheStampedeConcurrency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheStampedeConcurrency",
			Help:    "Concurrent misses for one key when a stampede is detected",
			Buckets: []float64{2, 3, 5, 10, 25, 50},
		},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Cache warming runs with at least one failed query",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Cache warming run duration in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30},
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)

	OpsRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsRequestsTotal",
			Help: "Requests served by the ops listener",
		},
		[]string{"method", "route", "status"},
	)
	OpsRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsRequestDurationSeconds",
			Help:    "Ops listener request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	registry.MustRegister(
		FetchesTotal, WeatherQueriesByUnitsTotal,
		CacheLookupsTotal, CacheErrorsTotal, CacheOperationDurationSeconds, InvalidPayloadsTotal,
		WeatherAPICallsTotal, WeatherAPIDuration, WeatherAPIErrorsTotal,
		CacheStampedeDetectedTotal, CacheStampedeConcurrency,
		CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingDurationSeconds,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		OpsRequestsTotal, OpsRequestDuration,
	)
}

// RecordCircuitBreakerTransition counts a transition and updates the state gauge.
// state is the numeric value of the new state.
func RecordCircuitBreakerTransition(component, from, to string, state int) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(float64(state))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
