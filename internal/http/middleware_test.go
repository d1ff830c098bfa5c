package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-service/internal/lifecycle"
	"github.com/kjstillabower/weather-cache-service/internal/observability"
)

func newTestRouter() http.Handler {
	handler := NewHandler(&mockValidator{}, lifecycle.NewProcess(), HealthChecks{}, zap.NewNop())
	return NewRouter(handler, zap.NewNop())
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	router := newTestRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("X-Correlation-ID header missing")
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `opsRequestsTotal{method="GET",route="/health",status="2xx"}`) {
		t.Error("metrics output missing opsRequestsTotal for /health")
	}
}

func TestRouter_NoWeatherRoute(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/weather/seattle", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestMiddleware_CorrelationIDPropagated(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.CorrelationID(r.Context())
	})
	h := CorrelationIDMiddleware(zap.NewNop())(next)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "client-provided-id")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "client-provided-id" {
		t.Errorf("X-Correlation-ID = %q, want client-provided-id", got)
	}
	if seen != "client-provided-id" {
		t.Errorf("context correlation ID = %q, want client-provided-id", seen)
	}
}

func TestMiddleware_GetRouteUnmatched(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	if got := getRoute(req); got != "unmatched" {
		t.Errorf("getRoute() = %q, want unmatched", got)
	}
}

func TestStatusCodeString(t *testing.T) {
	tests := map[int]string{200: "2xx", 404: "4xx", 503: "5xx"}
	for code, want := range tests {
		if got := statusCodeString(code); got != want {
			t.Errorf("statusCodeString(%d) = %q, want %q", code, got, want)
		}
	}
}
