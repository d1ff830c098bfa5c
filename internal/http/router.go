package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-service/internal/observability"
)

// NewRouter mounts /health and /metrics. Weather lookups are not served over HTTP.
func NewRouter(h *Handler, logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(CorrelationIDMiddleware(logger))
	r.Use(MetricsMiddleware)
	r.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	return r
}
