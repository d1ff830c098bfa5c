package client

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/kjstillabower/weather-cache-service/internal/circuitbreaker"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

// Error category constants used as metric labels (weatherApiErrorsTotal, cacheErrorsTotal).
const (
	ErrorCategoryTimeout       ErrorCategory = "timeout"
	ErrorCategoryNetwork       ErrorCategory = "network"
	ErrorCategoryInvalidAPIKey ErrorCategory = "invalid_api_key"
	ErrorCategoryRateLimited   ErrorCategory = "rate_limited"
	ErrorCategoryClient4xx     ErrorCategory = "client_4xx"
	ErrorCategoryUpstream5xx   ErrorCategory = "upstream_5xx"
	ErrorCategoryCircuitOpen   ErrorCategory = "circuit_open"
	ErrorCategoryParsing       ErrorCategory = "parsing"
	ErrorCategoryUnknown       ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metrics.
// Typed errors are checked before message heuristics.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return ErrorCategoryCircuitOpen
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		switch {
		case errors.Is(err, ErrInvalidAPIKey):
			return ErrorCategoryInvalidAPIKey
		case errors.Is(err, ErrRateLimited):
			return ErrorCategoryRateLimited
		case pe.StatusCode >= 400 && pe.StatusCode < 500:
			return ErrorCategoryClient4xx
		default:
			return ErrorCategoryUpstream5xx
		}
	}
	if errors.Is(err, ErrInvalidAPIKey) {
		return ErrorCategoryInvalidAPIKey
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorCategoryTimeout
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return ErrorCategoryTimeout
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "EOF") {
		return ErrorCategoryNetwork
	}
	if strings.Contains(errStr, "decode") || strings.Contains(errStr, "invalid character") ||
		strings.Contains(errStr, "unexpected end of JSON") {
		return ErrorCategoryParsing
	}
	return ErrorCategoryUnknown
}
