package client

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kjstillabower/weather-cache-service/internal/circuitbreaker"
)

// TestCategorizeError verifies that CategorizeError maps errors to the correct ErrorCategory
// for metrics labeling, including typed errors, wrapped errors, and message-based heuristics.
func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"timeout context", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"canceled context", context.Canceled, ErrorCategoryTimeout},
		{"circuit open", circuitbreaker.ErrOpen, ErrorCategoryCircuitOpen},
		{"401", &ProviderError{StatusCode: 401}, ErrorCategoryInvalidAPIKey},
		{"429", &ProviderError{StatusCode: 429}, ErrorCategoryRateLimited},
		{"400", &ProviderError{StatusCode: 400, Body: "wrong latitude"}, ErrorCategoryClient4xx},
		{"500", &ProviderError{StatusCode: 500}, ErrorCategoryUpstream5xx},
		{"wrapped 503", fmt.Errorf("fetch: %w", &ProviderError{StatusCode: 503}), ErrorCategoryUpstream5xx},
		{"constructor key error", fmt.Errorf("%w: too short", ErrInvalidAPIKey), ErrorCategoryInvalidAPIKey},
		{"timeout in message", errors.New("i/o timeout"), ErrorCategoryTimeout},
		{"network in message", errors.New("dial tcp: connection refused"), ErrorCategoryNetwork},
		{"parse in message", errors.New("decode weather payload: invalid character 'x'"), ErrorCategoryParsing},
		{"unknown", errors.New("something else"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.want {
				t.Errorf("CategorizeError() = %v, want %v", got, tt.want)
			}
		})
	}
}
