//go:build integration
// +build integration

package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/kjstillabower/weather-cache-service/internal/models"
	"github.com/kjstillabower/weather-cache-service/internal/testhelpers"
)

// TestWeatherFetcher_Integration_LiveFetchPopulatesCache runs against OpenWeather and the configured cache.
func TestWeatherFetcher_Integration_LiveFetchPopulatesCache(t *testing.T) {
	cfg := testhelpers.GetIntegrationConfig(t)
	fetcher, c := testhelpers.SetupIntegrationFetcher(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	coords := models.Coordinates{Lat: 45.4215, Lon: -75.6972}
	payload, err := fetcher.Fetch(ctx, coords, models.UnitsMetric)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(payload) == 0 {
		t.Fatal("Fetch() returned empty payload")
	}

	_, cached, err := c.Get(ctx, models.CacheKey(coords, models.UnitsMetric))
	if err != nil {
		t.Fatalf("cache Get() error = %v", err)
	}
	if cached != payload.Valid() {
		t.Errorf("cached = %v, want %v (only payloads with a top-level weather array are cached)", cached, payload.Valid())
	}
}
