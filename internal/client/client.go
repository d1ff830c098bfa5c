package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-cache-service/internal/circuitbreaker"
	"github.com/kjstillabower/weather-cache-service/internal/models"
	"github.com/kjstillabower/weather-cache-service/internal/observability"
)

// DefaultAPIURL is the OpenWeather One Call 3.0 endpoint.
const DefaultAPIURL = "https://api.openweathermap.org/data/3.0/onecall"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

// WeatherProvider fetches raw weather JSON for a point. Implementations make
// exactly one upstream attempt per call.
type WeatherProvider interface {
	FetchWeather(ctx context.Context, coords models.Coordinates, units models.Units) (string, error)
}

// WeatherClient is a WeatherProvider that can also check its credential.
type WeatherClient interface {
	WeatherProvider
	ValidateAPIKey(ctx context.Context) error
}

var (
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
)

// ProviderError is returned when the weather API answers with a non-2xx status.
// Body holds the response text for diagnostics.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("weather api: HTTP %d: %s", e.StatusCode, e.Body)
}

// Unwrap maps the status to a category sentinel so callers can use errors.Is.
func (e *ProviderError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return ErrInvalidAPIKey
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrUpstreamFailure
	}
}

type OpenWeatherClient struct {
	apiKey  string
	apiURL  string
	timeout time.Duration
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewOpenWeatherClient validates the key and URL and returns a client whose
// requests are bounded by timeout.
func NewOpenWeatherClient(apiKey, apiURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	return &OpenWeatherClient{
		apiKey:  apiKey,
		apiURL:  apiURL,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker wraps every upstream call in cb. Call before first use.
func (c *OpenWeatherClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

// SetRateLimiter makes each call wait for a token from l. Call before first use.
func (c *OpenWeatherClient) SetRateLimiter(l *rate.Limiter) {
	c.limiter = l
}

// FetchWeather performs one GET and returns the raw body on 2xx.
// Non-2xx responses return *ProviderError; the call is never retried.
func (c *OpenWeatherClient) FetchWeather(ctx context.Context, coords models.Coordinates, units models.Units) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}
	if c.breaker == nil {
		return c.callAPI(ctx, coords, units)
	}
	var body string
	var callErr error
	err := c.breaker.Call(ctx, func() error {
		body, callErr = c.callAPI(ctx, coords, units)
		if isClientSideFailure(callErr) {
			return nil
		}
		return callErr
	})
	if err != nil {
		return "", err
	}
	if callErr != nil {
		return "", callErr
	}
	return body, nil
}

// isClientSideFailure reports 4xx responses other than 429. They say nothing
// about upstream availability, so they do not count toward opening the circuit.
func isClientSideFailure(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.StatusCode >= 400 && pe.StatusCode < 500 && pe.StatusCode != http.StatusTooManyRequests
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, coords models.Coordinates, units models.Units) (string, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, coords, units)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("build request: %w", err)
	}
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("request timeout: %w", redactURLError(err))
		}
		return "", fmt.Errorf("http request failed: %w", redactURLError(err))
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return string(body), nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, coords models.Coordinates, units models.Units) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := baseURL.Query()
	params.Set("lat", models.FormatCoordinate(coords.Lat))
	params.Set("lon", models.FormatCoordinate(coords.Lon))
	params.Set("units", string(units))
	params.Set("appid", c.apiKey)
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// redactURLError drops the request URL (which carries appid) from transport errors.
func redactURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// ValidateAPIKey issues a probe request at (0,0) and reports whether the key is accepted.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := c.buildRequest(ctx, models.Coordinates{}, models.UnitsStandard)
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", redactURLError(err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}
	return nil
}
