package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Units is the OpenWeather unit system for a query.
type Units string

const (
	UnitsStandard Units = "standard"
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// ErrUnknownUnits is returned by ParseUnits for values outside the enumeration.
var ErrUnknownUnits = errors.New("unknown units")

// ParseUnits accepts standard, metric or imperial (case-insensitive, trimmed).
func ParseUnits(s string) (Units, error) {
	u := Units(strings.ToLower(strings.TrimSpace(s)))
	if !u.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownUnits, s)
	}
	return u, nil
}

// Valid reports whether u is one of the three supported unit systems.
func (u Units) Valid() bool {
	switch u {
	case UnitsStandard, UnitsMetric, UnitsImperial:
		return true
	}
	return false
}

type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Query is one weather lookup: a point and the unit system to report it in.
type Query struct {
	Coordinates `yaml:",inline"`
	Units       Units `json:"units" yaml:"units"`
}

// FormatCoordinate renders v the way cache keys and provider queries expect:
// shortest round-tripping decimal, no exponent, no rounding. Negative zero is "0".
func FormatCoordinate(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CacheKey derives the cache key for a query, e.g. "lat=45&lon=-75&units=metric".
// Identical inputs always produce identical keys.
func CacheKey(c Coordinates, u Units) string {
	return "lat=" + FormatCoordinate(c.Lat) + "&lon=" + FormatCoordinate(c.Lon) + "&units=" + string(u)
}

// WeatherPayload is a provider response decoded without a schema.
// Unknown fields are preserved as-is.
type WeatherPayload map[string]any

// ErrNotObject is returned by DecodePayload when the text is valid JSON but not an object.
var ErrNotObject = errors.New("payload is not a JSON object")

// DecodePayload parses raw JSON text into a WeatherPayload.
func DecodePayload(raw string) (WeatherPayload, error) {
	var p WeatherPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotObject
	}
	return p, nil
}

// Valid reports whether the payload carries a "weather" array. An empty array is valid.
func (p WeatherPayload) Valid() bool {
	_, ok := p["weather"].([]any)
	return ok
}

// Weather returns the "weather" array, or nil if absent or not an array.
func (p WeatherPayload) Weather() []any {
	w, _ := p["weather"].([]any)
	return w
}
