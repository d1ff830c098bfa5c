package models

import (
	"errors"
	"math"
	"testing"
)

// TestCacheKey verifies the fixed key format and numeric rendering for coordinates.
func TestCacheKey(t *testing.T) {
	tests := []struct {
		name   string
		coords Coordinates
		units  Units
		want   string
	}{
		{"whole numbers", Coordinates{Lat: 45.0, Lon: -75.0}, UnitsMetric, "lat=45&lon=-75&units=metric"},
		{"fractional", Coordinates{Lat: 47.6062, Lon: -122.3321}, UnitsImperial, "lat=47.6062&lon=-122.3321&units=imperial"},
		{"zero", Coordinates{Lat: 0, Lon: 0}, UnitsStandard, "lat=0&lon=0&units=standard"},
		{"negative zero", Coordinates{Lat: math.Copysign(0, -1), Lon: 10}, UnitsMetric, "lat=0&lon=10&units=metric"},
		{"small value no exponent", Coordinates{Lat: 0.0001, Lon: 1e-7}, UnitsMetric, "lat=0.0001&lon=0.0000001&units=metric"},
		{"out of range passes through", Coordinates{Lat: 200, Lon: -500.5}, UnitsMetric, "lat=200&lon=-500.5&units=metric"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CacheKey(tt.coords, tt.units); got != tt.want {
				t.Errorf("CacheKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestCacheKey_NoRounding verifies that nearby but distinct coordinates produce distinct keys.
func TestCacheKey_NoRounding(t *testing.T) {
	a := CacheKey(Coordinates{Lat: 45.1, Lon: 1}, UnitsMetric)
	b := CacheKey(Coordinates{Lat: 45.10000001, Lon: 1}, UnitsMetric)
	if a == b {
		t.Errorf("CacheKey() collided for distinct latitudes: %q", a)
	}
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		in      string
		want    Units
		wantErr bool
	}{
		{"metric", UnitsMetric, false},
		{" Imperial ", UnitsImperial, false},
		{"STANDARD", UnitsStandard, false},
		{"kelvin", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseUnits(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownUnits) {
				t.Errorf("ParseUnits(%q) error = %v, want ErrUnknownUnits", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseUnits(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
		}
	}
}

// TestDecodePayload covers structural decoding and the weather shape check.
func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantErr   bool
		wantValid bool
	}{
		{"valid with weather", `{"weather":[{"id":800}],"temp":270}`, false, true},
		{"empty weather array", `{"weather":[]}`, false, true},
		{"missing weather", `{"temp":270}`, false, false},
		{"weather not array", `{"weather":{"id":800}}`, false, false},
		{"weather null", `{"weather":null}`, false, false},
		{"truncated", `{"weather":[{"id":`, true, false},
		{"top-level array", `[1,2]`, true, false},
		{"top-level null", `null`, true, false},
		{"plain text", `rate limited`, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodePayload(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodePayload(%q) error = nil, want error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodePayload(%q) error = %v", tt.raw, err)
			}
			if p.Valid() != tt.wantValid {
				t.Errorf("Valid() = %v, want %v", p.Valid(), tt.wantValid)
			}
		})
	}
}

func TestDecodePayload_NullIsNotObject(t *testing.T) {
	_, err := DecodePayload("null")
	if !errors.Is(err, ErrNotObject) {
		t.Errorf("DecodePayload(null) error = %v, want ErrNotObject", err)
	}
}
