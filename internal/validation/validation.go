package validation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kjstillabower/weather-cache-service/internal/models"
)

// ErrCoordinateEmpty is returned when lat or lon is empty or whitespace-only.
var ErrCoordinateEmpty = errors.New("coordinate is required")

// ErrCoordinateNotNumber is returned when lat or lon does not parse as a finite decimal.
var ErrCoordinateNotNumber = errors.New("coordinate is not a number")

// ErrCoordinateOutOfRange is returned for latitudes outside [-90, 90] or longitudes outside [-180, 180].
var ErrCoordinateOutOfRange = errors.New("coordinate out of range")

// ParseQuery turns command-line text into a Query. Units default to standard
// when empty. The fetcher itself accepts any finite point; the range check
// here only spares a provider round trip for input OpenWeather would reject.
func ParseQuery(lat, lon, units string) (models.Query, error) {
	la, err := parseCoordinate("lat", lat, 90)
	if err != nil {
		return models.Query{}, err
	}
	lo, err := parseCoordinate("lon", lon, 180)
	if err != nil {
		return models.Query{}, err
	}
	u := models.UnitsStandard
	if strings.TrimSpace(units) != "" {
		if u, err = models.ParseUnits(units); err != nil {
			return models.Query{}, err
		}
	}
	return models.Query{Coordinates: models.Coordinates{Lat: la, Lon: lo}, Units: u}, nil
}

func parseCoordinate(name, input string, limit float64) (float64, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, fmt.Errorf("%s: %w", name, ErrCoordinateEmpty)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s %q: %w", name, input, ErrCoordinateNotNumber)
	}
	if v < -limit || v > limit {
		return 0, fmt.Errorf("%s %s: %w", name, s, ErrCoordinateOutOfRange)
	}
	return v, nil
}
