package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/aisjump/detector/pkg/core"
	"github.com/tidwall/geodesic"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ValidLatLon reports whether lat/lon are finite and inside [-90,90] / [-180,180].
func ValidLatLon(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// ParseLatLon parses decimal-degree strings, trimming surrounding whitespace.
func ParseLatLon(latStr, lonStr string) (core.Position, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return core.Position{}, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return core.Position{}, ErrInvalidCoordinates
	}
	if !ValidLatLon(lat, lon) {
		return core.Position{}, ErrInvalidCoordinates
	}
	return core.Position{Latitude: lat, Longitude: lon}, nil
}

// DistanceKm returns the geodesic distance between a and b on the WGS-84
// ellipsoid in kilometres.
func DistanceKm(a, b core.Position) (float64, error) {
	if !ValidLatLon(a.Latitude, a.Longitude) || !ValidLatLon(b.Latitude, b.Longitude) {
		return 0, ErrInvalidCoordinates
	}
	var meters float64
	geodesic.WGS84.Inverse(a.Latitude, a.Longitude, b.Latitude, b.Longitude, &meters, nil, nil)
	return meters / 1000, nil
}
