// Package geo provides the geographic primitives used by the scoring engine
// and the heatmap pipeline: haversine distances, degree/meter conversions,
// bounding boxes, and deterministic grid generation.
package geo

import (
	"errors"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used for haversine distances.
const EarthRadiusMeters = 6371008.8

// MetersPerDegreeLat is the approximate length of one degree of latitude.
const MetersPerDegreeLat = 111320.0

// ErrInvalidCoordinate is returned when a coordinate is outside WGS84 bounds.
var ErrInvalidCoordinate = errors.New("coordinate out of range")

// Coordinate is a WGS84 point in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the coordinate is within valid WGS84 ranges.
func (c Coordinate) Validate() error {
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return ErrInvalidCoordinate
	}
	return nil
}

// Bounds is a geographic bounding box. MinLat <= MaxLat and MinLng <= MaxLng;
// boxes crossing the antimeridian are not supported.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// Contains reports whether the point lies within the box (inclusive).
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Coordinate {
	return Coordinate{
		Lat: (b.MinLat + b.MaxLat) / 2,
		Lng: (b.MinLng + b.MaxLng) / 2,
	}
}

// Expand grows the box by the given distance in meters on every side.
// The longitude delta is adjusted for the latitude of the box center, so the
// buffer is at least the requested distance everywhere at city scale.
func (b Bounds) Expand(meters float64) Bounds {
	latDelta, lngDelta := DegreeDeltaForMeters(meters, b.Center().Lat)
	return Bounds{
		MinLat: b.MinLat - latDelta,
		MinLng: b.MinLng - lngDelta,
		MaxLat: b.MaxLat + latDelta,
		MaxLng: b.MaxLng + lngDelta,
	}
}

// BoundsAround returns a square box of the given half-size in meters centered
// on a point.
func BoundsAround(lat, lng, halfSizeMeters float64) Bounds {
	latDelta, lngDelta := DegreeDeltaForMeters(halfSizeMeters, lat)
	return Bounds{
		MinLat: lat - latDelta,
		MinLng: lng - lngDelta,
		MaxLat: lat + latDelta,
		MaxLng: lng + lngDelta,
	}
}

// DistanceMeters returns the haversine great-circle distance between two
// points in meters. Accurate to roughly 0.5% at city scale, which is well
// inside the rounding applied by the scoring layer.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)

	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// DegreeDeltaForMeters approximates a meter radius as latitude and longitude
// deltas at the given latitude. This is a fast pre-filter, not an exact
// conversion: callers must follow it with an exact haversine check before
// treating a candidate as within radius.
func DegreeDeltaForMeters(meters, atLat float64) (latDelta, lngDelta float64) {
	latDelta = meters / MetersPerDegreeLat
	cosLat := math.Cos(atLat * math.Pi / 180)
	if cosLat < 1e-6 {
		cosLat = 1e-6
	}
	lngDelta = meters / (MetersPerDegreeLat * cosLat)
	return latDelta, lngDelta
}
