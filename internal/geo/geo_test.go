package geo_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanindex/urbanindex/internal/geo"
)

func TestDistanceMeters(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64
		tolerance              float64
	}{
		{
			name: "same point",
			lat1: 52.370216, lng1: 4.895168,
			lat2: 52.370216, lng2: 4.895168,
			want: 0, tolerance: 0.001,
		},
		{
			name: "amsterdam to rotterdam",
			lat1: 52.370216, lng1: 4.895168,
			lat2: 51.9244, lng2: 4.4777,
			want: 57200, tolerance: 500,
		},
		{
			name: "one degree latitude",
			lat1: 52.0, lng1: 4.9,
			lat2: 53.0, lng2: 4.9,
			want: 111195, tolerance: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := geo.DistanceMeters(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			assert.InDelta(t, tt.want, got, tt.tolerance)
		})
	}
}

func TestCoordinateValidate(t *testing.T) {
	assert.NoError(t, geo.Coordinate{Lat: 52.37, Lng: 4.89}.Validate())
	assert.NoError(t, geo.Coordinate{Lat: -90, Lng: 180}.Validate())
	assert.ErrorIs(t, geo.Coordinate{Lat: 91, Lng: 0}.Validate(), geo.ErrInvalidCoordinate)
	assert.ErrorIs(t, geo.Coordinate{Lat: 0, Lng: -181}.Validate(), geo.ErrInvalidCoordinate)
}

func TestDegreeDeltaForMeters(t *testing.T) {
	latDelta, lngDelta := geo.DegreeDeltaForMeters(1000, 52.37)

	assert.InDelta(t, 1000/111320.0, latDelta, 1e-9)
	// Longitude degrees shrink with latitude, so the delta must be larger.
	assert.Greater(t, lngDelta, latDelta)

	// The pre-filter box must cover the true radius: a point latDelta north
	// is at most 1000m away, with some slack from the approximation.
	d := geo.DistanceMeters(52.37, 4.89, 52.37+latDelta, 4.89)
	assert.InDelta(t, 1000, d, 10)
}

func TestBoundsContains(t *testing.T) {
	b := geo.Bounds{MinLat: 52.0, MinLng: 4.0, MaxLat: 53.0, MaxLng: 5.0}

	assert.True(t, b.Contains(52.5, 4.5))
	assert.True(t, b.Contains(52.0, 4.0), "edges are inclusive")
	assert.False(t, b.Contains(51.9, 4.5))
	assert.False(t, b.Contains(52.5, 5.1))
}

func TestBoundsExpand(t *testing.T) {
	b := geo.Bounds{MinLat: 52.0, MinLng: 4.0, MaxLat: 52.1, MaxLng: 4.1}
	expanded := b.Expand(1500)

	assert.Less(t, expanded.MinLat, b.MinLat)
	assert.Less(t, expanded.MinLng, b.MinLng)
	assert.Greater(t, expanded.MaxLat, b.MaxLat)
	assert.Greater(t, expanded.MaxLng, b.MaxLng)

	// Every edge of the original box must be at least 1500m inside the
	// expanded one.
	d := geo.DistanceMeters(b.MinLat, 4.05, expanded.MinLat, 4.05)
	assert.GreaterOrEqual(t, d, 1500.0*0.99)
}

func TestGenerateGridPoints_Deterministic(t *testing.T) {
	b := geo.Bounds{MinLat: 52.005, MinLng: 4.005, MaxLat: 52.095, MaxLng: 4.095}

	first := geo.GenerateGridPoints(b, 0.01)
	second := geo.GenerateGridPoints(b, 0.01)
	require.Equal(t, first, second)

	// Bounds snap outward, so every point is on a global grid line.
	for _, p := range first {
		latRem := math.Abs(math.Remainder(p.Lat, 0.01))
		lngRem := math.Abs(math.Remainder(p.Lng, 0.01))
		assert.Less(t, latRem, 1e-9)
		assert.Less(t, lngRem, 1e-9)
	}
}

func TestGenerateGridPoints_OverlappingRegionsShareExactPoints(t *testing.T) {
	a := geo.Bounds{MinLat: 52.0, MinLng: 4.0, MaxLat: 53.0, MaxLng: 5.0}
	b := geo.Bounds{MinLat: 52.5, MinLng: 4.5, MaxLat: 53.5, MaxLng: 5.5}

	pointsA := geo.GenerateGridPoints(a, 0.01)
	pointsB := geo.GenerateGridPoints(b, 0.01)

	setA := make(map[geo.Coordinate]struct{}, len(pointsA))
	for _, p := range pointsA {
		setA[p] = struct{}{}
	}

	shared := 0
	for _, p := range pointsB {
		if _, ok := setA[p]; ok {
			shared++
		}
	}

	// The overlap is a 0.5x0.5 degree region: 51x51 grid points, all of
	// which must be bit-identical between the two generations.
	require.NotZero(t, shared)
	assert.Equal(t, 51*51, shared)
}

func TestGridCardinality(t *testing.T) {
	b := geo.Bounds{MinLat: 52.0, MinLng: 4.0, MaxLat: 52.1, MaxLng: 4.1}

	points := geo.GenerateGridPoints(b, 0.01)
	assert.Equal(t, len(points), geo.GridCardinality(b, 0.01))
	assert.Equal(t, 11*11, len(points))

	assert.Zero(t, geo.GridCardinality(b, 0))
}
