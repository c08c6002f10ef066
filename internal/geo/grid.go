package geo

import "math"

// SnapBounds snaps region bounds outward to global grid lines: minimums are
// floored and maximums are ceiled to the nearest multiple of step. Two jobs
// covering overlapping regions at the same step therefore sample identical,
// mergeable coordinates, which is what makes heat cell upserts safe across
// job boundaries.
func SnapBounds(b Bounds, step float64) Bounds {
	return Bounds{
		MinLat: math.Floor(b.MinLat/step) * step,
		MinLng: math.Floor(b.MinLng/step) * step,
		MaxLat: math.Ceil(b.MaxLat/step) * step,
		MaxLng: math.Ceil(b.MaxLng/step) * step,
	}
}

// GenerateGridPoints returns the deterministic list of grid-aligned sample
// points covering the given bounds at the given step. Points are ordered
// south to north, west to east, so an index into the returned slice is a
// stable resume position for incremental computation.
func GenerateGridPoints(b Bounds, step float64) []Coordinate {
	if step <= 0 {
		return nil
	}
	snapped := SnapBounds(b, step)

	// Index arithmetic instead of repeated float addition keeps shared grid
	// lines bit-identical across overlapping regions.
	latSteps := int(math.Round((snapped.MaxLat-snapped.MinLat)/step)) + 1
	lngSteps := int(math.Round((snapped.MaxLng-snapped.MinLng)/step)) + 1

	minLatIdx := int(math.Round(snapped.MinLat / step))
	minLngIdx := int(math.Round(snapped.MinLng / step))

	points := make([]Coordinate, 0, latSteps*lngSteps)
	for i := 0; i < latSteps; i++ {
		lat := float64(minLatIdx+i) * step
		for j := 0; j < lngSteps; j++ {
			points = append(points, Coordinate{
				Lat: lat,
				Lng: float64(minLngIdx+j) * step,
			})
		}
	}
	return points
}

// GridCardinality returns the number of points GenerateGridPoints would
// produce without materializing them.
func GridCardinality(b Bounds, step float64) int {
	if step <= 0 {
		return 0
	}
	snapped := SnapBounds(b, step)
	latSteps := int(math.Round((snapped.MaxLat-snapped.MinLat)/step)) + 1
	lngSteps := int(math.Round((snapped.MaxLng-snapped.MinLng)/step)) + 1
	return latSteps * lngSteps
}
