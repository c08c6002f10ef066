// Package poi defines point-of-interest records and the spatial sources that
// produce them.
package poi

// POI is a point-of-interest record. Instances are ephemeral: they are
// produced per query or per region load and not retained beyond the scoring
// pass that consumes them.
type POI struct {
	ID   string
	Lat  float64
	Lng  float64
	Name string

	// Tag is the provider tag string (e.g. "shop=supermarket") that mapped
	// this POI into a category.
	Tag string

	// DistanceMeters is the distance from the query point, computed on read.
	// Zero for bulk region loads, where distances are computed later against
	// many grid points.
	DistanceMeters float64
}
