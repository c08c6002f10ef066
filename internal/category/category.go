// Package category defines the static scoring configuration. Every category's
// scoring behavior is fully determined by its definition here: the table is
// loaded once at process start and never mutated, and there are no
// per-request overrides.
package category

import "fmt"

// SubType splits a category into facets that are scored separately, so a
// neighborhood with three pharmacies and no doctors does not look like one
// with full medical coverage.
type SubType struct {
	ID          string
	Tags        []string
	MaxCount    int
	SaturationK float64
}

// Definition is the immutable static configuration for one scoring category.
type Definition struct {
	ID string

	// Name is the human-readable display name.
	Name string

	// Weight is this category's share of the overall score. Always > 0.
	Weight float64

	// RadiusMeters is the search radius for POIs in this category.
	RadiusMeters float64

	// MinCount is the count below which the category is considered
	// under-served and its score discounted.
	MinCount int

	// MaxCount is where the saturation curve reaches full count credit.
	MaxCount int

	// SaturationK controls the steepness of the logarithmic count curve.
	SaturationK float64

	// Tags are the provider tag strings that map POIs into this category.
	Tags []string

	// SubTypes, when present, replace the plain count score with per-facet
	// scoring plus a diversity bonus.
	SubTypes []SubType
}

// HasSubTypes reports whether this category is scored per sub-type.
func (d Definition) HasSubTypes() bool {
	return len(d.SubTypes) > 0
}

// DefaultSaturationK is used when a definition leaves SaturationK at zero.
const DefaultSaturationK = 0.5

// Canonical category IDs.
const (
	Groceries     = "groceries"
	Restaurants   = "restaurants"
	Transit       = "transit"
	Healthcare    = "healthcare"
	Education     = "education"
	Parks         = "parks"
	Shopping      = "shopping"
	Entertainment = "entertainment"
)

// definitions is the canonical category table. Tag strings follow the
// key=value convention of the OSM-derived POI store.
var definitions = []Definition{
	{
		ID:           Groceries,
		Name:         "Groceries",
		Weight:       1.5,
		RadiusMeters: 800,
		MinCount:     1,
		MaxCount:     10,
		SaturationK:  0.5,
		Tags:         []string{"shop=supermarket", "shop=convenience", "shop=greengrocer"},
	},
	{
		ID:           Restaurants,
		Name:         "Restaurants & Cafes",
		Weight:       1.2,
		RadiusMeters: 800,
		MinCount:     2,
		MaxCount:     20,
		SaturationK:  0.3,
		Tags:         []string{"amenity=restaurant", "amenity=cafe", "amenity=fast_food"},
	},
	{
		ID:           Transit,
		Name:         "Public Transit",
		Weight:       1.5,
		RadiusMeters: 600,
		MinCount:     1,
		MaxCount:     8,
		SaturationK:  0.5,
		Tags:         []string{"highway=bus_stop", "railway=station", "railway=tram_stop", "station=subway"},
	},
	{
		ID:           Healthcare,
		Name:         "Healthcare",
		Weight:       1.2,
		RadiusMeters: 1200,
		MinCount:     2,
		MaxCount:     15,
		SaturationK:  0.5,
		Tags:         []string{"amenity=pharmacy", "amenity=doctors", "amenity=clinic", "amenity=dentist"},
		SubTypes: []SubType{
			{ID: "pharmacy", Tags: []string{"amenity=pharmacy"}, MaxCount: 4, SaturationK: 0.8},
			{ID: "medical", Tags: []string{"amenity=doctors", "amenity=clinic"}, MaxCount: 7, SaturationK: 0.5},
			{ID: "dental", Tags: []string{"amenity=dentist"}, MaxCount: 4, SaturationK: 0.5},
		},
	},
	{
		ID:           Education,
		Name:         "Education",
		Weight:       1.0,
		RadiusMeters: 1000,
		MinCount:     1,
		MaxCount:     6,
		SaturationK:  0.5,
		Tags:         []string{"amenity=school", "amenity=kindergarten"},
	},
	{
		ID:           Parks,
		Name:         "Parks & Green Space",
		Weight:       1.0,
		RadiusMeters: 1000,
		MinCount:     1,
		MaxCount:     6,
		SaturationK:  0.5,
		Tags:         []string{"leisure=park", "leisure=playground", "leisure=garden"},
	},
	{
		ID:           Shopping,
		Name:         "Shopping",
		Weight:       0.8,
		RadiusMeters: 1200,
		MinCount:     2,
		MaxCount:     15,
		SaturationK:  0.3,
		Tags:         []string{"shop=clothes", "shop=department_store", "shop=mall", "shop=shoes"},
	},
	{
		ID:           Entertainment,
		Name:         "Entertainment",
		Weight:       0.8,
		RadiusMeters: 1200,
		MinCount:     1,
		MaxCount:     10,
		SaturationK:  0.4,
		Tags:         []string{"amenity=cinema", "amenity=theatre", "amenity=bar", "amenity=pub"},
	},
}

var byID = func() map[string]Definition {
	m := make(map[string]Definition, len(definitions))
	for _, d := range definitions {
		m[d.ID] = d
	}
	return m
}()

// All returns every category definition in canonical order.
func All() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// ByID looks up a category definition. An unknown ID is a configuration
// error, not a recoverable runtime condition.
func ByID(id string) (Definition, error) {
	d, ok := byID[id]
	if !ok {
		return Definition{}, fmt.Errorf("unknown category %q", id)
	}
	return d, nil
}

// HeatmapIDs are the categories the heatmap pipeline scores. The heatmap
// score is the weighted aggregate over this subset.
func HeatmapIDs() []string {
	return []string{Groceries, Restaurants, Parks}
}

// MaxRadiusMeters returns the largest radius among the given category IDs,
// used by the batch calculator to size its bounding-box buffer. Unknown IDs
// contribute nothing.
func MaxRadiusMeters(ids []string) float64 {
	var max float64
	for _, id := range ids {
		if d, ok := byID[id]; ok && d.RadiusMeters > max {
			max = d.RadiusMeters
		}
	}
	return max
}
