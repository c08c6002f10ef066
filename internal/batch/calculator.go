// Package batch provides the region-scoped calculator that amortizes POI I/O
// across the many grid points of one heatmap job.
package batch

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/urbanindex/urbanindex/internal/category"
	"github.com/urbanindex/urbanindex/internal/geo"
	"github.com/urbanindex/urbanindex/internal/poi"
	"github.com/urbanindex/urbanindex/internal/scoring"
)

// MinBufferMeters is the smallest bounding-box buffer applied around a
// region, so POIs just outside the region edge still count for edge cells.
const MinBufferMeters = 1500

// Calculator holds an in-memory, read-only POI working set for one bounded
// region and scores points against it without further I/O. Instances are
// private to one job and never shared.
type Calculator struct {
	bounds     geo.Bounds
	categories []category.Definition
	workingSet map[string][]poi.POI
}

// NewCalculator loads the POI working set for the region: one bulk query per
// category over the buffer-expanded bounds. The buffer is the largest
// category radius in play or MinBufferMeters, whichever is greater, which
// guarantees the later per-point filtering never misses a real nearby POI.
func NewCalculator(ctx context.Context, source poi.Source, bounds geo.Bounds, categoryIDs []string, logger zerolog.Logger) (*Calculator, error) {
	if len(categoryIDs) == 0 {
		categoryIDs = category.HeatmapIDs()
	}

	defs := make([]category.Definition, 0, len(categoryIDs))
	for _, id := range categoryIDs {
		def, err := category.ByID(id)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	buffer := category.MaxRadiusMeters(categoryIDs)
	if buffer < MinBufferMeters {
		buffer = MinBufferMeters
	}
	expanded := bounds.Expand(buffer)

	workingSet := make(map[string][]poi.POI, len(defs))
	total := 0
	for _, def := range defs {
		pois, err := source.QueryRegion(ctx, expanded, def.Tags)
		if err != nil {
			return nil, fmt.Errorf("load %s POIs for region: %w", def.ID, err)
		}
		workingSet[def.ID] = pois
		total += len(pois)
	}

	logger.Debug().
		Int("poi_count", total).
		Int("categories", len(defs)).
		Float64("buffer_meters", buffer).
		Msg("batch calculator loaded region working set")

	return &Calculator{
		bounds:     bounds,
		categories: defs,
		workingSet: workingSet,
	}, nil
}

// Bounds returns the region this calculator was built for.
func (c *Calculator) Bounds() geo.Bounds {
	return c.bounds
}

// Score computes the compressed heatmap aggregate for a point. Pure CPU,
// zero I/O: a fast bounding-box pre-filter shortlists candidates per
// category, then an exact haversine check filters to the true radius.
func (c *Calculator) Score(lat, lng float64) int {
	results := make([]scoring.CategoryResult, 0, len(c.categories))
	for _, def := range c.categories {
		nearby := c.poisWithinRadius(def, lat, lng)
		results = append(results, scoring.ScoreCategory(def, nearby))
	}
	return scoring.HeatmapAggregate(results)
}

// ScoreCategories returns the uncompressed per-category results for a point,
// for callers that need the breakdown rather than the heatmap aggregate.
func (c *Calculator) ScoreCategories(lat, lng float64) []scoring.CategoryResult {
	results := make([]scoring.CategoryResult, 0, len(c.categories))
	for _, def := range c.categories {
		nearby := c.poisWithinRadius(def, lat, lng)
		results = append(results, scoring.ScoreCategory(def, nearby))
	}
	return results
}

func (c *Calculator) poisWithinRadius(def category.Definition, lat, lng float64) []poi.POI {
	latDelta, lngDelta := geo.DegreeDeltaForMeters(def.RadiusMeters, lat)

	var nearby []poi.POI
	for _, p := range c.workingSet[def.ID] {
		// Cheap box check first; the haversine only runs for shortlisted
		// candidates.
		if p.Lat < lat-latDelta || p.Lat > lat+latDelta ||
			p.Lng < lng-lngDelta || p.Lng > lng+lngDelta {
			continue
		}
		d := geo.DistanceMeters(lat, lng, p.Lat, p.Lng)
		if d <= def.RadiusMeters {
			p.DistanceMeters = d
			nearby = append(nearby, p)
		}
	}

	sort.Slice(nearby, func(i, j int) bool {
		return nearby[i].DistanceMeters < nearby[j].DistanceMeters
	})
	return nearby
}
