package scoring

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/urbanindex/urbanindex/internal/category"
	"github.com/urbanindex/urbanindex/internal/geo"
	"github.com/urbanindex/urbanindex/internal/poi"
)

// Engine computes on-demand point scores against a POI source. The scoring
// math itself lives in the pure functions of this package; the engine owns
// the per-category query fan-out.
type Engine struct {
	source poi.Source
	logger zerolog.Logger
}

// NewEngine creates a scoring engine.
func NewEngine(source poi.Source, logger zerolog.Logger) *Engine {
	return &Engine{source: source, logger: logger}
}

// ScorePoint computes the full-category convenience score for a coordinate.
// One POI query per category runs concurrently; a single failed category
// query fails the whole request, so a degraded source is never mistaken for
// an empty neighborhood.
func (e *Engine) ScorePoint(ctx context.Context, lat, lng float64) (*Result, error) {
	if err := (geo.Coordinate{Lat: lat, Lng: lng}).Validate(); err != nil {
		return nil, err
	}

	defs := category.All()
	results := make([]CategoryResult, len(defs))

	g, gctx := errgroup.WithContext(ctx)
	for i, def := range defs {
		g.Go(func() error {
			pois, err := e.source.QueryNear(gctx, lat, lng, def.RadiusMeters, def.Tags)
			if err != nil {
				return fmt.Errorf("query %s POIs: %w", def.ID, err)
			}
			results[i] = ScoreCategory(def, pois)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		Lat:        lat,
		Lng:        lng,
		Overall:    Overall(results),
		Categories: results,
		ComputedAt: time.Now().UTC(),
	}, nil
}

// ScoreSimplified computes the compressed heatmap-subset score for a
// coordinate. This is the same aggregation the batch calculator produces for
// grid cells, evaluated through per-point queries.
func (e *Engine) ScoreSimplified(ctx context.Context, lat, lng float64) (int, error) {
	if err := (geo.Coordinate{Lat: lat, Lng: lng}).Validate(); err != nil {
		return 0, err
	}

	ids := category.HeatmapIDs()
	results := make([]CategoryResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		def, err := category.ByID(id)
		if err != nil {
			return 0, err
		}
		g.Go(func() error {
			pois, err := e.source.QueryNear(gctx, lat, lng, def.RadiusMeters, def.Tags)
			if err != nil {
				return fmt.Errorf("query %s POIs: %w", def.ID, err)
			}
			results[i] = ScoreCategory(def, pois)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	return HeatmapAggregate(results), nil
}

// SortByDistance orders POIs ascending by their precomputed distance.
func SortByDistance(pois []poi.POI) {
	sort.Slice(pois, func(i, j int) bool {
		return pois[i].DistanceMeters < pois[j].DistanceMeters
	})
}
