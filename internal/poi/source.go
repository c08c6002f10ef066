package poi

import (
	"context"

	"github.com/urbanindex/urbanindex/internal/geo"
)

// Source is the spatial POI query capability. Errors from a Source are always
// explicit and retryable at the caller's level; a failed query is never
// conflated with "zero POIs found".
type Source interface {
	// QueryNear returns POIs matching any of the tags within radiusMeters of
	// a point, each with DistanceMeters populated, sorted ascending by
	// distance.
	QueryNear(ctx context.Context, lat, lng, radiusMeters float64, tags []string) ([]POI, error)

	// QueryRegion returns all POIs matching any of the tags inside the
	// bounding box. DistanceMeters is left at zero.
	QueryRegion(ctx context.Context, bounds geo.Bounds, tags []string) ([]POI, error)

	// ExistsAny reports whether at least one POI of any tag exists inside
	// the bounding box. Used to avoid scheduling heatmap work for
	// uninhabited areas.
	ExistsAny(ctx context.Context, bounds geo.Bounds) (bool, error)
}

// Writer is the ingestion side of a POI store, used by the importer.
type Writer interface {
	// UpsertBatch inserts or updates POIs keyed by ID.
	UpsertBatch(ctx context.Context, pois []POI) (int, error)
}
