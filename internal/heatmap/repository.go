package heatmap

import (
	"context"
	"time"

	"github.com/urbanindex/urbanindex/internal/geo"
)

// Repository is the heat cell store.
type Repository interface {
	// UpsertBatch writes cells keyed by (lat, lng, grid step). Existing
	// cells are overwritten with the fresher score and timestamp.
	UpsertBatch(ctx context.Context, cells []Cell) error

	// QueryRange returns cells at the given step inside the box.
	QueryRange(ctx context.Context, bounds geo.Bounds, gridStep float64) ([]Cell, error)

	// HasCellNear reports whether a cell exists within one grid step of the
	// point. Used to decide whether a point already has heatmap coverage.
	HasCellNear(ctx context.Context, lat, lng, gridStep float64) (bool, error)

	// FreshInRange returns the coordinate keys of cells in the box computed
	// at or after since. A resumed or overlapping job skips these; cells
	// older than since are stale and get recomputed.
	FreshInRange(ctx context.Context, bounds geo.Bounds, gridStep float64, since time.Time) (map[CellKey]struct{}, error)
}

// CellKey identifies a cell inside one grid-step resolution.
type CellKey struct {
	Lat float64
	Lng float64
}
