package heatmap

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/urbanindex/urbanindex/internal/geo"
)

type memoryKey struct {
	Lat      float64
	Lng      float64
	GridStep float64
}

// InMemoryRepository is an in-memory heat cell store for tests and local
// development.
type InMemoryRepository struct {
	mu    sync.RWMutex
	cells map[memoryKey]Cell
}

// NewInMemoryRepository creates an empty in-memory heat cell repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{cells: make(map[memoryKey]Cell)}
}

// UpsertBatch writes cells keyed by (lat, lng, grid step).
func (r *InMemoryRepository) UpsertBatch(_ context.Context, cells []Cell) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cells {
		r.cells[memoryKey{Lat: c.Lat, Lng: c.Lng, GridStep: c.GridStep}] = c
	}
	return nil
}

// QueryRange returns cells at the given step inside the box, ordered south to
// north, west to east.
func (r *InMemoryRepository) QueryRange(_ context.Context, bounds geo.Bounds, gridStep float64) ([]Cell, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Cell
	for k, c := range r.cells {
		if k.GridStep == gridStep && bounds.Contains(k.Lat, k.Lng) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Lat != out[j].Lat {
			return out[i].Lat < out[j].Lat
		}
		return out[i].Lng < out[j].Lng
	})
	return out, nil
}

// HasCellNear reports whether any cell exists within one grid step of the
// point.
func (r *InMemoryRepository) HasCellNear(_ context.Context, lat, lng, gridStep float64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for k := range r.cells {
		if k.GridStep != gridStep {
			continue
		}
		if k.Lat >= lat-gridStep && k.Lat <= lat+gridStep &&
			k.Lng >= lng-gridStep && k.Lng <= lng+gridStep {
			return true, nil
		}
	}
	return false, nil
}

// FreshInRange returns the coordinate keys of cells in the box computed at
// or after since.
func (r *InMemoryRepository) FreshInRange(_ context.Context, bounds geo.Bounds, gridStep float64, since time.Time) (map[CellKey]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make(map[CellKey]struct{})
	for k, c := range r.cells {
		if k.GridStep == gridStep && bounds.Contains(k.Lat, k.Lng) && !c.ComputedAt.Before(since) {
			keys[CellKey{Lat: k.Lat, Lng: k.Lng}] = struct{}{}
		}
	}
	return keys, nil
}

// Count returns the number of stored cells.
func (r *InMemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cells)
}
