// Package heatmap stores precomputed convenience scores on a fixed
// geographic grid and drives their chunked computation.
package heatmap

import "time"

// Cell is one precomputed heatmap sample. Cells are keyed by (lat, lng,
// grid step): recomputation overwrites, it never duplicates.
type Cell struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Score      int       `json:"score"`
	GridStep   float64   `json:"grid_step"`
	CityID     string    `json:"city_id,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
}
