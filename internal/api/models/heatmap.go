package models

// HeatCell is one precomputed heatmap sample.
type HeatCell struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Score int     `json:"score"`
}

// HeatmapResponse is a window of precomputed heatmap cells.
type HeatmapResponse struct {
	Bounds   GeoBox     `json:"bounds"`
	GridStep float64    `json:"gridStep"`
	Count    int        `json:"count"`
	Cells    []HeatCell `json:"cells"`
}
