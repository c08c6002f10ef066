package models

// NearbyPOI is one point of interest contributing to a category score.
type NearbyPOI struct {
	ID             string  `json:"id"`
	Name           string  `json:"name,omitempty"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	Tag            string  `json:"tag"`
	DistanceMeters float64 `json:"distanceMeters"`
}

// CategoryScore is the scored breakdown for one amenity category.
type CategoryScore struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Score    int         `json:"score"`
	POICount int         `json:"poiCount"`
	Nearest  []NearbyPOI `json:"nearest,omitempty"`
}

// ScoreResponse is the full convenience score for one location.
type ScoreResponse struct {
	Location   Point           `json:"location"`
	Overall    int             `json:"overall"`
	Categories []CategoryScore `json:"categories"`
	ComputedAt Timestamp       `json:"computedAt"`
}

// SimplifiedScoreResponse is the compressed heatmap-style score for one
// location.
type SimplifiedScoreResponse struct {
	Location   Point     `json:"location"`
	Score      int       `json:"score"`
	ComputedAt Timestamp `json:"computedAt"`
}
