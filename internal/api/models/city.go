package models

// City is a named region known to the heatmap scheduler.
type City struct {
	Slug   string `json:"slug"`
	Name   string `json:"name"`
	Bounds GeoBox `json:"bounds"`
}

// CityListResponse is the list of known cities.
type CityListResponse struct {
	Items []City `json:"items"`
}
