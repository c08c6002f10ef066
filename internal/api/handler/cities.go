package handler

import (
	"net/http"

	"github.com/urbanindex/urbanindex/internal/api/models"
	"github.com/urbanindex/urbanindex/internal/api/response"
	"github.com/urbanindex/urbanindex/internal/city"
)

// CityHandler lists the regions the scheduler knows by name.
type CityHandler struct {
	cities city.Registry
}

// NewCityHandler creates a new CityHandler.
func NewCityHandler(cities city.Registry) *CityHandler {
	return &CityHandler{cities: cities}
}

// ListCities handles GET /v1/cities.
func (h *CityHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.cities.List(r.Context())
	if err != nil {
		response.ServiceUnavailable(w, r, "city registry is temporarily unavailable")
		return
	}

	out := models.CityListResponse{Items: make([]models.City, 0, len(cities))}
	for _, c := range cities {
		out.Items = append(out.Items, models.City{
			Slug: c.Slug,
			Name: c.Name,
			Bounds: models.GeoBox{
				MinLat: c.Bounds.MinLat,
				MinLng: c.Bounds.MinLng,
				MaxLat: c.Bounds.MaxLat,
				MaxLng: c.Bounds.MaxLng,
			},
		})
	}
	response.JSON(w, r, http.StatusOK, out)
}
