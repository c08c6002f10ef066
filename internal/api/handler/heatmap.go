package handler

import (
	"net/http"
	"strconv"

	"github.com/urbanindex/urbanindex/internal/api/models"
	"github.com/urbanindex/urbanindex/internal/api/response"
	"github.com/urbanindex/urbanindex/internal/geo"
	"github.com/urbanindex/urbanindex/internal/heatmap"
)

// DefaultGridStep is the resolution served when the client does not ask for
// a specific one. It matches the step the scheduler computes cities at.
const DefaultGridStep = 0.005

// maxHeatmapCells bounds the size of a single heatmap window query.
const maxHeatmapCells = 250000

// HeatmapHandler serves precomputed heatmap windows.
type HeatmapHandler struct {
	cells heatmap.Repository
}

// NewHeatmapHandler creates a new HeatmapHandler.
func NewHeatmapHandler(cells heatmap.Repository) *HeatmapHandler {
	return &HeatmapHandler{cells: cells}
}

// GetHeatmap handles GET /v1/heatmap - all precomputed cells within a
// bounding box at one resolution. Returns whatever has been computed so far;
// an uncovered region yields an empty cell list, not an error.
func (h *HeatmapHandler) GetHeatmap(w http.ResponseWriter, r *http.Request) {
	bounds, gridStep, fieldErrs := parseHeatmapQuery(r)
	if fieldErrs != nil {
		response.BadRequest(w, r, "invalid heatmap window", fieldErrs)
		return
	}

	if geo.GridCardinality(bounds, gridStep) > maxHeatmapCells {
		response.BadRequest(w, r, "requested window is too large; narrow the bounds or coarsen gridStep", nil)
		return
	}

	cells, err := h.cells.QueryRange(r.Context(), bounds, gridStep)
	if err != nil {
		response.ServiceUnavailable(w, r, "heatmap storage is temporarily unavailable")
		return
	}

	out := make([]models.HeatCell, 0, len(cells))
	for _, c := range cells {
		out = append(out, models.HeatCell{Lat: c.Lat, Lng: c.Lng, Score: c.Score})
	}

	response.JSON(w, r, http.StatusOK, models.HeatmapResponse{
		Bounds: models.GeoBox{
			MinLat: bounds.MinLat,
			MinLng: bounds.MinLng,
			MaxLat: bounds.MaxLat,
			MaxLng: bounds.MaxLng,
		},
		GridStep: gridStep,
		Count:    len(out),
		Cells:    out,
	})
}

func parseHeatmapQuery(r *http.Request) (geo.Bounds, float64, []models.FieldError) {
	q := r.URL.Query()

	var errs []models.FieldError
	parse := func(field string) float64 {
		v, err := strconv.ParseFloat(q.Get(field), 64)
		if err != nil {
			errs = append(errs, models.FieldError{Field: field, Message: "must be a number", Code: "INVALID"})
		}
		return v
	}

	bounds := geo.Bounds{
		MinLat: parse("minLat"),
		MinLng: parse("minLng"),
		MaxLat: parse("maxLat"),
		MaxLng: parse("maxLng"),
	}

	gridStep := DefaultGridStep
	if raw := q.Get("gridStep"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			errs = append(errs, models.FieldError{Field: "gridStep", Message: "must be a positive number", Code: "INVALID"})
		} else {
			gridStep = v
		}
	}
	if errs != nil {
		return geo.Bounds{}, 0, errs
	}

	if err := (geo.Coordinate{Lat: bounds.MinLat, Lng: bounds.MinLng}).Validate(); err != nil {
		errs = append(errs, models.FieldError{Field: "minLat", Message: "coordinate out of range", Code: "OUT_OF_RANGE"})
	}
	if err := (geo.Coordinate{Lat: bounds.MaxLat, Lng: bounds.MaxLng}).Validate(); err != nil {
		errs = append(errs, models.FieldError{Field: "maxLat", Message: "coordinate out of range", Code: "OUT_OF_RANGE"})
	}
	if bounds.MinLat > bounds.MaxLat || bounds.MinLng > bounds.MaxLng {
		errs = append(errs, models.FieldError{Field: "bounds", Message: "min must not exceed max", Code: "INVALID"})
	}
	if errs != nil {
		return geo.Bounds{}, 0, errs
	}
	return bounds, gridStep, nil
}
