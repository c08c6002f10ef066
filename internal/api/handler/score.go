// Package handler provides HTTP handlers for the UrbanIndex API.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/urbanindex/urbanindex/internal/api/models"
	"github.com/urbanindex/urbanindex/internal/api/response"
	"github.com/urbanindex/urbanindex/internal/category"
	"github.com/urbanindex/urbanindex/internal/geo"
	"github.com/urbanindex/urbanindex/internal/job"
	"github.com/urbanindex/urbanindex/internal/scoring"
)

// ScoreHandler handles on-demand score endpoints.
type ScoreHandler struct {
	engine    *scoring.Engine
	scheduler *job.Scheduler
}

// NewScoreHandler creates a new ScoreHandler. scheduler may be nil, in which
// case score queries do not trigger background heatmap coverage.
func NewScoreHandler(engine *scoring.Engine, scheduler *job.Scheduler) *ScoreHandler {
	return &ScoreHandler{engine: engine, scheduler: scheduler}
}

// GetScore handles GET /v1/scores - full per-category score for a point.
func (h *ScoreHandler) GetScore(w http.ResponseWriter, r *http.Request) {
	lat, lng, fieldErrs := parseLatLng(r)
	if fieldErrs != nil {
		response.BadRequest(w, r, "invalid coordinates", fieldErrs)
		return
	}

	result, err := h.engine.ScorePoint(r.Context(), lat, lng)
	if err != nil {
		if errors.Is(err, geo.ErrInvalidCoordinate) {
			response.BadRequest(w, r, err.Error(), nil)
			return
		}
		response.ServiceUnavailable(w, r, "point scoring is temporarily unavailable")
		return
	}

	// Kick off heatmap coverage for this neighborhood if it has none yet.
	if h.scheduler != nil {
		h.scheduler.EnsureCoverage(lat, lng)
	}

	response.JSON(w, r, http.StatusOK, toScoreResponse(result))
}

// GetSimplifiedScore handles GET /v1/scores/simplified - the compressed
// heatmap-style aggregate for a point.
func (h *ScoreHandler) GetSimplifiedScore(w http.ResponseWriter, r *http.Request) {
	lat, lng, fieldErrs := parseLatLng(r)
	if fieldErrs != nil {
		response.BadRequest(w, r, "invalid coordinates", fieldErrs)
		return
	}

	score, err := h.engine.ScoreSimplified(r.Context(), lat, lng)
	if err != nil {
		if errors.Is(err, geo.ErrInvalidCoordinate) {
			response.BadRequest(w, r, err.Error(), nil)
			return
		}
		response.ServiceUnavailable(w, r, "point scoring is temporarily unavailable")
		return
	}

	if h.scheduler != nil {
		h.scheduler.EnsureCoverage(lat, lng)
	}

	response.JSON(w, r, http.StatusOK, models.SimplifiedScoreResponse{
		Location:   models.Point{Lat: lat, Lng: lng},
		Score:      score,
		ComputedAt: models.Timestamp(time.Now().UTC()),
	})
}

func parseLatLng(r *http.Request) (lat, lng float64, errs []models.FieldError) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		errs = append(errs, models.FieldError{Field: "lat", Message: "must be a number", Code: "INVALID"})
	}
	lng, err = strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil {
		errs = append(errs, models.FieldError{Field: "lng", Message: "must be a number", Code: "INVALID"})
	}
	return lat, lng, errs
}

func toScoreResponse(result *scoring.Result) models.ScoreResponse {
	categories := make([]models.CategoryScore, 0, len(result.Categories))
	for _, cr := range result.Categories {
		cs := models.CategoryScore{
			ID:       cr.CategoryID,
			Name:     categoryName(cr.CategoryID),
			Score:    cr.Score,
			POICount: cr.Count,
		}
		for _, p := range cr.Nearest {
			cs.Nearest = append(cs.Nearest, models.NearbyPOI{
				ID:             p.ID,
				Name:           p.Name,
				Lat:            p.Lat,
				Lng:            p.Lng,
				Tag:            p.Tag,
				DistanceMeters: p.DistanceMeters,
			})
		}
		categories = append(categories, cs)
	}

	return models.ScoreResponse{
		Location:   models.Point{Lat: result.Lat, Lng: result.Lng},
		Overall:    result.Overall,
		Categories: categories,
		ComputedAt: models.Timestamp(result.ComputedAt),
	}
}

func categoryName(id string) string {
	def, err := category.ByID(id)
	if err != nil {
		return id
	}
	return def.Name
}
