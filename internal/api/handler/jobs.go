package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/urbanindex/urbanindex/internal/api/models"
	"github.com/urbanindex/urbanindex/internal/api/response"
	"github.com/urbanindex/urbanindex/internal/city"
	"github.com/urbanindex/urbanindex/internal/geo"
	"github.com/urbanindex/urbanindex/internal/job"
)

// JobHandler exposes heatmap job scheduling and inspection.
type JobHandler struct {
	scheduler *job.Scheduler
	jobs      job.Repository
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(scheduler *job.Scheduler, jobs job.Repository) *JobHandler {
	return &JobHandler{scheduler: scheduler, jobs: jobs}
}

// ScheduleHeatmap handles POST /v1/jobs/heatmap. A request naming a city that
// already has an active job at the same resolution returns that job instead
// of creating a duplicate.
func (h *JobHandler) ScheduleHeatmap(w http.ResponseWriter, r *http.Request) {
	var req models.ScheduleJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}

	var (
		result *job.ScheduleResult
		err    error
	)
	switch {
	case req.City != "":
		result, err = h.scheduler.ScheduleCity(r.Context(), req.City, req.GridStep)
	case req.Bounds != nil:
		bounds := geo.Bounds{
			MinLat: req.Bounds.MinLat,
			MinLng: req.Bounds.MinLng,
			MaxLat: req.Bounds.MaxLat,
			MaxLng: req.Bounds.MaxLng,
		}
		result, err = h.scheduler.ScheduleBounds(r.Context(), bounds, req.GridStep)
	default:
		response.BadRequest(w, r, "either city or bounds is required", []models.FieldError{
			{Field: "city", Message: "set city or bounds", Code: "REQUIRED"},
		})
		return
	}

	if err != nil {
		if errors.Is(err, city.ErrCityNotFound) {
			response.NotFound(w, r, "unknown city: "+req.City)
			return
		}
		if errors.Is(err, geo.ErrInvalidCoordinate) {
			response.BadRequest(w, r, err.Error(), nil)
			return
		}
		response.ServiceUnavailable(w, r, "job scheduling is temporarily unavailable")
		return
	}

	body := models.ScheduleJobResponse{
		JobID:  result.JobID,
		Status: string(result.Status),
		IsNew:  result.IsNew,
	}
	if !result.IsNew {
		response.JSON(w, r, http.StatusOK, body)
		return
	}
	response.Accepted(w, r, "/v1/jobs/"+result.JobID, body)
}

// GetJob handles GET /v1/jobs/{jobId}.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobId")

	j, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			response.NotFound(w, r, "job not found: "+id)
			return
		}
		response.ServiceUnavailable(w, r, "job storage is temporarily unavailable")
		return
	}

	response.JSON(w, r, http.StatusOK, toJobResponse(j))
}

// ListJobs handles GET /v1/jobs. By default it returns active jobs; pass
// ?status=completed|failed|pending|running to filter on one state.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	const listLimit = 100

	var (
		items []*job.Job
		err   error
	)
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := job.Status(raw)
		switch status {
		case job.StatusPending, job.StatusRunning, job.StatusCompleted, job.StatusFailed:
		default:
			response.BadRequest(w, r, "unknown status: "+raw, []models.FieldError{
				{Field: "status", Message: "must be pending, running, completed or failed", Code: "INVALID"},
			})
			return
		}
		items, err = h.jobs.ListByStatus(r.Context(), status, listLimit)
	} else {
		items, err = h.jobs.ListActive(r.Context())
	}
	if err != nil {
		response.ServiceUnavailable(w, r, "job storage is temporarily unavailable")
		return
	}

	out := models.JobListResponse{Items: make([]models.JobResponse, 0, len(items))}
	for _, j := range items {
		out.Items = append(out.Items, toJobResponse(j))
	}
	response.JSON(w, r, http.StatusOK, out)
}

func toJobResponse(j *job.Job) models.JobResponse {
	resp := models.JobResponse{
		ID:         j.ID,
		Type:       string(j.Type),
		Status:     string(j.Status),
		City:       j.CityID,
		Progress:   j.Progress,
		TotalItems: j.TotalItems,
		GridStep:   j.Metadata.GridStep,
		Error:      j.Error,
		CreatedAt:  models.Timestamp(j.CreatedAt),
	}
	if j.Metadata.Bounds != nil {
		resp.Bounds = &models.GeoBox{
			MinLat: j.Metadata.Bounds.MinLat,
			MinLng: j.Metadata.Bounds.MinLng,
			MaxLat: j.Metadata.Bounds.MaxLat,
			MaxLng: j.Metadata.Bounds.MaxLng,
		}
	}
	if j.StartedAt != nil {
		ts := models.Timestamp(*j.StartedAt)
		resp.StartedAt = &ts
	}
	if j.CompletedAt != nil {
		ts := models.Timestamp(*j.CompletedAt)
		resp.CompletedAt = &ts
	}
	return resp
}
