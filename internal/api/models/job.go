package models

// ScheduleJobRequest asks for heatmap computation over a named city or an
// explicit bounding box. City wins when both are set.
type ScheduleJobRequest struct {
	City     string  `json:"city,omitempty"`
	Bounds   *GeoBox `json:"bounds,omitempty"`
	GridStep float64 `json:"gridStep,omitempty"`
}

// ScheduleJobResponse reports the scheduled (or deduplicated) job.
type ScheduleJobResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
	IsNew  bool   `json:"isNew"`
}

// JobResponse is the public view of a heatmap job.
type JobResponse struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Status     string     `json:"status"`
	City       string     `json:"city,omitempty"`
	Progress   int        `json:"progress"`
	TotalItems int        `json:"totalItems"`
	Bounds     *GeoBox    `json:"bounds,omitempty"`
	GridStep   float64    `json:"gridStep"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  Timestamp  `json:"createdAt"`
	StartedAt  *Timestamp `json:"startedAt,omitempty"`
	CompletedAt *Timestamp `json:"completedAt,omitempty"`
}

// JobListResponse is a list of jobs.
type JobListResponse struct {
	Items []JobResponse `json:"items"`
}
