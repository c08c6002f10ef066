// Package job provides durable heatmap computation jobs: the records, their
// state machine, and the scheduler that creates and reclaims them.
package job

import (
	"errors"
	"time"

	"github.com/urbanindex/urbanindex/internal/geo"
)

// Status is the job lifecycle state.
type Status string

// Job states. Pending and running jobs are "active"; failed is terminal and
// never auto-retried.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Type identifies the kind of work a job carries.
type Type string

// TypeHeatmapCompute is currently the only job type.
const TypeHeatmapCompute Type = "heatmap_compute"

// Job errors.
var (
	ErrJobNotFound = errors.New("job not found")
)

// Metadata is the job's work description, persisted as a JSON document.
type Metadata struct {
	// Bounds is the region to compute. A missing bounds on a claimed job is
	// a malformed job and fails it immediately.
	Bounds *geo.Bounds `json:"bounds,omitempty"`

	// GridStep is the angular spacing between heatmap sample points.
	GridStep float64 `json:"grid_step"`

	// LastProcessedIndex is the resume offset into the deterministic grid.
	// Written transactionally with every chunk so a reclaimed job resumes
	// instead of restarting.
	LastProcessedIndex int `json:"last_processed_index"`
}

// Job is a durable unit of heatmap computation work.
type Job struct {
	ID         string
	Type       Type
	Status     Status
	CityID     string // empty for ad-hoc regional jobs
	Progress   int    // cells done
	TotalItems int    // grid cardinality
	Metadata   Metadata
	Error      string

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Active reports whether the job still holds the city+step dedup slot.
func (j *Job) Active() bool {
	return j.Status == StatusPending || j.Status == StatusRunning
}

// Stale reports whether a running job has made no visible progress since
// before the cutoff and should be reclaimed. Only running jobs can be stale;
// failed jobs stay failed.
func (j *Job) Stale(cutoff time.Time) bool {
	return j.Status == StatusRunning && j.StartedAt != nil && j.StartedAt.Before(cutoff)
}
