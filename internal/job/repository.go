package job

import (
	"context"
	"time"
)

// Repository is the persistent job store. All mutations are narrow and
// idempotent; no multi-step transactions span job state and heat cell
// writes.
type Repository interface {
	// Create persists a new job.
	Create(ctx context.Context, j *Job) error

	// Get retrieves a job by ID. Returns ErrJobNotFound if absent.
	Get(ctx context.Context, id string) (*Job, error)

	// ListByStatus returns jobs in the given state, oldest first.
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Job, error)

	// ListActive returns all pending and running jobs.
	ListActive(ctx context.Context) ([]*Job, error)

	// FindActiveByCityAndStep returns the active job holding the
	// city+gridStep dedup slot, or ErrJobNotFound.
	FindActiveByCityAndStep(ctx context.Context, cityID string, gridStep float64) (*Job, error)

	// MarkRunning transitions a pending job to running and stamps
	// StartedAt. Returns ErrJobNotFound if the job is no longer pending,
	// so two workers cannot both claim it.
	MarkRunning(ctx context.Context, id string, startedAt time.Time) error

	// MarkCompleted transitions a job to completed.
	MarkCompleted(ctx context.Context, id string, completedAt time.Time) error

	// MarkFailed transitions a job to failed with a diagnostic message.
	// Terminal: failed jobs are kept for diagnostics and never retried.
	MarkFailed(ctx context.Context, id string, msg string) error

	// UpdateProgress writes progress and the resume offset atomically.
	UpdateProgress(ctx context.Context, id string, progress, lastProcessedIndex int) error

	// ReclaimStale resets running jobs whose StartedAt is older than the
	// cutoff back to pending with StartedAt cleared. Returns how many jobs
	// were reclaimed. Never touches failed jobs.
	ReclaimStale(ctx context.Context, cutoff time.Time) (int, error)
}
