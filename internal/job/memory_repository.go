package job

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository for tests
// and local development.
type InMemoryRepository struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewInMemoryRepository creates an empty in-memory job repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{jobs: make(map[string]*Job)}
}

// Create persists a new job.
func (r *InMemoryRepository) Create(_ context.Context, j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *j
	r.jobs[j.ID] = &stored
	return nil
}

// Get retrieves a job by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	copied := *j
	return &copied, nil
}

// ListByStatus returns jobs in the given state, oldest first.
func (r *InMemoryRepository) ListByStatus(_ context.Context, status Status, limit int) ([]*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var jobs []*Job
	for _, j := range r.jobs {
		if j.Status == status {
			copied := *j
			jobs = append(jobs, &copied)
		}
	}
	sortByCreation(jobs)
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// ListActive returns all pending and running jobs.
func (r *InMemoryRepository) ListActive(_ context.Context) ([]*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var jobs []*Job
	for _, j := range r.jobs {
		if j.Active() {
			copied := *j
			jobs = append(jobs, &copied)
		}
	}
	sortByCreation(jobs)
	return jobs, nil
}

// FindActiveByCityAndStep returns the active job for a city+gridStep slot.
func (r *InMemoryRepository) FindActiveByCityAndStep(_ context.Context, cityID string, gridStep float64) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, j := range r.jobs {
		if j.Active() && j.CityID == cityID && j.Metadata.GridStep == gridStep {
			copied := *j
			return &copied, nil
		}
	}
	return nil, ErrJobNotFound
}

// MarkRunning claims a pending job.
func (r *InMemoryRepository) MarkRunning(_ context.Context, id string, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok || j.Status != StatusPending {
		return ErrJobNotFound
	}
	j.Status = StatusRunning
	j.StartedAt = &startedAt
	return nil
}

// MarkCompleted transitions a running job to completed.
func (r *InMemoryRepository) MarkCompleted(_ context.Context, id string, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok || j.Status != StatusRunning {
		return ErrJobNotFound
	}
	j.Status = StatusCompleted
	j.CompletedAt = &completedAt
	return nil
}

// MarkFailed transitions a job to failed.
func (r *InMemoryRepository) MarkFailed(_ context.Context, id string, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok || j.Status == StatusFailed {
		return ErrJobNotFound
	}
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.Error = msg
	j.CompletedAt = &now
	return nil
}

// UpdateProgress writes progress and the resume offset.
func (r *InMemoryRepository) UpdateProgress(_ context.Context, id string, progress, lastProcessedIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	j.Progress = progress
	j.Metadata.LastProcessedIndex = lastProcessedIndex
	return nil
}

// ReclaimStale resets stale running jobs to pending.
func (r *InMemoryRepository) ReclaimStale(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reclaimed := 0
	for _, j := range r.jobs {
		if j.Stale(cutoff) {
			j.Status = StatusPending
			j.StartedAt = nil
			reclaimed++
		}
	}
	return reclaimed, nil
}

func sortByCreation(jobs []*Job) {
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})
}
