package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/urbanindex/urbanindex/internal/city"
	"github.com/urbanindex/urbanindex/internal/geo"
	"github.com/urbanindex/urbanindex/internal/poi"
)

// CoverageChecker reports whether heatmap coverage already exists near a
// point. Implemented by the heat cell store.
type CoverageChecker interface {
	HasCellNear(ctx context.Context, lat, lng, gridStep float64) (bool, error)
}

// SchedulerConfig holds scheduler tuning.
type SchedulerConfig struct {
	// GridStep is the default heatmap resolution in degrees.
	// Default: 0.005 (~550m).
	GridStep float64

	// AdHocHalfSizeMeters is the half-size of the square region scheduled
	// around an uncovered point. Default: 2500.
	AdHocHalfSizeMeters float64

	// EnsureTimeout bounds the background coverage check + scheduling.
	// Default: 30s.
	EnsureTimeout time.Duration
}

// DefaultSchedulerConfig returns the default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		GridStep:            0.005,
		AdHocHalfSizeMeters: 2500,
		EnsureTimeout:       30 * time.Second,
	}
}

// ScheduleResult reports the outcome of a schedule request.
type ScheduleResult struct {
	JobID  string `json:"job_id"`
	Status Status `json:"status"`

	// IsNew is false when an existing active job already covered the
	// request and was returned unchanged.
	IsNew bool `json:"is_new"`
}

// Scheduler creates heatmap jobs with dedup and auto-triggers coverage for
// ad-hoc queries.
type Scheduler struct {
	repo     Repository
	cities   city.Registry
	pois     poi.Source
	coverage CoverageChecker
	config   SchedulerConfig
	logger   zerolog.Logger
}

// NewScheduler creates a scheduler. Zero config fields fall back to
// defaults.
func NewScheduler(repo Repository, cities city.Registry, pois poi.Source, coverage CoverageChecker, cfg SchedulerConfig, logger zerolog.Logger) *Scheduler {
	defaults := DefaultSchedulerConfig()
	if cfg.GridStep <= 0 {
		cfg.GridStep = defaults.GridStep
	}
	if cfg.AdHocHalfSizeMeters <= 0 {
		cfg.AdHocHalfSizeMeters = defaults.AdHocHalfSizeMeters
	}
	if cfg.EnsureTimeout <= 0 {
		cfg.EnsureTimeout = defaults.EnsureTimeout
	}
	return &Scheduler{
		repo:     repo,
		cities:   cities,
		pois:     pois,
		coverage: coverage,
		config:   cfg,
		logger:   logger,
	}
}

// ScheduleCity creates a pending heatmap job for a named city, unless an
// active job already holds the city+gridStep slot, in which case that job is
// returned unchanged.
func (s *Scheduler) ScheduleCity(ctx context.Context, slug string, gridStep float64) (*ScheduleResult, error) {
	if gridStep <= 0 {
		gridStep = s.config.GridStep
	}

	c, err := s.cities.Get(ctx, slug)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindActiveByCityAndStep(ctx, c.Slug, gridStep)
	if err == nil {
		return &ScheduleResult{JobID: existing.ID, Status: existing.Status, IsNew: false}, nil
	}
	if !errors.Is(err, ErrJobNotFound) {
		return nil, fmt.Errorf("check active job for %s: %w", c.Slug, err)
	}

	return s.createJob(ctx, c.Slug, c.Bounds, gridStep)
}

// ScheduleBounds creates a pending heatmap job for explicit bounds. Ad-hoc
// jobs carry no city ID; dedup for them is the bounds-containment check in
// EnsureCoverage.
func (s *Scheduler) ScheduleBounds(ctx context.Context, bounds geo.Bounds, gridStep float64) (*ScheduleResult, error) {
	if gridStep <= 0 {
		gridStep = s.config.GridStep
	}
	return s.createJob(ctx, "", bounds, gridStep)
}

// EnsureCoverage schedules heatmap computation around a point that lacks
// coverage. Fire and forget: the work runs on its own goroutine with its own
// timeout, and failures are logged, never surfaced to the score caller.
func (s *Scheduler) EnsureCoverage(lat, lng float64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.EnsureTimeout)
		defer cancel()

		if err := s.ensureCoverage(ctx, lat, lng); err != nil {
			s.logger.Warn().Err(err).
				Float64("lat", lat).
				Float64("lng", lng).
				Msg("auto-scheduling heatmap coverage failed")
		}
	}()
}

func (s *Scheduler) ensureCoverage(ctx context.Context, lat, lng float64) error {
	if err := (geo.Coordinate{Lat: lat, Lng: lng}).Validate(); err != nil {
		return err
	}

	covered, err := s.coverage.HasCellNear(ctx, lat, lng, s.config.GridStep)
	if err != nil {
		return fmt.Errorf("check heatmap coverage: %w", err)
	}
	if covered {
		return nil
	}

	// An active job whose bounds contain the point will cover it soon
	// enough; do not pile on.
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active jobs: %w", err)
	}
	for _, j := range active {
		if j.Metadata.Bounds != nil && j.Metadata.Bounds.Contains(lat, lng) {
			return nil
		}
	}

	bounds := geo.BoundsAround(lat, lng, s.config.AdHocHalfSizeMeters)

	// Skip ocean, desert, and other uninhabited areas outright.
	populated, err := s.pois.ExistsAny(ctx, bounds)
	if err != nil {
		return fmt.Errorf("check region population: %w", err)
	}
	if !populated {
		return nil
	}

	result, err := s.ScheduleBounds(ctx, bounds, s.config.GridStep)
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("job_id", result.JobID).
		Float64("lat", lat).
		Float64("lng", lng).
		Msg("auto-scheduled heatmap coverage job")
	return nil
}

func (s *Scheduler) createJob(ctx context.Context, cityID string, bounds geo.Bounds, gridStep float64) (*ScheduleResult, error) {
	b := bounds
	j := &Job{
		ID:         "job_" + uuid.New().String()[:22],
		Type:       TypeHeatmapCompute,
		Status:     StatusPending,
		CityID:     cityID,
		TotalItems: geo.GridCardinality(bounds, gridStep),
		Metadata: Metadata{
			Bounds:   &b,
			GridStep: gridStep,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.logger.Info().
		Str("job_id", j.ID).
		Str("city", cityID).
		Float64("grid_step", gridStep).
		Int("total_items", j.TotalItems).
		Msg("heatmap job scheduled")

	return &ScheduleResult{JobID: j.ID, Status: j.Status, IsNew: true}, nil
}
