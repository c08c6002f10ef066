package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/urbanindex/urbanindex/internal/heatmap"
	"github.com/urbanindex/urbanindex/internal/job"
	"github.com/urbanindex/urbanindex/internal/poi"
)

// Loop polls the job queue and drives claimed jobs chunk by chunk. Multiple
// loops may run against the same queue; the status-guarded claim in the job
// repository keeps them from treading on each other.
type Loop struct {
	config  Config
	jobs    job.Repository
	cells   heatmap.Repository
	pois    poi.Source
	metrics *Metrics
	logger  zerolog.Logger

	mu     sync.Mutex
	active int
	wg     sync.WaitGroup
}

// NewLoop creates a worker loop. Zero config fields fall back to defaults.
// metrics may be nil.
func NewLoop(cfg Config, jobs job.Repository, cells heatmap.Repository, pois poi.Source, metrics *Metrics, logger zerolog.Logger) *Loop {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Loop{
		config:  cfg.withDefaults(),
		jobs:    jobs,
		cells:   cells,
		pois:    pois,
		metrics: metrics,
		logger:  logger,
	}
}

// Run polls until the context is cancelled, then waits for in-flight jobs to
// checkpoint and stop.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info().
		Int("max_concurrent_jobs", l.config.MaxConcurrentJobs).
		Dur("poll_interval", l.config.PollInterval).
		Dur("stale_threshold", l.config.StaleThreshold).
		Msg("worker loop started")

	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	// First poll immediately rather than one interval in.
	l.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("worker loop stopping, draining in-flight jobs")
			l.wg.Wait()
			l.logger.Info().Msg("worker loop stopped")
			return
		case <-ticker.C:
			l.poll(ctx)
		}
	}
}

func (l *Loop) poll(ctx context.Context) {
	l.reclaimStale(ctx)

	capacity := l.slotsFree()
	if capacity == 0 {
		return
	}

	pending, err := l.jobs.ListByStatus(ctx, job.StatusPending, capacity)
	if err != nil {
		l.logger.Error().Err(err).Msg("listing pending jobs failed")
		return
	}

	for _, j := range pending {
		if err := l.jobs.MarkRunning(ctx, j.ID, time.Now().UTC()); err != nil {
			if errors.Is(err, job.ErrJobNotFound) {
				// Another worker claimed it first.
				continue
			}
			l.logger.Error().Err(err).Str("job_id", j.ID).Msg("claiming job failed")
			continue
		}

		claimed := j
		l.addActive(1)
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer l.addActive(-1)
			l.driveJob(ctx, claimed)
		}()
	}
}

func (l *Loop) reclaimStale(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-l.config.StaleThreshold)
	reclaimed, err := l.jobs.ReclaimStale(ctx, cutoff)
	if err != nil {
		l.logger.Error().Err(err).Msg("reclaiming stale jobs failed")
		return
	}
	if reclaimed > 0 {
		l.metrics.AddJobsReclaimed(reclaimed)
		l.logger.Warn().Int("count", reclaimed).Msg("reclaimed stale jobs")
	}
}

// driveJob processes chunks until the job completes, fails, or the time
// budget runs out. A job that outlives the budget is left running with its
// progress checkpointed; reclamation returns it to the queue for the next
// claim, so large regions rotate between workers instead of starving small
// ones.
func (l *Loop) driveJob(ctx context.Context, j *job.Job) {
	start := time.Now()
	deadline := start.Add(l.config.JobTimeBudget)

	logger := l.logger.With().Str("job_id", j.ID).Str("city", j.CityID).Logger()
	logger.Info().Int("resume_from", j.Metadata.LastProcessedIndex).Msg("driving heatmap job")

	proc := heatmap.NewProcessor(l.jobs, l.cells, l.pois,
		heatmap.ProcessorConfig{ChunkSize: l.config.ChunkSize}, logger)

	for {
		if ctx.Err() != nil || time.Now().After(deadline) {
			logger.Info().Int("progress", j.Progress).Msg("yielding job before completion")
			break
		}

		before := j.Metadata.LastProcessedIndex
		done, err := proc.ProcessChunk(ctx, j)
		if err != nil {
			l.metrics.IncChunkErrors()
			if errors.Is(err, heatmap.ErrMissingBounds) {
				l.metrics.IncJobsTotal(StatusFailure)
				logger.Error().Err(err).Msg("job is malformed, marked failed")
			} else {
				// Transient: leave the job running so reclamation retries it
				// from the last checkpoint.
				logger.Error().Err(err).Msg("chunk processing failed, yielding job")
			}
			break
		}

		l.metrics.IncChunks()
		l.metrics.AddCellsComputed(j.Metadata.LastProcessedIndex - before)

		if done {
			l.metrics.IncJobsTotal(StatusSuccess)
			logger.Info().Dur("duration", time.Since(start)).Msg("job finished")
			break
		}
	}

	l.metrics.ObserveJobDuration(time.Since(start).Seconds())
}

func (l *Loop) slotsFree() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	free := l.config.MaxConcurrentJobs - l.active
	if free < 0 {
		return 0
	}
	return free
}

func (l *Loop) addActive(delta int) {
	l.mu.Lock()
	l.active += delta
	n := l.active
	l.mu.Unlock()
	l.metrics.SetActiveJobs(n)
}
