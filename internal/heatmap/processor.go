package heatmap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/urbanindex/urbanindex/internal/batch"
	"github.com/urbanindex/urbanindex/internal/geo"
	"github.com/urbanindex/urbanindex/internal/job"
	"github.com/urbanindex/urbanindex/internal/poi"
)

// ErrMissingBounds marks a malformed job with no region to compute. Such
// jobs are failed immediately rather than retried.
var ErrMissingBounds = errors.New("job metadata has no bounds")

// ProcessorConfig holds chunk processing tuning.
type ProcessorConfig struct {
	// ChunkSize is the number of grid cells computed between progress
	// checkpoints. Default: 500.
	ChunkSize int
}

// DefaultProcessorConfig returns the default processor configuration.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{ChunkSize: 500}
}

// Processor computes heatmap jobs one chunk at a time, checkpointing the
// resume offset after every chunk so a crashed worker loses at most one
// chunk of work. A processor caches the POI working set for the job's
// region, so use one processor per job run.
type Processor struct {
	jobs   job.Repository
	cells  Repository
	pois   poi.Source
	config ProcessorConfig
	logger zerolog.Logger

	calc     *batch.Calculator
	calcStep float64
}

// NewProcessor creates a chunk processor. Zero config fields fall back to
// defaults.
func NewProcessor(jobs job.Repository, cells Repository, pois poi.Source, cfg ProcessorConfig, logger zerolog.Logger) *Processor {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultProcessorConfig().ChunkSize
	}
	return &Processor{
		jobs:   jobs,
		cells:  cells,
		pois:   pois,
		config: cfg,
		logger: logger,
	}
}

// ProcessChunk computes the next chunk of the job's grid, upserts the
// resulting cells, and checkpoints progress. Returns true when the job is
// complete. A job without bounds is failed immediately and returns
// ErrMissingBounds.
func (p *Processor) ProcessChunk(ctx context.Context, j *job.Job) (bool, error) {
	if j.Metadata.Bounds == nil {
		if err := p.jobs.MarkFailed(ctx, j.ID, ErrMissingBounds.Error()); err != nil {
			p.logger.Error().Err(err).Str("job_id", j.ID).Msg("failed to mark malformed job failed")
		}
		return false, ErrMissingBounds
	}

	step := j.Metadata.GridStep
	points := geo.GenerateGridPoints(*j.Metadata.Bounds, step)

	start := j.Metadata.LastProcessedIndex
	if start >= len(points) {
		if err := p.jobs.MarkCompleted(ctx, j.ID, time.Now().UTC()); err != nil {
			return false, fmt.Errorf("mark job completed: %w", err)
		}
		return true, nil
	}

	end := start + p.config.ChunkSize
	if end > len(points) {
		end = len(points)
	}
	chunk := points[start:end]

	calc, err := p.calculator(ctx, *j.Metadata.Bounds, step)
	if err != nil {
		return false, fmt.Errorf("load POI working set: %w", err)
	}

	fresh := p.freshCells(ctx, chunk, step, j.CreatedAt)

	now := time.Now().UTC()
	cells := make([]Cell, 0, len(chunk))
	skipped := 0
	for _, pt := range chunk {
		if _, ok := fresh[CellKey{Lat: pt.Lat, Lng: pt.Lng}]; ok {
			skipped++
			continue
		}
		cells = append(cells, Cell{
			Lat:        pt.Lat,
			Lng:        pt.Lng,
			Score:      calc.Score(pt.Lat, pt.Lng),
			GridStep:   step,
			CityID:     j.CityID,
			ComputedAt: now,
		})
	}

	if err := p.cells.UpsertBatch(ctx, cells); err != nil {
		return false, fmt.Errorf("persist heat cells: %w", err)
	}

	// Checkpoint after the cells are durable, never before: a crash between
	// the two repeats a chunk, which the upsert absorbs.
	if err := p.jobs.UpdateProgress(ctx, j.ID, end, end); err != nil {
		return false, fmt.Errorf("checkpoint progress: %w", err)
	}
	j.Progress = end
	j.Metadata.LastProcessedIndex = end

	p.logger.Debug().
		Str("job_id", j.ID).
		Int("computed", len(cells)).
		Int("skipped", skipped).
		Int("progress", end).
		Int("total", len(points)).
		Msg("heatmap chunk processed")

	if end == len(points) {
		if err := p.jobs.MarkCompleted(ctx, j.ID, time.Now().UTC()); err != nil {
			return false, fmt.Errorf("mark job completed: %w", err)
		}
		p.logger.Info().
			Str("job_id", j.ID).
			Int("cells", len(points)).
			Msg("heatmap job completed")
		return true, nil
	}
	return false, nil
}

// calculator returns the cached per-region calculator, rebuilding it when
// the job's bounds or step differ from the cached one.
func (p *Processor) calculator(ctx context.Context, bounds geo.Bounds, step float64) (*batch.Calculator, error) {
	if p.calc != nil && p.calc.Bounds() == bounds && p.calcStep == step {
		return p.calc, nil
	}

	calc, err := batch.NewCalculator(ctx, p.pois, bounds, nil, p.logger)
	if err != nil {
		return nil, err
	}
	p.calc = calc
	p.calcStep = step
	return calc, nil
}

// freshCells looks up cells under the chunk's footprint computed since the
// job was created, so a resumed or overlapping job skips recomputing them
// while stale cells still get refreshed. Lookup failures only cost
// recomputation, so they are logged and swallowed.
func (p *Processor) freshCells(ctx context.Context, chunk []geo.Coordinate, step float64, since time.Time) map[CellKey]struct{} {
	if len(chunk) == 0 {
		return nil
	}

	box := geo.Bounds{
		MinLat: chunk[0].Lat, MaxLat: chunk[0].Lat,
		MinLng: chunk[0].Lng, MaxLng: chunk[0].Lng,
	}
	for _, pt := range chunk[1:] {
		if pt.Lat < box.MinLat {
			box.MinLat = pt.Lat
		}
		if pt.Lat > box.MaxLat {
			box.MaxLat = pt.Lat
		}
		if pt.Lng < box.MinLng {
			box.MinLng = pt.Lng
		}
		if pt.Lng > box.MaxLng {
			box.MaxLng = pt.Lng
		}
	}

	existing, err := p.cells.FreshInRange(ctx, box, step, since)
	if err != nil {
		p.logger.Warn().Err(err).Msg("existing heat cell lookup failed, recomputing chunk")
		return nil
	}
	return existing
}
