package heatmap

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanindex/urbanindex/internal/geo"
	"github.com/urbanindex/urbanindex/internal/job"
	"github.com/urbanindex/urbanindex/internal/poi"
)

var testBounds = geo.Bounds{MinLat: 52.0, MinLng: 4.0, MaxLat: 52.01, MaxLng: 4.01}

const testStep = 0.005

func newTestJob(t *testing.T, repo job.Repository) *job.Job {
	t.Helper()
	b := testBounds
	j := &job.Job{
		ID:         "job_test",
		Type:       job.TypeHeatmapCompute,
		Status:     job.StatusPending,
		TotalItems: geo.GridCardinality(b, testStep),
		Metadata:   job.Metadata{Bounds: &b, GridStep: testStep},
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), j))
	require.NoError(t, repo.MarkRunning(context.Background(), j.ID, time.Now().UTC()))
	j.Status = job.StatusRunning
	return j
}

func seededPOISource() *poi.InMemorySource {
	src := poi.NewInMemorySource()
	src.Add(
		poi.POI{ID: "node/1", Lat: 52.005, Lng: 4.005, Tag: "shop=supermarket"},
		poi.POI{ID: "node/2", Lat: 52.004, Lng: 4.006, Tag: "amenity=restaurant"},
		poi.POI{ID: "node/3", Lat: 52.006, Lng: 4.004, Tag: "leisure=park"},
	)
	return src
}

func TestProcessChunkRunsJobToCompletion(t *testing.T) {
	ctx := context.Background()
	jobs := job.NewInMemoryRepository()
	cells := NewInMemoryRepository()
	proc := NewProcessor(jobs, cells, seededPOISource(), ProcessorConfig{ChunkSize: 4}, zerolog.Nop())

	j := newTestJob(t, jobs)
	total := j.TotalItems
	require.Equal(t, 9, total)

	var done bool
	for i := 0; i < 10 && !done; i++ {
		var err error
		done, err = proc.ProcessChunk(ctx, j)
		require.NoError(t, err)
	}
	require.True(t, done)

	stored, err := jobs.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, stored.Status)
	assert.Equal(t, total, stored.Progress)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, total, cells.Count())

	// The center cell sits near all three POIs and must score positive.
	got, err := cells.QueryRange(ctx, testBounds, testStep)
	require.NoError(t, err)
	var center *Cell
	for i := range got {
		if math.Abs(got[i].Lat-52.005) < 1e-9 && math.Abs(got[i].Lng-4.005) < 1e-9 {
			center = &got[i]
		}
	}
	require.NotNil(t, center)
	assert.Greater(t, center.Score, 0)
}

func TestProcessChunkCheckpointsProgress(t *testing.T) {
	ctx := context.Background()
	jobs := job.NewInMemoryRepository()
	cells := NewInMemoryRepository()
	proc := NewProcessor(jobs, cells, seededPOISource(), ProcessorConfig{ChunkSize: 4}, zerolog.Nop())

	j := newTestJob(t, jobs)

	done, err := proc.ProcessChunk(ctx, j)
	require.NoError(t, err)
	assert.False(t, done)

	stored, err := jobs.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Progress)
	assert.Equal(t, 4, stored.Metadata.LastProcessedIndex)
	assert.Equal(t, 4, cells.Count())
}

func TestProcessChunkResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	jobs := job.NewInMemoryRepository()
	cells := NewInMemoryRepository()
	src := seededPOISource()

	j := newTestJob(t, jobs)

	first := NewProcessor(jobs, cells, src, ProcessorConfig{ChunkSize: 4}, zerolog.Nop())
	done, err := first.ProcessChunk(ctx, j)
	require.NoError(t, err)
	require.False(t, done)

	// A different processor picks the job back up from the stored offset, as
	// after a worker crash.
	reloaded, err := jobs.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, 4, reloaded.Metadata.LastProcessedIndex)

	second := NewProcessor(jobs, cells, src, ProcessorConfig{ChunkSize: 4}, zerolog.Nop())
	done, err = second.ProcessChunk(ctx, reloaded)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 8, cells.Count())
	assert.Equal(t, 8, reloaded.Metadata.LastProcessedIndex)
}

func TestProcessChunkRepeatedChunkIsIdempotent(t *testing.T) {
	ctx := context.Background()
	jobs := job.NewInMemoryRepository()
	cells := NewInMemoryRepository()
	proc := NewProcessor(jobs, cells, seededPOISource(), ProcessorConfig{ChunkSize: 4}, zerolog.Nop())

	j := newTestJob(t, jobs)

	_, err := proc.ProcessChunk(ctx, j)
	require.NoError(t, err)

	// Replay the same chunk, as happens when a worker dies after the upsert
	// but before the checkpoint.
	j.Metadata.LastProcessedIndex = 0
	_, err = proc.ProcessChunk(ctx, j)
	require.NoError(t, err)

	assert.Equal(t, 4, cells.Count())
}

func TestProcessChunkSkipsFreshRefreshesStale(t *testing.T) {
	ctx := context.Background()
	jobs := job.NewInMemoryRepository()
	cells := NewInMemoryRepository()
	proc := NewProcessor(jobs, cells, seededPOISource(), ProcessorConfig{ChunkSize: 100}, zerolog.Nop())

	j := newTestJob(t, jobs)
	points := geo.GenerateGridPoints(testBounds, testStep)
	require.NotEmpty(t, points)

	// One cell already computed after this job started: keep it. One stale
	// cell from a long-ago run: refresh it.
	freshMarker := Cell{
		Lat: points[0].Lat, Lng: points[0].Lng, Score: -1,
		GridStep: testStep, ComputedAt: time.Now().UTC().Add(time.Minute),
	}
	staleMarker := Cell{
		Lat: points[1].Lat, Lng: points[1].Lng, Score: -2,
		GridStep: testStep, ComputedAt: j.CreatedAt.Add(-24 * time.Hour),
	}
	require.NoError(t, cells.UpsertBatch(ctx, []Cell{freshMarker, staleMarker}))

	done, err := proc.ProcessChunk(ctx, j)
	require.NoError(t, err)
	require.True(t, done)

	got, err := cells.QueryRange(ctx, testBounds, testStep)
	require.NoError(t, err)
	scores := make(map[CellKey]int, len(got))
	for _, c := range got {
		scores[CellKey{Lat: c.Lat, Lng: c.Lng}] = c.Score
	}
	assert.Equal(t, -1, scores[CellKey{Lat: freshMarker.Lat, Lng: freshMarker.Lng}])
	assert.GreaterOrEqual(t, scores[CellKey{Lat: staleMarker.Lat, Lng: staleMarker.Lng}], 0)
}

func TestProcessChunkFailsJobWithoutBounds(t *testing.T) {
	ctx := context.Background()
	jobs := job.NewInMemoryRepository()
	proc := NewProcessor(jobs, NewInMemoryRepository(), seededPOISource(), ProcessorConfig{}, zerolog.Nop())

	j := &job.Job{
		ID:        "job_broken",
		Type:      job.TypeHeatmapCompute,
		Status:    job.StatusPending,
		Metadata:  job.Metadata{GridStep: testStep},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, jobs.Create(ctx, j))
	require.NoError(t, jobs.MarkRunning(ctx, j.ID, time.Now().UTC()))

	_, err := proc.ProcessChunk(ctx, j)
	assert.ErrorIs(t, err, ErrMissingBounds)

	stored, err := jobs.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)
}

type regionFailSource struct {
	*poi.InMemorySource
	err error
}

func (s *regionFailSource) QueryRegion(context.Context, geo.Bounds, []string) ([]poi.POI, error) {
	return nil, s.err
}

func TestProcessChunkWorkingSetLoadFailure(t *testing.T) {
	ctx := context.Background()
	jobs := job.NewInMemoryRepository()
	srcErr := errors.New("poi store down")
	src := &regionFailSource{InMemorySource: poi.NewInMemorySource(), err: srcErr}
	proc := NewProcessor(jobs, NewInMemoryRepository(), src, ProcessorConfig{}, zerolog.Nop())

	j := newTestJob(t, jobs)

	_, err := proc.ProcessChunk(ctx, j)
	assert.ErrorIs(t, err, srcErr)

	// The job is not failed: a transient store outage should be retried
	// after reclamation, not treated as terminal.
	stored, getErr := jobs.Get(ctx, j.ID)
	require.NoError(t, getErr)
	assert.Equal(t, job.StatusRunning, stored.Status)
}
