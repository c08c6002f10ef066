package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanindex/urbanindex/internal/geo"
	"github.com/urbanindex/urbanindex/internal/heatmap"
	"github.com/urbanindex/urbanindex/internal/job"
	"github.com/urbanindex/urbanindex/internal/poi"
	"github.com/urbanindex/urbanindex/internal/worker"
)

func TestDefaultConfig(t *testing.T) {
	cfg := worker.DefaultConfig()

	assert.Equal(t, 2, cfg.MaxConcurrentJobs)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.StaleThreshold)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Less(t, cfg.JobTimeBudget, cfg.StaleThreshold)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_JOBS", "4")
	t.Setenv("JOB_POLL_INTERVAL", "5s")
	t.Setenv("JOB_STALE_THRESHOLD", "20m")
	t.Setenv("JOB_CHUNK_SIZE", "100")

	cfg := worker.ConfigFromEnv()

	assert.Equal(t, 4, cfg.MaxConcurrentJobs)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 20*time.Minute, cfg.StaleThreshold)
	assert.Equal(t, 100, cfg.ChunkSize)
}

func pendingHeatmapJob(t *testing.T, repo job.Repository, id string) *job.Job {
	t.Helper()
	b := geo.Bounds{MinLat: 52.0, MinLng: 4.0, MaxLat: 52.01, MaxLng: 4.01}
	j := &job.Job{
		ID:         id,
		Type:       job.TypeHeatmapCompute,
		Status:     job.StatusPending,
		TotalItems: geo.GridCardinality(b, 0.005),
		Metadata:   job.Metadata{Bounds: &b, GridStep: 0.005},
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), j))
	return j
}

func TestLoopCompletesPendingJob(t *testing.T) {
	jobs := job.NewInMemoryRepository()
	cells := heatmap.NewInMemoryRepository()
	pois := poi.NewInMemorySource()
	pois.Add(poi.POI{ID: "node/1", Lat: 52.005, Lng: 4.005, Tag: "shop=supermarket"})

	j := pendingHeatmapJob(t, jobs, "job_loop")

	cfg := worker.Config{
		MaxConcurrentJobs: 1,
		PollInterval:      10 * time.Millisecond,
		StaleThreshold:    time.Minute,
		ChunkSize:         4,
		JobTimeBudget:     30 * time.Second,
	}
	loop := worker.NewLoop(cfg, jobs, cells, pois, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(loopDone)
	}()

	require.Eventually(t, func() bool {
		stored, err := jobs.Get(context.Background(), j.ID)
		return err == nil && stored.Status == job.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-loopDone:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}

	assert.Equal(t, j.TotalItems, cells.Count())
}

func TestLoopReclaimsStaleJob(t *testing.T) {
	jobs := job.NewInMemoryRepository()
	cells := heatmap.NewInMemoryRepository()
	pois := poi.NewInMemorySource()
	ctx := context.Background()

	j := pendingHeatmapJob(t, jobs, "job_stale")
	// A worker died holding this job half an hour ago.
	require.NoError(t, jobs.MarkRunning(ctx, j.ID, time.Now().UTC().Add(-30*time.Minute)))

	cfg := worker.Config{
		MaxConcurrentJobs: 1,
		PollInterval:      10 * time.Millisecond,
		StaleThreshold:    10 * time.Minute,
		ChunkSize:         50,
		JobTimeBudget:     30 * time.Second,
	}
	loop := worker.NewLoop(cfg, jobs, cells, pois, nil, zerolog.Nop())

	runCtx, cancel := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		loop.Run(runCtx)
		close(loopDone)
	}()

	// The stale job is reclaimed, re-claimed, and driven to completion.
	require.Eventually(t, func() bool {
		stored, err := jobs.Get(ctx, j.ID)
		return err == nil && stored.Status == job.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-loopDone
}

func TestLoopFailsMalformedJob(t *testing.T) {
	jobs := job.NewInMemoryRepository()
	ctx := context.Background()

	j := &job.Job{
		ID:        "job_nobounds",
		Type:      job.TypeHeatmapCompute,
		Status:    job.StatusPending,
		Metadata:  job.Metadata{GridStep: 0.005},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, jobs.Create(ctx, j))

	cfg := worker.Config{
		MaxConcurrentJobs: 1,
		PollInterval:      10 * time.Millisecond,
		StaleThreshold:    time.Minute,
		ChunkSize:         50,
		JobTimeBudget:     30 * time.Second,
	}
	loop := worker.NewLoop(cfg, jobs, heatmap.NewInMemoryRepository(), poi.NewInMemorySource(), nil, zerolog.Nop())

	runCtx, cancel := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		loop.Run(runCtx)
		close(loopDone)
	}()

	require.Eventually(t, func() bool {
		stored, err := jobs.Get(ctx, j.ID)
		return err == nil && stored.Status == job.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-loopDone
}

func TestMetricsRegister(t *testing.T) {
	m := worker.NewMetrics()
	reg := prometheus.NewRegistry()

	require.NoError(t, m.Register(reg))
	assert.Len(t, m.Collectors(), 7)

	// Double registration is rejected by the registry.
	assert.Error(t, m.Register(reg))
}
