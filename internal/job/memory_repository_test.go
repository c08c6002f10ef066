package job_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanindex/urbanindex/internal/geo"
	"github.com/urbanindex/urbanindex/internal/job"
)

func seedJob(t *testing.T, repo *job.InMemoryRepository, id, cityID string) *job.Job {
	t.Helper()
	j := &job.Job{
		ID:         id,
		Type:       job.TypeHeatmapCompute,
		Status:     job.StatusPending,
		CityID:     cityID,
		TotalItems: 100,
		Metadata: job.Metadata{
			Bounds:   &geo.Bounds{MinLat: 52.0, MinLng: 4.0, MaxLat: 52.1, MaxLng: 4.1},
			GridStep: 0.005,
		},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), j))
	return j
}

func TestInMemoryRepository_CreateAndGet(t *testing.T) {
	repo := job.NewInMemoryRepository()
	ctx := context.Background()

	seedJob(t, repo, "job_a", "amsterdam")

	got, err := repo.Get(ctx, "job_a")
	require.NoError(t, err)
	assert.Equal(t, "amsterdam", got.CityID)
	assert.Equal(t, job.StatusPending, got.Status)

	_, err = repo.Get(ctx, "job_missing")
	assert.ErrorIs(t, err, job.ErrJobNotFound)
}

func TestInMemoryRepository_MarkRunning_ClaimsOnce(t *testing.T) {
	repo := job.NewInMemoryRepository()
	ctx := context.Background()

	seedJob(t, repo, "job_a", "amsterdam")

	require.NoError(t, repo.MarkRunning(ctx, "job_a", time.Now().UTC()))

	// A second claim must lose: the job is no longer pending.
	err := repo.MarkRunning(ctx, "job_a", time.Now().UTC())
	assert.ErrorIs(t, err, job.ErrJobNotFound)
}

func TestInMemoryRepository_MarkCompleted_RequiresRunning(t *testing.T) {
	repo := job.NewInMemoryRepository()
	ctx := context.Background()

	seedJob(t, repo, "job_a", "amsterdam")

	err := repo.MarkCompleted(ctx, "job_a", time.Now().UTC())
	assert.ErrorIs(t, err, job.ErrJobNotFound)

	require.NoError(t, repo.MarkRunning(ctx, "job_a", time.Now().UTC()))
	require.NoError(t, repo.MarkCompleted(ctx, "job_a", time.Now().UTC()))

	got, err := repo.Get(ctx, "job_a")
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestInMemoryRepository_MarkFailed_IsTerminal(t *testing.T) {
	repo := job.NewInMemoryRepository()
	ctx := context.Background()

	seedJob(t, repo, "job_a", "amsterdam")

	require.NoError(t, repo.MarkFailed(ctx, "job_a", "region has no POI data"))

	got, err := repo.Get(ctx, "job_a")
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, got.Status)
	assert.Equal(t, "region has no POI data", got.Error)

	// Failed jobs stay failed.
	assert.ErrorIs(t, repo.MarkFailed(ctx, "job_a", "again"), job.ErrJobNotFound)
	assert.ErrorIs(t, repo.MarkRunning(ctx, "job_a", time.Now().UTC()), job.ErrJobNotFound)
}

func TestInMemoryRepository_UpdateProgress(t *testing.T) {
	repo := job.NewInMemoryRepository()
	ctx := context.Background()

	seedJob(t, repo, "job_a", "amsterdam")

	require.NoError(t, repo.UpdateProgress(ctx, "job_a", 40, 40))

	got, err := repo.Get(ctx, "job_a")
	require.NoError(t, err)
	assert.Equal(t, 40, got.Progress)
	assert.Equal(t, 40, got.Metadata.LastProcessedIndex)
}

func TestInMemoryRepository_FindActiveByCityAndStep(t *testing.T) {
	repo := job.NewInMemoryRepository()
	ctx := context.Background()

	seedJob(t, repo, "job_a", "amsterdam")

	found, err := repo.FindActiveByCityAndStep(ctx, "amsterdam", 0.005)
	require.NoError(t, err)
	assert.Equal(t, "job_a", found.ID)

	// Different resolution is a different slot.
	_, err = repo.FindActiveByCityAndStep(ctx, "amsterdam", 0.01)
	assert.ErrorIs(t, err, job.ErrJobNotFound)

	// Completion releases the slot.
	require.NoError(t, repo.MarkRunning(ctx, "job_a", time.Now().UTC()))
	require.NoError(t, repo.MarkCompleted(ctx, "job_a", time.Now().UTC()))
	_, err = repo.FindActiveByCityAndStep(ctx, "amsterdam", 0.005)
	assert.ErrorIs(t, err, job.ErrJobNotFound)
}

func TestInMemoryRepository_ReclaimStale(t *testing.T) {
	repo := job.NewInMemoryRepository()
	ctx := context.Background()

	seedJob(t, repo, "job_stale", "amsterdam")
	seedJob(t, repo, "job_fresh", "rotterdam")

	require.NoError(t, repo.MarkRunning(ctx, "job_stale", time.Now().UTC().Add(-30*time.Minute)))
	require.NoError(t, repo.MarkRunning(ctx, "job_fresh", time.Now().UTC()))
	require.NoError(t, repo.UpdateProgress(ctx, "job_stale", 40, 40))

	reclaimed, err := repo.ReclaimStale(ctx, time.Now().UTC().Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)

	got, err := repo.Get(ctx, "job_stale")
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, got.Status)
	assert.Nil(t, got.StartedAt)
	// The resume offset survives reclamation.
	assert.Equal(t, 40, got.Metadata.LastProcessedIndex)

	fresh, err := repo.Get(ctx, "job_fresh")
	require.NoError(t, err)
	assert.Equal(t, job.StatusRunning, fresh.Status)
}

func TestInMemoryRepository_ListByStatus_OldestFirst(t *testing.T) {
	repo := job.NewInMemoryRepository()
	ctx := context.Background()

	older := seedJob(t, repo, "job_old", "amsterdam")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, older))
	seedJob(t, repo, "job_new", "rotterdam")

	jobs, err := repo.ListByStatus(ctx, job.StatusPending, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job_old", jobs[0].ID)

	limited, err := repo.ListByStatus(ctx, job.StatusPending, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
