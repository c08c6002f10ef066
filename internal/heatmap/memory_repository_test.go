package heatmap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanindex/urbanindex/internal/geo"
)

func TestInMemoryRepositoryHasCellNear(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	require.NoError(t, repo.UpsertBatch(ctx, []Cell{
		{Lat: 52.005, Lng: 4.005, Score: 70, GridStep: 0.005, ComputedAt: time.Now().UTC()},
	}))

	covered, err := repo.HasCellNear(ctx, 52.004, 4.006, 0.005)
	require.NoError(t, err)
	assert.True(t, covered)

	// Two steps away is not coverage.
	covered, err = repo.HasCellNear(ctx, 52.02, 4.02, 0.005)
	require.NoError(t, err)
	assert.False(t, covered)

	// A cell at a different resolution does not count.
	covered, err = repo.HasCellNear(ctx, 52.004, 4.006, 0.002)
	require.NoError(t, err)
	assert.False(t, covered)
}

func TestInMemoryRepositoryQueryRangeOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	now := time.Now().UTC()

	require.NoError(t, repo.UpsertBatch(ctx, []Cell{
		{Lat: 52.01, Lng: 4.00, Score: 1, GridStep: 0.005, ComputedAt: now},
		{Lat: 52.00, Lng: 4.01, Score: 2, GridStep: 0.005, ComputedAt: now},
		{Lat: 52.00, Lng: 4.00, Score: 3, GridStep: 0.005, ComputedAt: now},
	}))

	got, err := repo.QueryRange(ctx, geo.Bounds{MinLat: 51.9, MinLng: 3.9, MaxLat: 52.1, MaxLng: 4.1}, 0.005)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 3, got[0].Score)
	assert.Equal(t, 2, got[1].Score)
	assert.Equal(t, 1, got[2].Score)
}
