package heatmap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/urbanindex/urbanindex/internal/geo"
)

// PostgresRepository is a PostgreSQL-backed heat cell store.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL heat cell repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// UpsertBatch writes cells in one batched round trip. The primary key
// (lat, lng, grid_step) makes recomputation idempotent.
func (r *PostgresRepository) UpsertBatch(ctx context.Context, cells []Cell) error {
	if len(cells) == 0 {
		return nil
	}

	query := `
		INSERT INTO heat_cells (lat, lng, grid_step, score, city_id, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (lat, lng, grid_step) DO UPDATE SET
			score = EXCLUDED.score,
			city_id = EXCLUDED.city_id,
			computed_at = EXCLUDED.computed_at`

	batch := &pgx.Batch{}
	for _, c := range cells {
		batch.Queue(query, c.Lat, c.Lng, c.GridStep, c.Score, c.CityID, c.ComputedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range cells {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert heat cells: %w", err)
		}
	}
	return nil
}

// QueryRange returns cells at the given step inside the box.
func (r *PostgresRepository) QueryRange(ctx context.Context, bounds geo.Bounds, gridStep float64) ([]Cell, error) {
	query := `
		SELECT lat, lng, grid_step, score, city_id, computed_at
		FROM heat_cells
		WHERE grid_step = $1
		  AND lat BETWEEN $2 AND $3
		  AND lng BETWEEN $4 AND $5
		ORDER BY lat, lng`

	rows, err := r.pool.Query(ctx, query, gridStep, bounds.MinLat, bounds.MaxLat, bounds.MinLng, bounds.MaxLng)
	if err != nil {
		return nil, fmt.Errorf("query heat cells: %w", err)
	}
	defer rows.Close()

	var cells []Cell
	for rows.Next() {
		var c Cell
		if err := rows.Scan(&c.Lat, &c.Lng, &c.GridStep, &c.Score, &c.CityID, &c.ComputedAt); err != nil {
			return nil, fmt.Errorf("scan heat cell: %w", err)
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// HasCellNear reports whether any cell exists within one grid step of the
// point.
func (r *PostgresRepository) HasCellNear(ctx context.Context, lat, lng, gridStep float64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM heat_cells
			WHERE grid_step = $1
			  AND lat BETWEEN $2 AND $3
			  AND lng BETWEEN $4 AND $5
		)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, gridStep,
		lat-gridStep, lat+gridStep, lng-gridStep, lng+gridStep).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check heat cell coverage: %w", err)
	}
	return exists, nil
}

// FreshInRange returns the coordinate keys of cells in the box computed at
// or after since.
func (r *PostgresRepository) FreshInRange(ctx context.Context, bounds geo.Bounds, gridStep float64, since time.Time) (map[CellKey]struct{}, error) {
	query := `
		SELECT lat, lng
		FROM heat_cells
		WHERE grid_step = $1
		  AND lat BETWEEN $2 AND $3
		  AND lng BETWEEN $4 AND $5
		  AND computed_at >= $6`

	rows, err := r.pool.Query(ctx, query, gridStep, bounds.MinLat, bounds.MaxLat, bounds.MinLng, bounds.MaxLng, since)
	if err != nil {
		return nil, fmt.Errorf("query existing heat cells: %w", err)
	}
	defer rows.Close()

	keys := make(map[CellKey]struct{})
	for rows.Next() {
		var k CellKey
		if err := rows.Scan(&k.Lat, &k.Lng); err != nil {
			return nil, fmt.Errorf("scan heat cell key: %w", err)
		}
		keys[k] = struct{}{}
	}
	return keys, rows.Err()
}
