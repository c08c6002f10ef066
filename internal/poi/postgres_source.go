package poi

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/urbanindex/urbanindex/internal/geo"
)

// PostgresSource is a PostgreSQL implementation of Source and Writer backed
// by a plain lat/lng indexed table.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a new PostgreSQL POI source.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// QueryNear returns POIs within radiusMeters of the point. The SQL filter is
// a bounding-box pre-filter on the indexed lat/lng columns; the exact
// haversine check happens here before a POI is included.
func (s *PostgresSource) QueryNear(ctx context.Context, lat, lng, radiusMeters float64, tags []string) ([]POI, error) {
	box := geo.BoundsAround(lat, lng, radiusMeters)

	candidates, err := s.QueryRegion(ctx, box, tags)
	if err != nil {
		return nil, err
	}

	pois := make([]POI, 0, len(candidates))
	for _, p := range candidates {
		d := geo.DistanceMeters(lat, lng, p.Lat, p.Lng)
		if d <= radiusMeters {
			p.DistanceMeters = d
			pois = append(pois, p)
		}
	}

	sort.Slice(pois, func(i, j int) bool {
		return pois[i].DistanceMeters < pois[j].DistanceMeters
	})
	return pois, nil
}

// QueryRegion returns all POIs matching any of the tags inside the box.
func (s *PostgresSource) QueryRegion(ctx context.Context, bounds geo.Bounds, tags []string) ([]POI, error) {
	query := `
		SELECT id, lat, lng, name, tag
		FROM pois
		WHERE lat BETWEEN $1 AND $2
		  AND lng BETWEEN $3 AND $4
		  AND tag = ANY($5)
	`

	rows, err := s.pool.Query(ctx, query,
		bounds.MinLat, bounds.MaxLat, bounds.MinLng, bounds.MaxLng, tags)
	if err != nil {
		return nil, fmt.Errorf("query pois in region: %w", err)
	}
	defer rows.Close()

	var pois []POI
	for rows.Next() {
		var p POI
		if err := rows.Scan(&p.ID, &p.Lat, &p.Lng, &p.Name, &p.Tag); err != nil {
			return nil, fmt.Errorf("scan poi: %w", err)
		}
		pois = append(pois, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pois: %w", err)
	}

	return pois, nil
}

// ExistsAny reports whether any POI exists inside the box.
func (s *PostgresSource) ExistsAny(ctx context.Context, bounds geo.Bounds) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM pois
			WHERE lat BETWEEN $1 AND $2
			  AND lng BETWEEN $3 AND $4
		)
	`

	var exists bool
	err := s.pool.QueryRow(ctx, query,
		bounds.MinLat, bounds.MaxLat, bounds.MinLng, bounds.MaxLng).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check poi existence: %w", err)
	}
	return exists, nil
}

// UpsertBatch inserts or updates POIs keyed by ID. Returns the number of rows
// written.
func (s *PostgresSource) UpsertBatch(ctx context.Context, pois []POI) (int, error) {
	if len(pois) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO pois (id, lat, lng, name, tag)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET lat = EXCLUDED.lat,
		    lng = EXCLUDED.lng,
		    name = EXCLUDED.name,
		    tag = EXCLUDED.tag
	`
	for _, p := range pois {
		batch.Queue(query, p.ID, p.Lat, p.Lng, p.Name, p.Tag)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for range pois {
		if _, err := results.Exec(); err != nil {
			return written, fmt.Errorf("upsert poi batch: %w", err)
		}
		written++
	}
	return written, nil
}
