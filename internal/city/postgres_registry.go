package city

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRegistry is a Registry backed by the cities table, for deployments
// that manage the city list in the database.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

// NewPostgresRegistry creates a new PostgreSQL city registry.
func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

// Get returns the city for a slug.
func (r *PostgresRegistry) Get(ctx context.Context, slug string) (City, error) {
	query := `
		SELECT slug, name, min_lat, min_lng, max_lat, max_lng
		FROM cities
		WHERE slug = $1
	`
	var c City
	err := r.pool.QueryRow(ctx, query, slug).Scan(
		&c.Slug, &c.Name,
		&c.Bounds.MinLat, &c.Bounds.MinLng, &c.Bounds.MaxLat, &c.Bounds.MaxLng,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return City{}, ErrCityNotFound
		}
		return City{}, fmt.Errorf("get city: %w", err)
	}
	return c, nil
}

// List returns all known cities ordered by slug.
func (r *PostgresRegistry) List(ctx context.Context) ([]City, error) {
	query := `
		SELECT slug, name, min_lat, min_lng, max_lat, max_lng
		FROM cities
		ORDER BY slug
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list cities: %w", err)
	}
	defer rows.Close()

	var cities []City
	for rows.Next() {
		var c City
		err := rows.Scan(
			&c.Slug, &c.Name,
			&c.Bounds.MinLat, &c.Bounds.MinLng, &c.Bounds.MaxLat, &c.Bounds.MaxLng,
		)
		if err != nil {
			return nil, fmt.Errorf("scan city: %w", err)
		}
		cities = append(cities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cities: %w", err)
	}
	return cities, nil
}
