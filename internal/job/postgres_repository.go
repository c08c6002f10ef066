package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL job repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const jobColumns = `
	id, type, status, city_id, progress, total_items, metadata, error,
	created_at, started_at, completed_at
`

// Create persists a new job.
func (r *PostgresRepository) Create(ctx context.Context, j *Job) error {
	metadata, err := json.Marshal(j.Metadata)
	if err != nil {
		return fmt.Errorf("marshal job metadata: %w", err)
	}

	query := `
		INSERT INTO jobs (id, type, status, city_id, progress, total_items, metadata, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		j.ID, j.Type, j.Status, j.CityID, j.Progress, j.TotalItems, metadata, j.Error, j.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get retrieves a job by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	return r.scanJob(r.pool.QueryRow(ctx, query, id))
}

// ListByStatus returns jobs in the given state, oldest first.
func (r *PostgresRepository) ListByStatus(ctx context.Context, status Status, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs by status: %w", err)
	}
	defer rows.Close()
	return r.scanJobs(rows)
}

// ListActive returns all pending and running jobs.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]*Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status IN ($1, $2)
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, StatusPending, StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	defer rows.Close()
	return r.scanJobs(rows)
}

// FindActiveByCityAndStep returns the active job for a city+gridStep slot.
func (r *PostgresRepository) FindActiveByCityAndStep(ctx context.Context, cityID string, gridStep float64) (*Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE city_id = $1
		  AND status IN ($2, $3)
		  AND (metadata->>'grid_step')::float8 = $4
		ORDER BY created_at ASC
		LIMIT 1
	`
	return r.scanJob(r.pool.QueryRow(ctx, query, cityID, StatusPending, StatusRunning, gridStep))
}

// MarkRunning claims a pending job. The status guard in the WHERE clause is
// what makes the claim safe across workers.
func (r *PostgresRepository) MarkRunning(ctx context.Context, id string, startedAt time.Time) error {
	query := `
		UPDATE jobs
		SET status = $1, started_at = $2
		WHERE id = $3 AND status = $4
	`
	tag, err := r.pool.Exec(ctx, query, StatusRunning, startedAt, id, StatusPending)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// MarkCompleted transitions a running job to completed.
func (r *PostgresRepository) MarkCompleted(ctx context.Context, id string, completedAt time.Time) error {
	query := `
		UPDATE jobs
		SET status = $1, completed_at = $2
		WHERE id = $3 AND status = $4
	`
	tag, err := r.pool.Exec(ctx, query, StatusCompleted, completedAt, id, StatusRunning)
	if err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// MarkFailed transitions a job to failed with a diagnostic message.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id string, msg string) error {
	query := `
		UPDATE jobs
		SET status = $1, error = $2, completed_at = $3
		WHERE id = $4 AND status != $1
	`
	tag, err := r.pool.Exec(ctx, query, StatusFailed, msg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// UpdateProgress writes progress and the resume offset in one statement.
func (r *PostgresRepository) UpdateProgress(ctx context.Context, id string, progress, lastProcessedIndex int) error {
	query := `
		UPDATE jobs
		SET progress = $1,
		    metadata = jsonb_set(metadata, '{last_processed_index}', to_jsonb($2::int))
		WHERE id = $3
	`
	tag, err := r.pool.Exec(ctx, query, progress, lastProcessedIndex, id)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// ReclaimStale resets stale running jobs to pending. Failed jobs are never
// touched.
func (r *PostgresRepository) ReclaimStale(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		UPDATE jobs
		SET status = $1, started_at = NULL
		WHERE status = $2 AND started_at < $3
	`
	tag, err := r.pool.Exec(ctx, query, StatusPending, StatusRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresRepository) scanJob(row pgx.Row) (*Job, error) {
	var j Job
	var metadata []byte

	err := row.Scan(
		&j.ID, &j.Type, &j.Status, &j.CityID, &j.Progress, &j.TotalItems,
		&metadata, &j.Error, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if err := json.Unmarshal(metadata, &j.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal job metadata: %w", err)
	}
	return &j, nil
}

func (r *PostgresRepository) scanJobs(rows pgx.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := r.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}
