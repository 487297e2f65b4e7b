package syncjobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository abstracts job persistence.
type Repository interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	ListRecent(ctx context.Context, limit int) ([]Job, error)
	MarkRunning(ctx context.Context, id string) error
	MarkDone(ctx context.Context, id string, successCount, failedCount int, groupErrors []GroupError, resultPath string) error
	MarkFailed(ctx context.Context, id string, message string) error
}

// PGRepository stores jobs in Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs the Postgres-backed job store.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const jobColumns = `id, credential_id, kind, status, payload, success_count, failed_count, errors, error_message, result_path, created_at, started_at, finished_at`

func scanJob(row pgx.Row) (Job, error) {
	var (
		job       Job
		rawErrors []byte
	)
	err := row.Scan(
		&job.ID, &job.CredentialID, &job.Kind, &job.Status, &job.Payload,
		&job.SuccessCount, &job.FailedCount, &rawErrors, &job.ErrorMessage,
		&job.ResultPath, &job.CreatedAt, &job.StartedAt, &job.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	if len(rawErrors) > 0 {
		if err := json.Unmarshal(rawErrors, &job.Errors); err != nil {
			return Job{}, err
		}
	}
	return job, nil
}

// Create inserts a queued job record.
func (r *PGRepository) Create(ctx context.Context, job Job) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sync_jobs (id, credential_id, kind, status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		job.ID, job.CredentialID, job.Kind, StatusQueued, job.Payload,
	)
	return err
}

// Get loads one job.
func (r *PGRepository) Get(ctx context.Context, id string) (Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM sync_jobs WHERE id = $1`, id)
	return scanJob(row)
}

// ListRecent returns the newest jobs first.
func (r *PGRepository) ListRecent(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `SELECT `+jobColumns+` FROM sync_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// MarkRunning stamps the start of processing.
func (r *PGRepository) MarkRunning(ctx context.Context, id string) error {
	return r.update(ctx, `UPDATE sync_jobs SET status = $2, started_at = $3 WHERE id = $1`, id, StatusRunning, time.Now())
}

// MarkDone records the terminal result. A run with any failed group ends
// in error status; the counts and the error list are the payload either way.
func (r *PGRepository) MarkDone(ctx context.Context, id string, successCount, failedCount int, groupErrors []GroupError, resultPath string) error {
	status := StatusDone
	if failedCount > 0 {
		status = StatusError
	}
	raw, err := json.Marshal(groupErrors)
	if err != nil {
		return err
	}
	return r.update(ctx, `
		UPDATE sync_jobs
		SET status = $2, success_count = $3, failed_count = $4, errors = $5, result_path = $6, finished_at = $7
		WHERE id = $1`,
		id, status, successCount, failedCount, raw, resultPath, time.Now(),
	)
}

// MarkFailed records an aborted run.
func (r *PGRepository) MarkFailed(ctx context.Context, id string, message string) error {
	return r.update(ctx, `UPDATE sync_jobs SET status = $2, error_message = $3, finished_at = $4 WHERE id = $1`, id, StatusError, message, time.Now())
}

func (r *PGRepository) update(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
