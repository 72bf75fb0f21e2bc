// Package repository wraps all SQL used throughout the API and worker.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/assetdock/assetdock/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ImportJobRepository persists import jobs.
type ImportJobRepository struct {
	pool *pgxpool.Pool
}

// NewImportJobRepository constructs a repository.
func NewImportJobRepository(pool *pgxpool.Pool) *ImportJobRepository {
	return &ImportJobRepository{pool: pool}
}

// Create inserts a pending job after a successful upload.
func (r *ImportJobRepository) Create(ctx context.Context, job *model.ImportJob) error {
	now := time.Now().UTC()
	job.Status = model.StatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO import_jobs (id, file_name, object_key, size_bytes, status, result, error_message, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,NULL,NULL,$6,$7)
	`, job.ID, job.FileName, job.ObjectKey, job.SizeBytes, job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert import job: %w", err)
	}
	return nil
}

// Get returns a job by id.
func (r *ImportJobRepository) Get(ctx context.Context, id string) (*model.ImportJob, error) {
	var (
		job        model.ImportJob
		resultJSON []byte
		errorMsg   *string
	)
	row := r.pool.QueryRow(ctx, `
		SELECT id, file_name, object_key, size_bytes, status, result, error_message, created_at, updated_at, completed_at
		FROM import_jobs WHERE id=$1
	`, id)
	if err := row.Scan(&job.ID, &job.FileName, &job.ObjectKey, &job.SizeBytes, &job.Status,
		&resultJSON, &errorMsg, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("import job %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("select import job: %w", err)
	}
	if len(resultJSON) > 0 {
		var result model.JobResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("decode job result: %w", err)
		}
		job.Result = &result
	}
	job.ErrorMessage = errorMsg
	return &job, nil
}

// MarkRunning sets the status to running.
func (r *ImportJobRepository) MarkRunning(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		UPDATE import_jobs SET status=$1, updated_at=$2 WHERE id=$3
	`, model.StatusRunning, now, id)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	return nil
}

// Complete stores the result and marks the job completed. A completed job
// may still carry row errors (partial success).
func (r *ImportJobRepository) Complete(ctx context.Context, id string, result *model.JobResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode job result: %w", err)
	}
	now := time.Now().UTC()
	_, err = r.pool.Exec(ctx, `
		UPDATE import_jobs SET status=$1, result=$2, error_message=NULL, updated_at=$3, completed_at=$3 WHERE id=$4
	`, model.StatusCompleted, resultJSON, now, id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// Fail marks the job failed and stores the fatal error message.
func (r *ImportJobRepository) Fail(ctx context.Context, id string, msg string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		UPDATE import_jobs SET status=$1, error_message=$2, updated_at=$3, completed_at=$3 WHERE id=$4
	`, model.StatusFailed, msg, now, id)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}
