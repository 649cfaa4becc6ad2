package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tracevault/tracevault-api/internal/models"
)

// ExportRepository handles persistence for export jobs.
type ExportRepository struct {
	db *sqlx.DB
}

// NewExportRepository creates a new repository instance.
func NewExportRepository(db *sqlx.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// Create persists a new export job.
func (r *ExportRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	const query = `
		INSERT INTO export_jobs (id, workspace_id, template_id, format, status, requested_by, created_at, updated_at)
		VALUES (:id, :workspace_id, :template_id, :format, :status, :requested_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// FindByID returns an export job by id.
func (r *ExportRepository) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	const query = `
		SELECT id, workspace_id, template_id, format, status, file_path, download_url, expires_at, error, requested_by, created_at, updated_at
		FROM export_jobs WHERE id = $1`
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateStatus transitions a job's lifecycle state.
func (r *ExportRepository) UpdateStatus(ctx context.Context, id, status string, jobErr *string) error {
	const query = `UPDATE export_jobs SET status = $2, error = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, jobErr, time.Now().UTC()); err != nil {
		return fmt.Errorf("update export status: %w", err)
	}
	return nil
}

// UpdateResult records a completed job's artifact location.
func (r *ExportRepository) UpdateResult(ctx context.Context, id, filePath, downloadURL string, expiresAt time.Time) error {
	const query = `
		UPDATE export_jobs
		SET status = $2, file_path = $3, download_url = $4, expires_at = $5, updated_at = $6
		WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ExportStatusDone, filePath, downloadURL, expiresAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update export result: %w", err)
	}
	return nil
}
