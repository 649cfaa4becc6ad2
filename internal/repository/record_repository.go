package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tracevault/tracevault-api/internal/models"
)

// RecordRepository handles persistence for asset and log entry records.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository creates a new repository instance.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Create persists a new record.
func (r *RecordRepository) Create(ctx context.Context, record *models.Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `
		INSERT INTO records (id, workspace_id, template_id, kind, asset_id, fields_snapshot, value_map, created_at)
		VALUES (:id, :workspace_id, :template_id, :kind, :asset_id, :fields_snapshot, :value_map, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

// FindByID returns a record by id.
func (r *RecordRepository) FindByID(ctx context.Context, id string) (*models.Record, error) {
	const query = `
		SELECT id, workspace_id, template_id, kind, asset_id, fields_snapshot, value_map, created_at
		FROM records WHERE id = $1`
	var record models.Record
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByTemplate returns records of a template, newest first, paginated.
func (r *RecordRepository) ListByTemplate(ctx context.Context, templateID string, page, size int) ([]models.Record, int, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`
		SELECT id, workspace_id, template_id, kind, asset_id, fields_snapshot, value_map, created_at
		FROM records WHERE template_id = $1
		ORDER BY created_at DESC LIMIT %d OFFSET %d`, size, offset)
	var records []models.Record
	if err := r.db.SelectContext(ctx, &records, query, templateID); err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM records WHERE template_id = $1`, templateID); err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}
	return records, total, nil
}

// ListAllByTemplate streams every record of a template, oldest first. Used
// by exports, which need the complete set rather than a page.
func (r *RecordRepository) ListAllByTemplate(ctx context.Context, templateID string) ([]models.Record, error) {
	const query = `
		SELECT id, workspace_id, template_id, kind, asset_id, fields_snapshot, value_map, created_at
		FROM records WHERE template_id = $1
		ORDER BY created_at ASC`
	var records []models.Record
	if err := r.db.SelectContext(ctx, &records, query, templateID); err != nil {
		return nil, fmt.Errorf("list all records: %w", err)
	}
	return records, nil
}

// ListLogEntriesByAsset returns an asset's log entries, newest first.
func (r *RecordRepository) ListLogEntriesByAsset(ctx context.Context, assetID string) ([]models.Record, error) {
	const query = `
		SELECT id, workspace_id, template_id, kind, asset_id, fields_snapshot, value_map, created_at
		FROM records WHERE asset_id = $1 AND kind = 'log'
		ORDER BY created_at DESC`
	var records []models.Record
	if err := r.db.SelectContext(ctx, &records, query, assetID); err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	return records, nil
}

// UpdateLogEntry rewrites a log entry's value map and field snapshot as a
// single statement so the pair can never diverge.
func (r *RecordRepository) UpdateLogEntry(ctx context.Context, id string, snapshot models.FieldSnapshot, valueMap models.ValueMap) error {
	const query = `UPDATE records SET fields_snapshot = $2, value_map = $3 WHERE id = $1 AND kind = 'log'`
	result, err := r.db.ExecContext(ctx, query, id, snapshot, valueMap)
	if err != nil {
		return fmt.Errorf("update log entry: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update log entry %s: %w", id, ErrNoRowsAffected)
	}
	return nil
}

// Delete removes a record and its values in one transaction. For assets
// the dependent log entries and their values go first.
func (r *RecordRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	steps := []string{
		`DELETE FROM property_values pv USING records rec WHERE pv.record_id = rec.id AND rec.asset_id = $1`,
		`DELETE FROM records WHERE asset_id = $1`,
		`DELETE FROM property_values WHERE record_id = $1`,
		`DELETE FROM records WHERE id = $1`,
	}
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, step, id); err != nil {
			return fmt.Errorf("delete record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record delete: %w", err)
	}
	return nil
}
