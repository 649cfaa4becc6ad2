package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/tracevault/tracevault-api/internal/models"
)

// ValueRepository handles persistence for per-record property values.
type ValueRepository struct {
	db *sqlx.DB
}

// NewValueRepository creates a new repository instance.
func NewValueRepository(db *sqlx.DB) *ValueRepository {
	return &ValueRepository{db: db}
}

// GetValues returns all stored values for a record.
func (r *ValueRepository) GetValues(ctx context.Context, recordID string) ([]models.PropertyValue, error) {
	const query = `SELECT record_id, property_id, value FROM property_values WHERE record_id = $1`
	var values []models.PropertyValue
	if err := r.db.SelectContext(ctx, &values, query, recordID); err != nil {
		return nil, fmt.Errorf("get values: %w", err)
	}
	return values, nil
}

// Upsert writes values keyed by (record_id, property_id); the composite
// conflict target makes concurrent writers converge to last-write-wins
// without a read-modify-write cycle. Callers must normalize empty strings
// to nil before reaching this layer.
func (r *ValueRepository) Upsert(ctx context.Context, values []models.PropertyValue) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin value upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `
		INSERT INTO property_values (record_id, property_id, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (record_id, property_id) DO UPDATE SET value = EXCLUDED.value`
	for _, v := range values {
		if _, err := tx.ExecContext(ctx, query, v.RecordID, v.PropertyID, v.Value); err != nil {
			return fmt.Errorf("upsert value: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit value upsert: %w", err)
	}
	return nil
}

// Suggest aggregates distinct historical values for a (template, property)
// pair ranked by observed frequency, optionally filtered by a
// case-insensitive substring.
func (r *ValueRepository) Suggest(ctx context.Context, templateID, propertyID, search string, limit int) ([]models.ValueSuggestion, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT pv.value AS value, COUNT(*) AS count
		FROM property_values pv
		JOIN records rec ON rec.id = pv.record_id
		WHERE rec.template_id = $1 AND pv.property_id = $2 AND pv.value IS NOT NULL`
	args := []interface{}{templateID, propertyID}
	if search != "" {
		query += fmt.Sprintf(` AND LOWER(pv.value) LIKE $%d`, len(args)+1)
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	query += fmt.Sprintf(` GROUP BY pv.value ORDER BY count DESC, value ASC LIMIT %d`, limit)

	var suggestions []models.ValueSuggestion
	if err := r.db.SelectContext(ctx, &suggestions, query, args...); err != nil {
		return nil, fmt.Errorf("suggest values: %w", err)
	}
	return suggestions, nil
}
