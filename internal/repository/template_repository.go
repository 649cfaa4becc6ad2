package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tracevault/tracevault-api/internal/models"
)

// TemplateRepository handles persistence for templates and their property
// definitions.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository creates a new repository instance.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create persists a template together with its initial property
// definitions in one transaction.
func (r *TemplateRepository) Create(ctx context.Context, template *models.Template, properties []models.PropertyDefinition) error {
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	if template.CreatedAt.IsZero() {
		template.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin template create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertTemplate = `INSERT INTO templates (id, workspace_id, name, kind, created_at) VALUES (:id, :workspace_id, :name, :kind, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertTemplate, template); err != nil {
		return fmt.Errorf("create template: %w", err)
	}

	const insertProperty = `
		INSERT INTO property_definitions (id, template_id, name, type, default_value, display_order, is_active, created_at)
		VALUES (:id, :template_id, :name, :type, :default_value, :display_order, :is_active, :created_at)`
	for i := range properties {
		prop := &properties[i]
		if prop.ID == "" {
			prop.ID = uuid.NewString()
		}
		prop.TemplateID = template.ID
		prop.IsActive = true
		if prop.CreatedAt.IsZero() {
			prop.CreatedAt = time.Now().UTC()
		}
		if _, err := tx.NamedExecContext(ctx, insertProperty, prop); err != nil {
			return fmt.Errorf("create property definition: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template create: %w", err)
	}
	return nil
}

// FindByID returns a template by id.
func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*models.Template, error) {
	const query = `SELECT id, workspace_id, name, kind, created_at FROM templates WHERE id = $1`
	var template models.Template
	if err := r.db.GetContext(ctx, &template, query, id); err != nil {
		return nil, err
	}
	return &template, nil
}

// ExistsByName checks name uniqueness per (workspace, kind).
func (r *TemplateRepository) ExistsByName(ctx context.Context, workspaceID string, kind models.TemplateKind, name, excludeID string) (bool, error) {
	query := `SELECT 1 FROM templates WHERE workspace_id = $1 AND kind = $2 AND LOWER(name) = LOWER($3)`
	args := []interface{}{workspaceID, kind, name}
	if excludeID != "" {
		query += ` AND id <> $4`
		args = append(args, excludeID)
	}

	var exists int
	if err := r.db.GetContext(ctx, &exists, query+` LIMIT 1`, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check template name: %w", err)
	}
	return true, nil
}

// ListByKind returns templates of a kind with their dependent record
// counts, sorted by name.
func (r *TemplateRepository) ListByKind(ctx context.Context, workspaceID string, kind models.TemplateKind) ([]models.TemplateWithCount, error) {
	const query = `
		SELECT t.id, t.workspace_id, t.name, t.kind, t.created_at, COUNT(rec.id) AS record_count
		FROM templates t
		LEFT JOIN records rec ON rec.template_id = t.id
		WHERE t.workspace_id = $1 AND t.kind = $2
		GROUP BY t.id, t.workspace_id, t.name, t.kind, t.created_at
		ORDER BY t.name ASC`
	var templates []models.TemplateWithCount
	if err := r.db.SelectContext(ctx, &templates, query, workspaceID, kind); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// Rename updates the template name.
func (r *TemplateRepository) Rename(ctx context.Context, id, name string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE templates SET name = $2 WHERE id = $1`, id, name); err != nil {
		return fmt.Errorf("rename template: %w", err)
	}
	return nil
}

// ListProperties returns a template's property definitions ordered by
// display_order with insertion order as the tiebreaker. When activeOnly is
// set, archived definitions are excluded.
func (r *TemplateRepository) ListProperties(ctx context.Context, templateID string, activeOnly bool) ([]models.PropertyDefinition, error) {
	query := `
		SELECT id, template_id, name, type, default_value, display_order, is_active, created_at
		FROM property_definitions
		WHERE template_id = $1`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY display_order ASC, created_at ASC`

	var properties []models.PropertyDefinition
	if err := r.db.SelectContext(ctx, &properties, query, templateID); err != nil {
		return nil, fmt.Errorf("list property definitions: %w", err)
	}
	return properties, nil
}

// FindProperty returns a property definition by id, archived or not.
func (r *TemplateRepository) FindProperty(ctx context.Context, id string) (*models.PropertyDefinition, error) {
	const query = `
		SELECT id, template_id, name, type, default_value, display_order, is_active, created_at
		FROM property_definitions WHERE id = $1`
	var property models.PropertyDefinition
	if err := r.db.GetContext(ctx, &property, query, id); err != nil {
		return nil, err
	}
	return &property, nil
}

// UpsertProperties applies a full property set change in one transaction:
// updates overwrite existing rows, inserts add new ones, and ids in
// archiveIDs are soft-deleted. Archived rows keep their values so old
// snapshots stay resolvable.
func (r *TemplateRepository) UpsertProperties(ctx context.Context, templateID string, updates, inserts []models.PropertyDefinition, archiveIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin property upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const update = `
		UPDATE property_definitions
		SET name = :name, type = :type, default_value = :default_value, display_order = :display_order, is_active = TRUE
		WHERE id = :id AND template_id = :template_id`
	for i := range updates {
		updates[i].TemplateID = templateID
		if _, err := tx.NamedExecContext(ctx, update, updates[i]); err != nil {
			return fmt.Errorf("update property definition: %w", err)
		}
	}

	const insert = `
		INSERT INTO property_definitions (id, template_id, name, type, default_value, display_order, is_active, created_at)
		VALUES (:id, :template_id, :name, :type, :default_value, :display_order, TRUE, :created_at)`
	for i := range inserts {
		prop := &inserts[i]
		if prop.ID == "" {
			prop.ID = uuid.NewString()
		}
		prop.TemplateID = templateID
		if prop.CreatedAt.IsZero() {
			prop.CreatedAt = time.Now().UTC()
		}
		if _, err := tx.NamedExecContext(ctx, insert, prop); err != nil {
			return fmt.Errorf("insert property definition: %w", err)
		}
	}

	if len(archiveIDs) > 0 {
		const archive = `UPDATE property_definitions SET is_active = FALSE WHERE template_id = $1 AND id = ANY($2)`
		if _, err := tx.ExecContext(ctx, archive, templateID, pq.Array(archiveIDs)); err != nil {
			return fmt.Errorf("archive property definitions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit property upsert: %w", err)
	}
	return nil
}

// Delete removes a template and everything hanging off it. Order matters:
// rules, values, records, property definitions, then the template row.
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin template delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	steps := []string{
		`DELETE FROM linked_document_rules WHERE template_id = $1`,
		`DELETE FROM property_values pv USING records r WHERE pv.record_id = r.id AND r.template_id = $1`,
		`DELETE FROM records WHERE template_id = $1`,
		`DELETE FROM property_definitions WHERE template_id = $1`,
		`DELETE FROM templates WHERE id = $1`,
	}
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, step, id); err != nil {
			return fmt.Errorf("delete template: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template delete: %w", err)
	}
	return nil
}
