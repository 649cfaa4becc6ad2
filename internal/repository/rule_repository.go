package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tracevault/tracevault-api/internal/models"
)

// RuleRepository handles persistence for linked document rules.
type RuleRepository struct {
	db *sqlx.DB
}

// NewRuleRepository creates a new repository instance.
func NewRuleRepository(db *sqlx.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// Create persists a rule. Identical rules are allowed; each row matches
// independently.
func (r *RuleRepository) Create(ctx context.Context, rule *models.LinkedDocumentRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	const query = `
		INSERT INTO linked_document_rules (id, workspace_id, document_id, template_id, property_id, value_raw, value_norm, created_at)
		VALUES (:id, :workspace_id, :document_id, :template_id, :property_id, :value_raw, :value_norm, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

// FindByID returns a rule by id.
func (r *RuleRepository) FindByID(ctx context.Context, id string) (*models.LinkedDocumentRule, error) {
	const query = `
		SELECT id, workspace_id, document_id, template_id, property_id, value_raw, value_norm, created_at
		FROM linked_document_rules WHERE id = $1`
	var rule models.LinkedDocumentRule
	if err := r.db.GetContext(ctx, &rule, query, id); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListByTemplate returns all rules scoped to a template. The resolver
// re-reads these on every call; matching is always against live rows.
func (r *RuleRepository) ListByTemplate(ctx context.Context, templateID string) ([]models.LinkedDocumentRule, error) {
	const query = `
		SELECT id, workspace_id, document_id, template_id, property_id, value_raw, value_norm, created_at
		FROM linked_document_rules WHERE template_id = $1
		ORDER BY created_at ASC`
	var rules []models.LinkedDocumentRule
	if err := r.db.SelectContext(ctx, &rules, query, templateID); err != nil {
		return nil, fmt.Errorf("list rules by template: %w", err)
	}
	return rules, nil
}

// ListByDocument returns all rules referencing a document.
func (r *RuleRepository) ListByDocument(ctx context.Context, documentID string) ([]models.LinkedDocumentRule, error) {
	const query = `
		SELECT id, workspace_id, document_id, template_id, property_id, value_raw, value_norm, created_at
		FROM linked_document_rules WHERE document_id = $1
		ORDER BY created_at ASC`
	var rules []models.LinkedDocumentRule
	if err := r.db.SelectContext(ctx, &rules, query, documentID); err != nil {
		return nil, fmt.Errorf("list rules by document: %w", err)
	}
	return rules, nil
}

// Delete removes a single rule.
func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM linked_document_rules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}
