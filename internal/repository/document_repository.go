package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tracevault/tracevault-api/internal/models"
)

// DocumentRepository handles persistence for document metadata.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository creates a new repository instance.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create persists document metadata.
func (r *DocumentRepository) Create(ctx context.Context, document *models.Document) error {
	if document.ID == "" {
		document.ID = uuid.NewString()
	}
	if document.CreatedAt.IsZero() {
		document.CreatedAt = time.Now().UTC()
	}
	const query = `
		INSERT INTO documents (id, workspace_id, name, storage_locator, mime_type, size_bytes, created_at)
		VALUES (:id, :workspace_id, :name, :storage_locator, :mime_type, :size_bytes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, document); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// FindByID returns a document by id.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	const query = `SELECT id, workspace_id, name, storage_locator, mime_type, size_bytes, created_at FROM documents WHERE id = $1`
	var document models.Document
	if err := r.db.GetContext(ctx, &document, query, id); err != nil {
		return nil, err
	}
	return &document, nil
}

// FindByIDs returns documents matching the given ids, sorted by name.
func (r *DocumentRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `
		SELECT id, workspace_id, name, storage_locator, mime_type, size_bytes, created_at
		FROM documents WHERE id = ANY($1) ORDER BY name ASC`
	var documents []models.Document
	if err := r.db.SelectContext(ctx, &documents, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	return documents, nil
}

// List returns workspace documents sorted by name, paginated.
func (r *DocumentRepository) List(ctx context.Context, workspaceID string, page, size int) ([]models.Document, int, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`
		SELECT id, workspace_id, name, storage_locator, mime_type, size_bytes, created_at
		FROM documents WHERE workspace_id = $1
		ORDER BY name ASC LIMIT %d OFFSET %d`, size, offset)
	var documents []models.Document
	if err := r.db.SelectContext(ctx, &documents, query, workspaceID); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM documents WHERE workspace_id = $1`, workspaceID); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}
	return documents, total, nil
}

// Delete removes a document row and all rules referencing it. Rules go
// first so no rule is ever left pointing at a missing document.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin document delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM linked_document_rules WHERE document_id = $1`, id); err != nil {
		return fmt.Errorf("delete document rules: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document delete: %w", err)
	}
	return nil
}
