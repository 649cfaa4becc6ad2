package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tracevault/tracevault-api/internal/models"
)

// WorkspaceRepository handles persistence for workspaces and memberships.
type WorkspaceRepository struct {
	db *sqlx.DB
}

// NewWorkspaceRepository creates a new repository instance.
func NewWorkspaceRepository(db *sqlx.DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

// ListForUser returns workspaces the user owns or belongs to, oldest first.
// Creation order matters: it decides the fallback active workspace.
func (r *WorkspaceRepository) ListForUser(ctx context.Context, userID string) ([]models.Workspace, error) {
	const query = `
		SELECT DISTINCT w.id, w.name, w.owner_id, w.created_at
		FROM workspaces w
		LEFT JOIN workspace_members m ON m.workspace_id = w.id
		WHERE w.owner_id = $1 OR m.user_id = $1
		ORDER BY w.created_at ASC`
	var workspaces []models.Workspace
	if err := r.db.SelectContext(ctx, &workspaces, query, userID); err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	return workspaces, nil
}

// FindByID returns a workspace by id.
func (r *WorkspaceRepository) FindByID(ctx context.Context, id string) (*models.Workspace, error) {
	const query = `SELECT id, name, owner_id, created_at FROM workspaces WHERE id = $1`
	var workspace models.Workspace
	if err := r.db.GetContext(ctx, &workspace, query, id); err != nil {
		return nil, err
	}
	return &workspace, nil
}

// Create persists a new workspace.
func (r *WorkspaceRepository) Create(ctx context.Context, workspace *models.Workspace) error {
	if workspace.ID == "" {
		workspace.ID = uuid.NewString()
	}
	if workspace.CreatedAt.IsZero() {
		workspace.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO workspaces (id, name, owner_id, created_at) VALUES (:id, :name, :owner_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, workspace); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	return nil
}

// MembershipRole returns the stored member role, or nil when the user has
// no membership row. Ownership is resolved separately by the caller.
func (r *WorkspaceRepository) MembershipRole(ctx context.Context, workspaceID, userID string) (*models.WorkspaceRole, error) {
	const query = `SELECT role FROM workspace_members WHERE workspace_id = $1 AND user_id = $2`
	var role models.WorkspaceRole
	if err := r.db.GetContext(ctx, &role, query, workspaceID, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup membership: %w", err)
	}
	return &role, nil
}

// ListMembers returns membership rows for a workspace.
func (r *WorkspaceRepository) ListMembers(ctx context.Context, workspaceID string) ([]models.WorkspaceMember, error) {
	const query = `SELECT workspace_id, user_id, role, created_at FROM workspace_members WHERE workspace_id = $1 ORDER BY created_at ASC`
	var members []models.WorkspaceMember
	if err := r.db.SelectContext(ctx, &members, query, workspaceID); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// UpsertMember adds or updates a membership row.
func (r *WorkspaceRepository) UpsertMember(ctx context.Context, member *models.WorkspaceMember) error {
	if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now().UTC()
	}
	const query = `
		INSERT INTO workspace_members (workspace_id, user_id, role, created_at)
		VALUES (:workspace_id, :user_id, :role, :created_at)
		ON CONFLICT (workspace_id, user_id) DO UPDATE SET role = EXCLUDED.role`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

// RemoveMember deletes a membership row.
func (r *WorkspaceRepository) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM workspace_members WHERE workspace_id = $1 AND user_id = $2`, workspaceID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// Delete removes a workspace and everything scoped to it. The deletes run
// leaf-first inside one transaction so no dangling reference survives a
// partial failure.
func (r *WorkspaceRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin workspace delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	steps := []string{
		`DELETE FROM linked_document_rules WHERE workspace_id = $1`,
		`DELETE FROM property_values pv USING records r WHERE pv.record_id = r.id AND r.workspace_id = $1`,
		`DELETE FROM records WHERE workspace_id = $1`,
		`DELETE FROM property_definitions pd USING templates t WHERE pd.template_id = t.id AND t.workspace_id = $1`,
		`DELETE FROM templates WHERE workspace_id = $1`,
		`DELETE FROM documents WHERE workspace_id = $1`,
		`DELETE FROM export_jobs WHERE workspace_id = $1`,
		`DELETE FROM workspace_members WHERE workspace_id = $1`,
		`DELETE FROM workspaces WHERE id = $1`,
	}
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, step, id); err != nil {
			return fmt.Errorf("delete workspace: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit workspace delete: %w", err)
	}
	return nil
}
