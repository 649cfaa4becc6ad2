package models

import "time"

// WorkspaceRole is a caller's derived access level within a workspace.
// It is computed from ownership and membership, never stored redundantly.
type WorkspaceRole string

const (
	RoleAdmin WorkspaceRole = "admin"
	RoleUser  WorkspaceRole = "user"
	RoleNone  WorkspaceRole = "none"
)

// Workspace is the owning scope for templates, records and documents.
type Workspace struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// WorkspaceMember grants a user a role inside a workspace.
type WorkspaceMember struct {
	WorkspaceID string        `db:"workspace_id" json:"workspace_id"`
	UserID      string        `db:"user_id" json:"user_id"`
	Role        WorkspaceRole `db:"role" json:"role"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// SessionScope is the explicit scope value threaded through every core
// operation: which workspace is active and what the caller may do in it.
type SessionScope struct {
	WorkspaceID string        `json:"workspace_id"`
	UserID      string        `json:"user_id"`
	Role        WorkspaceRole `json:"role"`
}

// Member reports whether the caller belongs to the workspace at all.
func (s SessionScope) Member() bool {
	return s.Role == RoleAdmin || s.Role == RoleUser
}

// IsAdmin reports whether destructive operations are permitted.
func (s SessionScope) IsAdmin() bool {
	return s.Role == RoleAdmin
}
