package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tracevault/tracevault-api/internal/models"
	appErrors "github.com/tracevault/tracevault-api/pkg/errors"
)

type scopeWorkspaceRepository interface {
	ListForUser(ctx context.Context, userID string) ([]models.Workspace, error)
	FindByID(ctx context.Context, id string) (*models.Workspace, error)
	Create(ctx context.Context, workspace *models.Workspace) error
	MembershipRole(ctx context.Context, workspaceID, userID string) (*models.WorkspaceRole, error)
	ListMembers(ctx context.Context, workspaceID string) ([]models.WorkspaceMember, error)
	UpsertMember(ctx context.Context, member *models.WorkspaceMember) error
	RemoveMember(ctx context.Context, workspaceID, userID string) error
	Delete(ctx context.Context, id string) error
}

// CreateWorkspaceRequest is the payload for opening a new workspace.
type CreateWorkspaceRequest struct {
	Name string `json:"name" validate:"required"`
}

// SetMemberRequest grants or updates a member role.
type SetMemberRequest struct {
	UserID string               `json:"user_id" validate:"required"`
	Role   models.WorkspaceRole `json:"role" validate:"required"`
}

// ScopeService derives the caller's session scope and manages workspaces.
// Every scoped operation in the system starts from a scope this service
// resolved; nothing trusts a client-supplied role.
type ScopeService struct {
	repo      scopeWorkspaceRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	timeout   time.Duration
}

// NewScopeService constructs a ScopeService.
func NewScopeService(repo scopeWorkspaceRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, timeout time.Duration) *ScopeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopeService{repo: repo, cache: cache, validator: validate, logger: logger, timeout: timeout}
}

// Resolve computes the caller's scope for the given workspace. The role is
// derived fresh on every call: an explicit membership row wins, the owner
// falls back to admin, and everyone else gets none. A scope with role none
// is returned, not an error; callers decide whether none is acceptable.
func (s *ScopeService) Resolve(ctx context.Context, userID, workspaceID string) (models.SessionScope, error) {
	if workspaceID == "" {
		return models.SessionScope{}, appErrors.Clone(appErrors.ErrNoWorkspace, "")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	workspace, err := s.repo.FindByID(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SessionScope{}, appErrors.Clone(appErrors.ErrNotFound, "workspace not found")
		}
		return models.SessionScope{}, storeErr(err, "failed to load workspace")
	}

	role, err := s.repo.MembershipRole(ctx, workspaceID, userID)
	if err != nil {
		return models.SessionScope{}, storeErr(err, "failed to resolve membership")
	}

	scope := models.SessionScope{WorkspaceID: workspaceID, UserID: userID, Role: models.RoleNone}
	switch {
	case role != nil:
		scope.Role = *role
	case workspace.OwnerID == userID:
		scope.Role = models.RoleAdmin
	}
	return scope, nil
}

// SelectActive picks the workspace a session should start in: the last
// active one when it is still accessible, otherwise the first available,
// otherwise nil.
func (s *ScopeService) SelectActive(ctx context.Context, userID, lastActiveID string) (*models.Workspace, error) {
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	workspaces, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "failed to list workspaces")
	}
	if lastActiveID != "" {
		for i := range workspaces {
			if workspaces[i].ID == lastActiveID {
				return &workspaces[i], nil
			}
		}
	}
	if len(workspaces) > 0 {
		return &workspaces[0], nil
	}
	return nil, nil
}

// Switch moves the caller to another workspace and drops any per-workspace
// cached state left over from the previous one.
func (s *ScopeService) Switch(ctx context.Context, userID, workspaceID, priorWorkspaceID string) (models.SessionScope, error) {
	scope, err := s.Resolve(ctx, userID, workspaceID)
	if err != nil {
		return models.SessionScope{}, err
	}
	if !scope.Member() {
		return models.SessionScope{}, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	if priorWorkspaceID != "" && priorWorkspaceID != workspaceID {
		if err := s.cache.Invalidate(ctx, SuggestCachePattern(priorWorkspaceID, "")); err != nil {
			s.logger.Warn("failed to invalidate suggestion cache on switch", zap.String("workspace_id", priorWorkspaceID), zap.Error(err))
		}
	}
	return scope, nil
}

// List returns every workspace the user owns or belongs to.
func (s *ScopeService) List(ctx context.Context, userID string) ([]models.Workspace, error) {
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	workspaces, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "failed to list workspaces")
	}
	return workspaces, nil
}

// Create opens a new workspace owned by the caller.
func (s *ScopeService) Create(ctx context.Context, userID string, req CreateWorkspaceRequest) (*models.Workspace, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid workspace payload")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "workspace name is required")
	}

	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	workspace := &models.Workspace{
		ID:      uuid.NewString(),
		Name:    name,
		OwnerID: userID,
	}
	if err := s.repo.Create(ctx, workspace); err != nil {
		return nil, storeErr(err, "failed to create workspace")
	}
	s.logger.Info("workspace created", zap.String("workspace_id", workspace.ID), zap.String("owner_id", userID))
	return workspace, nil
}

// Delete removes a workspace and everything inside it. Admin only.
func (s *ScopeService) Delete(ctx context.Context, scope models.SessionScope) error {
	if !scope.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only workspace admins may delete a workspace")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	if err := s.repo.Delete(ctx, scope.WorkspaceID); err != nil {
		return storeErr(err, "failed to delete workspace")
	}
	if err := s.cache.Invalidate(ctx, SuggestCachePattern(scope.WorkspaceID, "")); err != nil {
		s.logger.Warn("failed to invalidate suggestion cache", zap.String("workspace_id", scope.WorkspaceID), zap.Error(err))
	}
	s.logger.Info("workspace deleted", zap.String("workspace_id", scope.WorkspaceID))
	return nil
}

// ListMembers returns the workspace membership roster.
func (s *ScopeService) ListMembers(ctx context.Context, scope models.SessionScope) ([]models.WorkspaceMember, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	members, err := s.repo.ListMembers(ctx, scope.WorkspaceID)
	if err != nil {
		return nil, storeErr(err, "failed to list members")
	}
	return members, nil
}

// SetMember grants or updates a member role. Admin only.
func (s *ScopeService) SetMember(ctx context.Context, scope models.SessionScope, req SetMemberRequest) error {
	if !scope.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only workspace admins may manage members")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid member payload")
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleUser {
		return appErrors.Clone(appErrors.ErrValidation, "role must be admin or user")
	}

	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	member := &models.WorkspaceMember{
		WorkspaceID: scope.WorkspaceID,
		UserID:      req.UserID,
		Role:        req.Role,
	}
	if err := s.repo.UpsertMember(ctx, member); err != nil {
		return storeErr(err, "failed to set member")
	}
	return nil
}

// RemoveMember revokes a user's membership. Admin only.
func (s *ScopeService) RemoveMember(ctx context.Context, scope models.SessionScope, userID string) error {
	if !scope.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only workspace admins may manage members")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	if err := s.repo.RemoveMember(ctx, scope.WorkspaceID, userID); err != nil {
		return storeErr(err, "failed to remove member")
	}
	return nil
}
