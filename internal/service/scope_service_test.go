package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracevault/tracevault-api/internal/models"
	appErrors "github.com/tracevault/tracevault-api/pkg/errors"
)

type workspaceRepoStub struct {
	workspaces map[string]models.Workspace
	roles      map[string]models.WorkspaceRole
	listed     []models.Workspace
	removed    []string
}

func (s *workspaceRepoStub) ListForUser(ctx context.Context, userID string) ([]models.Workspace, error) {
	return s.listed, nil
}

func (s *workspaceRepoStub) FindByID(ctx context.Context, id string) (*models.Workspace, error) {
	if ws, ok := s.workspaces[id]; ok {
		return &ws, nil
	}
	return nil, sql.ErrNoRows
}

func (s *workspaceRepoStub) Create(ctx context.Context, workspace *models.Workspace) error {
	if s.workspaces == nil {
		s.workspaces = make(map[string]models.Workspace)
	}
	s.workspaces[workspace.ID] = *workspace
	return nil
}

func (s *workspaceRepoStub) MembershipRole(ctx context.Context, workspaceID, userID string) (*models.WorkspaceRole, error) {
	if role, ok := s.roles[workspaceID+"/"+userID]; ok {
		return &role, nil
	}
	return nil, nil
}

func (s *workspaceRepoStub) ListMembers(ctx context.Context, workspaceID string) ([]models.WorkspaceMember, error) {
	return nil, nil
}

func (s *workspaceRepoStub) UpsertMember(ctx context.Context, member *models.WorkspaceMember) error {
	if s.roles == nil {
		s.roles = make(map[string]models.WorkspaceRole)
	}
	s.roles[member.WorkspaceID+"/"+member.UserID] = member.Role
	return nil
}

func (s *workspaceRepoStub) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	s.removed = append(s.removed, userID)
	return nil
}

func (s *workspaceRepoStub) Delete(ctx context.Context, id string) error {
	delete(s.workspaces, id)
	return nil
}

func newScopeServiceForTest(repo *workspaceRepoStub) *ScopeService {
	return NewScopeService(repo, nil, nil, nil, 0)
}

func TestScopeResolveMembershipRoleWins(t *testing.T) {
	repo := &workspaceRepoStub{
		workspaces: map[string]models.Workspace{"ws-1": {ID: "ws-1", OwnerID: "owner-1"}},
		roles:      map[string]models.WorkspaceRole{"ws-1/user-1": models.RoleUser},
	}
	svc := newScopeServiceForTest(repo)

	scope, err := svc.Resolve(context.Background(), "user-1", "ws-1")

	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, scope.Role)
	assert.True(t, scope.Member())
	assert.False(t, scope.IsAdmin())
}

func TestScopeResolveOwnerFallsBackToAdmin(t *testing.T) {
	repo := &workspaceRepoStub{
		workspaces: map[string]models.Workspace{"ws-1": {ID: "ws-1", OwnerID: "owner-1"}},
	}
	svc := newScopeServiceForTest(repo)

	scope, err := svc.Resolve(context.Background(), "owner-1", "ws-1")

	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, scope.Role)
	assert.True(t, scope.IsAdmin())
}

func TestScopeResolveStrangerGetsNone(t *testing.T) {
	repo := &workspaceRepoStub{
		workspaces: map[string]models.Workspace{"ws-1": {ID: "ws-1", OwnerID: "owner-1"}},
	}
	svc := newScopeServiceForTest(repo)

	scope, err := svc.Resolve(context.Background(), "stranger", "ws-1")

	require.NoError(t, err)
	assert.Equal(t, models.RoleNone, scope.Role)
	assert.False(t, scope.Member())
}

func TestScopeResolveMissingWorkspace(t *testing.T) {
	svc := newScopeServiceForTest(&workspaceRepoStub{})

	_, err := svc.Resolve(context.Background(), "user-1", "ws-missing")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScopeResolveEmptyWorkspaceID(t *testing.T) {
	svc := newScopeServiceForTest(&workspaceRepoStub{})

	_, err := svc.Resolve(context.Background(), "user-1", "")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoWorkspace.Code, appErrors.FromError(err).Code)
}

func TestScopeSelectActivePrefersLastActive(t *testing.T) {
	repo := &workspaceRepoStub{
		listed: []models.Workspace{{ID: "ws-1"}, {ID: "ws-2"}},
	}
	svc := newScopeServiceForTest(repo)

	ws, err := svc.SelectActive(context.Background(), "user-1", "ws-2")

	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.Equal(t, "ws-2", ws.ID)
}

func TestScopeSelectActiveFallsBackToFirst(t *testing.T) {
	repo := &workspaceRepoStub{
		listed: []models.Workspace{{ID: "ws-1"}, {ID: "ws-2"}},
	}
	svc := newScopeServiceForTest(repo)

	ws, err := svc.SelectActive(context.Background(), "user-1", "ws-gone")

	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.Equal(t, "ws-1", ws.ID)
}

func TestScopeSelectActiveNoWorkspaces(t *testing.T) {
	svc := newScopeServiceForTest(&workspaceRepoStub{})

	ws, err := svc.SelectActive(context.Background(), "user-1", "")

	require.NoError(t, err)
	assert.Nil(t, ws)
}

func TestScopeSwitchRejectsNonMember(t *testing.T) {
	repo := &workspaceRepoStub{
		workspaces: map[string]models.Workspace{"ws-1": {ID: "ws-1", OwnerID: "owner-1"}},
	}
	svc := newScopeServiceForTest(repo)

	_, err := svc.Switch(context.Background(), "stranger", "ws-1", "")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestScopeDeleteRequiresAdmin(t *testing.T) {
	svc := newScopeServiceForTest(&workspaceRepoStub{})

	err := svc.Delete(context.Background(), models.SessionScope{WorkspaceID: "ws-1", Role: models.RoleUser})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestScopeSetMemberValidatesRole(t *testing.T) {
	svc := newScopeServiceForTest(&workspaceRepoStub{})
	scope := models.SessionScope{WorkspaceID: "ws-1", UserID: "admin", Role: models.RoleAdmin}

	err := svc.SetMember(context.Background(), scope, SetMemberRequest{UserID: "user-2", Role: models.RoleNone})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
