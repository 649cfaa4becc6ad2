package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tracevault/tracevault-api/internal/models"
	"github.com/tracevault/tracevault-api/internal/service"
	appErrors "github.com/tracevault/tracevault-api/pkg/errors"
	"github.com/tracevault/tracevault-api/pkg/response"
)

type workspaceService interface {
	List(ctx context.Context, userID string) ([]models.Workspace, error)
	Create(ctx context.Context, userID string, req service.CreateWorkspaceRequest) (*models.Workspace, error)
	SelectActive(ctx context.Context, userID, lastActiveID string) (*models.Workspace, error)
	Switch(ctx context.Context, userID, workspaceID, priorWorkspaceID string) (models.SessionScope, error)
	Delete(ctx context.Context, scope models.SessionScope) error
	ListMembers(ctx context.Context, scope models.SessionScope) ([]models.WorkspaceMember, error)
	SetMember(ctx context.Context, scope models.SessionScope, req service.SetMemberRequest) error
	RemoveMember(ctx context.Context, scope models.SessionScope, userID string) error
}

// WorkspaceHandler exposes workspace and membership endpoints.
type WorkspaceHandler struct {
	service workspaceService
}

// NewWorkspaceHandler builds a new handler.
func NewWorkspaceHandler(service workspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{service: service}
}

// List godoc
// @Summary List workspaces the caller belongs to
// @Tags Workspaces
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /workspaces [get]
func (h *WorkspaceHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	workspaces, err := h.service.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, workspaces, nil)
}

// Create godoc
// @Summary Create a workspace
// @Tags Workspaces
// @Accept json
// @Produce json
// @Param payload body service.CreateWorkspaceRequest true "Workspace payload"
// @Success 201 {object} response.Envelope
// @Router /workspaces [post]
func (h *WorkspaceHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid workspace payload"))
		return
	}
	workspace, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, workspace)
}

// Active godoc
// @Summary Resolve the workspace a session should open in
// @Tags Workspaces
// @Produce json
// @Param last_active query string false "Last active workspace id"
// @Success 200 {object} response.Envelope
// @Router /workspaces/active [get]
func (h *WorkspaceHandler) Active(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	workspace, err := h.service.SelectActive(c.Request.Context(), claims.UserID, c.Query("last_active"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, workspace, nil)
}

// Switch godoc
// @Summary Switch to another workspace
// @Tags Workspaces
// @Produce json
// @Param id path string true "Workspace id"
// @Success 200 {object} response.Envelope
// @Router /workspaces/{id}/switch [post]
func (h *WorkspaceHandler) Switch(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	prior := c.GetHeader("X-Workspace-ID")
	scope, err := h.service.Switch(c.Request.Context(), claims.UserID, c.Param("id"), prior)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scope, nil)
}

// Delete godoc
// @Summary Delete a workspace and everything inside it
// @Tags Workspaces
// @Produce json
// @Success 204
// @Router /workspace [delete]
func (h *WorkspaceHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), scopeFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListMembers godoc
// @Summary List workspace members
// @Tags Workspaces
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /workspace/members [get]
func (h *WorkspaceHandler) ListMembers(c *gin.Context) {
	members, err := h.service.ListMembers(c.Request.Context(), scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, nil)
}

// SetMember godoc
// @Summary Grant or update a member role
// @Tags Workspaces
// @Accept json
// @Produce json
// @Param payload body service.SetMemberRequest true "Member payload"
// @Success 204
// @Router /workspace/members [put]
func (h *WorkspaceHandler) SetMember(c *gin.Context) {
	var req service.SetMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid member payload"))
		return
	}
	if err := h.service.SetMember(c.Request.Context(), scopeFromContext(c), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveMember godoc
// @Summary Remove a member from the workspace
// @Tags Workspaces
// @Produce json
// @Param userId path string true "User id"
// @Success 204
// @Router /workspace/members/{userId} [delete]
func (h *WorkspaceHandler) RemoveMember(c *gin.Context) {
	if err := h.service.RemoveMember(c.Request.Context(), scopeFromContext(c), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
