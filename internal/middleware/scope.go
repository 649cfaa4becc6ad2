package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/tracevault/tracevault-api/internal/models"
	"github.com/tracevault/tracevault-api/internal/service"
	appErrors "github.com/tracevault/tracevault-api/pkg/errors"
	"github.com/tracevault/tracevault-api/pkg/response"
)

// ContextScopeKey is the gin context key storing the resolved session scope.
const ContextScopeKey = "sessionScope"

// WorkspaceHeader names the active workspace for a request. The role stored
// in the scope is derived server-side; the header only selects the scope.
const WorkspaceHeader = "X-Workspace-ID"

// WorkspaceScope resolves the caller's scope for the workspace named in the
// request header and rejects callers with no standing in it. Must run after
// JWT.
func WorkspaceScope(scopeService *service.ScopeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		workspaceID := c.GetHeader(WorkspaceHeader)
		scope, err := scopeService.Resolve(c.Request.Context(), claims.UserID, workspaceID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if !scope.Member() {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace"))
			c.Abort()
			return
		}

		c.Set(ContextScopeKey, scope)
		c.Next()
	}
}

// RequireAdmin guards destructive routes. Must run after WorkspaceScope.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		scopeValue, exists := c.Get(ContextScopeKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		scope := scopeValue.(models.SessionScope)
		if !scope.IsAdmin() {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "admin role required"))
			c.Abort()
			return
		}
		c.Next()
	}
}
