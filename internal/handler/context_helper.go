package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tracevault/tracevault-api/internal/middleware"
	"github.com/tracevault/tracevault-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func scopeFromContext(c *gin.Context) models.SessionScope {
	value, exists := c.Get(middleware.ContextScopeKey)
	if !exists {
		return models.SessionScope{}
	}
	scope, ok := value.(models.SessionScope)
	if !ok {
		return models.SessionScope{}
	}
	return scope
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, size
}
