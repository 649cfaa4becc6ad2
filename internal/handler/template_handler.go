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

type templateService interface {
	Create(ctx context.Context, scope models.SessionScope, req service.CreateTemplateRequest) (*service.TemplateDetail, error)
	Get(ctx context.Context, scope models.SessionScope, id string) (*service.TemplateDetail, error)
	List(ctx context.Context, scope models.SessionScope, kind models.TemplateKind) ([]models.TemplateWithCount, error)
	Rename(ctx context.Context, scope models.SessionScope, id, name string) (*models.Template, error)
	SaveProperties(ctx context.Context, scope models.SessionScope, templateID string, req service.SavePropertiesRequest) ([]models.PropertyDefinition, error)
	Delete(ctx context.Context, scope models.SessionScope, id string) error
}

type renameTemplateRequest struct {
	Name string `json:"name" binding:"required"`
}

// TemplateHandler exposes template and property definition endpoints.
type TemplateHandler struct {
	service templateService
}

// NewTemplateHandler builds a new handler.
func NewTemplateHandler(service templateService) *TemplateHandler {
	return &TemplateHandler{service: service}
}

// List godoc
// @Summary List templates of a kind with record counts
// @Tags Templates
// @Produce json
// @Param kind query string true "Template kind (asset or log)"
// @Success 200 {object} response.Envelope
// @Router /templates [get]
func (h *TemplateHandler) List(c *gin.Context) {
	kind := models.TemplateKind(c.DefaultQuery("kind", string(models.TemplateKindAsset)))
	templates, err := h.service.List(c.Request.Context(), scopeFromContext(c), kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, nil)
}

// Create godoc
// @Summary Create a template with its properties
// @Tags Templates
// @Accept json
// @Produce json
// @Param payload body service.CreateTemplateRequest true "Template payload"
// @Success 201 {object} response.Envelope
// @Router /templates [post]
func (h *TemplateHandler) Create(c *gin.Context) {
	var req service.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid template payload"))
		return
	}
	detail, err := h.service.Create(c.Request.Context(), scopeFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Get godoc
// @Summary Get a template with its active properties
// @Tags Templates
// @Produce json
// @Param id path string true "Template id"
// @Success 200 {object} response.Envelope
// @Router /templates/{id} [get]
func (h *TemplateHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), scopeFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Rename godoc
// @Summary Rename a template
// @Tags Templates
// @Accept json
// @Produce json
// @Param id path string true "Template id"
// @Param payload body renameTemplateRequest true "New name"
// @Success 200 {object} response.Envelope
// @Router /templates/{id} [put]
func (h *TemplateHandler) Rename(c *gin.Context) {
	var req renameTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rename payload"))
		return
	}
	template, err := h.service.Rename(c.Request.Context(), scopeFromContext(c), c.Param("id"), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, template, nil)
}

// SaveProperties godoc
// @Summary Replace the active property set of a template
// @Tags Templates
// @Accept json
// @Produce json
// @Param id path string true "Template id"
// @Param payload body service.SavePropertiesRequest true "Properties payload"
// @Success 200 {object} response.Envelope
// @Router /templates/{id}/properties [put]
func (h *TemplateHandler) SaveProperties(c *gin.Context) {
	var req service.SavePropertiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid properties payload"))
		return
	}
	properties, err := h.service.SaveProperties(c.Request.Context(), scopeFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, properties, nil)
}

// Delete godoc
// @Summary Delete a template and all of its records
// @Tags Templates
// @Produce json
// @Param id path string true "Template id"
// @Success 204
// @Router /templates/{id} [delete]
func (h *TemplateHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), scopeFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
