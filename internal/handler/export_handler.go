package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tracevault/tracevault-api/internal/models"
	"github.com/tracevault/tracevault-api/internal/service"
	appErrors "github.com/tracevault/tracevault-api/pkg/errors"
	"github.com/tracevault/tracevault-api/pkg/response"
)

type exportService interface {
	Request(ctx context.Context, scope models.SessionScope, req service.ExportRequest) (*models.ExportJob, error)
	Status(ctx context.Context, scope models.SessionScope, id string) (*models.ExportJob, error)
	Download(ctx context.Context, token string) (*models.ExportJob, io.ReadCloser, error)
}

// ExportHandler exposes asynchronous record export endpoints.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler builds a new handler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Request godoc
// @Summary Queue a record export for a template
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body service.ExportRequest true "Export request"
// @Success 202 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) Request(c *gin.Context) {
	var req service.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export request"))
		return
	}
	job, err := h.exports.Request(c.Request.Context(), scopeFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Get the status of an export job
// @Tags Exports
// @Produce json
// @Param id path string true "Export job id"
// @Success 200 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	job, err := h.exports.Status(c.Request.Context(), scopeFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a finished export using a signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	job, reader, err := h.exports.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer reader.Close()

	filename := fmt.Sprintf("export-%s.%s", job.ID, job.Format)
	contentType := "text/csv"
	if job.Format == models.ExportFormatPDF {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.DataFromReader(http.StatusOK, -1, contentType, reader, nil)
}
