package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tracevault/tracevault-api/internal/models"
	"github.com/tracevault/tracevault-api/internal/service"
	appErrors "github.com/tracevault/tracevault-api/pkg/errors"
	"github.com/tracevault/tracevault-api/pkg/response"
)

type documentService interface {
	Upload(ctx context.Context, scope models.SessionScope, upload service.DocumentUpload) (*models.Document, error)
	Get(ctx context.Context, scope models.SessionScope, id string) (*models.Document, error)
	List(ctx context.Context, scope models.SessionScope, page, size int) ([]models.Document, int, error)
	SignedURL(ctx context.Context, scope models.SessionScope, id string) (*service.SignedDownload, error)
	Download(ctx context.Context, token string) (*models.Document, io.ReadCloser, error)
	Delete(ctx context.Context, scope models.SessionScope, id string) error
}

type documentRuleService interface {
	CreateRule(ctx context.Context, scope models.SessionScope, req service.CreateRuleRequest) (*models.LinkedDocumentRule, error)
	ListRulesForDocument(ctx context.Context, scope models.SessionScope, documentID string) ([]models.LinkedDocumentRule, error)
	DeleteRule(ctx context.Context, scope models.SessionScope, id string) error
}

// DocumentHandler exposes document storage and linking-rule endpoints.
type DocumentHandler struct {
	documents documentService
	rules     documentRuleService
}

// NewDocumentHandler builds a new handler.
func NewDocumentHandler(documents documentService, rules documentRuleService) *DocumentHandler {
	return &DocumentHandler{documents: documents, rules: rules}
}

// Upload godoc
// @Summary Upload a document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document file"
// @Success 201 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "missing file upload"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file upload"))
		return
	}
	defer file.Close()

	document, err := h.documents.Upload(c.Request.Context(), scopeFromContext(c), service.DocumentUpload{
		Filename: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Size:     fileHeader.Size,
		Reader:   file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, document)
}

// List godoc
// @Summary List workspace documents
// @Tags Documents
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	page, size := pageParams(c)
	documents, total, err := h.documents.List(c.Request.Context(), scopeFromContext(c), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, documents, page, size, total)
}

// Get godoc
// @Summary Get a document's metadata
// @Tags Documents
// @Produce json
// @Param id path string true "Document id"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	document, err := h.documents.Get(c.Request.Context(), scopeFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, document, nil)
}

// SignedURL godoc
// @Summary Issue a time-limited download token for a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document id"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/signed-url [post]
func (h *DocumentHandler) SignedURL(c *gin.Context) {
	grant, err := h.documents.SignedURL(c.Request.Context(), scopeFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grant, nil)
}

// Download godoc
// @Summary Download a document blob using a signed token
// @Tags Documents
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Router /documents/download/{token} [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	document, reader, err := h.documents.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", `attachment; filename="`+document.Name+`"`)
	c.Header("Content-Length", strconv.FormatInt(document.SizeBytes, 10))
	c.DataFromReader(http.StatusOK, document.SizeBytes, document.MimeType, reader, nil)
}

// Delete godoc
// @Summary Delete a document and its linking rules
// @Tags Documents
// @Produce json
// @Param id path string true "Document id"
// @Success 204
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), scopeFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateRule godoc
// @Summary Create a linked-document rule
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body service.CreateRuleRequest true "Rule payload"
// @Success 201 {object} response.Envelope
// @Router /documents/rules [post]
func (h *DocumentHandler) CreateRule(c *gin.Context) {
	var req service.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rule payload"))
		return
	}
	rule, err := h.rules.CreateRule(c.Request.Context(), scopeFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rule)
}

// ListRules godoc
// @Summary List the rules attached to a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document id"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/rules [get]
func (h *DocumentHandler) ListRules(c *gin.Context) {
	rules, err := h.rules.ListRulesForDocument(c.Request.Context(), scopeFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, nil)
}

// DeleteRule godoc
// @Summary Delete a linked-document rule
// @Tags Documents
// @Produce json
// @Param ruleId path string true "Rule id"
// @Success 204
// @Router /documents/rules/{ruleId} [delete]
func (h *DocumentHandler) DeleteRule(c *gin.Context) {
	if err := h.rules.DeleteRule(c.Request.Context(), scopeFromContext(c), c.Param("ruleId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
