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

type recordService interface {
	CreateAsset(ctx context.Context, scope models.SessionScope, req service.CreateAssetRequest) (*models.Record, error)
	CreateLogEntry(ctx context.Context, scope models.SessionScope, req service.CreateLogEntryRequest) (*models.Record, error)
	EditLogEntry(ctx context.Context, scope models.SessionScope, id string, entries []models.ValueEntry) (*models.Record, error)
	Get(ctx context.Context, scope models.SessionScope, id string) (*models.Record, error)
	Render(ctx context.Context, scope models.SessionScope, id string) ([]models.RenderedField, error)
	ListByTemplate(ctx context.Context, scope models.SessionScope, templateID string, page, size int) ([]models.Record, int, error)
	ListLogEntries(ctx context.Context, scope models.SessionScope, assetID string) ([]models.Record, error)
	Delete(ctx context.Context, scope models.SessionScope, id string) error
}

type recordValueService interface {
	GetValues(ctx context.Context, scope models.SessionScope, recordID string) (map[string]*string, error)
	SetValues(ctx context.Context, scope models.SessionScope, recordID string, entries []models.ValueEntry) error
}

type recordLinkService interface {
	ResolveDocumentsForRecord(ctx context.Context, scope models.SessionScope, recordID string) ([]models.Document, error)
}

type setValuesRequest struct {
	Values []models.ValueEntry `json:"values" binding:"required"`
}

// RecordHandler exposes record, value and linked-document endpoints.
type RecordHandler struct {
	records recordService
	values  recordValueService
	links   recordLinkService
}

// NewRecordHandler builds a new handler.
func NewRecordHandler(records recordService, values recordValueService, links recordLinkService) *RecordHandler {
	return &RecordHandler{records: records, values: values, links: links}
}

// CreateAsset godoc
// @Summary Create an asset record
// @Tags Records
// @Accept json
// @Produce json
// @Param payload body service.CreateAssetRequest true "Asset payload"
// @Success 201 {object} response.Envelope
// @Router /records/assets [post]
func (h *RecordHandler) CreateAsset(c *gin.Context) {
	var req service.CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid asset payload"))
		return
	}
	record, err := h.records.CreateAsset(c.Request.Context(), scopeFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// CreateLogEntry godoc
// @Summary Append a log entry to an asset
// @Tags Records
// @Accept json
// @Produce json
// @Param payload body service.CreateLogEntryRequest true "Log entry payload"
// @Success 201 {object} response.Envelope
// @Router /records/logs [post]
func (h *RecordHandler) CreateLogEntry(c *gin.Context) {
	var req service.CreateLogEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid log entry payload"))
		return
	}
	record, err := h.records.CreateLogEntry(c.Request.Context(), scopeFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// EditLogEntry godoc
// @Summary Edit the values of a log entry
// @Tags Records
// @Accept json
// @Produce json
// @Param id path string true "Record id"
// @Param payload body setValuesRequest true "Edited values"
// @Success 200 {object} response.Envelope
// @Router /records/logs/{id} [put]
func (h *RecordHandler) EditLogEntry(c *gin.Context) {
	var req setValuesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid values payload"))
		return
	}
	record, err := h.records.EditLogEntry(c.Request.Context(), scopeFromContext(c), c.Param("id"), req.Values)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Get godoc
// @Summary Get a record
// @Tags Records
// @Produce json
// @Param id path string true "Record id"
// @Success 200 {object} response.Envelope
// @Router /records/{id} [get]
func (h *RecordHandler) Get(c *gin.Context) {
	record, err := h.records.Get(c.Request.Context(), scopeFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Render godoc
// @Summary Render a log entry from its frozen snapshot
// @Tags Records
// @Produce json
// @Param id path string true "Record id"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/rendered [get]
func (h *RecordHandler) Render(c *gin.Context) {
	fields, err := h.records.Render(c.Request.Context(), scopeFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fields, nil)
}

// ListByTemplate godoc
// @Summary List records of a template
// @Tags Records
// @Produce json
// @Param id path string true "Template id"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /templates/{id}/records [get]
func (h *RecordHandler) ListByTemplate(c *gin.Context) {
	page, size := pageParams(c)
	records, total, err := h.records.ListByTemplate(c.Request.Context(), scopeFromContext(c), c.Param("id"), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, records, page, size, total)
}

// ListLogEntries godoc
// @Summary List log entries attached to an asset
// @Tags Records
// @Produce json
// @Param id path string true "Asset record id"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/logs [get]
func (h *RecordHandler) ListLogEntries(c *gin.Context) {
	entries, err := h.records.ListLogEntries(c.Request.Context(), scopeFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// GetValues godoc
// @Summary Get a record's stored values keyed by property id
// @Tags Records
// @Produce json
// @Param id path string true "Record id"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/values [get]
func (h *RecordHandler) GetValues(c *gin.Context) {
	values, err := h.values.GetValues(c.Request.Context(), scopeFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, values, nil)
}

// SetValues godoc
// @Summary Upsert a record's values
// @Tags Records
// @Accept json
// @Produce json
// @Param id path string true "Record id"
// @Param payload body setValuesRequest true "Values payload"
// @Success 204
// @Router /records/{id}/values [put]
func (h *RecordHandler) SetValues(c *gin.Context) {
	var req setValuesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid values payload"))
		return
	}
	if err := h.values.SetValues(c.Request.Context(), scopeFromContext(c), c.Param("id"), req.Values); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// LinkedDocuments godoc
// @Summary Resolve the documents currently linked to a record
// @Tags Records
// @Produce json
// @Param id path string true "Record id"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/documents [get]
func (h *RecordHandler) LinkedDocuments(c *gin.Context) {
	documents, err := h.links.ResolveDocumentsForRecord(c.Request.Context(), scopeFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, documents, nil)
}

// Delete godoc
// @Summary Delete a record
// @Tags Records
// @Produce json
// @Param id path string true "Record id"
// @Success 204
// @Router /records/{id} [delete]
func (h *RecordHandler) Delete(c *gin.Context) {
	if err := h.records.Delete(c.Request.Context(), scopeFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
