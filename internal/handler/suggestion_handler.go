package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tracevault/tracevault-api/internal/models"
	"github.com/tracevault/tracevault-api/pkg/response"
)

type suggestionService interface {
	Suggest(ctx context.Context, scope models.SessionScope, templateID, propertyID, search string) ([]models.ValueSuggestion, error)
}

// SuggestionHandler serves value auto-completion for property inputs.
type SuggestionHandler struct {
	suggestions suggestionService
}

// NewSuggestionHandler builds a new handler.
func NewSuggestionHandler(suggestions suggestionService) *SuggestionHandler {
	return &SuggestionHandler{suggestions: suggestions}
}

// Suggest godoc
// @Summary Suggest previously stored values for a property
// @Tags Suggestions
// @Produce json
// @Param id path string true "Template id"
// @Param propertyId path string true "Property id"
// @Param q query string false "Substring filter"
// @Success 200 {object} response.Envelope
// @Router /templates/{id}/properties/{propertyId}/suggestions [get]
func (h *SuggestionHandler) Suggest(c *gin.Context) {
	values, err := h.suggestions.Suggest(
		c.Request.Context(),
		scopeFromContext(c),
		c.Param("id"),
		c.Param("propertyId"),
		c.Query("q"),
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, values, nil)
}
