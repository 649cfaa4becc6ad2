package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracevault/tracevault-api/internal/middleware"
	"github.com/tracevault/tracevault-api/internal/models"
	"github.com/tracevault/tracevault-api/internal/service"
	appErrors "github.com/tracevault/tracevault-api/pkg/errors"
)

type templateServiceMock struct {
	createReq  *service.CreateTemplateRequest
	createResp *service.TemplateDetail
	createErr  error
	deleteErr  error
	deletedID  string
}

func (m *templateServiceMock) Create(ctx context.Context, scope models.SessionScope, req service.CreateTemplateRequest) (*service.TemplateDetail, error) {
	m.createReq = &req
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.createResp, nil
}

func (m *templateServiceMock) Get(ctx context.Context, scope models.SessionScope, id string) (*service.TemplateDetail, error) {
	return m.createResp, nil
}

func (m *templateServiceMock) List(ctx context.Context, scope models.SessionScope, kind models.TemplateKind) ([]models.TemplateWithCount, error) {
	return []models.TemplateWithCount{}, nil
}

func (m *templateServiceMock) Rename(ctx context.Context, scope models.SessionScope, id, name string) (*models.Template, error) {
	return &models.Template{ID: id, Name: name}, nil
}

func (m *templateServiceMock) SaveProperties(ctx context.Context, scope models.SessionScope, templateID string, req service.SavePropertiesRequest) ([]models.PropertyDefinition, error) {
	return []models.PropertyDefinition{}, nil
}

func (m *templateServiceMock) Delete(ctx context.Context, scope models.SessionScope, id string) error {
	m.deletedID = id
	return m.deleteErr
}

func newTemplateTestContext(t *testing.T, scope models.SessionScope) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.ContextScopeKey, scope)
	return c, w
}

func TestTemplateHandlerCreate(t *testing.T) {
	mock := &templateServiceMock{createResp: &service.TemplateDetail{
		Template: models.Template{ID: "tpl-1", Name: "Engines", Kind: models.TemplateKindAsset},
	}}
	handler := NewTemplateHandler(mock)
	scope := models.SessionScope{WorkspaceID: "ws-1", UserID: "user-1", Role: models.RoleUser}
	c, w := newTemplateTestContext(t, scope)

	body, _ := json.Marshal(service.CreateTemplateRequest{Name: "Engines", Kind: models.TemplateKindAsset})
	req, _ := http.NewRequest(http.MethodPost, "/templates", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, mock.createReq)
	assert.Equal(t, "Engines", mock.createReq.Name)

	var envelope struct {
		Data service.TemplateDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "tpl-1", envelope.Data.Template.ID)
}

func TestTemplateHandlerCreateInvalidBody(t *testing.T) {
	handler := NewTemplateHandler(&templateServiceMock{})
	c, w := newTemplateTestContext(t, models.SessionScope{WorkspaceID: "ws-1", UserID: "user-1", Role: models.RoleUser})

	req, _ := http.NewRequest(http.MethodPost, "/templates", bytes.NewReader([]byte(`not-json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTemplateHandlerCreateServiceError(t *testing.T) {
	mock := &templateServiceMock{createErr: appErrors.Clone(appErrors.ErrConflict, "template name already in use")}
	handler := NewTemplateHandler(mock)
	c, w := newTemplateTestContext(t, models.SessionScope{WorkspaceID: "ws-1", UserID: "user-1", Role: models.RoleUser})

	body, _ := json.Marshal(service.CreateTemplateRequest{Name: "Engines", Kind: models.TemplateKindAsset})
	req, _ := http.NewRequest(http.MethodPost, "/templates", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTemplateHandlerDelete(t *testing.T) {
	mock := &templateServiceMock{}
	handler := NewTemplateHandler(mock)
	c, w := newTemplateTestContext(t, models.SessionScope{WorkspaceID: "ws-1", UserID: "user-1", Role: models.RoleAdmin})

	req, _ := http.NewRequest(http.MethodDelete, "/templates/tpl-9", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "tpl-9"}}

	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "tpl-9", mock.deletedID)
}
