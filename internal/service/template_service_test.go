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

type templateRepoStub struct {
	templates  map[string]models.Template
	properties map[string][]models.PropertyDefinition
	nameTaken  bool
	deleted    []string

	upsertUpdates  []models.PropertyDefinition
	upsertInserts  []models.PropertyDefinition
	upsertArchived []string
}

func (s *templateRepoStub) Create(ctx context.Context, template *models.Template, properties []models.PropertyDefinition) error {
	if s.templates == nil {
		s.templates = make(map[string]models.Template)
	}
	s.templates[template.ID] = *template
	if s.properties == nil {
		s.properties = make(map[string][]models.PropertyDefinition)
	}
	s.properties[template.ID] = properties
	return nil
}

func (s *templateRepoStub) FindByID(ctx context.Context, id string) (*models.Template, error) {
	if tpl, ok := s.templates[id]; ok {
		return &tpl, nil
	}
	return nil, sql.ErrNoRows
}

func (s *templateRepoStub) ExistsByName(ctx context.Context, workspaceID string, kind models.TemplateKind, name, excludeID string) (bool, error) {
	return s.nameTaken, nil
}

func (s *templateRepoStub) ListByKind(ctx context.Context, workspaceID string, kind models.TemplateKind) ([]models.TemplateWithCount, error) {
	return nil, nil
}

func (s *templateRepoStub) Rename(ctx context.Context, id, name string) error {
	tpl := s.templates[id]
	tpl.Name = name
	s.templates[id] = tpl
	return nil
}

func (s *templateRepoStub) ListProperties(ctx context.Context, templateID string, activeOnly bool) ([]models.PropertyDefinition, error) {
	props := s.properties[templateID]
	if !activeOnly {
		return props, nil
	}
	var active []models.PropertyDefinition
	for _, p := range props {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return active, nil
}

func (s *templateRepoStub) FindProperty(ctx context.Context, id string) (*models.PropertyDefinition, error) {
	for _, props := range s.properties {
		for _, p := range props {
			if p.ID == id {
				return &p, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (s *templateRepoStub) UpsertProperties(ctx context.Context, templateID string, updates, inserts []models.PropertyDefinition, archiveIDs []string) error {
	s.upsertUpdates = updates
	s.upsertInserts = inserts
	s.upsertArchived = archiveIDs
	return nil
}

func (s *templateRepoStub) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	delete(s.templates, id)
	return nil
}

func newTemplateServiceForTest(repo *templateRepoStub) *TemplateService {
	return NewTemplateService(repo, nil, nil, nil, 0)
}

func adminScope() models.SessionScope {
	return models.SessionScope{WorkspaceID: "ws-1", UserID: "admin-1", Role: models.RoleAdmin}
}

func TestTemplateCreateAssignsDisplayOrder(t *testing.T) {
	repo := &templateRepoStub{}
	svc := newTemplateServiceForTest(repo)

	detail, err := svc.Create(context.Background(), memberScope(), CreateTemplateRequest{
		Name: "Drones",
		Kind: models.TemplateKindAsset,
		Properties: []PropertyInput{
			{Name: "Serial Number", Type: models.PropertyTypeText, DisplayOrder: 9},
			{Name: "  ", Type: models.PropertyTypeText},
			{Name: "Flight Hours", Type: models.PropertyTypeNumber, DisplayOrder: 1},
		},
	})

	require.NoError(t, err)
	require.Len(t, detail.Properties, 2)
	assert.Equal(t, "Serial Number", detail.Properties[0].Name)
	assert.Equal(t, 0, detail.Properties[0].DisplayOrder)
	assert.Equal(t, "Flight Hours", detail.Properties[1].Name)
	assert.Equal(t, 1, detail.Properties[1].DisplayOrder)
}

func TestTemplateCreateRejectsDuplicateName(t *testing.T) {
	repo := &templateRepoStub{nameTaken: true}
	svc := newTemplateServiceForTest(repo)

	_, err := svc.Create(context.Background(), memberScope(), CreateTemplateRequest{
		Name: "Drones",
		Kind: models.TemplateKindAsset,
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTemplateCreateRejectsBadPropertyType(t *testing.T) {
	svc := newTemplateServiceForTest(&templateRepoStub{})

	_, err := svc.Create(context.Background(), memberScope(), CreateTemplateRequest{
		Name: "Drones",
		Kind: models.TemplateKindAsset,
		Properties: []PropertyInput{
			{Name: "Serial", Type: "json"},
		},
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTemplateCreateRejectsMismatchedDefault(t *testing.T) {
	svc := newTemplateServiceForTest(&templateRepoStub{})
	def := "not-a-number"

	_, err := svc.Create(context.Background(), memberScope(), CreateTemplateRequest{
		Name: "Drones",
		Kind: models.TemplateKindAsset,
		Properties: []PropertyInput{
			{Name: "Flight Hours", Type: models.PropertyTypeNumber, DefaultValue: &def},
		},
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTemplateCreateRequiresMembership(t *testing.T) {
	svc := newTemplateServiceForTest(&templateRepoStub{})
	scope := models.SessionScope{WorkspaceID: "ws-1", UserID: "stranger", Role: models.RoleNone}

	_, err := svc.Create(context.Background(), scope, CreateTemplateRequest{Name: "X", Kind: models.TemplateKindAsset})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTemplateSavePropertiesArchivesDropped(t *testing.T) {
	repo := &templateRepoStub{
		templates: map[string]models.Template{
			"tpl-1": {ID: "tpl-1", WorkspaceID: "ws-1", Kind: models.TemplateKindLog},
		},
		properties: map[string][]models.PropertyDefinition{
			"tpl-1": {
				{ID: "p-1", TemplateID: "tpl-1", Name: "Qty", Type: models.PropertyTypeNumber, IsActive: true},
				{ID: "p-2", TemplateID: "tpl-1", Name: "Operator", Type: models.PropertyTypeText, IsActive: true},
				{ID: "p-3", TemplateID: "tpl-1", Name: "Old", Type: models.PropertyTypeText, IsActive: false},
			},
		},
	}
	svc := newTemplateServiceForTest(repo)

	_, err := svc.SaveProperties(context.Background(), memberScope(), "tpl-1", SavePropertiesRequest{
		Properties: []PropertyInput{
			{ID: "p-1", Name: "QtyV2", Type: models.PropertyTypeNumber},
			{Name: "Inspector", Type: models.PropertyTypeText},
		},
	})

	require.NoError(t, err)
	require.Len(t, repo.upsertUpdates, 1)
	assert.Equal(t, "QtyV2", repo.upsertUpdates[0].Name)
	require.Len(t, repo.upsertInserts, 1)
	assert.Equal(t, "Inspector", repo.upsertInserts[0].Name)
	// p-2 was dropped from the payload, p-3 was already archived.
	assert.Equal(t, []string{"p-2"}, repo.upsertArchived)
}

func TestTemplateSavePropertiesRejectsUnknownID(t *testing.T) {
	repo := &templateRepoStub{
		templates:  map[string]models.Template{"tpl-1": {ID: "tpl-1", WorkspaceID: "ws-1"}},
		properties: map[string][]models.PropertyDefinition{"tpl-1": {}},
	}
	svc := newTemplateServiceForTest(repo)

	_, err := svc.SaveProperties(context.Background(), memberScope(), "tpl-1", SavePropertiesRequest{
		Properties: []PropertyInput{{ID: "ghost", Name: "X", Type: models.PropertyTypeText}},
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTemplateDeleteRequiresAdmin(t *testing.T) {
	repo := &templateRepoStub{
		templates: map[string]models.Template{"tpl-1": {ID: "tpl-1", WorkspaceID: "ws-1"}},
	}
	svc := newTemplateServiceForTest(repo)

	err := svc.Delete(context.Background(), memberScope(), "tpl-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), adminScope(), "tpl-1"))
	assert.Equal(t, []string{"tpl-1"}, repo.deleted)
}

func TestTemplateRenameOutsideWorkspaceIsNotFound(t *testing.T) {
	repo := &templateRepoStub{
		templates: map[string]models.Template{"tpl-1": {ID: "tpl-1", WorkspaceID: "ws-other"}},
	}
	svc := newTemplateServiceForTest(repo)

	_, err := svc.Rename(context.Background(), memberScope(), "tpl-1", "New Name")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
