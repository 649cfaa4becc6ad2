package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracevault/tracevault-api/internal/models"
	appErrors "github.com/tracevault/tracevault-api/pkg/errors"
)

type suggestionRepoStub struct {
	suggestions []models.ValueSuggestion
	gotSearch   string
	gotLimit    int
}

func (s *suggestionRepoStub) Suggest(ctx context.Context, templateID, propertyID, search string, limit int) ([]models.ValueSuggestion, error) {
	s.gotSearch = search
	s.gotLimit = limit
	return s.suggestions, nil
}

type suggestionTemplateStub struct {
	templates  map[string]models.Template
	properties map[string]models.PropertyDefinition
	findErr    error
}

func (s *suggestionTemplateStub) FindByID(ctx context.Context, id string) (*models.Template, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if tpl, ok := s.templates[id]; ok {
		return &tpl, nil
	}
	return nil, sql.ErrNoRows
}

func (s *suggestionTemplateStub) FindProperty(ctx context.Context, id string) (*models.PropertyDefinition, error) {
	if prop, ok := s.properties[id]; ok {
		return &prop, nil
	}
	return nil, sql.ErrNoRows
}

func suggestionFixture() *suggestionTemplateStub {
	return &suggestionTemplateStub{
		templates:  map[string]models.Template{"tpl-1": {ID: "tpl-1", WorkspaceID: "ws-1"}},
		properties: map[string]models.PropertyDefinition{"prop-1": {ID: "prop-1", TemplateID: "tpl-1", Name: "Operator"}},
	}
}

func TestSuggestReturnsRankedValues(t *testing.T) {
	repo := &suggestionRepoStub{suggestions: []models.ValueSuggestion{
		{Value: "lee", Count: 12},
		{Value: "kim", Count: 3},
	}}
	svc := NewSuggestionService(repo, suggestionFixture(), nil, 50, 0, nil, 0)

	got, err := svc.Suggest(context.Background(), memberScope(), "tpl-1", "prop-1", "")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "lee", got[0].Value)
	assert.Equal(t, 12, got[0].Count)
	assert.Equal(t, 50, repo.gotLimit)
}

func TestSuggestPassesSearchThrough(t *testing.T) {
	repo := &suggestionRepoStub{}
	svc := NewSuggestionService(repo, suggestionFixture(), nil, 50, 0, nil, 0)

	_, err := svc.Suggest(context.Background(), memberScope(), "tpl-1", "prop-1", "le")

	require.NoError(t, err)
	assert.Equal(t, "le", repo.gotSearch)
}

func TestSuggestRejectsForeignTemplate(t *testing.T) {
	fixture := suggestionFixture()
	fixture.templates["tpl-1"] = models.Template{ID: "tpl-1", WorkspaceID: "ws-other"}
	svc := NewSuggestionService(&suggestionRepoStub{}, fixture, nil, 50, 0, nil, 0)

	_, err := svc.Suggest(context.Background(), memberScope(), "tpl-1", "prop-1", "")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSuggestSurfacesBackendFailure(t *testing.T) {
	fixture := suggestionFixture()
	fixture.findErr = errors.New("connection reset")
	svc := NewSuggestionService(&suggestionRepoStub{}, fixture, nil, 50, 0, nil, 0)

	_, err := svc.Suggest(context.Background(), memberScope(), "tpl-1", "prop-1", "")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestSuggestRejectsPropertyOfOtherTemplate(t *testing.T) {
	fixture := suggestionFixture()
	fixture.properties["prop-1"] = models.PropertyDefinition{ID: "prop-1", TemplateID: "tpl-2"}
	svc := NewSuggestionService(&suggestionRepoStub{}, fixture, nil, 50, 0, nil, 0)

	_, err := svc.Suggest(context.Background(), memberScope(), "tpl-1", "prop-1", "")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSuggestRequiresMembership(t *testing.T) {
	svc := NewSuggestionService(&suggestionRepoStub{}, suggestionFixture(), nil, 50, 0, nil, 0)
	scope := models.SessionScope{WorkspaceID: "ws-1", Role: models.RoleNone}

	_, err := svc.Suggest(context.Background(), scope, "tpl-1", "prop-1", "")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSuggestCacheKeyLowersSearch(t *testing.T) {
	key := suggestCacheKey("ws-1", "tpl-1", "prop-1", "LE")
	assert.Equal(t, "suggest:ws-1:tpl-1:prop-1:le", key)
}

func TestSuggestCachePatterns(t *testing.T) {
	assert.Equal(t, "suggest:ws-1:*", SuggestCachePattern("ws-1", ""))
	assert.Equal(t, "suggest:ws-1:tpl-1:*", SuggestCachePattern("ws-1", "tpl-1"))
}
