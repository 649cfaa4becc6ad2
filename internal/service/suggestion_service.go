package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tracevault/tracevault-api/internal/models"
	appErrors "github.com/tracevault/tracevault-api/pkg/errors"
)

type suggestionRepository interface {
	Suggest(ctx context.Context, templateID, propertyID, search string, limit int) ([]models.ValueSuggestion, error)
}

type suggestionPropertyReader interface {
	FindProperty(ctx context.Context, id string) (*models.PropertyDefinition, error)
	FindByID(ctx context.Context, id string) (*models.Template, error)
}

// suggestCacheKey builds the cache key for one suggestion lookup.
func suggestCacheKey(workspaceID, templateID, propertyID, search string) string {
	return fmt.Sprintf("suggest:%s:%s:%s:%s", workspaceID, templateID, propertyID, strings.ToLower(search))
}

// SuggestCachePattern returns the invalidation pattern for a workspace, or
// for a single template when templateID is non-empty.
func SuggestCachePattern(workspaceID, templateID string) string {
	if templateID == "" {
		return fmt.Sprintf("suggest:%s:*", workspaceID)
	}
	return fmt.Sprintf("suggest:%s:%s:*", workspaceID, templateID)
}

// SuggestionService serves frequency-ranked distinct values previously
// stored for a property. It is a read model over the value rows; it never
// writes them, so staleness is bounded by the cache TTL plus the
// invalidation hooks on value writes.
type SuggestionService struct {
	values    suggestionRepository
	templates suggestionPropertyReader
	cache     *CacheService
	limit     int
	cacheTTL  time.Duration
	logger    *zap.Logger
	timeout   time.Duration
}

// NewSuggestionService constructs a SuggestionService.
func NewSuggestionService(values suggestionRepository, templates suggestionPropertyReader, cache *CacheService, limit int, cacheTTL time.Duration, logger *zap.Logger, timeout time.Duration) *SuggestionService {
	if limit <= 0 {
		limit = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SuggestionService{
		values:    values,
		templates: templates,
		cache:     cache,
		limit:     limit,
		cacheTTL:  cacheTTL,
		logger:    logger,
		timeout:   timeout,
	}
}

// Suggest returns distinct stored values for a property ranked by how often
// they occur, optionally narrowed by a case-insensitive substring match.
func (s *SuggestionService) Suggest(ctx context.Context, scope models.SessionScope, templateID, propertyID, search string) ([]models.ValueSuggestion, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	template, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, storeErr(err, "failed to load template")
	}
	if template.WorkspaceID != scope.WorkspaceID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
	}
	property, err := s.templates.FindProperty(ctx, propertyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "property not found")
		}
		return nil, storeErr(err, "failed to load property")
	}
	if property.TemplateID != templateID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "property not found")
	}

	key := suggestCacheKey(scope.WorkspaceID, templateID, propertyID, search)
	var cached []models.ValueSuggestion
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	suggestions, err := s.values.Suggest(ctx, templateID, propertyID, search, s.limit)
	if err != nil {
		return nil, storeErr(err, "failed to load suggestions")
	}

	if err := s.cache.Set(ctx, key, suggestions, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache suggestions", zap.String("key", key), zap.Error(err))
	}
	return suggestions, nil
}
