package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tracevault/tracevault-api/internal/models"
	appErrors "github.com/tracevault/tracevault-api/pkg/errors"
)

type templateRepository interface {
	Create(ctx context.Context, template *models.Template, properties []models.PropertyDefinition) error
	FindByID(ctx context.Context, id string) (*models.Template, error)
	ExistsByName(ctx context.Context, workspaceID string, kind models.TemplateKind, name, excludeID string) (bool, error)
	ListByKind(ctx context.Context, workspaceID string, kind models.TemplateKind) ([]models.TemplateWithCount, error)
	Rename(ctx context.Context, id, name string) error
	ListProperties(ctx context.Context, templateID string, activeOnly bool) ([]models.PropertyDefinition, error)
	FindProperty(ctx context.Context, id string) (*models.PropertyDefinition, error)
	UpsertProperties(ctx context.Context, templateID string, updates, inserts []models.PropertyDefinition, archiveIDs []string) error
	Delete(ctx context.Context, id string) error
}

// PropertyInput is the caller-facing shape for one property definition.
// ID is empty for new properties and set for existing ones.
type PropertyInput struct {
	ID           string              `json:"id"`
	Name         string              `json:"name" validate:"required"`
	Type         models.PropertyType `json:"type" validate:"required"`
	DefaultValue *string             `json:"default_value"`
	DisplayOrder int                 `json:"display_order"`
}

// CreateTemplateRequest creates a template with its initial properties.
type CreateTemplateRequest struct {
	Name       string              `json:"name" validate:"required"`
	Kind       models.TemplateKind `json:"kind" validate:"required"`
	Properties []PropertyInput     `json:"properties" validate:"dive"`
}

// SavePropertiesRequest replaces the active property set of a template.
// Existing properties absent from the list are archived, not deleted.
type SavePropertiesRequest struct {
	Properties []PropertyInput `json:"properties" validate:"dive"`
}

// TemplateDetail bundles a template with its property definitions.
type TemplateDetail struct {
	Template   models.Template             `json:"template"`
	Properties []models.PropertyDefinition `json:"properties"`
}

// TemplateService orchestrates template and property definition workflows.
type TemplateService struct {
	repo      templateRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	timeout   time.Duration
}

// NewTemplateService constructs a TemplateService.
func NewTemplateService(repo templateRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, timeout time.Duration) *TemplateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{repo: repo, cache: cache, validator: validate, logger: logger, timeout: timeout}
}

// Create validates and persists a new template with its properties.
func (s *TemplateService) Create(ctx context.Context, scope models.SessionScope, req CreateTemplateRequest) (*TemplateDetail, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "template name is required")
	}
	if !req.Kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "kind must be asset or log")
	}

	properties, err := s.buildProperties("", req.Properties)
	if err != nil {
		return nil, err
	}

	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	exists, err := s.repo.ExistsByName(ctx, scope.WorkspaceID, req.Kind, name, "")
	if err != nil {
		return nil, storeErr(err, "failed to check template name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a template with this name already exists")
	}

	template := &models.Template{
		ID:          uuid.NewString(),
		WorkspaceID: scope.WorkspaceID,
		Name:        name,
		Kind:        req.Kind,
	}
	for i := range properties {
		properties[i].TemplateID = template.ID
	}
	if err := s.repo.Create(ctx, template, properties); err != nil {
		return nil, storeErr(err, "failed to create template")
	}

	s.logger.Info("template created",
		zap.String("template_id", template.ID),
		zap.String("workspace_id", scope.WorkspaceID),
		zap.String("kind", string(template.Kind)))

	return &TemplateDetail{Template: *template, Properties: properties}, nil
}

// Get loads a template with its active property definitions.
func (s *TemplateService) Get(ctx context.Context, scope models.SessionScope, id string) (*TemplateDetail, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	template, err := s.loadScoped(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	properties, err := s.repo.ListProperties(ctx, id, true)
	if err != nil {
		return nil, storeErr(err, "failed to list properties")
	}
	return &TemplateDetail{Template: *template, Properties: properties}, nil
}

// List returns all templates of a kind with their record counts.
func (s *TemplateService) List(ctx context.Context, scope models.SessionScope, kind models.TemplateKind) ([]models.TemplateWithCount, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "kind must be asset or log")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	templates, err := s.repo.ListByKind(ctx, scope.WorkspaceID, kind)
	if err != nil {
		return nil, storeErr(err, "failed to list templates")
	}
	return templates, nil
}

// Rename changes a template's name, keeping the per-kind uniqueness rule.
func (s *TemplateService) Rename(ctx context.Context, scope models.SessionScope, id, name string) (*models.Template, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "template name is required")
	}

	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	template, err := s.loadScoped(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByName(ctx, scope.WorkspaceID, template.Kind, name, id)
	if err != nil {
		return nil, storeErr(err, "failed to check template name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a template with this name already exists")
	}
	if err := s.repo.Rename(ctx, id, name); err != nil {
		return nil, storeErr(err, "failed to rename template")
	}
	template.Name = name
	return template, nil
}

// SaveProperties applies a full edit of a template's property set: updates
// in place, inserts new definitions and archives whatever the caller
// dropped. Archived definitions stay resolvable for old snapshots.
func (s *TemplateService) SaveProperties(ctx context.Context, scope models.SessionScope, templateID string, req SavePropertiesRequest) ([]models.PropertyDefinition, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid properties payload")
	}

	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	if _, err := s.loadScoped(ctx, scope, templateID); err != nil {
		return nil, err
	}

	existing, err := s.repo.ListProperties(ctx, templateID, false)
	if err != nil {
		return nil, storeErr(err, "failed to load existing properties")
	}
	existingByID := make(map[string]models.PropertyDefinition, len(existing))
	for _, p := range existing {
		existingByID[p.ID] = p
	}

	incoming, err := s.buildProperties(templateID, req.Properties)
	if err != nil {
		return nil, err
	}

	var updates, inserts []models.PropertyDefinition
	kept := make(map[string]bool, len(incoming))
	for _, p := range incoming {
		if p.ID == "" {
			p.ID = uuid.NewString()
			inserts = append(inserts, p)
			continue
		}
		if _, ok := existingByID[p.ID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown property "+p.ID)
		}
		kept[p.ID] = true
		updates = append(updates, p)
	}

	var archiveIDs []string
	for _, p := range existing {
		if p.IsActive && !kept[p.ID] {
			archiveIDs = append(archiveIDs, p.ID)
		}
	}

	if err := s.repo.UpsertProperties(ctx, templateID, updates, inserts, archiveIDs); err != nil {
		return nil, storeErr(err, "failed to save properties")
	}

	properties, err := s.repo.ListProperties(ctx, templateID, true)
	if err != nil {
		return nil, storeErr(err, "failed to reload properties")
	}
	return properties, nil
}

// Delete removes a template and all of its records, values and link rules.
// Admin only; this is the destructive edge of the template lifecycle.
func (s *TemplateService) Delete(ctx context.Context, scope models.SessionScope, id string) error {
	if !scope.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only workspace admins may delete templates")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	if _, err := s.loadScoped(ctx, scope, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeErr(err, "failed to delete template")
	}
	if err := s.cache.Invalidate(ctx, SuggestCachePattern(scope.WorkspaceID, id)); err != nil {
		s.logger.Warn("failed to invalidate suggestion cache", zap.String("template_id", id), zap.Error(err))
	}
	s.logger.Info("template deleted", zap.String("template_id", id), zap.String("workspace_id", scope.WorkspaceID))
	return nil
}

// loadScoped fetches a template and verifies it belongs to the scope's
// workspace. Records outside the workspace read as not found.
func (s *TemplateService) loadScoped(ctx context.Context, scope models.SessionScope, id string) (*models.Template, error) {
	template, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, storeErr(err, "failed to load template")
	}
	if template.WorkspaceID != scope.WorkspaceID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
	}
	return template, nil
}

// buildProperties normalises the caller-supplied property list: trims
// names, drops blank rows, reassigns display order from list position and
// checks types and default values.
func (s *TemplateService) buildProperties(templateID string, inputs []PropertyInput) ([]models.PropertyDefinition, error) {
	properties := make([]models.PropertyDefinition, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	order := 0
	for _, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate property name "+name)
		}
		seen[key] = true
		if !in.Type.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "property type must be text, number or date")
		}
		if in.DefaultValue != nil && *in.DefaultValue != "" {
			if _, err := in.Type.Cast(*in.DefaultValue); err != nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, "default value does not match property type")
			}
		}
		properties = append(properties, models.PropertyDefinition{
			ID:           in.ID,
			TemplateID:   templateID,
			Name:         name,
			Type:         in.Type,
			DefaultValue: in.DefaultValue,
			DisplayOrder: order,
			IsActive:     true,
		})
		order++
	}
	return properties, nil
}
