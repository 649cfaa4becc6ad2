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

type linkRuleRepository interface {
	Create(ctx context.Context, rule *models.LinkedDocumentRule) error
	FindByID(ctx context.Context, id string) (*models.LinkedDocumentRule, error)
	ListByTemplate(ctx context.Context, templateID string) ([]models.LinkedDocumentRule, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.LinkedDocumentRule, error)
	Delete(ctx context.Context, id string) error
}

type linkDocumentReader interface {
	FindByID(ctx context.Context, id string) (*models.Document, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Document, error)
}

type linkValueReader interface {
	GetValues(ctx context.Context, recordID string) ([]models.PropertyValue, error)
}

type linkRecordReader interface {
	FindByID(ctx context.Context, id string) (*models.Record, error)
}

type linkTemplateReader interface {
	FindByID(ctx context.Context, id string) (*models.Template, error)
	FindProperty(ctx context.Context, id string) (*models.PropertyDefinition, error)
}

// CreateRuleRequest attaches a document to every record of a template
// whose property value matches.
type CreateRuleRequest struct {
	DocumentID string `json:"document_id" validate:"required"`
	TemplateID string `json:"template_id" validate:"required"`
	PropertyID string `json:"property_id" validate:"required"`
	Value      string `json:"value" validate:"required"`
}

// normalizeMatchValue is the single normalization applied on both sides of
// a rule comparison. Raw stored values are never rewritten.
func normalizeMatchValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// LinkService manages linked document rules and resolves which documents
// apply to a record. Matching is a live join: rule changes take effect on
// the next resolution without touching any record.
type LinkService struct {
	rules     linkRuleRepository
	documents linkDocumentReader
	values    linkValueReader
	records   linkRecordReader
	templates linkTemplateReader
	validator *validator.Validate
	logger    *zap.Logger
	timeout   time.Duration
}

// NewLinkService constructs a LinkService.
func NewLinkService(rules linkRuleRepository, documents linkDocumentReader, values linkValueReader, records linkRecordReader, templates linkTemplateReader, validate *validator.Validate, logger *zap.Logger, timeout time.Duration) *LinkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkService{
		rules:     rules,
		documents: documents,
		values:    values,
		records:   records,
		templates: templates,
		validator: validate,
		logger:    logger,
		timeout:   timeout,
	}
}

// CreateRule validates the referenced document, template and property and
// stores the rule with both the raw match value and its normalized form.
func (s *LinkService) CreateRule(ctx context.Context, scope models.SessionScope, req CreateRuleRequest) (*models.LinkedDocumentRule, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rule payload")
	}
	norm := normalizeMatchValue(req.Value)
	if norm == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "match value must not be blank")
	}

	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	document, err := s.documents.FindByID(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, storeErr(err, "failed to load document")
	}
	if document.WorkspaceID != scope.WorkspaceID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}

	template, err := s.templates.FindByID(ctx, req.TemplateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, storeErr(err, "failed to load template")
	}
	if template.WorkspaceID != scope.WorkspaceID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
	}

	property, err := s.templates.FindProperty(ctx, req.PropertyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "property not found")
		}
		return nil, storeErr(err, "failed to load property")
	}
	if property.TemplateID != template.ID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "property does not belong to template")
	}

	rule := &models.LinkedDocumentRule{
		ID:          uuid.NewString(),
		WorkspaceID: scope.WorkspaceID,
		DocumentID:  document.ID,
		TemplateID:  template.ID,
		PropertyID:  property.ID,
		ValueRaw:    req.Value,
		ValueNorm:   norm,
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, storeErr(err, "failed to create rule")
	}

	s.logger.Info("link rule created",
		zap.String("rule_id", rule.ID),
		zap.String("document_id", document.ID),
		zap.String("template_id", template.ID))
	return rule, nil
}

// DeleteRule removes a rule. Documents already resolved stop matching on
// the next lookup.
func (s *LinkService) DeleteRule(ctx context.Context, scope models.SessionScope, id string) error {
	if !scope.Member() {
		return appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	rule, err := s.rules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "rule not found")
		}
		return storeErr(err, "failed to load rule")
	}
	if rule.WorkspaceID != scope.WorkspaceID {
		return appErrors.Clone(appErrors.ErrNotFound, "rule not found")
	}
	if err := s.rules.Delete(ctx, id); err != nil {
		return storeErr(err, "failed to delete rule")
	}
	return nil
}

// ListRulesForDocument returns every rule referencing a document.
func (s *LinkService) ListRulesForDocument(ctx context.Context, scope models.SessionScope, documentID string) ([]models.LinkedDocumentRule, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	document, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, storeErr(err, "failed to load document")
	}
	if document.WorkspaceID != scope.WorkspaceID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	rules, err := s.rules.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, storeErr(err, "failed to list rules")
	}
	return rules, nil
}

// ResolveDocumentsForRecord computes the documents linked to a record right
// now: a rule matches when the record's stored value for the rule's
// property normalizes to the rule's normalized value. Each document appears
// once no matter how many rules match it.
func (s *LinkService) ResolveDocumentsForRecord(ctx context.Context, scope models.SessionScope, recordID string) ([]models.Document, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	record, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
		}
		return nil, storeErr(err, "failed to load record")
	}
	if record.WorkspaceID != scope.WorkspaceID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
	}

	rules, err := s.rules.ListByTemplate(ctx, record.TemplateID)
	if err != nil {
		return nil, storeErr(err, "failed to list rules")
	}
	if len(rules) == 0 {
		return []models.Document{}, nil
	}

	rows, err := s.values.GetValues(ctx, record.ID)
	if err != nil {
		return nil, storeErr(err, "failed to load record values")
	}
	valuesByProperty := make(map[string]*string, len(rows))
	for _, row := range rows {
		valuesByProperty[row.PropertyID] = row.Value
	}

	seen := make(map[string]bool)
	var documentIDs []string
	for _, rule := range rules {
		value, ok := valuesByProperty[rule.PropertyID]
		if !ok || value == nil {
			continue
		}
		if normalizeMatchValue(*value) != rule.ValueNorm {
			continue
		}
		if !seen[rule.DocumentID] {
			seen[rule.DocumentID] = true
			documentIDs = append(documentIDs, rule.DocumentID)
		}
	}
	if len(documentIDs) == 0 {
		return []models.Document{}, nil
	}

	documents, err := s.documents.FindByIDs(ctx, documentIDs)
	if err != nil {
		return nil, storeErr(err, "failed to load linked documents")
	}
	return documents, nil
}
