package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tracevault/tracevault-api/internal/models"
	appErrors "github.com/tracevault/tracevault-api/pkg/errors"
)

type recordRepository interface {
	Create(ctx context.Context, record *models.Record) error
	FindByID(ctx context.Context, id string) (*models.Record, error)
	ListByTemplate(ctx context.Context, templateID string, page, size int) ([]models.Record, int, error)
	ListLogEntriesByAsset(ctx context.Context, assetID string) ([]models.Record, error)
	UpdateLogEntry(ctx context.Context, id string, snapshot models.FieldSnapshot, valueMap models.ValueMap) error
	Delete(ctx context.Context, id string) error
}

type recordTemplateReader interface {
	FindByID(ctx context.Context, id string) (*models.Template, error)
	ListProperties(ctx context.Context, templateID string, activeOnly bool) ([]models.PropertyDefinition, error)
}

type recordValueWriter interface {
	Upsert(ctx context.Context, values []models.PropertyValue) error
}

// CreateAssetRequest instantiates an asset record from an asset template.
type CreateAssetRequest struct {
	TemplateID string              `json:"template_id" validate:"required"`
	Values     []models.ValueEntry `json:"values" validate:"dive"`
}

// CreateLogEntryRequest appends a log entry for an asset.
type CreateLogEntryRequest struct {
	TemplateID string              `json:"template_id" validate:"required"`
	AssetID    string              `json:"asset_id" validate:"required"`
	Values     []models.ValueEntry `json:"values" validate:"dive"`
}

// RecordService creates and reads records. Log entries freeze the template's
// active fields into a snapshot at save time so later template edits never
// rewrite history.
type RecordService struct {
	records   recordRepository
	templates recordTemplateReader
	values    recordValueWriter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	timeout   time.Duration
}

// NewRecordService constructs a RecordService.
func NewRecordService(records recordRepository, templates recordTemplateReader, values recordValueWriter, cache *CacheService, validate *validator.Validate, logger *zap.Logger, timeout time.Duration) *RecordService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{
		records:   records,
		templates: templates,
		values:    values,
		cache:     cache,
		validator: validate,
		logger:    logger,
		timeout:   timeout,
	}
}

// CreateAsset instantiates an asset from an asset template. Properties the
// caller leaves out fall back to the template's default values.
func (s *RecordService) CreateAsset(ctx context.Context, scope models.SessionScope, req CreateAssetRequest) (*models.Record, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid asset payload")
	}

	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	template, err := s.loadTemplate(ctx, scope, req.TemplateID, models.TemplateKindAsset)
	if err != nil {
		return nil, err
	}
	properties, err := s.templates.ListProperties(ctx, template.ID, true)
	if err != nil {
		return nil, storeErr(err, "failed to load properties")
	}

	record := &models.Record{
		WorkspaceID: scope.WorkspaceID,
		TemplateID:  template.ID,
		Kind:        models.RecordKindAsset,
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, storeErr(err, "failed to create asset")
	}

	entries := applyDefaults(req.Values, properties)
	if values := normalizeEntries(record.ID, entries); len(values) > 0 {
		if err := s.values.Upsert(ctx, values); err != nil {
			return nil, storeErr(err, "failed to save asset values")
		}
	}

	s.invalidateSuggestions(ctx, scope.WorkspaceID, template.ID)
	s.logger.Info("asset created", zap.String("record_id", record.ID), zap.String("template_id", template.ID))
	return record, nil
}

// CreateLogEntry appends a log entry to an asset. The template's active
// fields are copied into the entry's snapshot and the values are persisted
// twice: in the snapshot value map for rendering and as value rows for
// linking and suggestions.
func (s *RecordService) CreateLogEntry(ctx context.Context, scope models.SessionScope, req CreateLogEntryRequest) (*models.Record, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid log entry payload")
	}

	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	template, err := s.loadTemplate(ctx, scope, req.TemplateID, models.TemplateKindLog)
	if err != nil {
		return nil, err
	}

	asset, err := s.loadScoped(ctx, scope, req.AssetID)
	if err != nil {
		return nil, err
	}
	if asset.Kind != models.RecordKindAsset {
		return nil, appErrors.Clone(appErrors.ErrValidation, "log entries can only be attached to assets")
	}

	properties, err := s.templates.ListProperties(ctx, template.ID, true)
	if err != nil {
		return nil, storeErr(err, "failed to load properties")
	}
	snapshot := CaptureSnapshot(properties)

	entries := applyDefaults(req.Values, properties)
	valueMap, err := buildValueMap(snapshot, entries)
	if err != nil {
		return nil, err
	}

	record := &models.Record{
		WorkspaceID:    scope.WorkspaceID,
		TemplateID:     template.ID,
		Kind:           models.RecordKindLog,
		AssetID:        &asset.ID,
		FieldsSnapshot: snapshot,
		ValueMap:       valueMap,
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, storeErr(err, "failed to create log entry")
	}
	if values := normalizeEntries(record.ID, entries); len(values) > 0 {
		if err := s.values.Upsert(ctx, values); err != nil {
			return nil, storeErr(err, "failed to save log entry values")
		}
	}

	s.invalidateSuggestions(ctx, scope.WorkspaceID, template.ID)
	s.logger.Info("log entry created",
		zap.String("record_id", record.ID),
		zap.String("asset_id", asset.ID),
		zap.String("template_id", template.ID))
	return record, nil
}

// EditLogEntry updates the values of an existing log entry. Entries are
// keyed by snapshot field id; the frozen field list itself never changes.
// Legacy entries without a snapshot accept the field name as the key.
func (s *RecordService) EditLogEntry(ctx context.Context, scope models.SessionScope, id string, entries []models.ValueEntry) (*models.Record, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	record, err := s.loadScoped(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if record.Kind != models.RecordKindLog {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only log entries can be edited this way")
	}

	valueMap := make(models.ValueMap, len(record.ValueMap))
	for k, v := range record.ValueMap {
		valueMap[k] = v
	}

	if len(record.FieldsSnapshot) > 0 {
		fieldsByID := make(map[string]models.SnapshotField, len(record.FieldsSnapshot))
		for _, f := range record.FieldsSnapshot {
			fieldsByID[f.ID] = f
		}
		for _, entry := range entries {
			field, ok := fieldsByID[entry.PropertyID]
			if !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, "unknown field "+entry.PropertyID)
			}
			if entry.Value == "" {
				delete(valueMap, field.Name)
			} else {
				valueMap[field.Name] = entry.Value
			}
		}
	} else {
		for _, entry := range entries {
			if entry.Value == "" {
				delete(valueMap, entry.PropertyID)
			} else {
				valueMap[entry.PropertyID] = entry.Value
			}
		}
	}

	if err := s.records.UpdateLogEntry(ctx, record.ID, record.FieldsSnapshot, valueMap); err != nil {
		return nil, storeErr(err, "failed to update log entry")
	}
	record.ValueMap = valueMap

	if len(record.FieldsSnapshot) > 0 {
		if values := normalizeEntries(record.ID, entries); len(values) > 0 {
			if err := s.values.Upsert(ctx, values); err != nil {
				return nil, storeErr(err, "failed to save log entry values")
			}
		}
	}

	s.invalidateSuggestions(ctx, scope.WorkspaceID, record.TemplateID)
	return record, nil
}

// Get loads a single record.
func (s *RecordService) Get(ctx context.Context, scope models.SessionScope, id string) (*models.Record, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	return s.loadScoped(ctx, scope, id)
}

// Render materialises a log entry's fields for display from its own
// snapshot and value map.
func (s *RecordService) Render(ctx context.Context, scope models.SessionScope, id string) ([]models.RenderedField, error) {
	record, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if record.Kind != models.RecordKindLog {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only log entries carry snapshots")
	}
	return RenderFromSnapshot(record), nil
}

// ListByTemplate returns records of a template, newest first.
func (s *RecordService) ListByTemplate(ctx context.Context, scope models.SessionScope, templateID string, page, size int) ([]models.Record, int, error) {
	if !scope.Member() {
		return nil, 0, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	template, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, 0, storeErr(err, "failed to load template")
	}
	if template.WorkspaceID != scope.WorkspaceID {
		return nil, 0, appErrors.Clone(appErrors.ErrNotFound, "template not found")
	}

	records, total, err := s.records.ListByTemplate(ctx, templateID, page, size)
	if err != nil {
		return nil, 0, storeErr(err, "failed to list records")
	}
	return records, total, nil
}

// ListLogEntries returns all log entries attached to an asset, newest first.
func (s *RecordService) ListLogEntries(ctx context.Context, scope models.SessionScope, assetID string) ([]models.Record, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	asset, err := s.loadScoped(ctx, scope, assetID)
	if err != nil {
		return nil, err
	}
	entries, err := s.records.ListLogEntriesByAsset(ctx, asset.ID)
	if err != nil {
		return nil, storeErr(err, "failed to list log entries")
	}
	return entries, nil
}

// Delete removes a record, its values and, for assets, its log entries.
func (s *RecordService) Delete(ctx context.Context, scope models.SessionScope, id string) error {
	if !scope.Member() {
		return appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	record, err := s.loadScoped(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := s.records.Delete(ctx, record.ID); err != nil {
		return storeErr(err, "failed to delete record")
	}
	s.invalidateSuggestions(ctx, scope.WorkspaceID, record.TemplateID)
	s.logger.Info("record deleted", zap.String("record_id", record.ID), zap.String("kind", string(record.Kind)))
	return nil
}

func (s *RecordService) loadTemplate(ctx context.Context, scope models.SessionScope, id string, kind models.TemplateKind) (*models.Template, error) {
	template, err := s.templates.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, storeErr(err, "failed to load template")
	}
	if template.WorkspaceID != scope.WorkspaceID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
	}
	if template.Kind != kind {
		return nil, appErrors.Clone(appErrors.ErrValidation, "template kind mismatch")
	}
	return template, nil
}

func (s *RecordService) loadScoped(ctx context.Context, scope models.SessionScope, id string) (*models.Record, error) {
	record, err := s.records.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
		}
		return nil, storeErr(err, "failed to load record")
	}
	if record.WorkspaceID != scope.WorkspaceID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
	}
	return record, nil
}

func (s *RecordService) invalidateSuggestions(ctx context.Context, workspaceID, templateID string) {
	if err := s.cache.Invalidate(ctx, SuggestCachePattern(workspaceID, templateID)); err != nil {
		s.logger.Warn("failed to invalidate suggestion cache", zap.String("template_id", templateID), zap.Error(err))
	}
}

// applyDefaults fills template default values for active properties the
// caller did not address at all. An explicit empty value is respected.
func applyDefaults(entries []models.ValueEntry, properties []models.PropertyDefinition) []models.ValueEntry {
	addressed := make(map[string]bool, len(entries))
	for _, entry := range entries {
		addressed[entry.PropertyID] = true
	}
	out := make([]models.ValueEntry, len(entries))
	copy(out, entries)
	for _, p := range properties {
		if addressed[p.ID] || p.DefaultValue == nil || *p.DefaultValue == "" {
			continue
		}
		out = append(out, models.ValueEntry{PropertyID: p.ID, Value: *p.DefaultValue})
	}
	return out
}

// buildValueMap resolves value entries against a snapshot, keying the
// resulting map by field name. Entries referencing properties outside the
// snapshot are rejected.
func buildValueMap(snapshot models.FieldSnapshot, entries []models.ValueEntry) (models.ValueMap, error) {
	fieldsByID := make(map[string]models.SnapshotField, len(snapshot))
	for _, f := range snapshot {
		fieldsByID[f.ID] = f
	}
	valueMap := make(models.ValueMap, len(entries))
	for _, entry := range entries {
		field, ok := fieldsByID[entry.PropertyID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown property "+entry.PropertyID)
		}
		if entry.Value == "" {
			continue
		}
		valueMap[field.Name] = entry.Value
	}
	return valueMap, nil
}
