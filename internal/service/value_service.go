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

type valueRepository interface {
	GetValues(ctx context.Context, recordID string) ([]models.PropertyValue, error)
	Upsert(ctx context.Context, values []models.PropertyValue) error
}

type valueRecordReader interface {
	FindByID(ctx context.Context, id string) (*models.Record, error)
}

// ValueService reads and writes per-record property values.
type ValueService struct {
	values    valueRepository
	records   valueRecordReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	timeout   time.Duration
}

// NewValueService constructs a ValueService.
func NewValueService(values valueRepository, records valueRecordReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger, timeout time.Duration) *ValueService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValueService{values: values, records: records, cache: cache, validator: validate, logger: logger, timeout: timeout}
}

// GetValues returns a record's stored values keyed by property id. Unset
// properties simply have no entry.
func (s *ValueService) GetValues(ctx context.Context, scope models.SessionScope, recordID string) (map[string]*string, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	record, err := s.loadScoped(ctx, scope, recordID)
	if err != nil {
		return nil, err
	}
	rows, err := s.values.GetValues(ctx, record.ID)
	if err != nil {
		return nil, storeErr(err, "failed to load values")
	}
	values := make(map[string]*string, len(rows))
	for _, row := range rows {
		values[row.PropertyID] = row.Value
	}
	return values, nil
}

// SetValues upserts the given entries for a record. Each (record, property)
// pair keeps at most one row; writing an empty string stores null so the
// suggestion index never accumulates blanks.
func (s *ValueService) SetValues(ctx context.Context, scope models.SessionScope, recordID string, entries []models.ValueEntry) error {
	if !scope.Member() {
		return appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	for _, entry := range entries {
		if err := s.validator.Struct(entry); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid value entry")
		}
	}

	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	record, err := s.loadScoped(ctx, scope, recordID)
	if err != nil {
		return err
	}

	values := normalizeEntries(record.ID, entries)
	if len(values) == 0 {
		return nil
	}
	if err := s.values.Upsert(ctx, values); err != nil {
		return storeErr(err, "failed to save values")
	}

	if err := s.cache.Invalidate(ctx, SuggestCachePattern(scope.WorkspaceID, record.TemplateID)); err != nil {
		s.logger.Warn("failed to invalidate suggestion cache",
			zap.String("template_id", record.TemplateID), zap.Error(err))
	}
	return nil
}

func (s *ValueService) loadScoped(ctx context.Context, scope models.SessionScope, recordID string) (*models.Record, error) {
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
	return record, nil
}

// normalizeEntries converts write entries into EAV rows, mapping empty
// strings to null.
func normalizeEntries(recordID string, entries []models.ValueEntry) []models.PropertyValue {
	values := make([]models.PropertyValue, 0, len(entries))
	for _, entry := range entries {
		var value *string
		if entry.Value != "" {
			v := entry.Value
			value = &v
		}
		values = append(values, models.PropertyValue{
			RecordID:   recordID,
			PropertyID: entry.PropertyID,
			Value:      value,
		})
	}
	return values
}
