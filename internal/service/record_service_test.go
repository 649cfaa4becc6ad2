package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracevault/tracevault-api/internal/models"
	appErrors "github.com/tracevault/tracevault-api/pkg/errors"
)

type recordRepoStub struct {
	records map[string]models.Record

	updatedSnapshot models.FieldSnapshot
	updatedValueMap models.ValueMap
	deleted         []string
}

func (s *recordRepoStub) Create(ctx context.Context, record *models.Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if s.records == nil {
		s.records = make(map[string]models.Record)
	}
	s.records[record.ID] = *record
	return nil
}

func (s *recordRepoStub) FindByID(ctx context.Context, id string) (*models.Record, error) {
	if rec, ok := s.records[id]; ok {
		return &rec, nil
	}
	return nil, sql.ErrNoRows
}

func (s *recordRepoStub) ListByTemplate(ctx context.Context, templateID string, page, size int) ([]models.Record, int, error) {
	return nil, 0, nil
}

func (s *recordRepoStub) ListLogEntriesByAsset(ctx context.Context, assetID string) ([]models.Record, error) {
	var out []models.Record
	for _, rec := range s.records {
		if rec.AssetID != nil && *rec.AssetID == assetID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *recordRepoStub) UpdateLogEntry(ctx context.Context, id string, snapshot models.FieldSnapshot, valueMap models.ValueMap) error {
	s.updatedSnapshot = snapshot
	s.updatedValueMap = valueMap
	rec := s.records[id]
	rec.FieldsSnapshot = snapshot
	rec.ValueMap = valueMap
	s.records[id] = rec
	return nil
}

func (s *recordRepoStub) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	delete(s.records, id)
	return nil
}

type recordTemplateStub struct {
	templates  map[string]models.Template
	properties map[string][]models.PropertyDefinition
}

func (s *recordTemplateStub) FindByID(ctx context.Context, id string) (*models.Template, error) {
	if tpl, ok := s.templates[id]; ok {
		return &tpl, nil
	}
	return nil, sql.ErrNoRows
}

func (s *recordTemplateStub) ListProperties(ctx context.Context, templateID string, activeOnly bool) ([]models.PropertyDefinition, error) {
	return s.properties[templateID], nil
}

func newRecordServiceForTest(records *recordRepoStub, templates *recordTemplateStub, values *valueRepoStub) *RecordService {
	return NewRecordService(records, templates, values, nil, nil, nil, 0)
}

func logTemplateFixture() *recordTemplateStub {
	return &recordTemplateStub{
		templates: map[string]models.Template{
			"tpl-log":   {ID: "tpl-log", WorkspaceID: "ws-1", Kind: models.TemplateKindLog},
			"tpl-asset": {ID: "tpl-asset", WorkspaceID: "ws-1", Kind: models.TemplateKindAsset},
		},
		properties: map[string][]models.PropertyDefinition{
			"tpl-log": {
				{ID: "p-qty", TemplateID: "tpl-log", Name: "Qty", Type: models.PropertyTypeNumber, DisplayOrder: 0, IsActive: true},
				{ID: "p-op", TemplateID: "tpl-log", Name: "Operator", Type: models.PropertyTypeText, DisplayOrder: 1, IsActive: true},
			},
		},
	}
}

func TestCreateLogEntryCapturesSnapshot(t *testing.T) {
	records := &recordRepoStub{records: map[string]models.Record{
		"asset-1": {ID: "asset-1", WorkspaceID: "ws-1", TemplateID: "tpl-asset", Kind: models.RecordKindAsset},
	}}
	values := &valueRepoStub{}
	svc := newRecordServiceForTest(records, logTemplateFixture(), values)

	entry, err := svc.CreateLogEntry(context.Background(), memberScope(), CreateLogEntryRequest{
		TemplateID: "tpl-log",
		AssetID:    "asset-1",
		Values: []models.ValueEntry{
			{PropertyID: "p-qty", Value: "5"},
		},
	})

	require.NoError(t, err)
	require.Len(t, entry.FieldsSnapshot, 2)
	assert.Equal(t, "Qty", entry.FieldsSnapshot[0].Name)
	assert.Equal(t, "Operator", entry.FieldsSnapshot[1].Name)
	assert.Equal(t, models.ValueMap{"Qty": "5"}, entry.ValueMap)
	require.NotNil(t, entry.AssetID)
	assert.Equal(t, "asset-1", *entry.AssetID)
	// EAV rows written alongside the snapshot.
	require.Len(t, values.upserted, 1)
	assert.Equal(t, "p-qty", values.upserted[0].PropertyID)
}

func TestCreateLogEntryRejectsUnknownProperty(t *testing.T) {
	records := &recordRepoStub{records: map[string]models.Record{
		"asset-1": {ID: "asset-1", WorkspaceID: "ws-1", Kind: models.RecordKindAsset},
	}}
	svc := newRecordServiceForTest(records, logTemplateFixture(), &valueRepoStub{})

	_, err := svc.CreateLogEntry(context.Background(), memberScope(), CreateLogEntryRequest{
		TemplateID: "tpl-log",
		AssetID:    "asset-1",
		Values:     []models.ValueEntry{{PropertyID: "ghost", Value: "x"}},
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateLogEntryRequiresAssetRecord(t *testing.T) {
	records := &recordRepoStub{records: map[string]models.Record{
		"log-1": {ID: "log-1", WorkspaceID: "ws-1", Kind: models.RecordKindLog},
	}}
	svc := newRecordServiceForTest(records, logTemplateFixture(), &valueRepoStub{})

	_, err := svc.CreateLogEntry(context.Background(), memberScope(), CreateLogEntryRequest{
		TemplateID: "tpl-log",
		AssetID:    "log-1",
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateLogEntryRejectsAssetTemplate(t *testing.T) {
	records := &recordRepoStub{records: map[string]models.Record{
		"asset-1": {ID: "asset-1", WorkspaceID: "ws-1", Kind: models.RecordKindAsset},
	}}
	svc := newRecordServiceForTest(records, logTemplateFixture(), &valueRepoStub{})

	_, err := svc.CreateLogEntry(context.Background(), memberScope(), CreateLogEntryRequest{
		TemplateID: "tpl-asset",
		AssetID:    "asset-1",
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateAssetAppliesDefaults(t *testing.T) {
	def := "hangar-3"
	templates := &recordTemplateStub{
		templates: map[string]models.Template{
			"tpl-asset": {ID: "tpl-asset", WorkspaceID: "ws-1", Kind: models.TemplateKindAsset},
		},
		properties: map[string][]models.PropertyDefinition{
			"tpl-asset": {
				{ID: "p-sn", Name: "Serial Number", Type: models.PropertyTypeText, IsActive: true},
				{ID: "p-loc", Name: "Location", Type: models.PropertyTypeText, DefaultValue: &def, IsActive: true},
			},
		},
	}
	values := &valueRepoStub{}
	svc := newRecordServiceForTest(&recordRepoStub{}, templates, values)

	_, err := svc.CreateAsset(context.Background(), memberScope(), CreateAssetRequest{
		TemplateID: "tpl-asset",
		Values:     []models.ValueEntry{{PropertyID: "p-sn", Value: "SN-01"}},
	})

	require.NoError(t, err)
	require.Len(t, values.upserted, 2)
	byProperty := make(map[string]*string, len(values.upserted))
	for _, v := range values.upserted {
		byProperty[v.PropertyID] = v.Value
	}
	require.NotNil(t, byProperty["p-loc"])
	assert.Equal(t, "hangar-3", *byProperty["p-loc"])
}

func TestEditLogEntryKeepsSnapshotFrozen(t *testing.T) {
	snapshot := models.FieldSnapshot{
		{ID: "p-qty", Name: "Qty", Type: models.PropertyTypeNumber, DisplayOrder: 0},
	}
	records := &recordRepoStub{records: map[string]models.Record{
		"log-1": {
			ID: "log-1", WorkspaceID: "ws-1", TemplateID: "tpl-log", Kind: models.RecordKindLog,
			FieldsSnapshot: snapshot,
			ValueMap:       models.ValueMap{"Qty": "5"},
		},
	}}
	values := &valueRepoStub{}
	svc := newRecordServiceForTest(records, logTemplateFixture(), values)

	updated, err := svc.EditLogEntry(context.Background(), memberScope(), "log-1", []models.ValueEntry{
		{PropertyID: "p-qty", Value: "7"},
	})

	require.NoError(t, err)
	assert.Equal(t, snapshot, records.updatedSnapshot)
	assert.Equal(t, models.ValueMap{"Qty": "7"}, updated.ValueMap)
	require.Len(t, values.upserted, 1)
}

func TestRenderUnaffectedByLaterPropertyChanges(t *testing.T) {
	records := &recordRepoStub{records: map[string]models.Record{
		"asset-1": {ID: "asset-1", WorkspaceID: "ws-1", TemplateID: "tpl-asset", Kind: models.RecordKindAsset},
	}}
	templates := logTemplateFixture()
	svc := newRecordServiceForTest(records, templates, &valueRepoStub{})

	entry, err := svc.CreateLogEntry(context.Background(), memberScope(), CreateLogEntryRequest{
		TemplateID: "tpl-log",
		AssetID:    "asset-1",
		Values: []models.ValueEntry{
			{PropertyID: "p-qty", Value: "5"},
		},
	})
	require.NoError(t, err)

	// Later template edits rename Qty and archive Operator.
	templates.properties["tpl-log"] = []models.PropertyDefinition{
		{ID: "p-qty", TemplateID: "tpl-log", Name: "Quantity", Type: models.PropertyTypeNumber, DisplayOrder: 0, IsActive: true},
	}

	fields, err := svc.Render(context.Background(), memberScope(), entry.ID)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "Qty", fields[0].Name)
	require.NotNil(t, fields[0].Value)
	assert.Equal(t, "5", *fields[0].Value)
	assert.Equal(t, "Operator", fields[1].Name)
	assert.Nil(t, fields[1].Value)
}

func TestEditLogEntryEmptyValueClearsField(t *testing.T) {
	records := &recordRepoStub{records: map[string]models.Record{
		"log-1": {
			ID: "log-1", WorkspaceID: "ws-1", TemplateID: "tpl-log", Kind: models.RecordKindLog,
			FieldsSnapshot: models.FieldSnapshot{{ID: "p-qty", Name: "Qty", Type: models.PropertyTypeNumber}},
			ValueMap:       models.ValueMap{"Qty": "5"},
		},
	}}
	svc := newRecordServiceForTest(records, logTemplateFixture(), &valueRepoStub{})

	updated, err := svc.EditLogEntry(context.Background(), memberScope(), "log-1", []models.ValueEntry{
		{PropertyID: "p-qty", Value: ""},
	})

	require.NoError(t, err)
	assert.Empty(t, updated.ValueMap)
}

func TestEditLogEntryRejectsAssets(t *testing.T) {
	records := &recordRepoStub{records: map[string]models.Record{
		"asset-1": {ID: "asset-1", WorkspaceID: "ws-1", Kind: models.RecordKindAsset},
	}}
	svc := newRecordServiceForTest(records, logTemplateFixture(), &valueRepoStub{})

	_, err := svc.EditLogEntry(context.Background(), memberScope(), "asset-1", nil)

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRecordDeleteScopedToWorkspace(t *testing.T) {
	records := &recordRepoStub{records: map[string]models.Record{
		"rec-1": {ID: "rec-1", WorkspaceID: "ws-other", TemplateID: "tpl-1"},
	}}
	svc := newRecordServiceForTest(records, logTemplateFixture(), &valueRepoStub{})

	err := svc.Delete(context.Background(), memberScope(), "rec-1")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, records.deleted)
}
