package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracevault/tracevault-api/internal/models"
)

func TestCaptureSnapshotOrdersByDisplayOrder(t *testing.T) {
	props := []models.PropertyDefinition{
		{ID: "p2", Name: "Qty", Type: models.PropertyTypeNumber, DisplayOrder: 1},
		{ID: "p1", Name: "Operator", Type: models.PropertyTypeText, DisplayOrder: 0},
		{ID: "p3", Name: "Date", Type: models.PropertyTypeDate, DisplayOrder: 2},
	}

	snapshot := CaptureSnapshot(props)

	require.Len(t, snapshot, 3)
	assert.Equal(t, "Operator", snapshot[0].Name)
	assert.Equal(t, "Qty", snapshot[1].Name)
	assert.Equal(t, "Date", snapshot[2].Name)
}

func TestRenderFromSnapshotKeepsFrozenFields(t *testing.T) {
	record := &models.Record{
		Kind: models.RecordKindLog,
		FieldsSnapshot: models.FieldSnapshot{
			{ID: "p1", Name: "Qty", Type: models.PropertyTypeNumber, DisplayOrder: 0},
			{ID: "p2", Name: "Operator", Type: models.PropertyTypeText, DisplayOrder: 1},
		},
		ValueMap: models.ValueMap{"Qty": "5"},
	}

	fields := RenderFromSnapshot(record)

	require.Len(t, fields, 2)
	assert.Equal(t, "Qty", fields[0].Name)
	require.NotNil(t, fields[0].Value)
	assert.Equal(t, "5", *fields[0].Value)
	assert.Equal(t, models.PropertyTypeNumber, fields[0].Type)
	// Operator was never filled in; it still renders, with no value.
	assert.Equal(t, "Operator", fields[1].Name)
	assert.Nil(t, fields[1].Value)
}

func TestRenderFromSnapshotLegacyFallback(t *testing.T) {
	record := &models.Record{
		Kind:     models.RecordKindLog,
		ValueMap: models.ValueMap{"Qty": "12.5", "Operator": "lee"},
	}

	fields := RenderFromSnapshot(record)

	require.Len(t, fields, 2)
	assert.Equal(t, "Operator", fields[0].Name)
	assert.Equal(t, models.PropertyTypeText, fields[0].Type)
	assert.Equal(t, "Qty", fields[1].Name)
	assert.Equal(t, models.PropertyTypeNumber, fields[1].Type)
	assert.Equal(t, 0, fields[0].DisplayOrder)
	assert.Equal(t, 1, fields[1].DisplayOrder)
}

func TestRenderFromSnapshotEmptyRecord(t *testing.T) {
	fields := RenderFromSnapshot(&models.Record{Kind: models.RecordKindLog})
	assert.Empty(t, fields)
}
