package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracevault/tracevault-api/internal/models"
)

func TestTemplateRepositoryCreateWithProperties(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewTemplateRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO templates").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO property_definitions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO property_definitions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	template := &models.Template{WorkspaceID: "ws-1", Name: "Drones", Kind: models.TemplateKindAsset}
	properties := []models.PropertyDefinition{
		{Name: "Serial Number", Type: models.PropertyTypeText, DisplayOrder: 0},
		{Name: "Flight Hours", Type: models.PropertyTypeNumber, DisplayOrder: 1},
	}

	require.NoError(t, repo.Create(context.Background(), template, properties))
	assert.NotEmpty(t, template.ID)
	assert.NotEmpty(t, properties[0].ID)
	assert.Equal(t, template.ID, properties[0].TemplateID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepositoryExistsByName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewTemplateRepository(db)
	rows := sqlmock.NewRows([]string{"?column?"}).AddRow(1)
	mock.ExpectQuery("SELECT 1 FROM templates").
		WithArgs("ws-1", "asset", "drones").
		WillReturnRows(rows)

	exists, err := repo.ExistsByName(context.Background(), "ws-1", models.TemplateKindAsset, "drones", "")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestTemplateRepositoryExistsByNameNoMatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewTemplateRepository(db)
	mock.ExpectQuery("SELECT 1 FROM templates").
		WithArgs("ws-1", "asset", "drones", "tpl-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsByName(context.Background(), "ws-1", models.TemplateKindAsset, "drones", "tpl-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTemplateRepositoryListByKindIncludesCounts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewTemplateRepository(db)
	rows := sqlmock.NewRows([]string{"id", "workspace_id", "name", "kind", "created_at", "record_count"}).
		AddRow("tpl-1", "ws-1", "Drones", "asset", time.Now(), 4).
		AddRow("tpl-2", "ws-1", "Vehicles", "asset", time.Now(), 0)
	mock.ExpectQuery("SELECT t.id, t.workspace_id").
		WithArgs("ws-1", "asset").
		WillReturnRows(rows)

	templates, err := repo.ListByKind(context.Background(), "ws-1", models.TemplateKindAsset)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, 4, templates[0].RecordCount)
	assert.Equal(t, 0, templates[1].RecordCount)
}

func TestTemplateRepositoryListPropertiesActiveOnly(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewTemplateRepository(db)
	rows := sqlmock.NewRows([]string{"id", "template_id", "name", "type", "default_value", "display_order", "is_active", "created_at"}).
		AddRow("p-1", "tpl-1", "Qty", "number", nil, 0, true, time.Now())
	mock.ExpectQuery("SELECT id, template_id, name, type, default_value, display_order, is_active, created_at").
		WithArgs("tpl-1").
		WillReturnRows(rows)

	properties, err := repo.ListProperties(context.Background(), "tpl-1", true)
	require.NoError(t, err)
	require.Len(t, properties, 1)
	assert.Equal(t, "Qty", properties[0].Name)
	assert.True(t, properties[0].IsActive)
}

func TestTemplateRepositoryUpsertPropertiesArchives(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewTemplateRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE property_definitions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO property_definitions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE property_definitions SET is_active = FALSE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updates := []models.PropertyDefinition{
		{ID: "p-1", Name: "QtyV2", Type: models.PropertyTypeNumber, DisplayOrder: 0},
	}
	inserts := []models.PropertyDefinition{
		{Name: "Inspector", Type: models.PropertyTypeText, DisplayOrder: 1},
	}

	err := repo.UpsertProperties(context.Background(), "tpl-1", updates, inserts, []string{"p-2"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepositoryDeleteCascadesInOrder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewTemplateRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM linked_document_rules").
		WithArgs("tpl-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM property_values").
		WithArgs("tpl-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM records").
		WithArgs("tpl-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM property_definitions").
		WithArgs("tpl-1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM templates").
		WithArgs("tpl-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "tpl-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
