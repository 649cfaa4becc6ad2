package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracevault/tracevault-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestValueRepositoryGetValues(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewValueRepository(db)
	rows := sqlmock.NewRows([]string{"record_id", "property_id", "value"}).
		AddRow("rec-1", "prop-1", "SN-01").
		AddRow("rec-1", "prop-2", nil)
	mock.ExpectQuery("SELECT record_id, property_id, value FROM property_values").
		WithArgs("rec-1").
		WillReturnRows(rows)

	values, err := repo.GetValues(context.Background(), "rec-1")
	require.NoError(t, err)
	require.Len(t, values, 2)
	require.NotNil(t, values[0].Value)
	assert.Equal(t, "SN-01", *values[0].Value)
	assert.Nil(t, values[1].Value)
}

func TestValueRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewValueRepository(db)
	value := "SN-01"

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO property_values").
		WithArgs("rec-1", "prop-1", value).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO property_values").
		WithArgs("rec-1", "prop-2", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Upsert(context.Background(), []models.PropertyValue{
		{RecordID: "rec-1", PropertyID: "prop-1", Value: &value},
		{RecordID: "rec-1", PropertyID: "prop-2", Value: nil},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestValueRepositoryUpsertEmptySliceIsNoop(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewValueRepository(db)
	require.NoError(t, repo.Upsert(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestValueRepositorySuggestRanked(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewValueRepository(db)
	rows := sqlmock.NewRows([]string{"value", "count"}).
		AddRow("lee", 12).
		AddRow("kim", 3)
	mock.ExpectQuery("SELECT pv.value AS value, COUNT").
		WithArgs("tpl-1", "prop-1").
		WillReturnRows(rows)

	suggestions, err := repo.Suggest(context.Background(), "tpl-1", "prop-1", "", 50)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "lee", suggestions[0].Value)
	assert.Equal(t, 12, suggestions[0].Count)
}

func TestValueRepositorySuggestWithSearch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewValueRepository(db)
	rows := sqlmock.NewRows([]string{"value", "count"}).AddRow("lee", 12)
	mock.ExpectQuery("SELECT pv.value AS value, COUNT").
		WithArgs("tpl-1", "prop-1", "%le%").
		WillReturnRows(rows)

	suggestions, err := repo.Suggest(context.Background(), "tpl-1", "prop-1", "LE", 50)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
}
