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

func TestRuleRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRuleRepository(db)
	mock.ExpectExec("INSERT INTO linked_document_rules").
		WillReturnResult(sqlmock.NewResult(1, 1))

	rule := &models.LinkedDocumentRule{
		WorkspaceID: "ws-1",
		DocumentID:  "doc-1",
		TemplateID:  "tpl-1",
		PropertyID:  "prop-1",
		ValueRaw:    " SN-01 ",
		ValueNorm:   "sn-01",
	}
	require.NoError(t, repo.Create(context.Background(), rule))
	assert.NotEmpty(t, rule.ID)
}

func TestRuleRepositoryListByTemplate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRuleRepository(db)
	rows := sqlmock.NewRows([]string{"id", "workspace_id", "document_id", "template_id", "property_id", "value_raw", "value_norm", "created_at"}).
		AddRow("r-1", "ws-1", "doc-1", "tpl-1", "prop-1", "SN-01", "sn-01", time.Now()).
		AddRow("r-2", "ws-1", "doc-2", "tpl-1", "prop-1", "SN-01", "sn-01", time.Now())
	mock.ExpectQuery("SELECT id, workspace_id, document_id").
		WithArgs("tpl-1").
		WillReturnRows(rows)

	rules, err := repo.ListByTemplate(context.Background(), "tpl-1")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	// Duplicate match values are allowed; each row stands on its own.
	assert.Equal(t, rules[0].ValueNorm, rules[1].ValueNorm)
}

func TestRuleRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRuleRepository(db)
	mock.ExpectExec("DELETE FROM linked_document_rules").
		WithArgs("r-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "r-1"))
}
