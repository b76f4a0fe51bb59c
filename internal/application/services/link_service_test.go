package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/internal/domain/models"
	"github.com/gridbase/gridbase/internal/infrastructure/database"
	"github.com/gridbase/gridbase/internal/infrastructure/persistence"
)

func newLinkFixture(t *testing.T) (*LinkService, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open stub database: %v", err)
	}
	t.Cleanup(func() { _ = rawDB.Close() })

	db := database.FromDB(rawDB)
	txManager := persistence.NewTransactionManager(db)
	bus := NewEventBus()
	outbox := NewOutboxService(db, bus)

	linkRepo := persistence.NewLinkRepository(rawDB)
	schemaRepo := persistence.NewSchemaRepository(rawDB)
	recordRepo := persistence.NewRecordRepository(rawDB)
	validator := NewValidationService(persistence.NewEnumRepository(rawDB), recordRepo, linkRepo)

	return NewLinkService(linkRepo, schemaRepo, recordRepo, validator, txManager, outbox), mock
}

func linkTableWithColumn(linkTableID int64) *models.Table {
	return &models.Table{ID: 1, Name: "contacts", Columns: []models.Column{
		{Name: "projects", DataType: models.TypeReference, ReferenceLinkTableID: &linkTableID, TableID: 1},
	}}
}

func TestReconcileInsertsRemovesAndKeeps(t *testing.T) {
	ls, mock := newLinkFixture(t)
	table := linkTableWithColumn(3)

	// Stored edges: ->7 (kept, same attrs) and ->8 (no longer desired).
	// Desired edges: ->7 and ->9 (new).
	mock.ExpectBegin()
	mock.ExpectQuery("FROM link_records WHERE link_table_id").
		WithArgs(int64(3), int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "link_table_id", "from_record_id", "to_record_id", "data", "created_at", "updated_at"}).
			AddRow(100, 3, 10, 7, []byte(`{"role":"lead"}`), testTime(), testTime()).
			AddRow(101, 3, 10, 8, []byte(`{}`), testTime(), testTime()))
	mock.ExpectExec("DELETE FROM link_records WHERE id").
		WithArgs(int64(101)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO link_records").
		WithArgs(int64(3), int64(10), int64(9), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(102, 1))
	mock.ExpectCommit()

	desired := map[string][]LinkEntry{
		"projects": {
			{ToRecordID: 7, Attrs: map[string]interface{}{"role": "lead"}},
			{ToRecordID: 9, Attrs: map[string]interface{}{}},
		},
	}
	err := ls.Reconcile(context.Background(), table, 10, desired)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "the surviving edge is left untouched")
}

func TestReconcileRewritesChangedAttributes(t *testing.T) {
	ls, mock := newLinkFixture(t)
	table := linkTableWithColumn(3)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM link_records WHERE link_table_id").
		WithArgs(int64(3), int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "link_table_id", "from_record_id", "to_record_id", "data", "created_at", "updated_at"}).
			AddRow(100, 3, 10, 7, []byte(`{"role":"lead"}`), testTime(), testTime()))
	mock.ExpectExec("UPDATE link_records SET").
		WithArgs(int64(10), int64(7), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	desired := map[string][]LinkEntry{
		"projects": {{ToRecordID: 7, Attrs: map[string]interface{}{"role": "member"}}},
	}
	err := ls.Reconcile(context.Background(), table, 10, desired)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileNoopWhenNothingDesired(t *testing.T) {
	ls, mock := newLinkFixture(t)

	err := ls.Reconcile(context.Background(), linkTableWithColumn(3), 10, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "no transaction without link fields")
}

func TestReconcileRejectsUnboundColumn(t *testing.T) {
	ls, mock := newLinkFixture(t)
	table := &models.Table{ID: 1, Name: "contacts", Columns: []models.Column{
		{Name: "plain", DataType: models.TypeString, TableID: 1},
	}}

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := ls.Reconcile(context.Background(), table, 10, map[string][]LinkEntry{
		"plain": {{ToRecordID: 7}},
	})
	require.Error(t, err)
}
