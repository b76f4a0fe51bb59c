package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/internal/infrastructure/database"
	"github.com/gridbase/gridbase/internal/infrastructure/persistence"
	"github.com/gridbase/gridbase/pkg/apperr"
)

func newRecordServiceFixture(t *testing.T) (*RecordService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open stub database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	conn := database.FromDB(db)
	txManager := persistence.NewTransactionManager(conn)
	outbox := NewOutboxService(conn, NewEventBus())

	schemaRepo := persistence.NewSchemaRepository(db)
	enumRepo := persistence.NewEnumRepository(db)
	recordRepo := persistence.NewRecordRepository(db)
	linkRepo := persistence.NewLinkRepository(db)

	schemas := NewSchemaService(schemaRepo, linkRepo, enumRepo, recordRepo, txManager, outbox)
	validator := NewValidationService(enumRepo, recordRepo, linkRepo)
	display := NewDisplayService(schemaRepo, recordRepo, linkRepo)
	linkSvc := NewLinkService(linkRepo, schemaRepo, recordRepo, validator, txManager, outbox)

	rs := NewRecordService(schemas, recordRepo, linkSvc, validator, display, txManager, outbox)
	return rs, mock
}

// Two writers can both pass the pre-transaction uniqueness scan; the locking
// re-check inside the write transaction catches the loser before it commits.
func TestCreateRechecksUniqueInsideTransaction(t *testing.T) {
	rs, mock := newRecordServiceFixture(t)

	mock.ExpectQuery("FROM tables WHERE name").
		WithArgs("contacts").
		WillReturnRows(tableRow(1, "contacts", "{name}", ""))
	mock.ExpectQuery("FROM columns WHERE table_id").
		WithArgs(int64(1)).
		WillReturnRows(columnRows().
			AddRow(1, 1, "name", "string", false, nil, nil, nil, true, false, false, testTime(), testTime()).
			AddRow(2, 1, "email", "string", false, nil, nil, nil, false, true, false, testTime(), testTime()))

	// the batch-validation scan sees no duplicate
	mock.ExpectQuery("JSON_EXTRACT").
		WithArgs(int64(1), int64(0), `$."email"`, `"ada@example.com"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// inside the transaction a concurrent writer has taken the value
	mock.ExpectBegin()
	mock.ExpectQuery("LIMIT 1 FOR UPDATE").
		WithArgs(int64(1), int64(0), `$."email"`, `"ada@example.com"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectRollback()

	_, err := rs.Create(context.Background(), "contacts", map[string]interface{}{
		"name": "Ada", "email": "ada@example.com",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "already taken")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCommitsWhenRecheckPasses(t *testing.T) {
	rs, mock := newRecordServiceFixture(t)

	mock.ExpectQuery("FROM tables WHERE name").
		WithArgs("contacts").
		WillReturnRows(tableRow(1, "contacts", "{name}", ""))
	mock.ExpectQuery("FROM columns WHERE table_id").
		WithArgs(int64(1)).
		WillReturnRows(columnRows().
			AddRow(2, 1, "email", "string", false, nil, nil, nil, false, true, false, testTime(), testTime()))

	mock.ExpectQuery("JSON_EXTRACT").
		WithArgs(int64(1), int64(0), `$."email"`, `"ada@example.com"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	mock.ExpectBegin()
	mock.ExpectQuery("LIMIT 1 FOR UPDATE").
		WithArgs(int64(1), int64(0), `$."email"`, `"ada@example.com"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO records").
		WithArgs(int64(1), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(sqlmock.AnyArg(), "record.created", sqlmock.AnyArg(), persistence.OutboxStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	view, err := rs.Create(context.Background(), "contacts", map[string]interface{}{
		"email": "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), view.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
