package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/internal/domain/models"
)

func newRecordRepo(t *testing.T) (*RecordRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open stub database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewRecordRepository(db), mock
}

func TestInsertFillsIDAndTimestamps(t *testing.T) {
	repo, mock := newRecordRepo(t)

	mock.ExpectExec("INSERT INTO records").
		WithArgs(int64(1), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(42, 1))

	rec := &models.Record{TableID: 1, Data: map[string]interface{}{"name": "Ada"}}
	require.NoError(t, repo.Insert(context.Background(), nil, rec))

	assert.Equal(t, int64(42), rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)
}

func TestGetInTableScopesByTable(t *testing.T) {
	repo, mock := newRecordRepo(t)

	mock.ExpectQuery("FROM records WHERE id = \\? AND table_id").
		WithArgs(int64(7), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "table_id", "data", "created_at", "updated_at"}))

	rec, err := repo.GetInTable(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Nil(t, rec, "a record of another table reads as absent")
}

func TestHasFieldValueUsesJSONPathAndExcludesSelf(t *testing.T) {
	repo, mock := newRecordRepo(t)

	mock.ExpectQuery("JSON_EXTRACT\\(data, \\?\\) = CAST\\(\\? AS JSON\\)").
		WithArgs(int64(1), int64(5), `$."email"`, `"a@b.c"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

	taken, err := repo.HasFieldValue(context.Background(), nil, 1, "email", "a@b.c", 5)
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestHasFieldValueLocksInsideTransaction(t *testing.T) {
	repo, mock := newRecordRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("LIMIT 1 FOR UPDATE").
		WithArgs(int64(1), int64(0), `$."email"`, `"a@b.c"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectRollback()

	tx, err := repo.db.Begin()
	require.NoError(t, err)

	taken, err := repo.HasFieldValue(context.Background(), tx, 1, "email", "a@b.c", 0)
	require.NoError(t, err)
	assert.True(t, taken, "the transactional scan is a locking read")
	require.NoError(t, tx.Rollback())
}

func TestExistsInTable(t *testing.T) {
	repo, mock := newRecordRepo(t)

	mock.ExpectQuery("SELECT id FROM records WHERE id").
		WithArgs(int64(9), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

	exists, err := repo.ExistsInTable(context.Background(), nil, 2, 9)
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT id FROM records WHERE id").
		WithArgs(int64(10), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	exists, err = repo.ExistsInTable(context.Background(), nil, 2, 10)
	require.NoError(t, err)
	assert.False(t, exists)
}
