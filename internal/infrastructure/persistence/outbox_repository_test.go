package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOutboxRepo(t *testing.T) (*OutboxRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open stub database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewOutboxRepository(db), mock
}

func TestEnqueueInsertsPendingRow(t *testing.T) {
	repo, mock := newOutboxRepo(t)

	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(sqlmock.AnyArg(), "record.created", []byte(`{"table":"people"}`), OutboxStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.Enqueue(context.Background(), repo.db, "record.created", map[string]string{"table": "people"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimEventReturnsEmptyWhenGone(t *testing.T) {
	repo, mock := newOutboxRepo(t)

	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs("ev-1", OutboxStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	claimed, err := repo.ClaimEvent(context.Background(), repo.db, "ev-1")
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestClaimEventLocksPendingRow(t *testing.T) {
	repo, mock := newOutboxRepo(t)

	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs("ev-2", OutboxStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ev-2"))

	claimed, err := repo.ClaimEvent(context.Background(), repo.db, "ev-2")
	require.NoError(t, err)
	assert.Equal(t, "ev-2", claimed)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	repo, _ := newOutboxRepo(t)

	err := repo.UpdateStatus(context.Background(), repo.db, "ev-3", "sideways", "")
	require.Error(t, err)
}

func TestUpdateStatusStampsProcessedAt(t *testing.T) {
	repo, mock := newOutboxRepo(t)

	mock.ExpectExec("UPDATE outbox_events SET status = \\?, processed_at = NOW\\(\\)").
		WithArgs(OutboxStatusProcessed, "ev-4").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), repo.db, "ev-4", OutboxStatusProcessed, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupProcessedReportsDeletedRows(t *testing.T) {
	repo, mock := newOutboxRepo(t)

	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM outbox_events WHERE status").
		WithArgs(OutboxStatusProcessed, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.CleanupProcessed(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
