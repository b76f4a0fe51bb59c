package services

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/internal/domain/events"
	"github.com/gridbase/gridbase/internal/infrastructure/database"
	"github.com/gridbase/gridbase/internal/infrastructure/persistence"
)

func newOutboxFixture(t *testing.T) (*OutboxService, *EventBus, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open stub database: %v", err)
	}
	t.Cleanup(func() { _ = rawDB.Close() })

	db := database.FromDB(rawDB)
	bus := NewEventBus()
	svc := NewOutboxService(db, bus)
	return svc, bus, mock
}

func expectClaim(mock sqlmock.Sqlmock, id string) {
	mock.ExpectQuery("SELECT id FROM outbox_events").
		WithArgs(id, persistence.OutboxStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
}

func TestProcessEventPublishesAndMarksProcessed(t *testing.T) {
	svc, bus, mock := newOutboxFixture(t)

	var published events.ChangePayload
	bus.Subscribe(events.RecordCreated, func(_ context.Context, p events.ChangePayload) error {
		published = p
		return nil
	})

	mock.ExpectBegin()
	expectClaim(mock, "ev-1")
	mock.ExpectExec("UPDATE outbox_events SET status").
		WithArgs(persistence.OutboxStatusProcessed, "ev-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payload := `{"type":"data_update","action":"create","table":"contacts","id":9}`
	err := svc.processEventAtomic(context.Background(), "ev-1", string(events.RecordCreated), payload, 0)
	require.NoError(t, err)
	assert.Equal(t, "contacts", published.Table)
	assert.Equal(t, int64(9), published.RecordID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessEventIncrementsRetryOnHandlerFailure(t *testing.T) {
	svc, bus, mock := newOutboxFixture(t)

	bus.Subscribe(events.RecordCreated, func(context.Context, events.ChangePayload) error {
		return errors.New("index unavailable")
	})

	mock.ExpectBegin()
	expectClaim(mock, "ev-2")
	mock.ExpectExec("UPDATE outbox_events SET retry_count").
		WithArgs(3, sqlmock.AnyArg(), "ev-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.processEventAtomic(context.Background(), "ev-2", string(events.RecordCreated), `{}`, 2)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessEventParksAsFailedAtRetryCap(t *testing.T) {
	svc, bus, mock := newOutboxFixture(t)

	bus.Subscribe(events.RecordCreated, func(context.Context, events.ChangePayload) error {
		return errors.New("index unavailable")
	})

	mock.ExpectBegin()
	expectClaim(mock, "ev-3")
	mock.ExpectExec("UPDATE outbox_events SET status").
		WithArgs(persistence.OutboxStatusFailed, sqlmock.AnyArg(), "ev-3").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.processEventAtomic(context.Background(), "ev-3", string(events.RecordCreated), `{}`, MaxRetryAttempts-1)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessEventSkipsWhenAlreadyClaimed(t *testing.T) {
	svc, bus, mock := newOutboxFixture(t)

	called := false
	bus.Subscribe(events.RecordCreated, func(context.Context, events.ChangePayload) error {
		called = true
		return nil
	})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM outbox_events").
		WithArgs("ev-4", persistence.OutboxStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := svc.processEventAtomic(context.Background(), "ev-4", string(events.RecordCreated), `{}`, 0)
	require.NoError(t, err)
	assert.False(t, called, "claimed-elsewhere events are not republished")
}

func TestProcessEventBadPayloadFailsImmediately(t *testing.T) {
	svc, _, mock := newOutboxFixture(t)

	mock.ExpectBegin()
	expectClaim(mock, "ev-5")
	mock.ExpectExec("UPDATE outbox_events SET status").
		WithArgs(persistence.OutboxStatusFailed, sqlmock.AnyArg(), "ev-5").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.processEventAtomic(context.Background(), "ev-5", string(events.RecordCreated), `{not json`, 0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
