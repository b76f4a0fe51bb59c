package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outbox row statuses
const (
	OutboxStatusPending   = "pending"
	OutboxStatusProcessed = "processed"
	OutboxStatusFailed    = "failed"
)

// OutboxEvent represents a persisted event row awaiting async dispatch
type OutboxEvent struct {
	ID          string
	EventType   string
	Payload     string
	Status      string
	RetryCount  int
	LastError   string
	CreatedAt   time.Time
	ProcessedAt sql.NullTime
}

// OutboxRepository handles database operations for the outbox pattern
type OutboxRepository struct {
	db *sql.DB
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue inserts a new pending event. Run with the business write's
// transaction as exec so the event commits atomically with it.
func (r *OutboxRepository) Enqueue(ctx context.Context, exec Executor, eventType string, payload interface{}) (string, error) {
	id := uuid.NewString()

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event payload: %w", err)
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO outbox_events (id, event_type, payload, status, retry_count, created_at)
		VALUES (?, ?, ?, ?, 0, NOW())
	`, id, eventType, payloadJSON, OutboxStatusPending)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue event: %w", err)
	}

	return id, nil
}

// GetPendingEvents retrieves pending events ordered by creation time
func (r *OutboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_type, payload, retry_count
		FROM outbox_events
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?
	`, OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.RetryCount); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ClaimEvent attempts to lock a specific pending event for processing.
// Returns "" when another worker already holds or processed it.
func (r *OutboxRepository) ClaimEvent(ctx context.Context, exec Executor, id string) (string, error) {
	var claimedID string
	err := exec.QueryRowContext(ctx, `
		SELECT id FROM outbox_events
		WHERE id = ? AND status = ?
		FOR UPDATE SKIP LOCKED
	`, id, OutboxStatusPending).Scan(&claimedID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return claimedID, nil
}

// UpdateStatus marks an event processed or failed
func (r *OutboxRepository) UpdateStatus(ctx context.Context, exec Executor, id, status, errMessage string) error {
	switch status {
	case OutboxStatusProcessed:
		_, err := exec.ExecContext(ctx, `
			UPDATE outbox_events SET status = ?, processed_at = NOW() WHERE id = ?
		`, status, id)
		return err
	case OutboxStatusFailed:
		_, err := exec.ExecContext(ctx, `
			UPDATE outbox_events SET status = ?, last_error = ? WHERE id = ?
		`, status, errMessage, id)
		return err
	default:
		return fmt.Errorf("unsupported status update: %s", status)
	}
}

// IncrementRetry bumps the retry count and records the failure reason
func (r *OutboxRepository) IncrementRetry(ctx context.Context, exec Executor, id string, newCount int, errMessage string) error {
	_, err := exec.ExecContext(ctx, `
		UPDATE outbox_events SET retry_count = ?, last_error = ? WHERE id = ?
	`, newCount, errMessage, id)
	return err
}

// CleanupProcessed deletes processed events older than the cutoff
func (r *OutboxRepository) CleanupProcessed(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM outbox_events WHERE status = ? AND processed_at < ?
	`, OutboxStatusProcessed, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
