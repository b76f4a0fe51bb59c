package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gridbase/gridbase/internal/domain/events"
	"github.com/gridbase/gridbase/internal/infrastructure/database"
	"github.com/gridbase/gridbase/internal/infrastructure/persistence"
)

// MaxRetryAttempts is the delivery attempt cap before an event is parked
// as failed for manual inspection.
const MaxRetryAttempts = 5

// OutboxService handles transactional event storage and async publishing.
// It implements the Outbox Pattern for guaranteed event delivery: the event
// row commits with the business write, a worker publishes it afterwards.
type OutboxService struct {
	db       *database.Connection
	repo     *persistence.OutboxRepository
	eventBus *EventBus

	// Worker control
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewOutboxService creates a new OutboxService
func NewOutboxService(db *database.Connection, eventBus *EventBus) *OutboxService {
	return &OutboxService{
		db:       db,
		repo:     persistence.NewOutboxRepository(db.DB()),
		eventBus: eventBus,
		stopCh:   make(chan struct{}),
	}
}

// EnqueueEventTx stores an event in the outbox table within the given
// transaction, so it persists atomically with the business operation.
func (os *OutboxService) EnqueueEventTx(ctx context.Context, tx *sql.Tx, eventType events.EventType, payload events.ChangePayload) error {
	id, err := os.repo.Enqueue(ctx, tx, string(eventType), payload)
	if err != nil {
		return err
	}
	log.Printf("✅ [Outbox] Enqueued event %s (ID: %s)", eventType, id)
	return nil
}

// StartWorker starts the background worker that processes pending outbox
// events, polling at the given interval.
func (os *OutboxService) StartWorker(interval time.Duration) {
	os.wg.Add(1)
	go func() {
		defer os.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Printf("📤 Outbox worker started with %v interval", interval)

		for {
			select {
			case <-os.stopCh:
				log.Printf("📤 Outbox worker stopping...")
				return
			case <-ticker.C:
				if err := os.ProcessOutbox(context.Background()); err != nil {
					log.Printf("⚠️ Outbox worker error: %v", err)
				}
			}
		}
	}()
}

// StopWorker stops the background worker gracefully
func (os *OutboxService) StopWorker() {
	os.stopOnce.Do(func() {
		close(os.stopCh)
	})
	os.wg.Wait()
	log.Printf("📤 Outbox worker stopped")
}

// ProcessOutbox publishes all pending outbox events via the EventBus.
// Each event is claimed and completed in its own transaction.
func (os *OutboxService) ProcessOutbox(ctx context.Context) error {
	pending, err := os.repo.GetPendingEvents(ctx, 100)
	if err != nil {
		return err
	}

	if len(pending) > 0 {
		log.Printf("🔄 [Outbox] Processing %d pending events", len(pending))
	}

	for _, e := range pending {
		if err := os.processEventAtomic(ctx, e.ID, e.EventType, e.Payload, e.RetryCount); err != nil {
			log.Printf("⚠️ Failed to process outbox event %s: %v", e.ID, err)
		}
	}

	return nil
}

// processEventAtomic claims an event, publishes it, and updates status atomically
func (os *OutboxService) processEventAtomic(ctx context.Context, id, eventType, payloadJSON string, retryCount int) error {
	tx, err := os.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Claim this specific event, skipping if another worker holds it
	claimedID, err := os.repo.ClaimEvent(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("failed to claim event: %w", err)
	}
	if claimedID == "" {
		return nil // Already processed/locked
	}

	var payload events.ChangePayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		log.Printf("❌ [Outbox] Event %s failed payload unmarshal: %v", id, err)
		if markErr := os.repo.UpdateStatus(ctx, tx, id, persistence.OutboxStatusFailed, fmt.Sprintf("invalid payload: %v", err)); markErr != nil {
			return fmt.Errorf("failed to mark event as failed: %w", markErr)
		}
		return tx.Commit()
	}

	if err := os.eventBus.Publish(ctx, events.EventType(eventType), payload); err != nil {
		newRetryCount := retryCount + 1
		if newRetryCount >= MaxRetryAttempts {
			if markErr := os.repo.UpdateStatus(ctx, tx, id, persistence.OutboxStatusFailed, fmt.Sprintf("max retries exceeded: %v", err)); markErr != nil {
				return fmt.Errorf("failed to mark event as failed: %w", markErr)
			}
			return tx.Commit()
		}

		if updateErr := os.repo.IncrementRetry(ctx, tx, id, newRetryCount, err.Error()); updateErr != nil {
			return fmt.Errorf("failed to update retry count: %w", updateErr)
		}
		log.Printf("⚠️ [Outbox] Event %s failed (Attempt %d/%d). Error: %v", id, newRetryCount, MaxRetryAttempts, err)
		return tx.Commit()
	}

	if err := os.repo.UpdateStatus(ctx, tx, id, persistence.OutboxStatusProcessed, ""); err != nil {
		return fmt.Errorf("failed to mark as processed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Printf("✅ [Outbox] Successfully processed event %s (Type: %s)", id, eventType)
	return nil
}

// CleanupProcessed removes old processed events from the outbox.
// Called periodically to prevent table bloat.
func (os *OutboxService) CleanupProcessed(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	return os.repo.CleanupProcessed(ctx, cutoff)
}
