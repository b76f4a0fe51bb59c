package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/gridbase/gridbase/internal/domain/events"
	"github.com/gridbase/gridbase/internal/domain/ports"
)

// EventType is an alias to the domain type
type EventType = events.EventType

// EventHandler is a function that handles an event.
// Using the type from ports to ensure interface compatibility.
type EventHandler = ports.EventHandler

// subscription keeps a stable identity per handler so unsubscribe works
// even for identical function values.
type subscription struct {
	id      int64
	handler EventHandler
}

// EventBus manages the in-process publish-subscribe dispatch.
// It implements ports.EventPublisher interface.
type EventBus struct {
	handlers map[EventType][]subscription
	nextID   int64
	mu       sync.RWMutex
}

// Ensure EventBus implements ports.EventPublisher at compile time
var _ ports.EventPublisher = (*EventBus)(nil)

// NewEventBus creates a new EventBus instance
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]subscription),
	}
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function.
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	id := eb.nextID
	eb.handlers[eventType] = append(eb.handlers[eventType], subscription{id: id, handler: handler})

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()

		// Copy-on-write: Publish iterates its snapshot outside the lock,
		// so the old slice's backing array must stay untouched
		subs := eb.handlers[eventType]
		kept := make([]subscription, 0, len(subs))
		for _, s := range subs {
			if s.id != id {
				kept = append(kept, s)
			}
		}
		eb.handlers[eventType] = kept
	}
}

// Publish delivers an event to all registered handlers in subscription order.
// The first handler error aborts delivery and is returned to the caller, which
// lets the outbox worker retry the whole event.
func (eb *EventBus) Publish(ctx context.Context, eventType EventType, payload events.ChangePayload) error {
	eb.mu.RLock()
	subs := eb.handlers[eventType]
	eb.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler(ctx, payload); err != nil {
			return fmt.Errorf("EventBus handler error for %s: %w", eventType, err)
		}
	}

	return nil
}

// Clear removes all handlers (useful for testing)
func (eb *EventBus) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers = make(map[EventType][]subscription)
}
