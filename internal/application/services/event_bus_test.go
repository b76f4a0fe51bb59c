package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/internal/domain/events"
)

func TestEventBusPublishInOrder(t *testing.T) {
	bus := NewEventBus()

	var got []string
	bus.Subscribe(events.RecordCreated, func(_ context.Context, p events.ChangePayload) error {
		got = append(got, "first:"+p.Table)
		return nil
	})
	bus.Subscribe(events.RecordCreated, func(_ context.Context, p events.ChangePayload) error {
		got = append(got, "second:"+p.Table)
		return nil
	})

	err := bus.Publish(context.Background(), events.RecordCreated, events.ChangePayload{Table: "contacts"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first:contacts", "second:contacts"}, got)
}

func TestEventBusHandlerErrorAbortsDelivery(t *testing.T) {
	bus := NewEventBus()

	calls := 0
	bus.Subscribe(events.RecordUpdated, func(context.Context, events.ChangePayload) error {
		calls++
		return errors.New("index write failed")
	})
	bus.Subscribe(events.RecordUpdated, func(context.Context, events.ChangePayload) error {
		calls++
		return nil
	})

	err := bus.Publish(context.Background(), events.RecordUpdated, events.ChangePayload{})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()

	calls := 0
	handler := func(context.Context, events.ChangePayload) error {
		calls++
		return nil
	}
	unsub1 := bus.Subscribe(events.SchemaUpdated, handler)
	bus.Subscribe(events.SchemaUpdated, handler)

	unsub1()
	require.NoError(t, bus.Publish(context.Background(), events.SchemaUpdated, events.ChangePayload{}))
	assert.Equal(t, 1, calls, "only the surviving subscription fires")
}

func TestEventBusUnsubscribeDuringPublishKeepsDeliveryIntact(t *testing.T) {
	bus := NewEventBus()

	var got []string
	var unsub2 func()
	bus.Subscribe(events.RecordCreated, func(context.Context, events.ChangePayload) error {
		got = append(got, "first")
		unsub2()
		return nil
	})
	unsub2 = bus.Subscribe(events.RecordCreated, func(context.Context, events.ChangePayload) error {
		got = append(got, "second")
		return nil
	})
	bus.Subscribe(events.RecordCreated, func(context.Context, events.ChangePayload) error {
		got = append(got, "third")
		return nil
	})

	// the in-flight publish still sees its snapshot of all three handlers
	require.NoError(t, bus.Publish(context.Background(), events.RecordCreated, events.ChangePayload{}))
	assert.Equal(t, []string{"first", "second", "third"}, got)

	// the next publish no longer delivers to the removed handler
	got = nil
	require.NoError(t, bus.Publish(context.Background(), events.RecordCreated, events.ChangePayload{}))
	assert.Equal(t, []string{"first", "third"}, got)

	bus.Clear()
	got = nil
	require.NoError(t, bus.Publish(context.Background(), events.RecordCreated, events.ChangePayload{}))
	assert.Empty(t, got)
}

func TestChangePayloadWireShape(t *testing.T) {
	raw, err := json.Marshal(events.ChangePayload{
		Scope:    events.ScopeData,
		Action:   events.ActionCreate,
		Table:    "contacts",
		TableID:  4,
		RecordID: 17,
	})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "data_update", decoded["type"])
	assert.Equal(t, "create", decoded["action"])
	assert.Equal(t, "contacts", decoded["table"])
	assert.Equal(t, float64(17), decoded["id"])
	assert.NotContains(t, decoded, "prev_table", "empty fields stay off the wire")
}
