package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/internal/domain/events"
)

func recvMessage(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast message")
		return nil
	}
}

func TestHandleChangeFansOutToEveryClient(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c1 := &client{send: make(chan []byte, sendBuffer)}
	c2 := &client{send: make(chan []byte, sendBuffer)}
	hub.register <- c1
	hub.register <- c2

	err := hub.HandleChange(ctx, events.ChangePayload{
		Scope:    events.ScopeData,
		Action:   events.ActionUpdate,
		Table:    "people",
		TableID:  1,
		RecordID: 17,
	})
	require.NoError(t, err)

	for _, c := range []*client{c1, c2} {
		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(recvMessage(t, c.send), &got))
		assert.Equal(t, "data_update", got["type"])
		assert.Equal(t, "people", got["table"])
		assert.Equal(t, float64(17), got["id"])
	}
}

func TestShutdownReleasesPendingClientDrops(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	c := &client{send: make(chan []byte, sendBuffer)}
	hub.register <- c

	cancel()
	select {
	case <-hub.done:
	case <-time.After(time.Second):
		t.Fatal("hub did not shut down")
	}

	// a read pump handing its client back after shutdown must not block
	released := make(chan struct{})
	go func() {
		hub.drop(c)
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("client drop blocked after hub shutdown")
	}
}

func TestSlowClientIsEvicted(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	slow := &client{send: make(chan []byte, 1)}
	slow.send <- []byte("backlog")
	hub.register <- slow

	healthy := &client{send: make(chan []byte, sendBuffer)}
	hub.register <- healthy

	hub.Broadcast([]byte(`{"type":"data_update"}`))

	// the healthy client gets the message; the slow one is dropped and its
	// send channel closed once its backlog is drained
	recvMessage(t, healthy.send)
	assert.Equal(t, []byte("backlog"), recvMessage(t, slow.send))
	select {
	case _, open := <-slow.send:
		assert.False(t, open, "expected slow client channel to be closed")
	case <-time.After(time.Second):
		t.Fatal("slow client channel was not closed")
	}
}
