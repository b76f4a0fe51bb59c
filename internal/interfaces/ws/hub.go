package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/gridbase/gridbase/internal/application/services"
	"github.com/gridbase/gridbase/internal/domain/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer is per-client; a client that falls this far behind is dropped
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one connected subscriber
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans schema and data change notifications out to connected websocket
// clients. It subscribes to the event bus, so every broadcast went through
// the outbox first. Broadcasting never blocks on a slow client.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
	auth       *services.AuthService
}

// NewHub creates a Hub; call Run on its own goroutine before serving
func NewHub(auth *services.AuthService) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		auth:       auth,
	}
}

// RegisterHandlers subscribes the hub to every change event
func (h *Hub) RegisterHandlers(bus *services.EventBus) {
	for _, et := range []events.EventType{
		events.RecordCreated, events.RecordUpdated, events.RecordDeleted,
		events.SchemaUpdated,
	} {
		bus.Subscribe(et, h.HandleChange)
	}
}

// HandleChange serializes a change payload and broadcasts it
func (h *Hub) HandleChange(_ context.Context, payload events.ChangePayload) error {
	msg, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// Broadcast queues a message for every connected client
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		log.Printf("⚠️ [WS] broadcast queue full, dropping message")
	}
}

// Run owns the client set. It loops until the context is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// closing done releases every pump blocked on register/unregister
			close(h.done)
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Handle upgrades a request to a websocket subscription. The token rides a
// query parameter because browsers cannot set headers on websocket dials.
func (h *Hub) Handle(c *gin.Context) {
	token := c.Query("token")
	if _, err := h.auth.Authenticate(token); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ [WS] upgrade failed: %v", err)
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- cl:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go cl.writePump()
	go cl.readPump(h)
}

// drop hands a client back to Run, or gives up when the hub has shut down
func (h *Hub) drop(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// readPump drains inbound frames so ping/pong control frames get processed.
// Clients are listen-only; their payloads are discarded.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.drop(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pushes queued messages and keepalive pings to the peer
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
