package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/drowsewatch/internal/app"
)

const (
	writeWait = 5 * time.Second
	// clientBuffer is how many updates a slow client may lag before updates are dropped.
	clientBuffer = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// UpdateSource publishes classification updates.
type UpdateSource interface {
	Snapshot() app.Update
	Subscribe(fn func(app.Update)) func()
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// StatusHandler pushes every classification update to WebSocket clients.
type StatusHandler struct {
	source      UpdateSource
	log         logrus.FieldLogger
	clients     map[*client]bool
	mu          sync.RWMutex
	unsubscribe func()
	closed      bool
}

// NewStatusHandler creates a StatusHandler subscribed to source.
func NewStatusHandler(source UpdateSource, log logrus.FieldLogger) *StatusHandler {
	h := &StatusHandler{
		source:  source,
		log:     log,
		clients: make(map[*client]bool),
	}
	h.unsubscribe = source.Subscribe(h.broadcast)
	return h
}

// ServeHTTP handles WebSocket upgrade requests. The current snapshot is sent
// first, followed by every update.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade error")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	// broadcast waits on mu, so the snapshot is always queued first.
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = true
	if msg, err := json.Marshal(h.source.Snapshot()); err == nil {
		c.send <- msg
	}
	h.mu.Unlock()

	go h.writePump(c)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(c)
}

// Clients returns the number of connected clients.
func (h *StatusHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes from updates and disconnects every client.
func (h *StatusHandler) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]bool)
	h.mu.Unlock()

	h.unsubscribe()
	for c := range clients {
		close(c.send)
	}
}

func (h *StatusHandler) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcast runs on the monitor goroutine and must not block.
func (h *StatusHandler) broadcast(u app.Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(u)
	if err != nil {
		h.log.WithError(err).Warn("failed to encode update")
		return
	}

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Slow client; drop this update.
		}
	}
}

func (h *StatusHandler) writePump(c *client) {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
