package http

import (
	"sync"

	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
)

const sendBuffer = 64

// client is the outbound side of one websocket connection.
type client struct {
	id   string
	send chan domain.Event

	mu     sync.Mutex
	closed bool
}

// enqueue never blocks; a full buffer drops the event for this client only.
func (c *client) enqueue(ev domain.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub tracks the live connections of this process and implements app.Transport.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[string]*client), logger: logger}
}

// Register adds a connection and returns its outbound queue.
func (h *Hub) Register(connID string) *client {
	c := &client{id: connID, send: make(chan domain.Event, sendBuffer)}
	h.mu.Lock()
	h.clients[connID] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("connection registered", zap.String("conn_id", connID), zap.Int("connections", n))
	return c
}

func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	delete(h.clients, connID)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

// Deliver queues ev for the connection. It reports false if the connection is gone or slow.
func (h *Hub) Deliver(connID string, ev domain.Event) bool {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.enqueue(ev)
}

// Close ends the connection after the events already queued are written.
func (h *Hub) Close(connID string) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if ok {
		c.close()
	}
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
