package websocket

import (
	"context"
	"sync"

	"terretahub/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one websocket connection subscribed to XP updates
type Client struct {
	Conn    *websocket.Conn
	UserID  string
	writeMu sync.Mutex
}

// SafeWriteJSON serializes writes to the connection
func (c *Client) SafeWriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

// Hub delivers XP events to connected clients. A member receives every
// event about themselves; level-ups are also announced to everyone.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[*Client]bool), logger: logger}
}

// Register adds a client
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	h.logger.Debug("xp client registered", zap.String("userId", client.UserID), zap.Int("clients", len(h.clients)))
}

// Unregister removes a client and closes its connection
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		client.Conn.Close()
		h.logger.Debug("xp client unregistered", zap.String("userId", client.UserID), zap.Int("clients", count))
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends event to every interested client. Writes happen outside
// the hub lock so a slow client only delays itself. Clients that fail a
// write are dropped.
func (h *Hub) Broadcast(event models.XPEvent) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if client.UserID == event.UserID || event.Type == "level_up" {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if err := client.SafeWriteJSON(event); err != nil {
			h.logger.Warn("failed to send xp event", zap.String("userId", client.UserID), zap.Error(err))
			h.Unregister(client)
		}
	}
}

// Publish lets the hub act as a notifier when no stream is configured
func (h *Hub) Publish(ctx context.Context, event models.XPEvent) error {
	h.Broadcast(event)
	return nil
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	for client := range clients {
		client.Conn.Close()
	}
}
