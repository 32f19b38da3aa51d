// Package notify pushes new contact messages to connected admin viewers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"bamikavision/logging"
	"bamikavision/models"

	"github.com/rs/zerolog"
)

const EventNewMessage = "new_message"

// Event is the frame sent to every live client.
type Event struct {
	Type    string                `json:"type"`
	Message models.ContactMessage `json:"message"`
}

// Hub tracks open WebSocket clients and fans events out to them.
type Hub struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex
	logger  zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logging.NewLogger("notify"),
	}
}

// Register adds a client to the hub
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().Str("remote_addr", c.remoteAddr).Int("clients", count).Msg("Live client connected")
}

// Unregister removes a client and closes its send channel. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.logger.Info().Str("remote_addr", c.remoteAddr).Int("clients", count).Msg("Live client disconnected")
	}
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues payload for every client without waiting. Clients whose
// buffer is full miss the payload; their count is returned.
func (h *Hub) Broadcast(payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			dropped++
		}
	}
	return dropped
}

// reply queues payload for a single client if it is still registered.
// send is only closed under h.mu, so membership guards the write.
func (h *Hub) reply(c *Client, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// NotifyNewMessage broadcasts a new_message event.
func (h *Hub) NotifyNewMessage(_ context.Context, msg models.ContactMessage) error {
	payload, err := json.Marshal(Event{Type: EventNewMessage, Message: msg})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if dropped := h.Broadcast(payload); dropped > 0 {
		return fmt.Errorf("message %d not delivered to %d slow clients", msg.ID, dropped)
	}
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}
