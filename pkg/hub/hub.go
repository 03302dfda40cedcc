// Package hub fans assistant events out to websocket listeners with the
// channel-based broadcast pattern: one goroutine owns the client set, so
// registration and broadcast never race.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/mfalcao/phantasma/internal/log"
)

// Event types published over the hub.
const (
	EventWake       = "wake"
	EventTranscript = "transcript"
	EventResponse   = "response"
	EventStatus     = "status"
)

// Event is one assistant lifecycle notification.
type Event struct {
	Type    string    `json:"type"`
	Session string    `json:"session,omitempty"`
	Text    string    `json:"text,omitempty"`
	Source  string    `json:"source,omitempty"`
	Time    time.Time `json:"time"`
}

// Hub maintains the set of listeners and broadcasts events to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	logger     *slog.Logger

	mu sync.RWMutex
}

// New creates a hub. Call Run in a goroutine before publishing.
func New() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log.Component("hub"),
	}
}

// Run owns the client set. Should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("listener connected", "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("listener disconnected", "remaining", count)

		case payload := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					// Too slow, drop them.
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow listener")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish broadcasts an event to every listener. Never blocks; events
// are dropped when the hub is saturated.
func (h *Hub) Publish(evType, session, text, source string) {
	payload, err := json.Marshal(Event{
		Type:    evType,
		Session: session,
		Text:    text,
		Source:  source,
		Time:    time.Now(),
	})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("broadcast queue full, event dropped", "type", evType)
	}
}

// ClientCount returns the number of connected listeners.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
