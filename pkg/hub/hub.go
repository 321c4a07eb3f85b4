package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Hub maintains the set of active clients and broadcasts messages to them.
// New clients immediately receive the last broadcast message.
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*client]bool
	broadcast  chan Message
	register   chan *client
	unregister chan *client
	done       chan struct{}

	mu      sync.RWMutex
	last    *Message
	running atomic.Bool
	dropped atomic.Int64
}

// New creates a Hub. Call Run to start it.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("component", "hub", "hub", name),
		clients:    make(map[*client]bool),
		broadcast:  make(chan Message, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx is cancelled. It closes every client
// on exit.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.mu.Lock()
		for c := range h.clients {
			close(c.send)
			delete(h.clients, c)
		}
		h.mu.Unlock()
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			last := h.last
			h.mu.Unlock()
			if last != nil {
				c.send <- *last
			}
			h.logger.Info("🔌 client connected", "clients", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("🔌 client disconnected", "clients", count)

		case msg := <-h.broadcast:
			h.mu.Lock()
			h.last = &msg
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Too slow to keep up
					close(c.send)
					delete(h.clients, c)
					h.logger.Warn("⚠️ dropped slow client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues msg for every client. It never blocks and reports
// whether the message was queued.
func (h *Hub) Broadcast(msg Message) bool {
	select {
	case h.broadcast <- msg:
		return true
	default:
		h.dropped.Add(1)
		h.logger.Debug("broadcast channel full, dropping message")
		return false
	}
}

// BroadcastJSON encodes v and broadcasts it.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns the number of broadcasts dropped on a full channel.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
