// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/metrics"
	"github.com/tomtom215/drivecast/internal/relay"
)

// Connector binds sessions to users. *relay.Relay implements it.
type Connector interface {
	Connect(ctx context.Context, userID string, s relay.Session) (string, error)
	Disconnect(ctx context.Context, sessionID string)
}

// Config tunes per-client buffers and limits.
type Config struct {
	// SendBuffer is the number of frames queued per client before Send
	// starts dropping.
	SendBuffer int
	// InboundRate is the sustained number of inbound frames per second a
	// client may send. InboundBurst is the bucket size.
	InboundRate  float64
	InboundBurst int
	// AllowedOrigins restricts the Origin header on upgrade. Empty or "*"
	// allows any origin.
	AllowedOrigins []string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SendBuffer:   256,
		InboundRate:  5,
		InboundBurst: 10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.InboundRate <= 0 {
		c.InboundRate = d.InboundRate
	}
	if c.InboundBurst <= 0 {
		c.InboundBurst = d.InboundBurst
	}
	return c
}

// Hub maintains the set of live clients on this node.
type Hub struct {
	clients   map[*Client]struct{}
	mu        sync.RWMutex
	connector Connector
	cfg       Config
	now       func() time.Time

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	done     chan struct{}
	doneOnce sync.Once
}

// NewHub creates a hub that binds clients through connector.
func NewHub(connector Connector, cfg Config) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		connector:  connector,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// RunWithContext starts the hub's main loop. It returns ctx.Err() after
// closing every client when ctx is done.
func (h *Hub) RunWithContext(ctx context.Context) error {
	defer h.doneOnce.Do(func() { close(h.done) })

	for {
		// Priority check: shutdown wins over pending registrations.
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	logging.Debug().
		Str("session_id", client.id).
		Str("user_id", client.userID).
		Int("total_clients", count).
		Msg("WebSocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	client.close()
	metrics.WSConnections.Dec()
	logging.Debug().
		Str("session_id", client.id).
		Str("user_id", client.userID).
		Int("total_clients", count).
		Msg("WebSocket client disconnected")
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	reason := "context canceled"
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = "deadline exceeded"
	}
	closed := h.closeAllClients()
	logging.Info().
		Str("reason", reason).
		Int("clients_closed", closed).
		Msg("WebSocket hub shutting down")
}

// closeAllClients closes every client in session id order and returns how
// many were closed.
func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, c := range clients {
		c.close()
		metrics.WSConnections.Dec()
	}
	return len(clients)
}

// register hands client to the hub loop. It reports false when the hub has
// stopped.
func (h *Hub) register(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Done is closed once the hub loop has exited.
func (h *Hub) Done() <-chan struct{} { return h.done }
