// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/metrics"
	"github.com/tomtom215/drivecast/internal/relay"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size. Clients only send control frames.
	maxMessageSize = 64 * 1024
)

var (
	// ErrSendBufferFull is returned by Send when the client is not draining
	// its frames fast enough.
	ErrSendBufferFull = errors.New("websocket: send buffer full")

	// ErrClientClosed is returned by Send after the client has been closed.
	ErrClientClosed = errors.New("websocket: client closed")
)

// Frame is the wire shape of every server to client message.
type Frame struct {
	Destination string          `json:"destination"`
	Body        json.RawMessage `json:"body"`
}

type inboundFrame struct {
	Type string `json:"type"`
}

type pongBody struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	id      string
	userID  string
	hub     *Hub
	conn    *websocket.Conn
	limiter *rate.Limiter

	mu     sync.Mutex
	send   chan Frame
	closed bool
}

// NewClient wraps an upgraded connection for userID.
func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		id:      uuid.NewString(),
		userID:  userID,
		hub:     hub,
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(hub.cfg.InboundRate), hub.cfg.InboundBurst),
		send:    make(chan Frame, hub.cfg.SendBuffer),
	}
}

// ID returns the session id.
func (c *Client) ID() string { return c.id }

// UserID returns the authenticated user bound to this connection.
func (c *Client) UserID() string { return c.userID }

// Send queues a frame for the write pump. It never blocks.
func (c *Client) Send(destination string, payload []byte) error {
	body := make(json.RawMessage, len(payload))
	copy(body, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- Frame{Destination: destination, Body: body}:
		return nil
	default:
		metrics.WSErrors.WithLabelValues("send_buffer_full").Inc()
		return ErrSendBufferFull
	}
}

// close stops accepting frames and lets the write pump finish. Safe to call
// more than once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

var _ relay.Session = (*Client)(nil)

// readPump pumps messages from the websocket connection. It owns the
// connection teardown: when it returns the session is released from the
// relay and the hub.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.connector.Disconnect(ctx, c.id)
		c.hub.unregister(c)
		if err := c.conn.Close(); err != nil {
			logging.Debug().Err(err).Str("session_id", c.id).Msg("Error closing connection")
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Debug().Err(err).Msg("Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				metrics.WSErrors.WithLabelValues("read").Inc()
				logging.Warn().Err(err).Str("session_id", c.id).Msg("WebSocket read error")
			}
			return
		}
		metrics.WSMessagesReceived.Inc()

		if !c.limiter.Allow() {
			metrics.WSErrors.WithLabelValues("rate_limited").Inc()
			continue
		}
		c.handleInbound(data)
	}
}

func (c *Client) handleInbound(data []byte) {
	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		metrics.WSErrors.WithLabelValues("malformed").Inc()
		return
	}
	switch in.Type {
	case "ping":
		body, err := json.Marshal(pongBody{Type: "pong", Timestamp: c.hub.now().UTC().Format(time.RFC3339)})
		if err != nil {
			return
		}
		if err := c.Send(relay.SystemDestination, body); err != nil {
			logging.Debug().Err(err).Str("session_id", c.id).Msg("Pong not queued")
		}
	default:
		logging.Debug().Str("type", in.Type).Str("session_id", c.id).Msg("Ignoring inbound frame")
	}
}

// writePump pumps frames from the send buffer to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			logging.Debug().Err(err).Str("session_id", c.id).Msg("Error closing connection")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}

			data, err := json.Marshal(frame)
			if err != nil {
				metrics.WSErrors.WithLabelValues("encode").Inc()
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				return
			}
			metrics.WSMessagesSent.Inc()

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start runs the read and write pumps.
func (c *Client) Start(ctx context.Context) {
	go c.writePump()
	go c.readPump(ctx)
}
