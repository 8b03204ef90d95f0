// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/drivecast/internal/logging"
)

// NATSOptions configures the NATS bus connection.
type NATSOptions struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// NATS is a Bus over core NATS subjects.
type NATS struct {
	conn  *natsgo.Conn
	owned bool

	mu     sync.Mutex
	closed bool
}

// NewNATS connects to the NATS server at opts.URL. The connection retries
// in the background if the server is not yet reachable.
func NewNATS(opts NATSOptions) (*NATS, error) {
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	if opts.MaxReconnects == 0 {
		opts.MaxReconnects = -1
	}
	name := opts.Name
	if name == "" {
		name = "drivecast-bus"
	}

	log := logging.WithComponent("bus")
	nc, err := natsgo.Connect(opts.URL,
		natsgo.Name(name),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(opts.MaxReconnects),
		natsgo.ReconnectWait(opts.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS bus disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS bus reconnected")
		}),
		natsgo.ErrorHandler(func(_ *natsgo.Conn, sub *natsgo.Subscription, err error) {
			ev := log.Error().Err(err)
			if sub != nil {
				ev = ev.Str("subject", sub.Subject)
			}
			ev.Msg("NATS bus error")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", opts.URL, err)
	}
	return &NATS{conn: nc, owned: true}, nil
}

// NewNATSFromConn wraps an existing connection. Close does not close conn.
func NewNATSFromConn(conn *natsgo.Conn) *NATS {
	return &NATS{conn: conn}
}

// Conn returns the underlying connection.
func (n *NATS) Conn() *natsgo.Conn {
	return n.conn
}

// Publish implements Bus.
func (n *NATS) Publish(_ context.Context, channel string, data []byte) error {
	if channel == "" {
		return ErrEmptyChannel
	}
	if n.isClosed() {
		return ErrClosed
	}
	if err := n.conn.Publish(channel, data); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe implements Bus. Handlers receive ctx, and run serially on the
// subscription's delivery goroutine.
func (n *NATS) Subscribe(ctx context.Context, channel string, h Handler) (Subscription, error) {
	if channel == "" {
		return nil, ErrEmptyChannel
	}
	if n.isClosed() {
		return nil, ErrClosed
	}

	sub, err := n.conn.Subscribe(channel, func(msg *natsgo.Msg) {
		h(ctx, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", channel, err)
	}
	// Make sure the server has registered interest before returning, so a
	// publish issued right after Subscribe is not missed.
	if n.conn.IsConnected() {
		flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := n.conn.FlushWithContext(flushCtx); err != nil {
			_ = sub.Unsubscribe()
			return nil, fmt.Errorf("flush subscription %s: %w", channel, err)
		}
	}
	return sub, nil
}

// Close drains owned connections.
func (n *NATS) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	if !n.owned {
		return nil
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}

func (n *NATS) isClosed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}
