// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package bus

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("bus: closed")

// ErrEmptyChannel is returned when a channel name is blank.
var ErrEmptyChannel = errors.New("bus: empty channel name")

// Handler receives one message body. Handlers run on the backend's delivery
// goroutine and must not block for long.
type Handler func(ctx context.Context, data []byte)

// Subscription is an active channel subscription.
type Subscription interface {
	Unsubscribe() error
}

// Bus is a broadcast publish/subscribe transport.
type Bus interface {
	// Publish sends data to every subscriber of channel on every node.
	Publish(ctx context.Context, channel string, data []byte) error
	// Subscribe registers h for channel. The subscription is active when
	// Subscribe returns.
	Subscribe(ctx context.Context, channel string, h Handler) (Subscription, error)
	// Close releases the underlying connection.
	Close() error
}
