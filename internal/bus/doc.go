// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

// Package bus provides the fleet-wide broadcast channels used by the relay
// and the kick protocol.
//
// Every node subscribes to the same channels and receives every message,
// including the ones it published itself. Receivers are expected to filter by
// source node id. There is no persistence and no redelivery: a node that is
// down when a message is published never sees it.
//
// # Backends
//
//   - NATS: core NATS subjects over nats.go (default)
//   - Redis: Redis pub/sub over go-redis
//   - Memory: synchronous in-process fanout for tests and single-node runs
//
// An EmbeddedServer runs nats-server inside the process for standalone
// deployments and for tests.
//
// # Usage
//
//	b, err := bus.NewNATS(bus.NATSOptions{URL: "nats://127.0.0.1:4222"})
//	sub, err := b.Subscribe(ctx, "websocket:message", func(ctx context.Context, data []byte) {
//	    // decode and deliver
//	})
//	defer sub.Unsubscribe()
//	err = b.Publish(ctx, "websocket:message", payload)
package bus
