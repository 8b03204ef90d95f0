// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package services

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/drivecast/internal/logging"
)

// ErrNATSServerDown is returned once the watched server stops running.
var ErrNATSServerDown = errors.New("embedded NATS server is not running")

// RunningChecker reports whether a server is still up.
// Satisfied by *bus.EmbeddedServer.
type RunningChecker interface {
	IsRunning() bool
}

// NATSWatchdogService polls the embedded NATS server.
//
// The server itself is started before the supervisor tree and shut down
// after it exits, because everything in the messaging layer holds a
// connection to it. The watchdog only turns a dead server into a
// supervisor failure event so the condition is logged and counted.
type NATSWatchdogService struct {
	server   RunningChecker
	interval time.Duration
}

// NewNATSWatchdogService creates a watchdog polling every interval
// (default 5s).
func NewNATSWatchdogService(server RunningChecker, interval time.Duration) *NATSWatchdogService {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &NATSWatchdogService{server: server, interval: interval}
}

// Serve implements suture.Service.
func (w *NATSWatchdogService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !w.server.IsRunning() {
				logging.Error().Msg("Embedded NATS server stopped unexpectedly")
				return ErrNATSServerDown
			}
		}
	}
}

// String implements fmt.Stringer.
func (w *NATSWatchdogService) String() string {
	return "nats-watchdog"
}
