// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package relay

import (
	"context"
	"time"

	"github.com/tomtom215/drivecast/internal/logging"
)

const (
	// DefaultHeartbeatInterval is how often ownership is refreshed.
	DefaultHeartbeatInterval = 30 * time.Second
	// DefaultActiveThreshold is how recently a user must have been seen for
	// their ownership to be refreshed.
	DefaultActiveThreshold = 5 * time.Minute
)

// LastSeenReader reports when a user last sent a location.
type LastSeenReader interface {
	LastSeen(ctx context.Context, userID string) (time.Time, bool)
}

// Heartbeat keeps ownership alive for active local users.
type Heartbeat struct {
	relay     *Relay
	presence  LastSeenReader
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
}

// NewHeartbeat creates a heartbeat. Zero durations select the defaults.
func NewHeartbeat(r *Relay, presence LastSeenReader, interval, threshold time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if threshold <= 0 {
		threshold = DefaultActiveThreshold
	}
	return &Heartbeat{
		relay:     r,
		presence:  presence,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
	}
}

// Run refreshes ownership every interval until ctx is done.
func (h *Heartbeat) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.Tick(ctx)
		}
	}
}

// Tick refreshes ownership once for every local user seen after
// now-threshold. It returns the number of users refreshed.
func (h *Heartbeat) Tick(ctx context.Context) int {
	cutoff := h.now().Add(-h.threshold)
	refreshed := 0
	for _, userID := range h.relay.registry.Users() {
		if ctx.Err() != nil {
			break
		}
		last, ok := h.presence.LastSeen(ctx, userID)
		if !ok || !last.After(cutoff) {
			continue
		}
		if h.relay.ownership.Refresh(ctx, userID) {
			refreshed++
		}
	}
	logging.Ctx(ctx).Debug().Int("refreshed", refreshed).Msg("Ownership heartbeat")
	return refreshed
}
