// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package driving

import (
	"context"
	"strings"
	"time"

	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/store"
)

const (
	// ActiveKeyPrefix prefixes the per-user driving marker.
	ActiveKeyPrefix = "driving:active:"

	// DefaultActiveTTL bounds a drive whose DRIVE_END never arrives.
	DefaultActiveTTL = time.Hour
)

// ActiveKey returns the store key marking userID as driving.
func ActiveKey(userID string) string {
	return ActiveKeyPrefix + userID
}

// Sessions records which users are currently driving.
type Sessions struct {
	store store.Store
	ttl   time.Duration
}

// NewSessions creates a driving session tracker. A non-positive ttl uses
// DefaultActiveTTL.
func NewSessions(s store.Store, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultActiveTTL
	}
	return &Sessions{store: s, ttl: ttl}
}

// Begin marks userID as driving since at.
func (s *Sessions) Begin(ctx context.Context, userID string, at time.Time) {
	if strings.TrimSpace(userID) == "" {
		return
	}
	if err := s.store.Set(ctx, ActiveKey(userID), at.UTC().Format(time.RFC3339Nano), s.ttl); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Failed to mark user as driving")
		return
	}
	logging.Ctx(ctx).Debug().Str("user_id", userID).Msg("Drive started")
}

// End clears userID's driving marker.
func (s *Sessions) End(ctx context.Context, userID string) {
	if strings.TrimSpace(userID) == "" {
		return
	}
	if err := s.store.Delete(ctx, ActiveKey(userID)); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Failed to clear driving marker")
		return
	}
	logging.Ctx(ctx).Debug().Str("user_id", userID).Msg("Drive ended")
}

// Active reports whether userID is driving. Store errors read as not
// driving.
func (s *Sessions) Active(ctx context.Context, userID string) bool {
	if strings.TrimSpace(userID) == "" {
		return false
	}
	_, ok, err := s.store.Get(ctx, ActiveKey(userID))
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Driving marker lookup failed")
		return false
	}
	return ok
}

// Since returns when userID's current drive started.
func (s *Sessions) Since(ctx context.Context, userID string) (time.Time, bool) {
	v, ok, err := s.store.Get(ctx, ActiveKey(userID))
	if err != nil || !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
