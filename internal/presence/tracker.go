// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package presence

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/store"
)

// KeyPrefix prefixes every presence record.
const KeyPrefix = "lastseen:"

// Key returns the presence key for userID.
func Key(userID string) string {
	return KeyPrefix + userID
}

// Tracker reads and writes presence records.
type Tracker struct {
	store store.Store
}

// NewTracker creates a tracker over s.
func NewTracker(s store.Store) *Tracker {
	return &Tracker{store: s}
}

// MarkSeen records that userID was seen at t. Blank user ids are ignored.
func (t *Tracker) MarkSeen(ctx context.Context, userID string, at time.Time) error {
	if strings.TrimSpace(userID) == "" {
		return nil
	}
	return t.store.Set(ctx, Key(userID), strconv.FormatInt(at.UnixMilli(), 10), 0)
}

// LastSeen returns the last time userID was seen.
func (t *Tracker) LastSeen(ctx context.Context, userID string) (time.Time, bool) {
	if strings.TrimSpace(userID) == "" {
		return time.Time{}, false
	}

	raw, ok, err := t.store.Get(ctx, Key(userID))
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Presence lookup failed, treating user as absent")
		return time.Time{}, false
	}
	if !ok {
		return time.Time{}, false
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logging.Ctx(ctx).Warn().Str("user_id", userID).Str("value", raw).Msg("Malformed presence record")
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// IsFresh reports whether userID was seen within skew of ref, inclusive at
// both ends.
func (t *Tracker) IsFresh(ctx context.Context, userID string, ref time.Time, skew time.Duration) bool {
	last, ok := t.LastSeen(ctx, userID)
	if !ok {
		return false
	}
	return Fresh(last, ref, skew)
}

// Fresh reports whether lastSeen lies in [ref-skew, ref+skew].
func Fresh(lastSeen, ref time.Time, skew time.Duration) bool {
	return !lastSeen.Before(ref.Add(-skew)) && !lastSeen.After(ref.Add(skew))
}
