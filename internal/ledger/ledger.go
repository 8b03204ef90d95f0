// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/metrics"
	"github.com/tomtom215/drivecast/internal/store"
)

const (
	// DefaultDedupTTL bounds how long a claim blocks re-delivery. It outlives
	// the default repeat schedule of 18 rounds at 10s.
	DefaultDedupTTL = 5 * time.Minute
	// DefaultSnapshotTTL is how long accident snapshots are retained.
	DefaultSnapshotTTL = time.Hour

	sentMarker = "sent"
)

// ClaimKey returns the dedup key for (alertID, userID).
func ClaimKey(alertID, userID string) string {
	return "alert:" + alertID + ":" + userID
}

// SnapshotKey returns the snapshot key for an accident.
func SnapshotKey(alertID string) string {
	return "accident:" + alertID
}

// Ledger records delivery claims and accident snapshots.
type Ledger struct {
	store store.Store
}

// New creates a ledger over s.
func New(s store.Store) *Ledger {
	return &Ledger{store: s}
}

// ClaimIfFirst atomically claims delivery of alertID to userID. It returns
// true only for the first caller within ttl (DefaultDedupTTL when ttl <= 0).
// Blank ids and store errors return false.
func (l *Ledger) ClaimIfFirst(ctx context.Context, alertID, userID string, ttl time.Duration) bool {
	if strings.TrimSpace(alertID) == "" || strings.TrimSpace(userID) == "" {
		return false
	}
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}

	won, err := l.store.SetIfAbsent(ctx, ClaimKey(alertID, userID), sentMarker, ttl)
	metrics.RecordDedupClaim(won, err)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Str("alert_id", alertID).
			Str("user_id", userID).
			Msg("Dedup claim failed, skipping recipient")
		return false
	}
	return won
}

// StoreSnapshot saves data for alertID. ttl <= 0 selects DefaultSnapshotTTL.
func (l *Ledger) StoreSnapshot(ctx context.Context, alertID string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return l.store.Set(ctx, SnapshotKey(alertID), string(data), ttl)
}

// ReadSnapshot returns the stored snapshot for alertID.
func (l *Ledger) ReadSnapshot(ctx context.Context, alertID string) ([]byte, bool) {
	raw, ok, err := l.store.Get(ctx, SnapshotKey(alertID))
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("alert_id", alertID).Msg("Snapshot read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return []byte(raw), true
}
