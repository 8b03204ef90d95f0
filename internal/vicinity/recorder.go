// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package vicinity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/drivecast/internal/geo"
	"github.com/tomtom215/drivecast/internal/store"
)

// DefaultBucketTTL keeps buckets well past the largest lookback.
const DefaultBucketTTL = 60 * time.Second

// ErrInvalidSample is returned for samples without a user or with
// out-of-range coordinates.
var ErrInvalidSample = errors.New("invalid location sample")

// Sample is one location report.
type Sample struct {
	UserID     string
	Point      geo.Point
	ObservedAt time.Time
}

// SeenMarker records presence.
type SeenMarker interface {
	MarkSeen(ctx context.Context, userID string, at time.Time) error
}

// Recorder writes location samples into their buckets and refreshes
// presence.
type Recorder struct {
	store     store.Store
	presence  SeenMarker
	bucketTTL time.Duration
}

// NewRecorder creates a recorder. bucketTTL <= 0 selects DefaultBucketTTL.
func NewRecorder(s store.Store, presence SeenMarker, bucketTTL time.Duration) *Recorder {
	if bucketTTL <= 0 {
		bucketTTL = DefaultBucketTTL
	}
	return &Recorder{store: s, presence: presence, bucketTTL: bucketTTL}
}

// Record stores s.
func (r *Recorder) Record(ctx context.Context, s Sample) error {
	if strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidSample)
	}
	if !s.Point.Valid() {
		return fmt.Errorf("%w: coordinates %s", ErrInvalidSample, s.Point)
	}
	if s.ObservedAt.IsZero() {
		s.ObservedAt = time.Now()
	}

	if err := r.store.GeoAdd(ctx, BucketKey(s.ObservedAt), s.UserID, s.Point, r.bucketTTL); err != nil {
		return fmt.Errorf("record location: %w", err)
	}
	if err := r.presence.MarkSeen(ctx, s.UserID, s.ObservedAt); err != nil {
		return fmt.Errorf("mark presence: %w", err)
	}
	return nil
}
