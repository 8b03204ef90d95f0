// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package store

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/drivecast/internal/geo"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Store is the shared key/value and geo index used for cross-node
// coordination. A ttl of zero means the key does not expire.
type Store interface {
	// SetIfAbsent stores value only if key does not exist. It reports
	// whether this call created the key.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeleteIfEquals deletes key only while it holds value.
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
	// ExpireIfEquals resets key's TTL only while it holds value.
	ExpireIfEquals(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// GeoAdd places member at p inside bucket and sets the bucket TTL.
	GeoAdd(ctx context.Context, bucket, member string, p geo.Point, ttl time.Duration) error
	// GeoRadius returns the members of bucket within radiusMeters of center.
	GeoRadius(ctx context.Context, bucket string, center geo.Point, radiusMeters float64) ([]string, error)
	GeoPosition(ctx context.Context, bucket, member string) (geo.Point, bool, error)

	Close() error
}
