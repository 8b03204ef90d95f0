// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package alert

import (
	"slices"
	"time"
)

// Policy holds the delivery parameters for one kind.
type Policy struct {
	// RadiusMeters bounds the vicinity scan.
	RadiusMeters float64
	// NotifyOriginator sends the originator a message directly, ahead of
	// the scan.
	NotifyOriginator bool
	// ExcludeOriginator drops the originator from scan results.
	ExcludeOriginator bool
	// Freshness is the allowed skew between a candidate's last-seen time and
	// the reference time.
	Freshness time.Duration
	// MaxRetries is the total number of scan attempts.
	MaxRetries int
	// Backoff is the wait before each retry.
	Backoff []time.Duration
	// Lookback is the number of past one-second buckets scanned.
	Lookback int
	// Repeat enables the repeat notification task.
	Repeat bool
}

// DefaultLookback is the number of past seconds scanned when a policy does
// not set one.
const DefaultLookback = 5

var incidentBackoff = []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 500 * time.Millisecond}

var policies = map[Kind]Policy{
	KindAccident: {
		RadiusMeters:      300,
		NotifyOriginator:  true,
		ExcludeOriginator: true,
		Freshness:         30 * time.Second,
		MaxRetries:        3,
		Backoff:           incidentBackoff,
		Lookback:          DefaultLookback,
		Repeat:            true,
	},
	KindObstacle: {
		RadiusMeters:      100,
		ExcludeOriginator: true,
		Freshness:         30 * time.Second,
		MaxRetries:        3,
		Backoff:           incidentBackoff,
		Lookback:          DefaultLookback,
		Repeat:            true,
	},
	KindPothole: {
		RadiusMeters:      100,
		ExcludeOriginator: true,
		Freshness:         30 * time.Second,
		MaxRetries:        3,
		Backoff:           incidentBackoff,
		Lookback:          DefaultLookback,
		Repeat:            true,
	},
	KindDriveStart: {NotifyOriginator: true},
	KindDriveEnd:   {NotifyOriginator: true},
}

// PolicyFor returns the policy for k. The Backoff slice is a copy.
func PolicyFor(k Kind) (Policy, bool) {
	p, ok := policies[k]
	if !ok {
		return Policy{}, false
	}
	p.Backoff = slices.Clone(p.Backoff)
	return p, true
}
