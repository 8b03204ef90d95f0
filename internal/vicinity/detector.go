// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package vicinity

import (
	"context"
	"sort"
	"time"

	"github.com/tomtom215/drivecast/internal/alert"
	"github.com/tomtom215/drivecast/internal/geo"
	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/metrics"
	"github.com/tomtom215/drivecast/internal/store"
)

// FreshnessChecker reports whether a user was seen close to a reference time.
type FreshnessChecker interface {
	IsFresh(ctx context.Context, userID string, ref time.Time, skew time.Duration) bool
}

// Query describes one vicinity search.
type Query struct {
	Center        geo.Point
	RadiusMeters  float64
	RefTime       time.Time
	Freshness     time.Duration
	ExcludeUserID string
	Lookback      int
	MaxRetries    int
	Backoff       []time.Duration
}

// QueryFor builds a query from a kind's policy.
func QueryFor(p alert.Policy, center geo.Point, ref time.Time, exclude string) Query {
	return Query{
		Center:        center,
		RadiusMeters:  p.RadiusMeters,
		RefTime:       ref,
		Freshness:     p.Freshness,
		ExcludeUserID: exclude,
		Lookback:      p.Lookback,
		MaxRetries:    p.MaxRetries,
		Backoff:       p.Backoff,
	}
}

// Detector runs vicinity searches against the location buckets.
type Detector struct {
	store    store.Store
	presence FreshnessChecker
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewDetector creates a detector.
func NewDetector(s store.Store, presence FreshnessChecker) *Detector {
	return &Detector{store: s, presence: presence, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoffFor returns the wait before the given attempt (2-based). The last
// configured delay is reused when the list is shorter than the budget.
func backoffFor(backoff []time.Duration, attempt int) time.Duration {
	if len(backoff) == 0 {
		return 0
	}
	i := attempt - 2
	if i >= len(backoff) {
		i = len(backoff) - 1
	}
	return backoff[i]
}

// FindNearby returns the sorted ids of fresh users within the query radius.
// Cancellation of ctx ends the search with whatever the last attempt found,
// which is nothing.
func (d *Detector) FindNearby(ctx context.Context, q Query) []string {
	start := time.Now()
	maxAttempts := q.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		found    []string
		attempts int
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := d.sleep(ctx, backoffFor(q.Backoff, attempt)); err != nil {
				break
			}
		}
		attempts = attempt

		found = d.scan(ctx, q)
		if len(found) > 0 {
			break
		}
	}

	metrics.RecordVicinitySearch(len(found), attempts, time.Since(start))
	logging.Ctx(ctx).Debug().
		Str("center", q.Center.String()).
		Float64("radius_m", q.RadiusMeters).
		Int("attempts", attempts).
		Int("found", len(found)).
		Msg("Vicinity search complete")

	return found
}

// scan performs one pass over the window.
func (d *Detector) scan(ctx context.Context, q Query) []string {
	candidates := make(map[string]struct{})
	for _, key := range WindowKeys(q.RefTime, q.Lookback) {
		members, err := d.store.GeoRadius(ctx, key, q.Center, q.RadiusMeters)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("bucket", key).Msg("Bucket search failed, skipping")
			continue
		}
		for _, m := range members {
			candidates[m] = struct{}{}
		}
	}
	delete(candidates, q.ExcludeUserID)

	users := make([]string, 0, len(candidates))
	for id := range candidates {
		if d.presence.IsFresh(ctx, id, q.RefTime, q.Freshness) {
			users = append(users, id)
		}
	}
	sort.Strings(users)
	return users
}

// Locate returns userID's most recent position within the window around ref.
func (d *Detector) Locate(ctx context.Context, userID string, ref time.Time, lookback int) (geo.Point, bool) {
	for _, key := range WindowKeys(ref, lookback) {
		p, ok, err := d.store.GeoPosition(ctx, key, userID)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("bucket", key).Str("user_id", userID).Msg("Position lookup failed")
			continue
		}
		if ok {
			return p, true
		}
	}
	return geo.Point{}, false
}
