// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package vicinity

import (
	"time"

	"github.com/tomtom215/drivecast/internal/alert"
)

// BucketPrefix prefixes every location bucket key.
const BucketPrefix = "location:"

const bucketLayout = "20060102150405"

// BucketKey returns the bucket holding samples observed during t's second.
func BucketKey(t time.Time) string {
	return BucketPrefix + t.In(alert.KST).Format(bucketLayout)
}

// WindowKeys returns the buckets to scan for ref: ref+1s, then ref-i for i
// in [0, lookback). lookback <= 0 selects alert.DefaultLookback.
func WindowKeys(ref time.Time, lookback int) []string {
	if lookback <= 0 {
		lookback = alert.DefaultLookback
	}
	keys := make([]string, 0, lookback+1)
	keys = append(keys, BucketKey(ref.Add(time.Second)))
	for i := 0; i < lookback; i++ {
		keys = append(keys, BucketKey(ref.Add(-time.Duration(i)*time.Second)))
	}
	return keys
}
