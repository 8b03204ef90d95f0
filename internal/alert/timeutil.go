// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package alert

import (
	"fmt"
	"time"

	"github.com/tomtom215/drivecast/internal/validation"
)

// TimestampLayout is the wire layout of event timestamps.
const TimestampLayout = "2006-01-02T15:04:05"

// KST is Korean Standard Time. Korea observes no daylight saving, so a fixed
// zone avoids depending on the host's tz database.
var KST = time.FixedZone("KST", 9*60*60)

// ParseTimestamp parses a yyyy-MM-ddTHH:mm:ss string as Korean local time.
func ParseTimestamp(s string) (time.Time, error) {
	if !validation.ValidTimestamp(s) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	t, err := time.ParseInLocation(TimestampLayout, s, KST)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}
	return t, nil
}

// FormatTimestamp renders t in Korean local time using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.In(KST).Format(TimestampLayout)
}
