// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

// Package presence records when each user last reported a location and
// answers whether that report is fresh relative to a reference time.
//
// Records live under lastseen:{userId} as epoch milliseconds with no TTL;
// every location update overwrites the previous value. Store failures
// degrade to "absent", so an unreachable store makes users look stale
// rather than failing alert delivery.
package presence
