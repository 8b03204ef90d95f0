// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

/*
Package vicinity finds connected users near a point at a reference time.

Location samples are written into one geo bucket per second, keyed
location:yyyyMMddHHmmss in Korean time. Writes lag: a sample observed at
second S may land in bucket S+1, or arrive a moment after the alert. The
Detector compensates in two ways:

  - it scans a window of buckets, ref+1s first and then ref, ref-1s, and so
    on back through the lookback;
  - when the scan finds nobody it waits and retries, up to the policy's
    attempt budget.

Each candidate must also pass a presence freshness check so users who left
the area (or disconnected) minutes ago are not alerted.

An empty result after all retries is a normal outcome, not an error.
*/
package vicinity
