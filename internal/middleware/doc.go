// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

/*
Package middleware provides HTTP middleware shared by the router.

  - RequestID: reuses or generates X-Request-ID and installs it as the
    logging correlation id
  - PrometheusMetrics: request count, latency and in-flight gauge, labelled
    by chi route pattern

Both are plain func(http.Handler) http.Handler and can be passed to chi's
Use. The metrics writer forwards Hijack so websocket upgrades pass through
it; a hijacked request is recorded with status 101.
*/
package middleware
