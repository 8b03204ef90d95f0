// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

/*
Package store is the coordination store behind presence, dedup claims,
connection ownership and the per-second location buckets.

Every cross-node guarantee drivecast makes reduces to one of the atomic
primitives on Store: set-if-absent (dedup claims), compare-and-delete and
compare-and-expire (ownership), and geo add/radius over a bucket.

# Backends

  - Redis: the production backend shared by every node (go-redis v9).
    Compare-and-* operations run as Lua scripts.
  - Badger: a durable single-node backend. Claims rely on Badger's
    serializable transactions; radius queries scan the bucket prefix.
  - Memory: process-local maps plus a spatial hash grid per bucket. Used by
    tests and the single-binary development mode.

Breaker wraps any backend in a gobreaker circuit breaker so an unreachable
store fails fast instead of stalling every alert. Callers treat all errors as
"degrade to the safe default".

Missing keys are never errors: Get and GeoPosition return ok=false.
*/
package store
