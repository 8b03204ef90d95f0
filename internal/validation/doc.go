// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

// Package validation wraps go-playground/validator v10 with a shared,
// lazily built validator instance and drivecast's custom tags.
//
// Custom tags:
//   - notblank: string must contain a non-whitespace character
//   - kst_timestamp: string must match yyyy-MM-ddTHH:mm:ss
//
// Field names in errors use the struct's json tag so messages match the wire
// names clients send.
package validation
