// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

// Package geo holds the coordinate type and great-circle math shared by the
// alert model, the coordination store backends and the vicinity detector.
package geo
