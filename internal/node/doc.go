// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

// Package node resolves this process's identity within the fleet. The id
// names the connection owner in the store and the source of relay traffic.
package node
