// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

// Package driving streams nearby-driver information to users who are on a
// drive.
//
// A DRIVE_START event marks the user active (driving:active:{userId}, one
// hour TTL) and DRIVE_END clears it. Once per second the Broadcaster walks
// the users connected to this node, and for each active one it locates the
// user, finds fresh drivers within 15 m and sends
//
//	{"type":"driving","payload":{"timestamp":...,"ego":{...},"neighbors":[...]}}
//
// to /queue/driving. Neighbors are decorated with their driving character
// (dolphin, lion, meerkat or cat) from the trait service. Neighbors without a
// character are left out, and a trait service outage degrades to an empty
// neighbor list rather than skipping the frame.
//
// Trait lookups go through three layers: an in-process hot cache (20s), a
// warm cache filled from the bulk endpoint once a day, and finally the
// per-user endpoint behind a circuit breaker.
package driving
