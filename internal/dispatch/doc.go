// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

// Package dispatch turns validated alert events into user notifications.
//
// Dispatcher.Handle is the single entry point. For spatial kinds it:
//
//  1. resolves the alert identity
//  2. stores an accident snapshot (ACCIDENT only)
//  3. runs the initial round synchronously: the originator first when the
//     kind notifies them, then every fresh user found near the event at the
//     event's own timestamp
//  4. starts the repeat task, whose rounds rescan at the current time and
//     always exclude the originator
//
// Every spatial delivery is gated by a ledger claim on (identity, user), so
// a user is notified at most once per alert no matter how many rounds or
// nodes find them. The claim TTL is raised to outlive the repeat schedule,
// and a round makes no new claims once the first claims are close to
// expiring. DRIVE_START and DRIVE_END go to the originator only and
// are not deduplicated.
package dispatch
