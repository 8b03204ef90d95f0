// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

// Package ledger gates notification delivery so each (alert, recipient)
// pair is sent at most once within the dedup window, across every node.
//
// A claim is a single set-if-absent of alert:{alertId}:{userId}. Whoever
// creates the key sends; everyone else skips. The ledger also keeps the
// accident snapshot (accident:{alertId}) for later retrieval.
package ledger
