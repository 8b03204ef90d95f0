// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

// Package relay routes messages for a user to the node holding that user's
// live connection and enforces one active session per user across the fleet.
//
// # Components
//
//   - Registry: the node-local, bidirectional user id to session map
//   - Ownership: the fleet-wide "which node owns this user" record kept in the
//     coordination store under ws:global:connection:{userId}
//   - Relay: local delivery plus a broadcast Envelope on the relay channel so
//     whichever node owns the session can deliver it
//   - Heartbeat: periodic ownership refresh for recently seen local users
//
// # Takeover
//
// When a user connects to a node while another node owns them, the new node
// publishes a Kick addressed to the previous owner before writing itself as
// owner. The previous owner sends a CONNECTION_REPLACED notice on
// /queue/system and stops routing to its session. The socket itself is left
// for the client to close.
//
// # Self filtering
//
// Every node receives its own envelopes and kicks. They are discarded by
// comparing SourceNodeID with the local node id.
package relay
