// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

// Package ingest consumes alert events and location samples from the message
// broker and feeds them into the dispatcher and the location recorder.
//
// Messages are consumed through a Watermill router. In production the
// subscriber is watermill-nats (core NATS with a queue group, or JetStream
// when enabled), so each message is handled by exactly one node. Tests use
// watermill's in-process gochannel.
//
// Topics and bodies:
//
//	drivecast.alerts     {"type":"accident","accidentId":"a-1","userId":"7",
//	                      "latitude":37.5,"longitude":126.9,
//	                      "timestamp":"2026-08-01T17:03:00"}
//	drivecast.locations  {"userId":"7","latitude":37.5,"longitude":126.9,
//	                      "timestamp":"2026-08-01T17:03:00"}
//
// Malformed bodies are logged, counted and acknowledged. Redelivery would not
// make them valid.
package ingest
