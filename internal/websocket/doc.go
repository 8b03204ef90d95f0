// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

/*
Package websocket is the client transport for drivecast.

Clients open a WebSocket on /ws with a bearer token (or, in development,
a userId query parameter). After the handshake the connection is bound to
the user through relay.Connect, which also takes fleet ownership and kicks
any previous owner. From then on every message addressed to the user by the
dispatcher or the driving broadcaster arrives as a frame:

	{"destination": "/queue/incident", "body": {...}}

Destinations in use are /queue/incident, /queue/driving and /queue/system.

Key Components:

  - Hub: tracks live clients, keeps the connection gauge current and closes
    every client on shutdown
  - Client: one connection with a read goroutine and a write goroutine; it
    implements relay.Session
  - Handler: authenticates the upgrade request and starts the client

Each client has two goroutines:
  - readPump: reads inbound frames, answers {"type":"ping"} with a pong on
    /queue/system and enforces an inbound rate limit
  - writePump: drains the send buffer and keeps the connection alive with
    protocol pings

Send never blocks. A full send buffer drops the frame and counts a
websocket error.
*/
package websocket
