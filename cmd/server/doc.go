// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

/*
Package main is the entry point for a drivecast node.

A node accepts websocket connections from drivers, consumes accident and
hazard alerts plus location samples from NATS, finds the users near each
alert and pushes the alert to them wherever in the fleet they are
connected.

# Application Architecture

	drivecast
	├── coordination-layer
	│   ├── ownership-heartbeat
	│   ├── trait-cache-warmer   (TRAITS_ENABLED=true)
	│   └── nats-watchdog        (NATS_EMBEDDED=true)
	├── messaging-layer
	│   ├── relay-listener
	│   ├── websocket-hub
	│   ├── repeat-scheduler
	│   ├── ingest-consumer      (INGEST_ENABLED=true)
	│   └── driving-broadcaster  (TRAITS_ENABLED=true)
	└── api-layer
	    └── http-server          (GET /ws, GET /metrics)

Initialization order:

 1. Configuration: koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog, JSON or console
 3. Node id: DRIVECAST_NODE_ID, POD_UID, POD_NAME, HOSTNAME, random
 4. Store: memory, Redis or BadgerDB, optionally behind a circuit breaker
 5. Messaging: embedded or external NATS, or Redis pub/sub for the relay
 6. Core: relay, presence, vicinity, ledger, scheduler, dispatcher
 7. HTTP: chi router with CORS, rate limiting and websocket auth
 8. Supervisor tree: suture v4

# Configuration

	HTTP_PORT=8080
	AUTH_MODE=jwt                 # jwt or none (none is rejected in production)
	JWT_SECRET=<32+ chars>
	STORE_BACKEND=redis           # memory, redis, badger
	REDIS_ADDR=redis:6379
	RELAY_BUS_BACKEND=nats        # nats or redis
	NATS_EMBEDDED=false
	NATS_URL=nats://nats:4222
	TRAITS_ENABLED=true
	TRAITS_BASE_URL=http://traits:8000

See internal/config for the full list.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor stops every
service (the HTTP server drains within HTTP_SHUTDOWN_TIMEOUT), then the
bus is closed and the embedded NATS server, if any, is shut down last.
*/
package main
