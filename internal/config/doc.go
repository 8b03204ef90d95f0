// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

/*
Package config provides centralized configuration management for drivecast.

Configuration is layered with Koanf v2:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: CONFIG_PATH, then config.yaml, config.yml,
    /etc/drivecast/config.yaml and /etc/drivecast/config.yml
 3. Environment variables, which always win

Only environment variables listed in the mapping table are read, so
unrelated variables in a container never leak into the configuration.
Comma-separated values are split for list settings such as CORS_ORIGINS.

# Environment Variables

Server and node:
  - HTTP_HOST, HTTP_PORT: listen address (default: 0.0.0.0:8080)
  - HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT, HTTP_IDLE_TIMEOUT, HTTP_SHUTDOWN_TIMEOUT
  - ENVIRONMENT: development, staging or production
  - DRIVECAST_NODE_ID: node id override (default: POD_UID, POD_NAME or HOSTNAME)

Coordination store:
  - STORE_BACKEND: memory, redis or badger (default: memory)
  - STORE_BREAKER_ENABLED, STORE_BREAKER_THRESHOLD, STORE_BREAKER_TIMEOUT
  - REDIS_ADDR, REDIS_USERNAME, REDIS_PASSWORD, REDIS_DB, REDIS_POOL_SIZE
  - BADGER_PATH, BADGER_IN_MEMORY

Fleet relay and broker:
  - RELAY_BUS_BACKEND: nats or redis (default: nats)
  - RELAY_OWNERSHIP_TTL (default: 5m), RELAY_HEARTBEAT_INTERVAL (default: 30s)
  - RELAY_PRESENCE_THRESHOLD (default: 5m), RELAY_KICK_REASON
  - NATS_URL, NATS_EMBEDDED, NATS_HOST, NATS_PORT, NATS_JETSTREAM, NATS_STORE_DIR

Alert pipeline:
  - INGEST_ENABLED, INGEST_ALERTS_TOPIC, INGEST_LOCATIONS_TOPIC, INGEST_QUEUE_GROUP
  - ALERT_DEDUP_TTL (default: 5m, raised to cover the repeat schedule), ALERT_SNAPSHOT_TTL (default: 1h)
  - ALERT_REPEAT_ROUNDS (default: 18), ALERT_REPEAT_INTERVAL (default: 10s)
  - ALERT_BUCKET_TTL (default: 60s), ALERT_LOOKBACK (default: per alert kind)

Driving neighbors:
  - TRAITS_ENABLED, TRAITS_BASE_URL, TRAITS_TIMEOUT
  - TRAITS_HOT_TTL (default: 20s), TRAITS_WARM_TTL (default: 24h)
  - DRIVING_BROADCAST_INTERVAL (default: 1s)

Security:
  - AUTH_MODE: jwt or none (default: jwt)
  - JWT_SECRET: HS256 secret, at least 32 characters
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT
  - CORS_ORIGINS: comma-separated origins (default: *)

WebSocket and logging:
  - WS_SEND_BUFFER, WS_INBOUND_RATE, WS_INBOUND_BURST
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Example

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	srv := &http.Server{Addr: cfg.Server.Addr()}

The Config struct is not modified after Load returns and is safe to share
between goroutines.
*/
package config
