// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

/*
Package metrics provides Prometheus instrumentation for drivecast.

All collectors are package-level variables registered with the default
registry through promauto, so any package can record without wiring. The
Record* helpers keep label values consistent across call sites.

# Metrics Endpoint

Metrics are exposed at /metrics in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

Alert pipeline:
  - drivecast_alerts_handled_total{kind,result}
  - drivecast_notifications_sent_total{kind,type}
  - drivecast_dedup_claims_total{result}: won, lost, error
  - drivecast_repeat_tasks_active
  - drivecast_repeat_rounds_total{kind}

Vicinity:
  - drivecast_vicinity_searches_total{result}: found, empty
  - drivecast_vicinity_attempts (histogram)
  - drivecast_vicinity_search_duration_seconds (histogram)

Relay:
  - drivecast_relay_envelopes_total{action}: published, delivered, dropped
  - drivecast_kicks_total{direction}: sent, received
  - drivecast_local_sessions
  - websocket_connections_active, websocket_messages_sent_total,
    websocket_messages_received_total, websocket_errors_total{error_type}

Infrastructure:
  - drivecast_store_errors_total{op}
  - circuit_breaker_state{name}, circuit_breaker_requests_total{name,result},
    circuit_breaker_consecutive_failures{name},
    circuit_breaker_state_transitions_total{name,from_state,to_state}
  - drivecast_ingest_messages_total{topic,result}
  - api_requests_total, api_request_duration_seconds, api_active_requests
  - drivecast_driving_broadcasts_total, drivecast_trait_lookups_total{source,result}

# Example Queries

	# Notification rate by kind
	sum by (kind) (rate(drivecast_notifications_sent_total[1m]))

	# Share of vicinity searches that came back empty
	rate(drivecast_vicinity_searches_total{result="empty"}[5m])
	  / rate(drivecast_vicinity_searches_total[5m])

	# Alert when the store breaker opens
	circuit_breaker_state{name="store"} == 2
*/
package metrics
