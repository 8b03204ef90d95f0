// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Alert pipeline
	AlertsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivecast_alerts_handled_total",
			Help: "Total number of alert events handled by the dispatcher",
		},
		[]string{"kind", "result"}, // result: "ok", "rejected", "error"
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivecast_notifications_sent_total",
			Help: "Total number of notifications handed to the relay",
		},
		[]string{"kind", "type"},
	)

	DedupClaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivecast_dedup_claims_total",
			Help: "Dedup ledger claim outcomes",
		},
		[]string{"result"}, // "won", "lost", "error"
	)

	RepeatTasksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drivecast_repeat_tasks_active",
			Help: "Number of alerts currently in their repeat window",
		},
	)

	RepeatRounds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivecast_repeat_rounds_total",
			Help: "Total number of repeat rounds executed",
		},
		[]string{"kind"},
	)

	// Vicinity
	VicinitySearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivecast_vicinity_searches_total",
			Help: "Total number of vicinity searches",
		},
		[]string{"result"}, // "found", "empty"
	)

	VicinityAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "drivecast_vicinity_attempts",
			Help:    "Scan attempts used per vicinity search",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	VicinityDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "drivecast_vicinity_search_duration_seconds",
			Help:    "Vicinity search latency including retry waits",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// Relay
	RelayEnvelopes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivecast_relay_envelopes_total",
			Help: "Relay envelope activity",
		},
		[]string{"action"}, // "published", "delivered", "dropped"
	)

	Kicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivecast_kicks_total",
			Help: "Session kick signals",
		},
		[]string{"direction"}, // "sent", "received", "stale"
	)

	LocalSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drivecast_local_sessions",
			Help: "Users with a live session on this node",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Store
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivecast_store_errors_total",
			Help: "Coordination store operation failures",
		},
		[]string{"op"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Ingestion
	IngestMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivecast_ingest_messages_total",
			Help: "Messages consumed from the ingestion topics",
		},
		[]string{"topic", "result"}, // result: "ok", "invalid", "error"
	)

	// Driving
	DrivingBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drivecast_driving_broadcasts_total",
			Help: "Driving neighbor frames sent",
		},
	)

	TraitLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivecast_trait_lookups_total",
			Help: "Trait lookups by source and outcome",
		},
		[]string{"source", "result"}, // source: "hot", "warm", "remote"
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Application Info
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version", "node_id"},
	)
)

// RecordAlertHandled counts one dispatcher invocation.
func RecordAlertHandled(kind, result string) {
	AlertsHandled.WithLabelValues(kind, result).Inc()
}

// RecordNotification counts one notification handed to the relay.
func RecordNotification(kind, msgType string) {
	NotificationsSent.WithLabelValues(kind, msgType).Inc()
}

// RecordDedupClaim records a ledger claim outcome.
func RecordDedupClaim(won bool, err error) {
	switch {
	case err != nil:
		DedupClaims.WithLabelValues("error").Inc()
	case won:
		DedupClaims.WithLabelValues("won").Inc()
	default:
		DedupClaims.WithLabelValues("lost").Inc()
	}
}

// RecordVicinitySearch records a finished vicinity search.
func RecordVicinitySearch(found int, attempts int, duration time.Duration) {
	result := "found"
	if found == 0 {
		result = "empty"
	}
	VicinitySearches.WithLabelValues(result).Inc()
	VicinityAttempts.Observe(float64(attempts))
	VicinityDuration.Observe(duration.Seconds())
}

// RecordRelay records relay envelope activity.
func RecordRelay(action string) {
	RelayEnvelopes.WithLabelValues(action).Inc()
}

// RecordKick records a kick signal sent or received.
func RecordKick(direction string) {
	Kicks.WithLabelValues(direction).Inc()
}

// RecordStoreError records a coordination store failure.
func RecordStoreError(op string) {
	StoreErrors.WithLabelValues(op).Inc()
}

// RecordIngest records a consumed ingestion message.
func RecordIngest(topic, result string) {
	IngestMessages.WithLabelValues(topic, result).Inc()
}

// RecordTraitLookup records a trait lookup.
func RecordTraitLookup(source string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	TraitLookups.WithLabelValues(source, result).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
