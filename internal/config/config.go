// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package config

import (
	"time"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for every setting
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any mapped setting
//
// Configuration Categories:
//
//  1. Coordination:
//     - Store: memory, redis or badger backend for dedup, ownership and geo buckets
//     - Redis / Badger: backend connection settings
//     - Relay: fleet bus backend, ownership TTL and heartbeat
//     - NATS: broker URL or embedded server
//
//  2. Alert pipeline:
//     - Ingest: Watermill topics and subscriber settings
//     - Alerts: dedup and snapshot TTLs, repeat schedule, vicinity window
//     - Traits: driving analysis service and neighbor broadcast
//
//  3. Client surface:
//     - Server: HTTP listener and timeouts
//     - WebSocket: per-client buffers and limits
//     - Security: handshake authentication, rate limiting and CORS
//
//  4. Observability:
//     - Logging: Log levels and output formats
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Node      NodeConfig      `koanf:"node"`
	Store     StoreConfig     `koanf:"store"`
	Redis     RedisConfig     `koanf:"redis"`
	Badger    BadgerConfig    `koanf:"badger"`
	NATS      NATSConfig      `koanf:"nats"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Alerts    AlertsConfig    `koanf:"alerts"`
	Relay     RelayConfig     `koanf:"relay"`
	Security  SecurityConfig  `koanf:"security"`
	Traits    TraitsConfig    `koanf:"traits"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // "development", "staging", "production"
}

// NodeConfig identifies this instance in the fleet.
type NodeConfig struct {
	// ID overrides the node id. When empty it is taken from POD_UID,
	// POD_NAME or HOSTNAME, falling back to a random "local-" id.
	ID string `koanf:"id"`
}

// StoreConfig selects the coordination store.
type StoreConfig struct {
	// Backend is "memory" (single process), "redis" (fleet) or "badger"
	// (single node, survives restarts).
	Backend string `koanf:"backend"`

	// BreakerEnabled wraps the store in a circuit breaker.
	BreakerEnabled          bool          `koanf:"breaker_enabled"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
}

// RedisConfig holds Redis or Valkey connection settings.
type RedisConfig struct {
	Addr         string        `koanf:"addr"`
	Username     string        `koanf:"username"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// BadgerConfig holds the embedded BadgerDB settings.
type BadgerConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// NATSConfig holds broker settings shared by the fleet bus and ingestion.
type NATSConfig struct {
	// URL is the NATS server connection URL.
	URL string `koanf:"url"`

	// EmbeddedServer runs a NATS server in-process. URL is then ignored
	// and clients connect to the embedded server.
	EmbeddedServer bool   `koanf:"embedded_server"`
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`

	// JetStream enables persistence on the embedded server.
	JetStream bool   `koanf:"jetstream"`
	StoreDir  string `koanf:"store_dir"`
	MaxMemory int64  `koanf:"max_memory"`
	MaxStore  int64  `koanf:"max_store"`

	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// IngestConfig holds the Watermill consumer settings.
type IngestConfig struct {
	Enabled          bool          `koanf:"enabled"`
	AlertsTopic      string        `koanf:"alerts_topic"`
	LocationsTopic   string        `koanf:"locations_topic"`
	QueueGroup       string        `koanf:"queue_group"`
	SubscribersCount int           `koanf:"subscribers_count"`
	JetStream        bool          `koanf:"jetstream"`
	DurableName      string        `koanf:"durable_name"`
	AckWait          time.Duration `koanf:"ack_wait"`
	CloseTimeout     time.Duration `koanf:"close_timeout"`
}

// AlertsConfig tunes alert handling.
type AlertsConfig struct {
	DedupTTL       time.Duration `koanf:"dedup_ttl"`
	SnapshotTTL    time.Duration `koanf:"snapshot_ttl"`
	RepeatRounds   int           `koanf:"repeat_rounds"`
	RepeatInterval time.Duration `koanf:"repeat_interval"`
	BucketTTL      time.Duration `koanf:"bucket_ttl"`
	// Lookback overrides the per-kind bucket window when positive.
	Lookback int `koanf:"lookback"`
}

// RelayConfig tunes fleet routing.
type RelayConfig struct {
	// BusBackend is "nats" or "redis".
	BusBackend        string        `koanf:"bus_backend"`
	OwnershipTTL      time.Duration `koanf:"ownership_ttl"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	PresenceThreshold time.Duration `koanf:"presence_threshold"`
	KickReason        string        `koanf:"kick_reason"`
}

// SecurityConfig holds handshake authentication and HTTP protection.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"` // "jwt" or "none"
	JWTSecret         string        `koanf:"jwt_secret"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// TraitsConfig holds the driving analysis service and neighbor broadcast
// settings.
type TraitsConfig struct {
	Enabled                 bool          `koanf:"enabled"`
	BaseURL                 string        `koanf:"base_url"`
	Timeout                 time.Duration `koanf:"timeout"`
	HotTTL                  time.Duration `koanf:"hot_ttl"`
	WarmTTL                 time.Duration `koanf:"warm_ttl"`
	WarmInterval            time.Duration `koanf:"warm_interval"`
	BroadcastInterval       time.Duration `koanf:"broadcast_interval"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
}

// WebSocketConfig holds per-client transport limits.
type WebSocketConfig struct {
	SendBuffer   int     `koanf:"send_buffer"`
	InboundRate  float64 `koanf:"inbound_rate"`
	InboundBurst int     `koanf:"inbound_burst"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Default: false
	Caller bool `koanf:"caller"`
}

// Load reads configuration from defaults, the config file and the
// environment, and validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}
