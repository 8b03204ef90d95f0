// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/drivecast/config.yaml",
	"/etc/drivecast/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Node: NodeConfig{
			ID: "", // Derived from the pod environment
		},
		Store: StoreConfig{
			Backend:                 "memory",
			BreakerEnabled:          true,
			BreakerFailureThreshold: 5,
			BreakerTimeout:          10 * time.Second,
		},
		Redis: RedisConfig{
			Addr:         "127.0.0.1:6379",
			DB:           0,
			PoolSize:     0, // go-redis default: 10 per CPU
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Badger: BadgerConfig{
			Path:     "/data/drivecast",
			InMemory: false,
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			Host:           "127.0.0.1",
			Port:           4222,
			JetStream:      false,
			StoreDir:       "/data/nats",
			MaxMemory:      256 << 20, // 256MB
			MaxStore:       1 << 30,   // 1GB
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
		},
		Ingest: IngestConfig{
			Enabled:          true,
			AlertsTopic:      "drivecast.alerts",
			LocationsTopic:   "drivecast.locations",
			QueueGroup:       "drivecast",
			SubscribersCount: 1,
			JetStream:        false,
			DurableName:      "drivecast",
			AckWait:          30 * time.Second,
			CloseTimeout:     30 * time.Second,
		},
		Alerts: AlertsConfig{
			DedupTTL:       5 * time.Minute,
			SnapshotTTL:    time.Hour,
			RepeatRounds:   18,
			RepeatInterval: 10 * time.Second,
			BucketTTL:      60 * time.Second,
			Lookback:       0, // Per-kind policy
		},
		Relay: RelayConfig{
			BusBackend:        "nats",
			OwnershipTTL:      5 * time.Minute,
			HeartbeatInterval: 30 * time.Second,
			PresenceThreshold: 5 * time.Minute,
			KickReason:        "Your account was connected from another device.",
		},
		Security: SecurityConfig{
			AuthMode:          "jwt",
			JWTSecret:         "",
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Traits: TraitsConfig{
			Enabled:                 false,
			BaseURL:                 "",
			Timeout:                 2 * time.Second,
			HotTTL:                  20 * time.Second,
			WarmTTL:                 24 * time.Hour,
			WarmInterval:            24 * time.Hour,
			BroadcastInterval:       time.Second,
			BreakerFailureThreshold: 5,
			BreakerTimeout:          30 * time.Second,
		},
		WebSocket: WebSocketConfig{
			SendBuffer:   256,
			InboundRate:  5,
			InboundBurst: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Built-in defaults
//  2. Optional config file (CONFIG_PATH or a default path)
//  3. Environment variables (highest priority)
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":               "server.port",
	"http_host":               "server.host",
	"http_read_timeout":       "server.read_timeout",
	"http_write_timeout":      "server.write_timeout",
	"http_idle_timeout":       "server.idle_timeout",
	"http_shutdown_timeout":   "server.shutdown_timeout",
	"environment":             "server.environment",
	"drivecast_node_id":       "node.id",
	"store_backend":           "store.backend",
	"store_breaker_enabled":   "store.breaker_enabled",
	"store_breaker_threshold": "store.breaker_failure_threshold",
	"store_breaker_timeout":   "store.breaker_timeout",

	// Redis / Valkey
	"redis_addr":          "redis.addr",
	"redis_username":      "redis.username",
	"redis_password":      "redis.password",
	"redis_db":            "redis.db",
	"redis_pool_size":     "redis.pool_size",
	"redis_dial_timeout":  "redis.dial_timeout",
	"redis_read_timeout":  "redis.read_timeout",
	"redis_write_timeout": "redis.write_timeout",

	// Badger
	"badger_path":      "badger.path",
	"badger_in_memory": "badger.in_memory",

	// NATS
	"nats_url":            "nats.url",
	"nats_embedded":       "nats.embedded_server",
	"nats_host":           "nats.host",
	"nats_port":           "nats.port",
	"nats_jetstream":      "nats.jetstream",
	"nats_store_dir":      "nats.store_dir",
	"nats_max_memory":     "nats.max_memory",
	"nats_max_store":      "nats.max_store",
	"nats_max_reconnects": "nats.max_reconnects",
	"nats_reconnect_wait": "nats.reconnect_wait",

	// Ingestion
	"ingest_enabled":           "ingest.enabled",
	"ingest_alerts_topic":      "ingest.alerts_topic",
	"ingest_locations_topic":   "ingest.locations_topic",
	"ingest_queue_group":       "ingest.queue_group",
	"ingest_subscribers_count": "ingest.subscribers_count",
	"ingest_jetstream":         "ingest.jetstream",
	"ingest_durable_name":      "ingest.durable_name",
	"ingest_ack_wait":          "ingest.ack_wait",
	"ingest_close_timeout":     "ingest.close_timeout",

	// Alerts
	"alert_dedup_ttl":       "alerts.dedup_ttl",
	"alert_snapshot_ttl":    "alerts.snapshot_ttl",
	"alert_repeat_rounds":   "alerts.repeat_rounds",
	"alert_repeat_interval": "alerts.repeat_interval",
	"alert_bucket_ttl":      "alerts.bucket_ttl",
	"alert_lookback":        "alerts.lookback",

	// Relay
	"relay_bus_backend":        "relay.bus_backend",
	"relay_ownership_ttl":      "relay.ownership_ttl",
	"relay_heartbeat_interval": "relay.heartbeat_interval",
	"relay_presence_threshold": "relay.presence_threshold",
	"relay_kick_reason":        "relay.kick_reason",

	// Security
	"auth_mode":           "security.auth_mode",
	"jwt_secret":          "security.jwt_secret",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	// Traits and neighbor broadcast
	"traits_enabled":             "traits.enabled",
	"traits_base_url":            "traits.base_url",
	"traits_timeout":             "traits.timeout",
	"traits_hot_ttl":             "traits.hot_ttl",
	"traits_warm_ttl":            "traits.warm_ttl",
	"traits_warm_interval":       "traits.warm_interval",
	"driving_broadcast_interval": "traits.broadcast_interval",
	"traits_breaker_threshold":   "traits.breaker_failure_threshold",
	"traits_breaker_timeout":     "traits.breaker_timeout",

	// WebSocket
	"ws_send_buffer":   "websocket.send_buffer",
	"ws_inbound_rate":  "websocket.inbound_rate",
	"ws_inbound_burst": "websocket.inbound_burst",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - REDIS_ADDR -> redis.addr
//   - AUTH_MODE -> security.auth_mode
//
// Unmapped variables are skipped so unrelated environment does not leak
// into the configuration.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
