// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateStore,
		c.validateRelay,
		c.validateNATS,
		c.validateIngest,
		c.validateAlerts,
		c.validateSecurity,
		c.validateTraits,
		c.validateWebSocket,
	}

	for _, validator := range validators {
		if err := validator(); err != nil {
			return err
		}
	}

	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// validStoreBackends defines the allowed coordination store backends
var validStoreBackends = map[string]bool{
	"memory": true,
	"redis":  true,
	"badger": true,
}

// validateStore validates the coordination store and its backend settings
func (c *Config) validateStore() error {
	if !validStoreBackends[c.Store.Backend] {
		return fmt.Errorf("STORE_BACKEND must be one of: memory, redis, badger")
	}

	switch c.Store.Backend {
	case "redis":
		if err := c.validateRedis(); err != nil {
			return err
		}
	case "badger":
		if !c.Badger.InMemory && strings.TrimSpace(c.Badger.Path) == "" {
			return fmt.Errorf("BADGER_PATH is required when STORE_BACKEND=badger")
		}
	}

	if c.Store.BreakerEnabled {
		if c.Store.BreakerFailureThreshold < 1 {
			return fmt.Errorf("STORE_BREAKER_THRESHOLD must be at least 1")
		}
		if c.Store.BreakerTimeout <= 0 {
			return fmt.Errorf("STORE_BREAKER_TIMEOUT must be positive")
		}
	}
	return nil
}

// validateRedis validates the Redis connection settings
func (c *Config) validateRedis() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when Redis is used")
	}
	if err := validateHostPort(c.Redis.Addr, "REDIS_ADDR"); err != nil {
		return err
	}
	if c.Redis.DB < 0 || c.Redis.DB > 15 {
		return fmt.Errorf("REDIS_DB must be between 0 and 15")
	}
	if c.Redis.PoolSize < 0 {
		return fmt.Errorf("REDIS_POOL_SIZE must not be negative")
	}
	return nil
}

// validateRelay validates fleet routing settings
func (c *Config) validateRelay() error {
	switch c.Relay.BusBackend {
	case "nats":
	case "redis":
		if c.Store.Backend != "redis" {
			// The Redis bus shares the store's connection settings.
			if err := c.validateRedis(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("RELAY_BUS_BACKEND must be one of: nats, redis")
	}

	if c.Relay.OwnershipTTL <= 0 {
		return fmt.Errorf("RELAY_OWNERSHIP_TTL must be positive")
	}
	if c.Relay.HeartbeatInterval <= 0 {
		return fmt.Errorf("RELAY_HEARTBEAT_INTERVAL must be positive")
	}
	if c.Relay.HeartbeatInterval >= c.Relay.OwnershipTTL {
		return fmt.Errorf("RELAY_HEARTBEAT_INTERVAL must be shorter than RELAY_OWNERSHIP_TTL")
	}
	if c.Relay.PresenceThreshold <= 0 {
		return fmt.Errorf("RELAY_PRESENCE_THRESHOLD must be positive")
	}
	return nil
}

// NATS limit constants
const (
	natsMinMemory = 64 * 1024 * 1024  // 64MB
	natsMinStore  = 100 * 1024 * 1024 // 100MB
)

// validateNATS validates NATS settings when NATS is in use
func (c *Config) validateNATS() error {
	if !c.usesNATS() {
		return nil
	}

	if c.NATS.EmbeddedServer {
		if c.NATS.Port < 1 || c.NATS.Port > 65535 {
			return fmt.Errorf("NATS_PORT must be between 1 and 65535")
		}
		if c.NATS.JetStream {
			if c.NATS.MaxMemory < natsMinMemory {
				return fmt.Errorf("NATS_MAX_MEMORY must be at least 64MB (67108864 bytes)")
			}
			if c.NATS.MaxStore < natsMinStore {
				return fmt.Errorf("NATS_MAX_STORE must be at least 100MB (104857600 bytes)")
			}
		}
		return nil
	}

	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	return nil
}

func (c *Config) usesNATS() bool {
	return c.Relay.BusBackend == "nats" || c.Ingest.Enabled
}

const maxSubscribers = 32

// validateIngest validates the ingestion consumer (only if enabled)
func (c *Config) validateIngest() error {
	if !c.Ingest.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Ingest.AlertsTopic) == "" {
		return fmt.Errorf("INGEST_ALERTS_TOPIC is required when INGEST_ENABLED=true")
	}
	if strings.TrimSpace(c.Ingest.LocationsTopic) == "" {
		return fmt.Errorf("INGEST_LOCATIONS_TOPIC is required when INGEST_ENABLED=true")
	}
	if c.Ingest.AlertsTopic == c.Ingest.LocationsTopic {
		return fmt.Errorf("INGEST_ALERTS_TOPIC and INGEST_LOCATIONS_TOPIC must differ")
	}
	if c.Ingest.SubscribersCount < 1 || c.Ingest.SubscribersCount > maxSubscribers {
		return fmt.Errorf("INGEST_SUBSCRIBERS_COUNT must be between 1 and %d", maxSubscribers)
	}
	if c.Ingest.JetStream && c.Ingest.DurableName == "" {
		return fmt.Errorf("INGEST_DURABLE_NAME is required when INGEST_JETSTREAM=true")
	}
	return nil
}

// validateAlerts validates alert handling windows
func (c *Config) validateAlerts() error {
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"ALERT_DEDUP_TTL", c.Alerts.DedupTTL},
		{"ALERT_SNAPSHOT_TTL", c.Alerts.SnapshotTTL},
		{"ALERT_REPEAT_INTERVAL", c.Alerts.RepeatInterval},
		{"ALERT_BUCKET_TTL", c.Alerts.BucketTTL},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}

	if c.Alerts.RepeatRounds < 1 {
		return fmt.Errorf("ALERT_REPEAT_ROUNDS must be at least 1")
	}
	if c.Alerts.Lookback < 0 || c.Alerts.Lookback > 60 {
		return fmt.Errorf("ALERT_LOOKBACK must be between 0 and 60")
	}
	if c.Alerts.BucketTTL < time.Minute {
		return fmt.Errorf("ALERT_BUCKET_TTL must be at least 1m so a bucket outlives its minute")
	}
	return nil
}

// validateSecurity validates security configuration
func (c *Config) validateSecurity() error {
	if err := c.validateAuthMode(); err != nil {
		return err
	}
	if err := c.validateCORS(); err != nil {
		return err
	}
	if err := c.validateRateLimits(); err != nil {
		return err
	}
	if c.Security.AuthMode == "jwt" {
		return c.validateJWTSecret()
	}
	return nil
}

// validAuthModes defines the allowed handshake authentication modes
var validAuthModes = map[string]bool{
	"none": true,
	"jwt":  true,
}

func (c *Config) validateAuthMode() error {
	if !validAuthModes[c.Security.AuthMode] {
		return fmt.Errorf("AUTH_MODE must be one of: none, jwt")
	}
	if c.Security.AuthMode == "none" && c.IsProduction() {
		return fmt.Errorf("AUTH_MODE=none is not allowed when ENVIRONMENT=production. " +
			"Either set AUTH_MODE=jwt or use ENVIRONMENT=development for testing purposes")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// IsDevelopment returns true if the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "" || env == "development" || env == "dev"
}

// validateJWTSecret validates the JWT secret configuration
func (c *Config) validateJWTSecret() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when AUTH_MODE is jwt")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters for security")
	}
	if containsPlaceholder(c.Security.JWTSecret) {
		return fmt.Errorf("JWT_SECRET contains a placeholder value - generate a secure secret with: openssl rand -base64 32")
	}
	return nil
}

// validateCORS rejects wildcard origins in production with authentication
// enabled.
func (c *Config) validateCORS() error {
	if c.Security.AuthMode != "none" && c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production with authentication enabled. " +
			"Set specific origins: CORS_ORIGINS=https://app.example.com " +
			"or use ENVIRONMENT=development for testing purposes")
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if CORS configuration has security concerns
// that should be logged at startup
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.Security.AuthMode != "none" && c.hasWildcardCORS()
}

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// validateTraits validates the driving analysis client (only if enabled)
func (c *Config) validateTraits() error {
	if !c.Traits.Enabled {
		return nil
	}
	if c.Traits.BaseURL == "" {
		return fmt.Errorf("TRAITS_BASE_URL is required when TRAITS_ENABLED=true")
	}
	if err := validateHTTPURL(c.Traits.BaseURL, "TRAITS_BASE_URL"); err != nil {
		return fmt.Errorf("TRAITS_BASE_URL is invalid: %w", err)
	}
	if c.Traits.Timeout <= 0 {
		return fmt.Errorf("TRAITS_TIMEOUT must be positive")
	}
	if c.Traits.HotTTL <= 0 || c.Traits.WarmTTL <= 0 {
		return fmt.Errorf("TRAITS_HOT_TTL and TRAITS_WARM_TTL must be positive")
	}
	if c.Traits.WarmInterval <= 0 {
		return fmt.Errorf("TRAITS_WARM_INTERVAL must be positive")
	}
	if c.Traits.BroadcastInterval < 100*time.Millisecond {
		return fmt.Errorf("DRIVING_BROADCAST_INTERVAL must be at least 100ms")
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	if c.WebSocket.SendBuffer < 1 {
		return fmt.Errorf("WS_SEND_BUFFER must be at least 1")
	}
	if c.WebSocket.InboundRate <= 0 {
		return fmt.Errorf("WS_INBOUND_RATE must be positive")
	}
	if c.WebSocket.InboundBurst < 1 {
		return fmt.Errorf("WS_INBOUND_BURST must be at least 1")
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format == "" {
		return nil
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// placeholderPatterns defines common placeholder patterns that indicate
// the user forgot to set a real value.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_SECRET",
	"YOUR_PASSWORD",
	"PLACEHOLDER",
	"TODO",
	"FIXME",
	"XXX",
	"EXAMPLE",
}

// containsPlaceholder checks if a value contains common placeholder patterns.
func containsPlaceholder(value string) bool {
	upperValue := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upperValue, pattern) {
			return true
		}
	}
	return false
}
