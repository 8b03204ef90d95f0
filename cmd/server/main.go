// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/tomtom215/drivecast/internal/api"
	"github.com/tomtom215/drivecast/internal/auth"
	"github.com/tomtom215/drivecast/internal/config"
	"github.com/tomtom215/drivecast/internal/dispatch"
	"github.com/tomtom215/drivecast/internal/driving"
	"github.com/tomtom215/drivecast/internal/ledger"
	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/node"
	"github.com/tomtom215/drivecast/internal/presence"
	"github.com/tomtom215/drivecast/internal/relay"
	"github.com/tomtom215/drivecast/internal/scheduler"
	"github.com/tomtom215/drivecast/internal/store"
	"github.com/tomtom215/drivecast/internal/supervisor"
	"github.com/tomtom215/drivecast/internal/supervisor/services"
	"github.com/tomtom215/drivecast/internal/vicinity"
	ws "github.com/tomtom215/drivecast/internal/websocket"
)

//nolint:gocyclo // Sequential wiring of every component
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	cfg.Node.ID = node.ResolveID(cfg.Node.ID, os.Getenv)
	logging.Info().
		Str("node_id", cfg.Node.ID).
		Str("environment", cfg.Server.Environment).
		Str("store", cfg.Store.Backend).
		Str("bus", cfg.Relay.BusBackend).
		Str("auth_mode", cfg.Security.AuthMode).
		Msg("Starting drivecast")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin while authentication is enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === STORAGE ===

	st, err := store.Open(ctx, storeOptions(cfg))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()
	logging.Info().Str("backend", cfg.Store.Backend).Bool("breaker", cfg.Store.BreakerEnabled).Msg("Store opened")

	// === MESSAGING ===

	messaging, err := InitMessaging(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize messaging")
	}

	// === CORE ===

	rl, err := relay.New(relay.Config{
		NodeID:       cfg.Node.ID,
		OwnershipTTL: cfg.Relay.OwnershipTTL,
		KickReason:   cfg.Relay.KickReason,
	}, st, messaging.Bus)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create relay")
	}

	tracker := presence.NewTracker(st)
	recorder := vicinity.NewRecorder(st, tracker, cfg.Alerts.BucketTTL)
	detector := vicinity.NewDetector(st, tracker)
	sessions := driving.NewSessions(st, driving.DefaultActiveTTL)

	repeats := scheduler.New(scheduler.Config{
		Rounds:   cfg.Alerts.RepeatRounds,
		Interval: cfg.Alerts.RepeatInterval,
	})

	dispatcher := dispatch.New(dispatch.Deps{
		Finder:   detector,
		Ledger:   ledger.New(st),
		Notifier: rl,
		Repeater: repeats,
		Driving:  sessions,
	}, dispatch.Config{
		DedupTTL:    cfg.Alerts.DedupTTL,
		SnapshotTTL: cfg.Alerts.SnapshotTTL,
		Lookback:    cfg.Alerts.Lookback,
	})

	logging.Info().Dur("dedup_ttl", dispatcher.DedupTTL()).Msg("Dispatcher ready")

	// === WEBSOCKET + HTTP ===

	mode, err := auth.ParseMode(cfg.Security.AuthMode)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid auth mode")
	}
	authenticator, err := auth.NewAuthenticator(mode, cfg.Security.JWTSecret)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create authenticator")
	}

	hub := ws.NewHub(rl, ws.Config{
		SendBuffer:     cfg.WebSocket.SendBuffer,
		InboundRate:    cfg.WebSocket.InboundRate,
		InboundBurst:   cfg.WebSocket.InboundBurst,
		AllowedOrigins: cfg.Security.CORSOrigins,
	})

	chiMiddleware := api.NewChiMiddlewareFromSecurity(
		cfg.Security.CORSOrigins,
		cfg.Security.RateLimitReqs,
		cfg.Security.RateLimitWindow,
		cfg.Security.RateLimitDisabled,
	)
	router := api.NewRouter(ws.Handler(hub, authenticator), chiMiddleware)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// === SUPERVISOR TREE ===

	slogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Coordination layer
	tree.AddCoordinationService(services.NewRunnerService("ownership-heartbeat",
		relay.NewHeartbeat(rl, tracker, cfg.Relay.HeartbeatInterval, cfg.Relay.PresenceThreshold)))
	if srv := messaging.EmbeddedServer(); srv != nil {
		tree.AddCoordinationService(services.NewNATSWatchdogService(srv, 0))
	}

	// Messaging layer
	tree.AddMessagingService(services.NewRunnerService("relay-listener", services.RunFunc(rl.Listen)))
	tree.AddMessagingService(services.NewRunnerService("websocket-hub", services.RunFunc(hub.RunWithContext)))
	tree.AddMessagingService(services.NewRunnerService("repeat-scheduler", services.RunFunc(repeats.Serve)))

	if cfg.Ingest.Enabled {
		wmLogger := watermill.NewSlogLogger(slogger)
		tree.AddMessagingService(services.NewRunnerService("ingest-consumer",
			services.RunFunc(messaging.IngestRunner(dispatcher, recorder, wmLogger))))
	} else {
		logging.Info().Msg("Ingestion disabled (INGEST_ENABLED=false)")
	}

	var traits *driving.CachedTraits
	if cfg.Traits.Enabled {
		traits, err = newTraitCache(cfg)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create trait client")
		}
		broadcaster := driving.NewBroadcaster(driving.BroadcasterDeps{
			Users:    rl.Registry(),
			Active:   sessions,
			Locator:  detector,
			Traits:   traits,
			Notifier: rl,
		}, driving.BroadcasterConfig{
			Interval: cfg.Traits.BroadcastInterval,
			Lookback: cfg.Alerts.Lookback,
		})
		tree.AddCoordinationService(services.NewRunnerService("trait-cache-warmer", traits))
		tree.AddMessagingService(services.NewRunnerService("driving-broadcaster", broadcaster))
		logging.Info().Str("url", cfg.Traits.BaseURL).Msg("Driving broadcaster enabled")
	} else {
		logging.Info().Msg("Driving broadcaster disabled (TRAITS_ENABLED=false)")
	}

	// API layer
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		treeErr = <-errCh
	case treeErr = <-errCh:
		cancel()
	}
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if traits != nil {
		traits.Close()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	messaging.Shutdown(shutdownCtx)
	shutdownCancel()

	logging.Info().Msg("Application stopped gracefully")
}

func storeOptions(cfg *config.Config) store.Options {
	breaker := store.DefaultBreakerOptions()
	breaker.Name = "store-" + cfg.Store.Backend
	if cfg.Store.BreakerFailureThreshold > 0 {
		breaker.FailureThreshold = cfg.Store.BreakerFailureThreshold
	}
	if cfg.Store.BreakerTimeout > 0 {
		breaker.Timeout = cfg.Store.BreakerTimeout
	}

	return store.Options{
		Backend: cfg.Store.Backend,
		Redis: store.RedisOptions{
			Addr:         cfg.Redis.Addr,
			Username:     cfg.Redis.Username,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		},
		Badger: store.BadgerOptions{
			Path:     cfg.Badger.Path,
			InMemory: cfg.Badger.InMemory,
		},
		BreakerEnabled: cfg.Store.BreakerEnabled,
		Breaker:        breaker,
	}
}

// newTraitCache stacks the HTTP trait client behind a circuit breaker and
// the two-tier cache.
func newTraitCache(cfg *config.Config) (*driving.CachedTraits, error) {
	client, err := driving.NewTraitClient(cfg.Traits.BaseURL, cfg.Traits.Timeout)
	if err != nil {
		return nil, err
	}
	guarded := driving.NewBreakerTraits(client, driving.BreakerConfig{
		Name:             "traits",
		FailureThreshold: cfg.Traits.BreakerFailureThreshold,
		Timeout:          cfg.Traits.BreakerTimeout,
	})
	return driving.NewCachedTraits(guarded, driving.CacheConfig{
		HotTTL:       cfg.Traits.HotTTL,
		WarmTTL:      cfg.Traits.WarmTTL,
		WarmInterval: cfg.Traits.WarmInterval,
	}), nil
}
