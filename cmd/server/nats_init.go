// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/drivecast/internal/bus"
	"github.com/tomtom215/drivecast/internal/config"
	"github.com/tomtom215/drivecast/internal/ingest"
	"github.com/tomtom215/drivecast/internal/logging"
)

// MessagingComponents holds the fleet bus and the NATS server it may run on.
type MessagingComponents struct {
	// server is set when the node runs its own NATS server.
	server  *bus.EmbeddedServer
	natsURL string
	cfg     *config.Config

	// redisClient backs the Redis bus, which does not own it.
	redisClient *redis.Client

	Bus bus.Bus
}

// InitMessaging starts the embedded NATS server when configured and opens
// the relay bus. Callers must call Shutdown once the supervisor tree has
// stopped.
func InitMessaging(cfg *config.Config) (*MessagingComponents, error) {
	mc := &MessagingComponents{cfg: cfg}

	if natsInUse(cfg) {
		if err := mc.startNATS(cfg); err != nil {
			return nil, err
		}
	}

	b, err := mc.openBus(cfg)
	if err != nil {
		mc.Shutdown(context.Background())
		return nil, err
	}
	mc.Bus = b
	return mc, nil
}

// IngestRunner returns a loop that consumes the alert and location topics.
// A Watermill router cannot be restarted once closed, so every run builds
// a fresh subscriber and consumer.
func (mc *MessagingComponents) IngestRunner(alerts ingest.AlertHandler, locations ingest.LocationRecorder, wmLogger watermill.LoggerAdapter) func(ctx context.Context) error {
	subCfg := subscriberConfig(mc.cfg, mc.natsURL)
	consumerCfg := ingest.Config{
		AlertsTopic:    mc.cfg.Ingest.AlertsTopic,
		LocationsTopic: mc.cfg.Ingest.LocationsTopic,
		CloseTimeout:   mc.cfg.Ingest.CloseTimeout,
	}

	return func(ctx context.Context) error {
		sub, err := ingest.NewNATSSubscriber(subCfg, wmLogger)
		if err != nil {
			return err
		}
		defer closeSubscriber(sub)

		consumer, err := ingest.NewConsumer(sub, alerts, locations, consumerCfg, wmLogger)
		if err != nil {
			return err
		}
		logging.Info().
			Str("alerts_topic", consumerCfg.AlertsTopic).
			Str("locations_topic", consumerCfg.LocationsTopic).
			Bool("jetstream", subCfg.JetStream).
			Msg("Ingestion consumer starting")
		return consumer.Run(ctx)
	}
}

func closeSubscriber(sub message.Subscriber) {
	if err := sub.Close(); err != nil {
		logging.Warn().Err(err).Msg("Error closing ingestion subscriber")
	}
}

func (mc *MessagingComponents) startNATS(cfg *config.Config) error {
	if !cfg.NATS.EmbeddedServer {
		mc.natsURL = cfg.NATS.URL
		logging.Info().Str("url", mc.natsURL).Msg("Using external NATS server")
		return nil
	}

	server, err := bus.NewEmbeddedServer(embeddedServerConfig(cfg))
	if err != nil {
		return fmt.Errorf("start embedded NATS: %w", err)
	}
	mc.server = server
	mc.natsURL = server.ClientURL()
	logging.Info().Str("url", mc.natsURL).Bool("jetstream", cfg.NATS.JetStream).Msg("Embedded NATS server started")
	return nil
}

// EmbeddedServer returns the local NATS server, or nil.
func (mc *MessagingComponents) EmbeddedServer() *bus.EmbeddedServer {
	return mc.server
}

// Shutdown closes the bus and its connection, then stops the embedded
// server.
func (mc *MessagingComponents) Shutdown(ctx context.Context) {
	var errs []error
	if mc.Bus != nil {
		if err := mc.Bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bus: %w", err))
		}
	}
	if mc.redisClient != nil {
		if err := mc.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis bus client: %w", err))
		}
	}
	if mc.server != nil {
		if err := mc.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop embedded NATS: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		logging.Error().Err(err).Msg("Messaging shutdown incomplete")
		return
	}
	logging.Info().Msg("Messaging components stopped")
}

func natsInUse(cfg *config.Config) bool {
	return cfg.Relay.BusBackend == "nats" || cfg.Ingest.Enabled
}

func embeddedServerConfig(cfg *config.Config) bus.ServerConfig {
	return bus.ServerConfig{
		Host:              cfg.NATS.Host,
		Port:              cfg.NATS.Port,
		JetStream:         cfg.NATS.JetStream,
		StoreDir:          cfg.NATS.StoreDir,
		JetStreamMaxMem:   cfg.NATS.MaxMemory,
		JetStreamMaxStore: cfg.NATS.MaxStore,
		NoLog:             true,
	}
}

func subscriberConfig(cfg *config.Config, natsURL string) ingest.SubscriberConfig {
	sc := ingest.DefaultSubscriberConfig()
	sc.URL = natsURL
	sc.QueueGroup = cfg.Ingest.QueueGroup
	sc.SubscribersCount = cfg.Ingest.SubscribersCount
	sc.JetStream = cfg.Ingest.JetStream
	sc.DurableName = cfg.Ingest.DurableName
	sc.AckWait = cfg.Ingest.AckWait
	sc.CloseTimeout = cfg.Ingest.CloseTimeout
	sc.MaxReconnects = cfg.NATS.MaxReconnects
	sc.ReconnectWait = cfg.NATS.ReconnectWait
	return sc
}

func (mc *MessagingComponents) openBus(cfg *config.Config) (bus.Bus, error) {
	switch cfg.Relay.BusBackend {
	case "redis":
		mc.redisClient = redis.NewClient(redisOptions(cfg))
		logging.Info().Str("addr", cfg.Redis.Addr).Msg("Relay bus on Redis pub/sub")
		return bus.NewRedis(mc.redisClient), nil
	default:
		b, err := bus.NewNATS(bus.NATSOptions{
			URL:           mc.natsURL,
			Name:          "drivecast-" + cfg.Node.ID,
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
		})
		if err != nil {
			return nil, fmt.Errorf("open NATS bus: %w", err)
		}
		logging.Info().Str("url", mc.natsURL).Msg("Relay bus on NATS")
		return b, nil
	}
}

func redisOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Redis.Addr,
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}
}
