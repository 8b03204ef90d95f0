// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"

	"github.com/tomtom215/drivecast/internal/alert"
	"github.com/tomtom215/drivecast/internal/geo"
	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/metrics"
	"github.com/tomtom215/drivecast/internal/validation"
	"github.com/tomtom215/drivecast/internal/vicinity"
)

const (
	// DefaultAlertsTopic carries alert events.
	DefaultAlertsTopic = "drivecast.alerts"
	// DefaultLocationsTopic carries location samples.
	DefaultLocationsTopic = "drivecast.locations"
)

// ErrInvalidLocation is returned for location bodies that fail validation.
var ErrInvalidLocation = errors.New("invalid location message")

// AlertHandler receives validated alert events.
type AlertHandler interface {
	Handle(ctx context.Context, ev alert.Event) error
}

// LocationRecorder stores location samples.
type LocationRecorder interface {
	Record(ctx context.Context, s vicinity.Sample) error
}

// Config names the consumed topics.
type Config struct {
	AlertsTopic    string
	LocationsTopic string
	CloseTimeout   time.Duration
}

// LocationMessage is the wire form of a location sample.
type LocationMessage struct {
	UserID    string   `json:"userId" validate:"required,notblank"`
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	// Timestamp is optional; receipt time is used when it is blank.
	Timestamp string `json:"timestamp,omitempty" validate:"omitempty,kst_timestamp"`
}

// DecodeLocation parses and validates a location body.
func DecodeLocation(data []byte, now time.Time) (vicinity.Sample, error) {
	var m LocationMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return vicinity.Sample{}, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	if err := validation.Struct(&m); err != nil {
		return vicinity.Sample{}, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}

	at := now
	if m.Timestamp != "" {
		t, err := alert.ParseTimestamp(m.Timestamp)
		if err != nil {
			return vicinity.Sample{}, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
		}
		at = t
	}
	return vicinity.Sample{
		UserID:     m.UserID,
		Point:      geo.Point{Lat: *m.Latitude, Lng: *m.Longitude},
		ObservedAt: at,
	}, nil
}

// Consumer routes broker messages to the dispatcher and the recorder.
type Consumer struct {
	router    *message.Router
	alerts    AlertHandler
	locations LocationRecorder
	cfg       Config
	now       func() time.Time
}

// NewConsumer wires handlers for both topics on sub. locations may be nil
// when this node does not record locations.
func NewConsumer(sub message.Subscriber, alerts AlertHandler, locations LocationRecorder, cfg Config, logger watermill.LoggerAdapter) (*Consumer, error) {
	if alerts == nil {
		return nil, errors.New("ingest: alert handler is required")
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if cfg.AlertsTopic == "" {
		cfg.AlertsTopic = DefaultAlertsTopic
	}
	if cfg.LocationsTopic == "" {
		cfg.LocationsTopic = DefaultLocationsTopic
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 30 * time.Second
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}
	router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
	)

	c := &Consumer{
		router:    router,
		alerts:    alerts,
		locations: locations,
		cfg:       cfg,
		now:       time.Now,
	}
	router.AddConsumerHandler("drivecast-alerts", cfg.AlertsTopic, sub, c.handleAlert)
	if locations != nil {
		router.AddConsumerHandler("drivecast-locations", cfg.LocationsTopic, sub, c.handleLocation)
	}
	return c, nil
}

// Run consumes until ctx is cancelled or Close is called.
func (c *Consumer) Run(ctx context.Context) error {
	return c.router.Run(ctx)
}

// Running is closed once every handler is subscribed.
func (c *Consumer) Running() <-chan struct{} {
	return c.router.Running()
}

// Close stops the router, waiting up to CloseTimeout for in-flight messages.
func (c *Consumer) Close() error {
	return c.router.Close()
}

func (c *Consumer) messageContext(msg *message.Message) context.Context {
	ctx := msg.Context()
	if id := middleware.MessageCorrelationID(msg); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	}
	return ctx
}

func (c *Consumer) handleAlert(msg *message.Message) error {
	ctx := c.messageContext(msg)
	topic := c.cfg.AlertsTopic

	ev, err := alert.DecodeEvent(msg.Payload)
	if err != nil {
		metrics.RecordIngest(topic, "invalid")
		logging.Ctx(ctx).Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Rejected alert event")
		return nil
	}

	if err := c.alerts.Handle(ctx, ev); err != nil {
		metrics.RecordIngest(topic, "error")
		logging.Ctx(ctx).Error().Err(err).Str("message_uuid", msg.UUID).Msg("Alert dispatch failed")
		return nil
	}
	metrics.RecordIngest(topic, "ok")
	return nil
}

func (c *Consumer) handleLocation(msg *message.Message) error {
	ctx := c.messageContext(msg)
	topic := c.cfg.LocationsTopic

	sample, err := DecodeLocation(msg.Payload, c.now())
	if err != nil {
		metrics.RecordIngest(topic, "invalid")
		logging.Ctx(ctx).Debug().Err(err).Str("message_uuid", msg.UUID).Msg("Rejected location sample")
		return nil
	}

	if err := c.locations.Record(ctx, sample); err != nil {
		metrics.RecordIngest(topic, "error")
		// Store failures are transient; let the broker redeliver.
		return fmt.Errorf("record location for %s: %w", sample.UserID, err)
	}
	metrics.RecordIngest(topic, "ok")
	return nil
}
