// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package alert

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/drivecast/internal/geo"
	"github.com/tomtom215/drivecast/internal/validation"
)

// Construction errors. NewEvent wraps one of these so callers can use errors.Is.
var (
	ErrInvalidKind        = errors.New("invalid alert kind")
	ErrMissingAlertID     = errors.New("accident id is required")
	ErrUnexpectedAlertID  = errors.New("accident id is only allowed on accident events")
	ErrMissingUserID      = errors.New("user id is required")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrInvalidTimestamp   = errors.New("invalid timestamp")
	ErrInvalidEvent       = errors.New("invalid event")
)

// Input is the wire form of an alert event as received from ingestion.
type Input struct {
	Type       string   `json:"type" validate:"required"`
	AccidentID string   `json:"accidentId,omitempty"`
	UserID     string   `json:"userId,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude  *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
	Timestamp  string   `json:"timestamp" validate:"required,kst_timestamp"`
}

// Event is a validated, immutable alert event.
type Event struct {
	kind      Kind
	userID    string
	alertID   string
	point     geo.Point
	timestamp string
	at        time.Time
}

// NewEvent validates in and builds an Event.
func NewEvent(in Input) (Event, error) {
	kind, err := ParseKind(in.Type)
	if err != nil {
		return Event{}, err
	}

	if err := validation.Struct(&in); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			switch {
			case verr.Has("latitude"), verr.Has("longitude"):
				return Event{}, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
			case verr.Has("timestamp"):
				return Event{}, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
			}
		}
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	userID := strings.TrimSpace(in.UserID)
	alertID := strings.TrimSpace(in.AccidentID)

	switch kind {
	case KindAccident:
		if alertID == "" {
			return Event{}, ErrMissingAlertID
		}
	case KindObstacle, KindPothole:
		if in.AccidentID != "" {
			return Event{}, fmt.Errorf("%w: %s", ErrUnexpectedAlertID, kind)
		}
	case KindDriveStart, KindDriveEnd:
		if userID == "" {
			return Event{}, fmt.Errorf("%w for %s", ErrMissingUserID, kind)
		}
	}

	var point geo.Point
	if kind.Spatial() {
		if in.Latitude == nil || in.Longitude == nil {
			return Event{}, fmt.Errorf("%w: latitude and longitude are required for %s", ErrInvalidCoordinates, kind)
		}
		point = geo.Point{Lat: *in.Latitude, Lng: *in.Longitude}
		if !point.Valid() {
			return Event{}, fmt.Errorf("%w: %s", ErrInvalidCoordinates, point)
		}
	}

	at, err := ParseTimestamp(in.Timestamp)
	if err != nil {
		return Event{}, err
	}

	return Event{
		kind:      kind,
		userID:    userID,
		alertID:   alertID,
		point:     point,
		timestamp: in.Timestamp,
		at:        at,
	}, nil
}

// Kind returns the event kind.
func (e Event) Kind() Kind { return e.kind }

// UserID returns the originator, which may be empty for accidents.
func (e Event) UserID() string { return e.userID }

// AccidentID returns the upstream accident id (accidents only).
func (e Event) AccidentID() string { return e.alertID }

// Point returns the event position. It is the zero Point for driving kinds.
func (e Event) Point() geo.Point { return e.point }

// Timestamp returns the original wire timestamp.
func (e Event) Timestamp() string { return e.timestamp }

// Time returns the parsed timestamp.
func (e Event) Time() time.Time { return e.at }

// Input returns the wire form of the event.
func (e Event) Input() Input {
	in := Input{
		Type:       e.kind.Slug(),
		AccidentID: e.alertID,
		UserID:     e.userID,
		Timestamp:  e.timestamp,
	}
	if e.kind.Spatial() {
		lat, lng := e.point.Lat, e.point.Lng
		in.Latitude, in.Longitude = &lat, &lng
	}
	return in
}

// MarshalJSON encodes the event in its wire form.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Input())
}

// DecodeEvent parses and validates a JSON-encoded Input.
func DecodeEvent(data []byte) (Event, error) {
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return NewEvent(in)
}
