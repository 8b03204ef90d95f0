// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package alert

import (
	"errors"
	"fmt"
)

// Client destinations.
const (
	DestinationIncident = "/queue/incident"
	DestinationDriving  = "/queue/driving"
	DestinationSystem   = "/queue/system"
)

// Message types sent to clients.
const (
	TypeAccident       = "accident"
	TypeAccidentNearby = "accident-nearby"
	TypeObstacle       = "obstacle"
	TypePothole        = "pothole"
	TypeDriveStart     = "start"
	TypeDriveEnd       = "end"
)

// ErrNoMapper is returned for a kind without a registered mapping.
var ErrNoMapper = errors.New("no message mapping for kind")

// Message is the client-facing notification body.
type Message struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// MapFunc builds the message for one recipient. self is true when the
// recipient is the event originator.
type MapFunc func(ev Event, self bool) Message

// Registry maps each kind to its message builder and destination.
type Registry struct {
	mappers      map[Kind]MapFunc
	destinations map[Kind]string
}

// NewRegistry returns a registry covering every kind.
func NewRegistry() *Registry {
	return &Registry{
		mappers: map[Kind]MapFunc{
			KindAccident:   mapAccident,
			KindObstacle:   notice(TypeObstacle, "Obstacle ahead", "There is an obstacle on the road ahead. Drive carefully."),
			KindPothole:    notice(TypePothole, "Pothole ahead", "A pothole was reported on the road ahead. Slow down."),
			KindDriveStart: drivingStatus(TypeDriveStart),
			KindDriveEnd:   drivingStatus(TypeDriveEnd),
		},
		destinations: map[Kind]string{
			KindAccident:   DestinationIncident,
			KindObstacle:   DestinationIncident,
			KindPothole:    DestinationIncident,
			KindDriveStart: DestinationDriving,
			KindDriveEnd:   DestinationDriving,
		},
	}
}

// Map builds the message ev produces for recipientID and the destination to
// send it to.
func (r *Registry) Map(ev Event, recipientID string) (Message, string, error) {
	fn, ok := r.mappers[ev.Kind()]
	if !ok {
		return Message{}, "", fmt.Errorf("%w: %s", ErrNoMapper, ev.Kind())
	}
	self := ev.UserID() != "" && ev.UserID() == recipientID
	return fn(ev, self), r.destinations[ev.Kind()], nil
}

func mapAccident(_ Event, self bool) Message {
	if self {
		return Message{
			Type: TypeAccident,
			Payload: map[string]any{
				"title":   "Major accident detected",
				"content": "A serious collision was detected on your vehicle. Request help immediately if anyone is injured.",
			},
		}
	}
	return Message{
		Type: TypeAccidentNearby,
		Payload: map[string]any{
			"title":   "Accident ahead",
			"content": "A vehicle nearby was involved in a serious accident. Drive carefully.",
		},
	}
}

func notice(typ, title, content string) MapFunc {
	return func(Event, bool) Message {
		return Message{
			Type:    typ,
			Payload: map[string]any{"title": title, "content": content},
		}
	}
}

func drivingStatus(typ string) MapFunc {
	return func(ev Event, _ bool) Message {
		return Message{
			Type:    typ,
			Payload: map[string]any{"timestamp": ev.Timestamp()},
		}
	}
}
