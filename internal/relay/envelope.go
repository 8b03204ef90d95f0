// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

const (
	// MessageChannel carries Envelopes to every node.
	MessageChannel = "websocket:message"
	// KickChannel carries Kick signals to every node.
	KickChannel = "ws:system:kick"

	// SystemDestination receives system notices such as CONNECTION_REPLACED.
	SystemDestination = "/queue/system"

	// NoticeConnectionReplaced is the notice type sent to a kicked session.
	NoticeConnectionReplaced = "CONNECTION_REPLACED"

	// DefaultKickReason is shown to the replaced session.
	DefaultKickReason = "Your account was connected from another device."
)

// ErrMalformed is returned when a bus message cannot be decoded.
var ErrMalformed = errors.New("relay: malformed message")

// Envelope carries a message for a user to every node.
type Envelope struct {
	UserID       string          `json:"userId"`
	Destination  string          `json:"destination"`
	Payload      json.RawMessage `json:"payload"`
	SourceNodeID string          `json:"sourcePodId"`
}

// Kick asks TargetNodeID to retire its session for UserID.
type Kick struct {
	UserID       string `json:"userId"`
	TargetNodeID string `json:"targetPodId"`
	Reason       string `json:"reason"`
	SourceNodeID string `json:"sourcePodId"`
}

// Notice is a system message delivered on SystemDestination.
type Notice struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// NewReplacedNotice builds the CONNECTION_REPLACED notice.
func NewReplacedNotice(reason string, at time.Time) Notice {
	return Notice{
		Type:      NoticeConnectionReplaced,
		Message:   reason,
		Timestamp: at.Format(time.RFC3339),
	}
}

// DecodeEnvelope parses an envelope body.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.UserID == "" || env.Destination == "" {
		return Envelope{}, fmt.Errorf("%w: envelope missing user or destination", ErrMalformed)
	}
	return env, nil
}

// DecodeKick parses a kick body.
func DecodeKick(data []byte) (Kick, error) {
	var k Kick
	if err := json.Unmarshal(data, &k); err != nil {
		return Kick{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if k.UserID == "" || k.TargetNodeID == "" {
		return Kick{}, fmt.Errorf("%w: kick missing user or target", ErrMalformed)
	}
	return k, nil
}
