// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/drivecast/internal/bus"
	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/metrics"
	"github.com/tomtom215/drivecast/internal/store"
)

// Config configures a Relay.
type Config struct {
	NodeID       string
	OwnershipTTL time.Duration
	// KickReason overrides DefaultKickReason.
	KickReason string
}

// Relay delivers messages to users wherever their connection lives.
type Relay struct {
	nodeID    string
	registry  *Registry
	ownership *Ownership
	bus       bus.Bus
	now       func() time.Time
}

// New creates a relay for cfg.NodeID over the coordination store and bus.
func New(cfg Config, s store.Store, b bus.Bus) (*Relay, error) {
	if strings.TrimSpace(cfg.NodeID) == "" {
		return nil, errors.New("relay: node id is required")
	}
	own := NewOwnership(s, b, cfg.NodeID, cfg.OwnershipTTL)
	if cfg.KickReason != "" {
		own.kickReason = cfg.KickReason
	}
	return &Relay{
		nodeID:    cfg.NodeID,
		registry:  NewRegistry(),
		ownership: own,
		bus:       b,
		now:       time.Now,
	}, nil
}

// NodeID returns the local node id.
func (r *Relay) NodeID() string { return r.nodeID }

// Registry returns the local session registry.
func (r *Relay) Registry() *Registry { return r.registry }

// Ownership returns the fleet ownership manager.
func (r *Relay) Ownership() *Ownership { return r.ownership }

// Connect takes fleet ownership of userID and then binds it to a new local
// session. It returns the previous owner node, if any. Ownership is written
// before the session becomes routable so a late kick for an earlier
// connection finds this node as owner and is ignored.
func (r *Relay) Connect(ctx context.Context, userID string, s Session) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("relay: connect requires a user id")
	}
	prevNode := r.ownership.Register(ctx, userID)
	if prev, replaced := r.registry.Add(userID, s); replaced {
		logging.Ctx(ctx).Debug().
			Str("user_id", userID).
			Str("previous_session", prev.ID()).
			Msg("Local session replaced")
	}
	return prevNode, nil
}

// Disconnect drops a local session. Ownership is released only when the
// session was still the user's active one.
func (r *Relay) Disconnect(ctx context.Context, sessionID string) {
	userID, cleared := r.registry.Remove(sessionID)
	if !cleared {
		return
	}
	r.ownership.Unregister(ctx, userID)
}

// ToUser delivers payload to userID's session on this node, if any, and
// publishes an Envelope so the owning node can deliver it. A blank user id
// is a no-op.
func (r *Relay) ToUser(ctx context.Context, userID, destination string, payload []byte) error {
	if strings.TrimSpace(userID) == "" {
		return nil
	}

	if s, ok := r.registry.Get(userID); ok {
		if err := s.Send(destination, payload); err != nil {
			logging.Ctx(ctx).Warn().Err(err).
				Str("user_id", userID).
				Str("destination", destination).
				Msg("Local delivery failed")
		} else {
			metrics.RecordRelay("local")
		}
	}

	env := Envelope{
		UserID:       userID,
		Destination:  destination,
		Payload:      json.RawMessage(payload),
		SourceNodeID: r.nodeID,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope for %s: %w", userID, err)
	}
	if err := r.bus.Publish(ctx, MessageChannel, data); err != nil {
		return fmt.Errorf("publish envelope for %s: %w", userID, err)
	}
	metrics.RecordRelay("published")
	return nil
}

// SendJSON marshals v and delivers it with ToUser.
func (r *Relay) SendJSON(ctx context.Context, userID, destination string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message for %s: %w", userID, err)
	}
	return r.ToUser(ctx, userID, destination, payload)
}

// Start subscribes to the relay and kick channels. The returned stop
// function removes both subscriptions.
func (r *Relay) Start(ctx context.Context) (func(), error) {
	msgSub, err := r.bus.Subscribe(ctx, MessageChannel, r.handleEnvelope)
	if err != nil {
		return nil, fmt.Errorf("subscribe relay channel: %w", err)
	}
	kickSub, err := r.bus.Subscribe(ctx, KickChannel, r.handleKick)
	if err != nil {
		_ = msgSub.Unsubscribe()
		return nil, fmt.Errorf("subscribe kick channel: %w", err)
	}
	return func() {
		_ = msgSub.Unsubscribe()
		_ = kickSub.Unsubscribe()
	}, nil
}

// Listen subscribes to the relay and kick channels and blocks until ctx is
// done.
func (r *Relay) Listen(ctx context.Context) error {
	stop, err := r.Start(ctx)
	if err != nil {
		return err
	}
	defer stop()

	logging.Ctx(ctx).Info().Str("node_id", r.nodeID).Msg("Relay listening")
	<-ctx.Done()
	return ctx.Err()
}

func (r *Relay) handleEnvelope(ctx context.Context, data []byte) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		metrics.RecordRelay("malformed")
		logging.Ctx(ctx).Warn().Err(err).Msg("Dropping relay envelope")
		return
	}
	if env.SourceNodeID == r.nodeID {
		metrics.RecordRelay("self")
		return
	}

	s, ok := r.registry.Get(env.UserID)
	if !ok {
		metrics.RecordRelay("no_session")
		return
	}
	if err := s.Send(env.Destination, env.Payload); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("user_id", env.UserID).
			Str("source_node", env.SourceNodeID).
			Msg("Relayed delivery failed")
		return
	}
	metrics.RecordRelay("delivered")
}

func (r *Relay) handleKick(ctx context.Context, data []byte) {
	k, err := DecodeKick(data)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Dropping kick signal")
		return
	}
	if k.TargetNodeID != r.nodeID || k.SourceNodeID == r.nodeID {
		return
	}
	metrics.RecordKick("received")

	s, ok := r.registry.Get(k.UserID)
	if !ok {
		return
	}
	// The user reconnected here after the kick was issued.
	if owner, ok := r.ownership.Owner(ctx, k.UserID); ok && owner == r.nodeID {
		metrics.RecordKick("stale")
		logging.Ctx(ctx).Debug().
			Str("user_id", k.UserID).
			Str("source_node", k.SourceNodeID).
			Msg("Ignoring kick for a superseded connection")
		return
	}

	reason := k.Reason
	if reason == "" {
		reason = DefaultKickReason
	}
	notice, err := json.Marshal(NewReplacedNotice(reason, r.now()))
	if err == nil {
		if err := s.Send(SystemDestination, notice); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("user_id", k.UserID).Msg("Replacement notice failed")
		}
	}

	// Stop routing to the replaced session; the client closes the socket.
	r.registry.Remove(s.ID())
	logging.Ctx(ctx).Info().
		Str("user_id", k.UserID).
		Str("session_id", s.ID()).
		Str("new_node", k.SourceNodeID).
		Msg("Session replaced by another node")
}
