// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package relay

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/drivecast/internal/bus"
	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/metrics"
	"github.com/tomtom215/drivecast/internal/store"
)

const (
	// OwnershipKeyPrefix prefixes the per-user ownership key.
	OwnershipKeyPrefix = "ws:global:connection:"
	// DefaultOwnershipTTL is how long ownership survives without a refresh.
	DefaultOwnershipTTL = 5 * time.Minute
)

// OwnershipKey returns the store key naming the node that owns userID.
func OwnershipKey(userID string) string {
	return OwnershipKeyPrefix + userID
}

// Ownership records which node holds each user's connection.
type Ownership struct {
	store      store.Store
	bus        bus.Bus
	nodeID     string
	ttl        time.Duration
	kickReason string
}

// NewOwnership creates an ownership manager for nodeID.
func NewOwnership(s store.Store, b bus.Bus, nodeID string, ttl time.Duration) *Ownership {
	if ttl <= 0 {
		ttl = DefaultOwnershipTTL
	}
	return &Ownership{
		store:      s,
		bus:        b,
		nodeID:     nodeID,
		ttl:        ttl,
		kickReason: DefaultKickReason,
	}
}

// NodeID returns the local node id.
func (o *Ownership) NodeID() string {
	return o.nodeID
}

// Register makes this node the owner of userID. If another node owned the
// user, a Kick addressed to it is published once the new owner is written,
// so the receiver can tell a current kick from a stale one. It returns the
// previous owner, or "" when there was none. Store and bus failures are
// logged.
func (o *Ownership) Register(ctx context.Context, userID string) string {
	log := logging.Ctx(ctx).With().Str("user_id", userID).Str("node_id", o.nodeID).Logger()
	key := OwnershipKey(userID)

	prev, ok, err := o.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("Ownership lookup failed")
	}
	if !ok {
		prev = ""
	}

	if err := o.store.Set(ctx, key, o.nodeID, o.ttl); err != nil {
		log.Error().Err(err).Msg("Ownership write failed")
	}
	if prev != "" && prev != o.nodeID {
		kick := Kick{
			UserID:       userID,
			TargetNodeID: prev,
			Reason:       o.kickReason,
			SourceNodeID: o.nodeID,
		}
		if err := o.publishKick(ctx, kick); err != nil {
			log.Warn().Err(err).Str("previous_node", prev).Msg("Kick publish failed")
		} else {
			metrics.RecordKick("sent")
			log.Info().Str("previous_node", prev).Msg("Session taken over from another node")
		}
	}

	return prev
}

// Unregister clears ownership of userID if this node holds it.
func (o *Ownership) Unregister(ctx context.Context, userID string) bool {
	removed, err := o.store.DeleteIfEquals(ctx, OwnershipKey(userID), o.nodeID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Ownership release failed")
		return false
	}
	return removed
}

// Refresh extends the ownership TTL of userID if this node holds it.
func (o *Ownership) Refresh(ctx context.Context, userID string) bool {
	extended, err := o.store.ExpireIfEquals(ctx, OwnershipKey(userID), o.nodeID, o.ttl)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Ownership refresh failed")
		return false
	}
	return extended
}

// Owner returns the node currently owning userID.
func (o *Ownership) Owner(ctx context.Context, userID string) (string, bool) {
	owner, ok, err := o.store.Get(ctx, OwnershipKey(userID))
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Ownership lookup failed")
		return "", false
	}
	return owner, ok
}

func (o *Ownership) publishKick(ctx context.Context, k Kick) error {
	data, err := json.Marshal(k)
	if err != nil {
		return err
	}
	return o.bus.Publish(ctx, KickChannel, data)
}
