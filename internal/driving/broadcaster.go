// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package driving

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/drivecast/internal/alert"
	"github.com/tomtom215/drivecast/internal/geo"
	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/metrics"
	"github.com/tomtom215/drivecast/internal/vicinity"
)

// Neighbor search defaults.
const (
	DefaultBroadcastInterval = time.Second
	NeighborRadiusMeters     = 15.0
	NeighborLookback         = 5
	NeighborFreshness        = 300 * time.Second
	NeighborAttempts         = 2
)

// NeighborBackoff is the wait before each neighbor search retry.
var NeighborBackoff = []time.Duration{120 * time.Millisecond, 250 * time.Millisecond}

// MessageType is the type of every neighbor frame.
const MessageType = "driving"

// Locator finds positions and neighbors. *vicinity.Detector implements it.
type Locator interface {
	Locate(ctx context.Context, userID string, ref time.Time, lookback int) (geo.Point, bool)
	FindNearby(ctx context.Context, q vicinity.Query) []string
}

// LocalUsers lists the users connected to this node. *relay.Registry
// implements it.
type LocalUsers interface {
	Users() []string
}

// ActiveChecker reports whether a user is driving.
type ActiveChecker interface {
	Active(ctx context.Context, userID string) bool
}

// TraitLookup resolves characters for a set of users.
type TraitLookup interface {
	Lookup(ctx context.Context, userIDs []string) map[string]string
}

// Notifier delivers a payload to a user.
type Notifier interface {
	ToUser(ctx context.Context, userID, destination string, payload []byte) error
}

// Pose is a position on the wire.
type Pose struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Ego is the receiving user.
type Ego struct {
	UserID string `json:"userId"`
	Pose   Pose   `json:"pose"`
}

// Neighbor is a nearby driver with a known character.
type Neighbor struct {
	UserID    string `json:"userId"`
	Character string `json:"character"`
	Pose      Pose   `json:"pose"`
}

// Payload is the body of a neighbor frame.
type Payload struct {
	Timestamp string     `json:"timestamp"`
	Ego       Ego        `json:"ego"`
	Neighbors []Neighbor `json:"neighbors"`
}

// Message is one neighbor frame.
type Message struct {
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

func poseOf(p geo.Point) Pose {
	return Pose{Latitude: p.Lat, Longitude: p.Lng}
}

// BroadcasterConfig tunes the neighbor search.
type BroadcasterConfig struct {
	Interval     time.Duration
	RadiusMeters float64
	Lookback     int
	Freshness    time.Duration
	Attempts     int
	Backoff      []time.Duration
}

func (c BroadcasterConfig) withDefaults() BroadcasterConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultBroadcastInterval
	}
	if c.RadiusMeters <= 0 {
		c.RadiusMeters = NeighborRadiusMeters
	}
	if c.Lookback <= 0 {
		c.Lookback = NeighborLookback
	}
	if c.Freshness <= 0 {
		c.Freshness = NeighborFreshness
	}
	if c.Attempts <= 0 {
		c.Attempts = NeighborAttempts
	}
	if c.Backoff == nil {
		c.Backoff = NeighborBackoff
	}
	return c
}

// BroadcasterDeps are the collaborators of a Broadcaster.
type BroadcasterDeps struct {
	Users    LocalUsers
	Active   ActiveChecker
	Locator  Locator
	Traits   TraitLookup
	Notifier Notifier
}

// Broadcaster sends neighbor frames to locally connected drivers.
type Broadcaster struct {
	deps BroadcasterDeps
	cfg  BroadcasterConfig
	now  func() time.Time

	emptyTicks int
}

// NewBroadcaster creates a broadcaster.
func NewBroadcaster(deps BroadcasterDeps, cfg BroadcasterConfig) *Broadcaster {
	return &Broadcaster{deps: deps, cfg: cfg.withDefaults(), now: time.Now}
}

// Run ticks at the configured interval until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.Tick(ctx)
		}
	}
}

// Tick sends one frame to every local driver and returns how many were
// sent.
func (b *Broadcaster) Tick(ctx context.Context) int {
	start := b.now()
	sent, neighbors, active := 0, 0, 0

	for _, userID := range b.deps.Users.Users() {
		if ctx.Err() != nil {
			break
		}
		if !b.deps.Active.Active(ctx, userID) {
			continue
		}
		active++

		msg, ok := b.frameFor(ctx, userID, b.now())
		if !ok {
			continue
		}
		if err := b.send(ctx, userID, msg); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Driving frame not sent")
			continue
		}
		sent++
		neighbors += len(msg.Payload.Neighbors)
	}

	b.logTick(active, sent, neighbors, b.now().Sub(start))
	return sent
}

// logTick keeps idle ticks quiet: the first ten are logged, then once a
// minute.
func (b *Broadcaster) logTick(active, sent, neighbors int, elapsed time.Duration) {
	if active == 0 {
		b.emptyTicks++
		if b.emptyTicks <= 10 || b.emptyTicks%60 == 0 {
			logging.Debug().Int("empty_ticks", b.emptyTicks).Msg("No active drivers on this node")
		}
		return
	}
	if b.emptyTicks > 0 {
		logging.Debug().Int("active", active).Int("after_empty_ticks", b.emptyTicks).Msg("Active drivers found")
		b.emptyTicks = 0
	}
	if sent > 0 {
		logging.Debug().
			Int("active", active).
			Int("sent", sent).
			Int("neighbors", neighbors).
			Dur("elapsed", elapsed).
			Msg("Driving broadcast complete")
	}
}

// frameFor builds userID's frame at now. It reports false when the user has
// no recent position.
func (b *Broadcaster) frameFor(ctx context.Context, userID string, now time.Time) (Message, bool) {
	ego, ok := b.deps.Locator.Locate(ctx, userID, now, b.cfg.Lookback)
	if !ok {
		logging.Ctx(ctx).Debug().Str("user_id", userID).Msg("No recent position for driver")
		return Message{}, false
	}

	msg := Message{
		Type: MessageType,
		Payload: Payload{
			Timestamp: now.UTC().Format(time.RFC3339Nano),
			Ego:       Ego{UserID: userID, Pose: poseOf(ego)},
			Neighbors: []Neighbor{},
		},
	}

	nearby := b.deps.Locator.FindNearby(ctx, vicinity.Query{
		Center:        ego,
		RadiusMeters:  b.cfg.RadiusMeters,
		RefTime:       now,
		Freshness:     b.cfg.Freshness,
		ExcludeUserID: userID,
		Lookback:      b.cfg.Lookback,
		MaxRetries:    b.cfg.Attempts,
		Backoff:       b.cfg.Backoff,
	})
	if len(nearby) == 0 {
		return msg, true
	}

	traits := b.deps.Traits.Lookup(ctx, nearby)
	for _, id := range nearby {
		character, ok := traits[id]
		if !ok {
			continue
		}
		p, ok := b.deps.Locator.Locate(ctx, id, now, b.cfg.Lookback)
		if !ok {
			continue
		}
		msg.Payload.Neighbors = append(msg.Payload.Neighbors, Neighbor{
			UserID:    id,
			Character: character,
			Pose:      poseOf(p),
		})
	}
	return msg, true
}

func (b *Broadcaster) send(ctx context.Context, userID string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := b.deps.Notifier.ToUser(ctx, userID, alert.DestinationDriving, payload); err != nil {
		return err
	}
	metrics.DrivingBroadcasts.Inc()
	return nil
}
