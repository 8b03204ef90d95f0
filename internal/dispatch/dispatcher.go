// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/drivecast/internal/alert"
	"github.com/tomtom215/drivecast/internal/ledger"
	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/metrics"
	"github.com/tomtom215/drivecast/internal/scheduler"
	"github.com/tomtom215/drivecast/internal/vicinity"
)

// ErrUnknownKind is returned for an event whose kind has no policy.
var ErrUnknownKind = errors.New("dispatch: unknown alert kind")

// DefaultRoundBudget is the time one repeat round may take: the vicinity
// scan with its retry backoff plus the sends.
const DefaultRoundBudget = 2 * time.Second

// Finder locates users near a point.
type Finder interface {
	FindNearby(ctx context.Context, q vicinity.Query) []string
}

// Ledger gates deliveries and keeps accident snapshots.
type Ledger interface {
	ClaimIfFirst(ctx context.Context, alertID, userID string, ttl time.Duration) bool
	StoreSnapshot(ctx context.Context, alertID string, data []byte, ttl time.Duration) error
}

// Notifier delivers a payload to a user wherever they are connected.
type Notifier interface {
	ToUser(ctx context.Context, userID, destination string, payload []byte) error
}

// Repeater schedules repeat rounds per alert. Lifetime bounds how long a
// started task can keep running rounds.
type Repeater interface {
	Start(alertID string, fn scheduler.RoundFunc) *scheduler.Task
	Lifetime(roundBudget time.Duration) time.Duration
}

// DrivingTracker follows DRIVE_START and DRIVE_END events.
type DrivingTracker interface {
	Begin(ctx context.Context, userID string, at time.Time)
	End(ctx context.Context, userID string)
}

// Config holds dispatcher tunables. Zero values select the ledger defaults.
type Config struct {
	// DedupTTL is raised to cover the repeat lifetime when a Repeater is set.
	DedupTTL time.Duration

	// RoundBudget bounds one repeat round. Zero means DefaultRoundBudget.
	RoundBudget time.Duration

	SnapshotTTL time.Duration

	// Lookback overrides the per-kind scan lookback when positive.
	Lookback int
}

// Deps are the collaborators of a Dispatcher. Driving may be nil.
type Deps struct {
	Finder   Finder
	Ledger   Ledger
	Notifier Notifier
	Repeater Repeater
	Driving  DrivingTracker
}

// Dispatcher routes events to recipients.
type Dispatcher struct {
	deps     Deps
	cfg      Config
	registry *alert.Registry
	now      func() time.Time

	// since measures elapsed wall time from the initial claims.
	since func(time.Time) time.Duration
}

// New creates a dispatcher.
func New(deps Deps, cfg Config) *Dispatcher {
	if cfg.RoundBudget <= 0 {
		cfg.RoundBudget = DefaultRoundBudget
	}
	cfg.DedupTTL = DedupTTLFor(cfg.DedupTTL, cfg.RoundBudget, deps.Repeater)
	return &Dispatcher{
		deps:     deps,
		cfg:      cfg,
		registry: alert.NewRegistry(),
		now:      time.Now,
		since:    time.Since,
	}
}

// DedupTTLFor returns the claim TTL to use with r. A claim must outlive every
// repeat round of its alert, otherwise a late round could claim the same
// (alert, user) pair again. The result is at least the repeat lifetime plus
// a tenth.
func DedupTTLFor(ttl, roundBudget time.Duration, r Repeater) time.Duration {
	if ttl <= 0 {
		ttl = ledger.DefaultDedupTTL
	}
	if r == nil {
		return ttl
	}
	lifetime := r.Lifetime(roundBudget)
	if least := lifetime + lifetime/10; ttl < least {
		logging.Warn().
			Dur("configured", ttl).
			Dur("effective", least).
			Msg("Dedup TTL shorter than the repeat lifetime, extending it")
		return least
	}
	return ttl
}

// DedupTTL returns the claim TTL in effect.
func (d *Dispatcher) DedupTTL() time.Duration { return d.cfg.DedupTTL }

func (d *Dispatcher) policy(k alert.Kind) (alert.Policy, bool) {
	p, ok := alert.PolicyFor(k)
	if ok && d.cfg.Lookback > 0 && k.Spatial() {
		p.Lookback = d.cfg.Lookback
	}
	return p, ok
}

// Handle processes one event. It returns an error only when the event's kind
// is not dispatchable; delivery problems are logged and skipped.
func (d *Dispatcher) Handle(ctx context.Context, ev alert.Event) error {
	kind := ev.Kind()
	p, ok := d.policy(kind)
	if !ok {
		metrics.RecordAlertHandled(kind.String(), "rejected")
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	id := alert.Identity(ev)
	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx).With().
		Str("alert_id", id).
		Str("kind", kind.String()).
		Str("user_id", ev.UserID()).
		Logger()

	if kind.Driving() {
		if err := d.handleDriving(ctx, ev); err != nil {
			metrics.RecordAlertHandled(kind.String(), "error")
			return err
		}
		metrics.RecordAlertHandled(kind.String(), "handled")
		return nil
	}

	if kind == alert.KindAccident {
		d.storeSnapshot(ctx, id, ev)
	}

	claimedAt := time.Now()
	sent := d.initialRound(ctx, ev, id, p)
	log.Info().Int("notified", sent).Msg("Initial round complete")

	if p.Repeat && d.deps.Repeater != nil {
		d.deps.Repeater.Start(id, d.repeatRound(ev, id, p, claimedAt))
	}
	metrics.RecordAlertHandled(kind.String(), "handled")
	return nil
}

// initialRound notifies the originator when the kind asks for it, then the
// users found around the event at its own timestamp.
func (d *Dispatcher) initialRound(ctx context.Context, ev alert.Event, id string, p alert.Policy) int {
	sent := 0
	if p.NotifyOriginator && ev.UserID() != "" {
		if d.deliver(ctx, ev, id, ev.UserID()) {
			sent++
		}
	}

	exclude := ""
	if p.ExcludeOriginator {
		exclude = ev.UserID()
	}
	q := vicinity.QueryFor(p, ev.Point(), ev.Time(), exclude)
	for _, userID := range d.deps.Finder.FindNearby(ctx, q) {
		if d.deliver(ctx, ev, id, userID) {
			sent++
		}
	}
	return sent
}

// repeatRound rescans at the current time, always excluding the originator.
// No claim is attempted once the initial claims are within one round budget
// of expiring.
func (d *Dispatcher) repeatRound(ev alert.Event, id string, p alert.Policy, claimedAt time.Time) scheduler.RoundFunc {
	return func(ctx context.Context, round int) {
		if d.claimsExpiring(claimedAt) {
			logging.Ctx(ctx).Warn().
				Str("alert_id", id).
				Int("round", round).
				Msg("Repeat round skipped, initial claims about to expire")
			return
		}
		metrics.RepeatRounds.WithLabelValues(ev.Kind().String()).Inc()
		q := vicinity.QueryFor(p, ev.Point(), d.now(), ev.UserID())
		sent := 0
		for _, userID := range d.deps.Finder.FindNearby(ctx, q) {
			if ctx.Err() != nil || d.claimsExpiring(claimedAt) {
				return
			}
			if d.deliver(ctx, ev, id, userID) {
				sent++
			}
		}
		if sent > 0 {
			logging.Ctx(ctx).Info().
				Str("alert_id", id).
				Int("round", round).
				Int("notified", sent).
				Msg("Repeat round notified new users")
		}
	}
}

func (d *Dispatcher) claimsExpiring(claimedAt time.Time) bool {
	return d.since(claimedAt)+d.cfg.RoundBudget >= d.cfg.DedupTTL
}

// deliver claims (id, userID) and sends the mapped message. It reports
// whether a message was handed to the notifier.
func (d *Dispatcher) deliver(ctx context.Context, ev alert.Event, id, userID string) bool {
	if !d.deps.Ledger.ClaimIfFirst(ctx, id, userID, d.cfg.DedupTTL) {
		return false
	}
	return d.send(ctx, ev, userID)
}

func (d *Dispatcher) send(ctx context.Context, ev alert.Event, userID string) bool {
	msg, dest, err := d.registry.Map(ev, userID)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("Message mapping failed")
		return false
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("Message encoding failed")
		return false
	}
	if err := d.deps.Notifier.ToUser(ctx, userID, dest, payload); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("user_id", userID).
			Str("type", msg.Type).
			Msg("Notification delivery failed")
		return false
	}
	metrics.RecordNotification(ev.Kind().String(), msg.Type)
	return true
}

func (d *Dispatcher) handleDriving(ctx context.Context, ev alert.Event) error {
	if d.deps.Driving != nil {
		switch ev.Kind() {
		case alert.KindDriveStart:
			d.deps.Driving.Begin(ctx, ev.UserID(), ev.Time())
		case alert.KindDriveEnd:
			d.deps.Driving.End(ctx, ev.UserID())
		}
	}
	if _, _, err := d.registry.Map(ev, ev.UserID()); err != nil {
		return err
	}
	d.send(ctx, ev, ev.UserID())
	return nil
}

func (d *Dispatcher) storeSnapshot(ctx context.Context, id string, ev alert.Event) {
	data, err := ev.MarshalJSON()
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("alert_id", id).Msg("Snapshot encoding failed")
		return
	}
	if err := d.deps.Ledger.StoreSnapshot(ctx, id, data, d.cfg.SnapshotTTL); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("alert_id", id).Msg("Snapshot write failed")
	}
}
