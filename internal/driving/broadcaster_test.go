// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package driving

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/drivecast/internal/alert"
	"github.com/tomtom215/drivecast/internal/geo"
	"github.com/tomtom215/drivecast/internal/presence"
	"github.com/tomtom215/drivecast/internal/store"
	"github.com/tomtom215/drivecast/internal/vicinity"
)

type staticUsers []string

func (u staticUsers) Users() []string { return u }

type mapTraits map[string]string

func (m mapTraits) Lookup(_ context.Context, ids []string) map[string]string {
	out := map[string]string{}
	for _, id := range ids {
		if c, ok := m[id]; ok {
			out[id] = c
		}
	}
	return out
}

type sent struct {
	userID      string
	destination string
	msg         Message
}

type recordingNotifier struct {
	mu   sync.Mutex
	out  []sent
	fail map[string]error
}

func (n *recordingNotifier) ToUser(_ context.Context, userID, destination string, payload []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.fail[userID]; err != nil {
		return err
	}
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return err
	}
	n.out = append(n.out, sent{userID, destination, m})
	return nil
}

func (n *recordingNotifier) frames() []sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sent(nil), n.out...)
}

// offsetNorth moves p roughly meters north.
func offsetNorth(p geo.Point, meters float64) geo.Point {
	return geo.Point{Lat: p.Lat + meters/111_320, Lng: p.Lng}
}

type world struct {
	ctx      context.Context
	store    *store.Memory
	sessions *Sessions
	recorder *vicinity.Recorder
	detector *vicinity.Detector
	now      time.Time
	origin   geo.Point
}

func newWorld(t *testing.T) *world {
	t.Helper()
	s := store.NewMemory()
	t.Cleanup(func() { _ = s.Close() })
	tracker := presence.NewTracker(s)
	return &world{
		ctx:      context.Background(),
		store:    s,
		sessions: NewSessions(s, 0),
		recorder: vicinity.NewRecorder(s, tracker, time.Hour),
		detector: vicinity.NewDetector(s, tracker),
		now:      time.Now().UTC().Truncate(time.Second),
		origin:   geo.Point{Lat: 37.5665, Lng: 126.9780},
	}
}

func (w *world) place(t *testing.T, userID string, p geo.Point) {
	t.Helper()
	if err := w.recorder.Record(w.ctx, vicinity.Sample{UserID: userID, Point: p, ObservedAt: w.now}); err != nil {
		t.Fatalf("Record(%s): %v", userID, err)
	}
}

func (w *world) broadcaster(users []string, traits mapTraits, n *recordingNotifier) *Broadcaster {
	b := NewBroadcaster(BroadcasterDeps{
		Users:    staticUsers(users),
		Active:   w.sessions,
		Locator:  w.detector,
		Traits:   traits,
		Notifier: n,
	}, BroadcasterConfig{Backoff: []time.Duration{0}})
	b.now = func() time.Time { return w.now }
	return b
}

func TestBroadcasterTick(t *testing.T) {
	w := newWorld(t)

	w.place(t, "ego", w.origin)
	w.place(t, "near-dolphin", offsetNorth(w.origin, 5))
	w.place(t, "near-untraited", offsetNorth(w.origin, 8))
	w.place(t, "far-lion", offsetNorth(w.origin, 100))
	w.place(t, "idle", offsetNorth(w.origin, 3))

	for _, u := range []string{"ego", "ghost"} {
		w.sessions.Begin(w.ctx, u, w.now)
	}

	n := &recordingNotifier{}
	traits := mapTraits{"near-dolphin": "dolphin", "far-lion": "lion", "idle": "cat"}
	// "idle" is connected but not driving; "ghost" drives with no position.
	b := w.broadcaster([]string{"ego", "ghost", "idle"}, traits, n)

	if got := b.Tick(w.ctx); got != 1 {
		t.Fatalf("Tick sent %d frames, want 1", got)
	}

	frames := n.frames()
	if len(frames) != 1 {
		t.Fatalf("frames = %+v", frames)
	}
	f := frames[0]
	if f.userID != "ego" || f.destination != alert.DestinationDriving {
		t.Errorf("sent to %s on %s", f.userID, f.destination)
	}
	if f.msg.Type != MessageType {
		t.Errorf("type = %q, want %q", f.msg.Type, MessageType)
	}
	if f.msg.Payload.Ego.UserID != "ego" || f.msg.Payload.Ego.Pose.Latitude != w.origin.Lat {
		t.Errorf("ego = %+v", f.msg.Payload.Ego)
	}
	if _, err := time.Parse(time.RFC3339Nano, f.msg.Payload.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", f.msg.Payload.Timestamp, err)
	}

	// "idle" is within range with a trait; neighbors need not be driving.
	want := map[string]string{"near-dolphin": "dolphin", "idle": "cat"}
	got := map[string]string{}
	for _, nb := range f.msg.Payload.Neighbors {
		got[nb.UserID] = nb.Character
	}
	if len(got) != len(want) {
		t.Fatalf("neighbors = %+v, want %v", f.msg.Payload.Neighbors, want)
	}
	for id, c := range want {
		if got[id] != c {
			t.Errorf("neighbor %s character = %q, want %q", id, got[id], c)
		}
	}
}

func TestBroadcasterSendsEgoWithoutNeighbors(t *testing.T) {
	w := newWorld(t)
	w.place(t, "ego", w.origin)
	w.sessions.Begin(w.ctx, "ego", w.now)

	n := &recordingNotifier{}
	b := w.broadcaster([]string{"ego"}, mapTraits{}, n)
	if got := b.Tick(w.ctx); got != 1 {
		t.Fatalf("Tick = %d, want 1", got)
	}

	f := n.frames()[0]
	if f.msg.Payload.Neighbors == nil || len(f.msg.Payload.Neighbors) != 0 {
		t.Errorf("neighbors = %#v, want empty list", f.msg.Payload.Neighbors)
	}
}

func TestBroadcasterSkipsStaleNeighbors(t *testing.T) {
	w := newWorld(t)
	w.place(t, "ego", w.origin)
	w.sessions.Begin(w.ctx, "ego", w.now)

	// Seen long ago but still in the current bucket window.
	tracker := presence.NewTracker(w.store)
	if err := w.store.GeoAdd(w.ctx, vicinity.BucketKey(w.now), "stale", offsetNorth(w.origin, 4), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := tracker.MarkSeen(w.ctx, "stale", w.now.Add(-10*time.Minute)); err != nil {
		t.Fatal(err)
	}

	n := &recordingNotifier{}
	b := w.broadcaster([]string{"ego"}, mapTraits{"stale": "lion"}, n)
	b.Tick(w.ctx)

	if nbs := n.frames()[0].msg.Payload.Neighbors; len(nbs) != 0 {
		t.Errorf("neighbors = %+v, want none", nbs)
	}
}

func TestBroadcasterDeliveryFailure(t *testing.T) {
	w := newWorld(t)
	for _, u := range []string{"a", "b"} {
		w.place(t, u, w.origin)
		w.sessions.Begin(w.ctx, u, w.now)
	}

	n := &recordingNotifier{fail: map[string]error{"a": errors.New("publish failed")}}
	b := w.broadcaster([]string{"a", "b"}, mapTraits{}, n)

	if got := b.Tick(w.ctx); got != 1 {
		t.Errorf("Tick = %d, want 1", got)
	}
	if frames := n.frames(); len(frames) != 1 || frames[0].userID != "b" {
		t.Errorf("frames = %+v", frames)
	}
}

func TestBroadcasterIdleTicks(t *testing.T) {
	w := newWorld(t)
	n := &recordingNotifier{}
	b := w.broadcaster(nil, mapTraits{}, n)

	for i := 0; i < 3; i++ {
		if got := b.Tick(w.ctx); got != 0 {
			t.Fatalf("Tick = %d, want 0", got)
		}
	}
	if b.emptyTicks != 3 {
		t.Errorf("emptyTicks = %d, want 3", b.emptyTicks)
	}
}

func TestBroadcasterRunStops(t *testing.T) {
	w := newWorld(t)
	b := NewBroadcaster(BroadcasterDeps{
		Users:    staticUsers(nil),
		Active:   w.sessions,
		Locator:  w.detector,
		Traits:   mapTraits{},
		Notifier: &recordingNotifier{},
	}, BroadcasterConfig{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestBroadcasterConfigDefaults(t *testing.T) {
	cfg := BroadcasterConfig{}.withDefaults()
	if cfg.Interval != time.Second || cfg.RadiusMeters != 15 || cfg.Lookback != 5 ||
		cfg.Freshness != 300*time.Second || cfg.Attempts != 2 || len(cfg.Backoff) != 2 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestSessions(t *testing.T) {
	s := store.NewMemory()
	defer s.Close()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	clock := base
	s.SetClock(func() time.Time { return clock })

	sessions := NewSessions(s, 0)
	ctx := context.Background()

	if sessions.Active(ctx, "u1") {
		t.Fatal("u1 should not be driving yet")
	}

	sessions.Begin(ctx, "u1", base)
	if !sessions.Active(ctx, "u1") {
		t.Fatal("u1 should be driving after Begin")
	}
	if since, ok := sessions.Since(ctx, "u1"); !ok || !since.Equal(base) {
		t.Errorf("Since = %v, %v; want %v", since, ok, base)
	}
	if v, ok, _ := s.Get(ctx, "driving:active:u1"); !ok || v == "" {
		t.Errorf("marker = %q, %v", v, ok)
	}

	sessions.End(ctx, "u1")
	if sessions.Active(ctx, "u1") {
		t.Error("u1 should not be driving after End")
	}

	t.Run("marker expires", func(t *testing.T) {
		sessions.Begin(ctx, "u2", clock)
		clock = clock.Add(DefaultActiveTTL + time.Second)
		if sessions.Active(ctx, "u2") {
			t.Error("marker should expire after the active TTL")
		}
	})

	t.Run("blank user ignored", func(t *testing.T) {
		sessions.Begin(ctx, " ", clock)
		sessions.End(ctx, "")
		if sessions.Active(ctx, "") {
			t.Error("blank user cannot be active")
		}
	})
}
