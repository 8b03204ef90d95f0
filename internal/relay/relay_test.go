// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package relay

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/drivecast/internal/bus"
	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/store"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

type frame struct {
	destination string
	payload     string
}

type fakeSession struct {
	id string

	mu     sync.Mutex
	frames []frame
	fail   error
}

func newSession(id string) *fakeSession { return &fakeSession{id: id} }

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Send(destination string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.frames = append(s.frames, frame{destination, string(payload)})
	return nil
}

func (s *fakeSession) received() []frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]frame, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *fakeSession) count(destination string) int {
	n := 0
	for _, f := range s.received() {
		if f.destination == destination {
			n++
		}
	}
	return n
}

// cluster is a set of relays sharing one store and one in-memory bus.
type cluster struct {
	store *store.Memory
	bus   *bus.Memory
}

func newCluster(t *testing.T) *cluster {
	t.Helper()
	c := &cluster{store: store.NewMemory(), bus: bus.NewMemory()}
	t.Cleanup(func() {
		_ = c.bus.Close()
		_ = c.store.Close()
	})
	return c
}

func (c *cluster) node(t *testing.T, id string) *Relay {
	t.Helper()
	r, err := New(Config{NodeID: id}, c.store, c.bus)
	if err != nil {
		t.Fatalf("New(%s): %v", id, err)
	}
	r.now = func() time.Time { return time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC) }
	stop, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("Start(%s): %v", id, err)
	}
	t.Cleanup(stop)
	return r
}

func TestNewRequiresNodeID(t *testing.T) {
	if _, err := New(Config{NodeID: "  "}, store.NewMemory(), bus.NewMemory()); err == nil {
		t.Fatal("expected error for blank node id")
	}
}

func TestConnectTakesOwnership(t *testing.T) {
	c := newCluster(t)
	n1 := c.node(t, "n1")
	ctx := context.Background()

	prev, err := n1.Connect(ctx, "u1", newSession("s1"))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if prev != "" {
		t.Errorf("previous owner = %q, want none", prev)
	}
	owner, ok := n1.Ownership().Owner(ctx, "u1")
	if !ok || owner != "n1" {
		t.Errorf("owner = %q, %v; want n1", owner, ok)
	}

	if _, err := n1.Connect(ctx, "", newSession("s2")); err == nil {
		t.Error("expected error for blank user")
	}
}

func TestOwnershipTakeover(t *testing.T) {
	c := newCluster(t)
	n1 := c.node(t, "n1")
	n2 := c.node(t, "n2")
	ctx := context.Background()

	var kicks []Kick
	var kmu sync.Mutex
	spy, err := c.bus.Subscribe(ctx, KickChannel, func(_ context.Context, data []byte) {
		k, err := DecodeKick(data)
		if err != nil {
			t.Errorf("DecodeKick: %v", err)
			return
		}
		kmu.Lock()
		kicks = append(kicks, k)
		kmu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer spy.Unsubscribe()

	s1 := newSession("s1")
	s2 := newSession("s2")
	if _, err := n1.Connect(ctx, "U", s1); err != nil {
		t.Fatal(err)
	}
	prev, err := n2.Connect(ctx, "U", s2)
	if err != nil {
		t.Fatal(err)
	}
	if prev != "n1" {
		t.Fatalf("previous owner = %q, want n1", prev)
	}

	owner, _ := n2.Ownership().Owner(ctx, "U")
	if owner != "n2" {
		t.Fatalf("owner = %q, want n2", owner)
	}

	kmu.Lock()
	if len(kicks) != 1 {
		t.Fatalf("observed %d kicks, want 1", len(kicks))
	}
	want := Kick{UserID: "U", TargetNodeID: "n1", Reason: DefaultKickReason, SourceNodeID: "n2"}
	if kicks[0] != want {
		t.Errorf("kick = %+v, want %+v", kicks[0], want)
	}
	kmu.Unlock()

	// The replaced session got exactly one notice and is no longer routed.
	frames := s1.received()
	if len(frames) != 1 || frames[0].destination != SystemDestination {
		t.Fatalf("s1 frames = %+v, want one system notice", frames)
	}
	var notice Notice
	if err := json.Unmarshal([]byte(frames[0].payload), &notice); err != nil {
		t.Fatalf("decode notice: %v", err)
	}
	if notice.Type != NoticeConnectionReplaced || notice.Message != DefaultKickReason {
		t.Errorf("notice = %+v", notice)
	}
	if notice.Timestamp != "2026-08-01T08:00:00Z" {
		t.Errorf("notice timestamp = %q", notice.Timestamp)
	}
	if _, ok := n1.Registry().Get("U"); ok {
		t.Error("n1 still routes U after kick")
	}

	// Messages for U land on n2 only, whichever node sends them.
	if err := n2.ToUser(ctx, "U", "/queue/incident", []byte(`{"type":"accident"}`)); err != nil {
		t.Fatal(err)
	}
	if err := n1.ToUser(ctx, "U", "/queue/incident", []byte(`{"type":"obstacle"}`)); err != nil {
		t.Fatal(err)
	}
	if got := s2.count("/queue/incident"); got != 2 {
		t.Errorf("n2 session got %d incident frames, want 2", got)
	}
	if got := s1.count("/queue/incident"); got != 0 {
		t.Errorf("n1 session got %d incident frames, want 0", got)
	}

	// The old socket closing later must not release n2's ownership.
	n1.Disconnect(ctx, "s1")
	owner, _ = n2.Ownership().Owner(ctx, "U")
	if owner != "n2" {
		t.Errorf("owner after stale disconnect = %q, want n2", owner)
	}
}

func TestStaleKickKeepsNewerSession(t *testing.T) {
	c := newCluster(t)
	n1 := c.node(t, "n1")
	n2 := c.node(t, "n2")
	ctx := context.Background()

	var kicks [][]byte
	var kmu sync.Mutex
	spy, err := c.bus.Subscribe(ctx, KickChannel, func(_ context.Context, data []byte) {
		kmu.Lock()
		kicks = append(kicks, append([]byte(nil), data...))
		kmu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer spy.Unsubscribe()

	// U moves n1 -> n2 -> n1.
	if _, err := n1.Connect(ctx, "U", newSession("s1")); err != nil {
		t.Fatal(err)
	}
	if _, err := n2.Connect(ctx, "U", newSession("s2")); err != nil {
		t.Fatal(err)
	}
	s3 := newSession("s3")
	if _, err := n1.Connect(ctx, "U", s3); err != nil {
		t.Fatal(err)
	}

	kmu.Lock()
	if len(kicks) != 2 {
		kmu.Unlock()
		t.Fatalf("observed %d kicks, want 2", len(kicks))
	}
	late := kicks[0]
	kmu.Unlock()

	// n2's kick for the first n1 connection arrives after the reconnect.
	n1.handleKick(ctx, late)

	s, ok := n1.Registry().Get("U")
	if !ok || s.ID() != "s3" {
		t.Fatalf("n1 session for U = %v, %v; want s3", s, ok)
	}
	if got := s3.count(SystemDestination); got != 0 {
		t.Errorf("s3 got %d replacement notices, want 0", got)
	}
	if owner, _ := n1.Ownership().Owner(ctx, "U"); owner != "n1" {
		t.Errorf("owner = %q, want n1", owner)
	}
}

func TestRegisterWritesOwnerBeforeKick(t *testing.T) {
	c := newCluster(t)
	n1 := c.node(t, "n1")
	n2 := c.node(t, "n2")
	ctx := context.Background()

	if _, err := n1.Connect(ctx, "U", newSession("s1")); err != nil {
		t.Fatal(err)
	}

	var ownerAtKick string
	spy, err := c.bus.Subscribe(ctx, KickChannel, func(ctx context.Context, _ []byte) {
		ownerAtKick, _, _ = c.store.Get(ctx, OwnershipKey("U"))
	})
	if err != nil {
		t.Fatal(err)
	}
	defer spy.Unsubscribe()

	if _, err := n2.Connect(ctx, "U", newSession("s2")); err != nil {
		t.Fatal(err)
	}
	if ownerAtKick != "n2" {
		t.Errorf("owner seen by kick receivers = %q, want n2", ownerAtKick)
	}
}

func TestReconnectSameNodeDoesNotKick(t *testing.T) {
	c := newCluster(t)
	n1 := c.node(t, "n1")
	ctx := context.Background()

	kicks := 0
	spy, _ := c.bus.Subscribe(ctx, KickChannel, func(context.Context, []byte) { kicks++ })
	defer spy.Unsubscribe()

	old := newSession("old")
	_, _ = n1.Connect(ctx, "U", old)
	prev, _ := n1.Connect(ctx, "U", newSession("new"))

	if prev != "n1" {
		t.Errorf("previous owner = %q, want n1", prev)
	}
	if kicks != 0 {
		t.Errorf("kicks = %d, want 0", kicks)
	}
	s, _ := n1.Registry().Get("U")
	if s.ID() != "new" {
		t.Errorf("active session = %s, want new", s.ID())
	}

	// Closing the replaced socket keeps the user owned by n1.
	n1.Disconnect(ctx, "old")
	if owner, ok := n1.Ownership().Owner(ctx, "U"); !ok || owner != "n1" {
		t.Errorf("owner = %q, %v; want n1", owner, ok)
	}
}

func TestDisconnectReleasesOwnership(t *testing.T) {
	c := newCluster(t)
	n1 := c.node(t, "n1")
	ctx := context.Background()

	_, _ = n1.Connect(ctx, "U", newSession("s1"))
	n1.Disconnect(ctx, "s1")

	if _, ok := n1.Ownership().Owner(ctx, "U"); ok {
		t.Error("ownership survived disconnect")
	}
	if n1.Registry().Len() != 0 {
		t.Error("registry not empty after disconnect")
	}
	n1.Disconnect(ctx, "unknown")
}

func TestUnregisterRespectsOtherOwner(t *testing.T) {
	c := newCluster(t)
	n1 := c.node(t, "n1")
	ctx := context.Background()

	_ = c.store.Set(ctx, OwnershipKey("U"), "n2", time.Minute)
	if n1.Ownership().Unregister(ctx, "U") {
		t.Error("n1 released ownership held by n2")
	}
	if n1.Ownership().Refresh(ctx, "U") {
		t.Error("n1 refreshed ownership held by n2")
	}
	if owner, _ := n1.Ownership().Owner(ctx, "U"); owner != "n2" {
		t.Errorf("owner = %q, want n2", owner)
	}
}

func TestToUser(t *testing.T) {
	ctx := context.Background()

	t.Run("blank user is a no-op", func(t *testing.T) {
		c := newCluster(t)
		n1 := c.node(t, "n1")
		published := 0
		spy, _ := c.bus.Subscribe(ctx, MessageChannel, func(context.Context, []byte) { published++ })
		defer spy.Unsubscribe()

		if err := n1.ToUser(ctx, " ", "/queue/incident", []byte(`{}`)); err != nil {
			t.Fatal(err)
		}
		if published != 0 {
			t.Errorf("published %d envelopes, want 0", published)
		}
	})

	t.Run("local delivery happens once despite publish to self", func(t *testing.T) {
		c := newCluster(t)
		n1 := c.node(t, "n1")
		s := newSession("s1")
		_, _ = n1.Connect(ctx, "U", s)

		var env Envelope
		spy, _ := c.bus.Subscribe(ctx, MessageChannel, func(_ context.Context, data []byte) {
			env, _ = DecodeEnvelope(data)
		})
		defer spy.Unsubscribe()

		if err := n1.ToUser(ctx, "U", "/queue/incident", []byte(`{"type":"pothole"}`)); err != nil {
			t.Fatal(err)
		}
		if got := s.count("/queue/incident"); got != 1 {
			t.Errorf("local frames = %d, want 1", got)
		}
		if env.SourceNodeID != "n1" || env.UserID != "U" || string(env.Payload) != `{"type":"pothole"}` {
			t.Errorf("envelope = %+v", env)
		}
	})

	t.Run("remote node delivers", func(t *testing.T) {
		c := newCluster(t)
		n1 := c.node(t, "n1")
		n2 := c.node(t, "n2")
		s := newSession("s2")
		_, _ = n2.Connect(ctx, "U", s)

		if err := n1.SendJSON(ctx, "U", "/queue/driving", map[string]string{"type": "start"}); err != nil {
			t.Fatal(err)
		}
		frames := s.received()
		if len(frames) != 1 || frames[0].payload != `{"type":"start"}` {
			t.Errorf("frames = %+v", frames)
		}
	})

	t.Run("local send failure still publishes", func(t *testing.T) {
		c := newCluster(t)
		n1 := c.node(t, "n1")
		s := newSession("s1")
		s.fail = errors.New("buffer full")
		_, _ = n1.Connect(ctx, "U", s)

		published := 0
		spy, _ := c.bus.Subscribe(ctx, MessageChannel, func(context.Context, []byte) { published++ })
		defer spy.Unsubscribe()

		if err := n1.ToUser(ctx, "U", "/queue/incident", []byte(`{}`)); err != nil {
			t.Fatal(err)
		}
		if published != 1 {
			t.Errorf("published = %d, want 1", published)
		}
	})

	t.Run("closed bus surfaces error", func(t *testing.T) {
		c := newCluster(t)
		n1 := c.node(t, "n1")
		_ = c.bus.Close()
		if err := n1.ToUser(ctx, "U", "/queue/incident", []byte(`{}`)); !errors.Is(err, bus.ErrClosed) {
			t.Errorf("err = %v, want bus.ErrClosed", err)
		}
	})
}

func TestHandleKickIgnoresOthers(t *testing.T) {
	c := newCluster(t)
	n1 := c.node(t, "n1")
	ctx := context.Background()
	s := newSession("s1")
	_, _ = n1.Connect(ctx, "U", s)

	tests := []struct {
		name string
		kick Kick
	}{
		{"addressed to another node", Kick{UserID: "U", TargetNodeID: "n3", SourceNodeID: "n2"}},
		{"sent by self", Kick{UserID: "U", TargetNodeID: "n1", SourceNodeID: "n1"}},
		{"unknown user", Kick{UserID: "V", TargetNodeID: "n1", SourceNodeID: "n2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, _ := json.Marshal(tt.kick)
			n1.handleKick(ctx, data)
		})
	}
	n1.handleKick(ctx, []byte("not json"))

	if got := len(s.received()); got != 0 {
		t.Errorf("session got %d frames, want 0", got)
	}
	if _, ok := n1.Registry().Get("U"); !ok {
		t.Error("session detached by an unrelated kick")
	}
}

func TestDecodeEnvelopeRejectsIncomplete(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing user", `{"destination":"/queue/system","payload":{}}`},
		{"missing destination", `{"userId":"U","payload":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeEnvelope([]byte(tt.body)); !errors.Is(err, ErrMalformed) {
				t.Errorf("err = %v, want ErrMalformed", err)
			}
		})
	}
}
