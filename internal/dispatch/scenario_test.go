// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package dispatch

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/drivecast/internal/alert"
	"github.com/tomtom215/drivecast/internal/bus"
	"github.com/tomtom215/drivecast/internal/geo"
	"github.com/tomtom215/drivecast/internal/ledger"
	"github.com/tomtom215/drivecast/internal/presence"
	"github.com/tomtom215/drivecast/internal/relay"
	"github.com/tomtom215/drivecast/internal/scheduler"
	"github.com/tomtom215/drivecast/internal/store"
	"github.com/tomtom215/drivecast/internal/vicinity"
)

type inbox struct {
	id string

	mu     sync.Mutex
	frames []alert.Message
}

func (b *inbox) ID() string { return b.id }

func (b *inbox) Send(destination string, payload []byte) error {
	if destination != alert.DestinationIncident {
		return nil
	}
	var m alert.Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return err
	}
	b.mu.Lock()
	b.frames = append(b.frames, m)
	b.mu.Unlock()
	return nil
}

func (b *inbox) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.frames))
	for _, f := range b.frames {
		out = append(out, f.Type)
	}
	return out
}

// TestAccidentScenario runs an ACCIDENT through real presence, vicinity,
// ledger and a two-node relay.
func TestAccidentScenario(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	defer s.Close()
	b := bus.NewMemory()
	defer b.Close()

	tracker := presence.NewTracker(s)
	recorder := vicinity.NewRecorder(s, tracker, time.Hour)
	detector := vicinity.NewDetector(s, tracker)

	nodes := map[string]*relay.Relay{}
	for _, id := range []string{"n1", "n2"} {
		r, err := relay.New(relay.Config{NodeID: id}, s, b)
		if err != nil {
			t.Fatal(err)
		}
		stop, err := r.Start(ctx)
		if err != nil {
			t.Fatal(err)
		}
		defer stop()
		nodes[id] = r
	}

	inboxes := map[string]*inbox{}
	connect := func(user, node string) {
		inboxes[user] = &inbox{id: "sess-" + user}
		if _, err := nodes[node].Connect(ctx, user, inboxes[user]); err != nil {
			t.Fatal(err)
		}
	}
	connect("U0", "n1")
	connect("U1", "n1")
	connect("U2", "n2")
	connect("U3", "n2")
	connect("U4", "n2")

	ev := mustEvent(t, alert.Input{
		Type: "accident", AccidentID: "acc-1", UserID: "U0",
		Latitude: f64(37.50), Longitude: f64(126.90), Timestamp: t0,
	})
	at := ev.Time()
	origin := ev.Point()

	record := func(user string, p geo.Point, when time.Time) {
		t.Helper()
		if err := recorder.Record(ctx, vicinity.Sample{UserID: user, Point: p, ObservedAt: when}); err != nil {
			t.Fatalf("Record(%s): %v", user, err)
		}
	}
	record("U0", origin, at)
	record("U1", geo.OffsetMeters(origin, 120, 40), at)
	record("U2", geo.OffsetMeters(origin, -80, 0), at.Add(-2*time.Second))
	// U2's last report is stale relative to the event.
	if err := tracker.MarkSeen(ctx, "U2", at.Add(-2*time.Minute)); err != nil {
		t.Fatal(err)
	}
	record("U3", geo.OffsetMeters(origin, 1000, 0), at)

	repeater := &manualRepeater{}
	d := New(Deps{
		Finder:   detector,
		Ledger:   ledger.New(s),
		Notifier: nodes["n1"],
		Repeater: repeater,
	}, Config{})

	if err := d.Handle(ctx, ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	want := map[string][]string{
		"U0": {alert.TypeAccident},
		"U1": {alert.TypeAccidentNearby},
		"U2": {},
		"U3": {},
		"U4": {},
	}
	check := func(stage string) {
		t.Helper()
		for user, types := range want {
			got := inboxes[user].types()
			if len(got) != len(types) {
				t.Errorf("%s: %s received %v, want %v", stage, user, got, types)
				continue
			}
			for i := range types {
				if got[i] != types[i] {
					t.Errorf("%s: %s received %v, want %v", stage, user, got, types)
				}
			}
		}
	}
	check("initial")

	// U4 enters the radius at t0+20s; the first tick after that notices it.
	later := at.Add(20 * time.Second)
	record("U1", geo.OffsetMeters(origin, 100, 40), later)
	record("U4", geo.OffsetMeters(origin, 0, 150), later)
	d.now = func() time.Time { return later }

	round := repeater.rounds["acc-1"]
	if round == nil {
		t.Fatal("repeat task not started")
	}
	round(ctx, 2)
	want["U4"] = []string{alert.TypeAccidentNearby}
	check("tick")

	// Further ticks never notify anyone twice.
	round(ctx, 3)
	round(ctx, 4)
	check("later ticks")
}

// stayingFinder reports the same users on every scan, as if they never
// leave the radius.
type stayingFinder struct {
	users []string
}

func (f stayingFinder) FindNearby(_ context.Context, q vicinity.Query) []string {
	out := make([]string, 0, len(f.users))
	for _, u := range f.users {
		if u != q.ExcludeUserID {
			out = append(out, u)
		}
	}
	return out
}

// taskRecorder keeps the tasks started on a real scheduler.
type taskRecorder struct {
	*scheduler.Scheduler

	mu    sync.Mutex
	tasks []*scheduler.Task
}

func (r *taskRecorder) Start(alertID string, fn scheduler.RoundFunc) *scheduler.Task {
	task := r.Scheduler.Start(alertID, fn)
	r.mu.Lock()
	r.tasks = append(r.tasks, task)
	r.mu.Unlock()
	return task
}

// TestAccidentFullRepeatLifetime runs the default schedule scaled down 1000x
// (18 rounds at 10ms, a 180ms configured dedup TTL, a 2ms round budget) on
// the real scheduler and ledger. Users who stay in the radius for the whole
// lifetime must still hear about the accident exactly once.
func TestAccidentFullRepeatLifetime(t *testing.T) {
	s := store.NewMemory()
	defer s.Close()

	sched := &taskRecorder{Scheduler: scheduler.New(scheduler.Config{Rounds: 18, Interval: 10 * time.Millisecond})}
	defer sched.Stop()

	notifier := &recordingNotifier{}
	d := New(Deps{
		Finder:   stayingFinder{users: []string{"U0", "U1", "U2"}},
		Ledger:   ledger.New(s),
		Notifier: notifier,
		Repeater: sched,
	}, Config{DedupTTL: 180 * time.Millisecond, RoundBudget: 2 * time.Millisecond})

	if lifetime := sched.Lifetime(2 * time.Millisecond); d.DedupTTL() <= lifetime {
		t.Fatalf("DedupTTL() = %v, want more than the repeat lifetime %v", d.DedupTTL(), lifetime)
	}

	if err := d.Handle(context.Background(), accident(t)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	sched.mu.Lock()
	if len(sched.tasks) != 1 {
		sched.mu.Unlock()
		t.Fatalf("started %d repeat tasks, want 1", len(sched.tasks))
	}
	task := sched.tasks[0]
	sched.mu.Unlock()

	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("repeat task did not finish")
	}
	if task.Completed() != 18 {
		t.Errorf("Completed = %d, want 18", task.Completed())
	}

	if got, want := notifier.users(), []string{"U0", "U1", "U2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("notified %v, want each user exactly once: %v", got, want)
	}
}
