// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package presence

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/store"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

var ref = time.Date(2026, 8, 27, 9, 23, 45, 0, time.UTC)

func TestFreshBoundary(t *testing.T) {
	const skew = 5 * time.Second

	tests := []struct {
		name     string
		lastSeen time.Time
		want     bool
	}{
		{"exact", ref, true},
		{"5s before", ref.Add(-5 * time.Second), true},
		{"5s after", ref.Add(5 * time.Second), true},
		{"5s+1ms before", ref.Add(-5*time.Second - time.Millisecond), false},
		{"5s+1ms after", ref.Add(5*time.Second + time.Millisecond), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fresh(tt.lastSeen, ref, skew); got != tt.want {
				t.Errorf("Fresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrackerRoundTrip(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(store.NewMemory())

	if _, ok := tr.LastSeen(ctx, "u1"); ok {
		t.Fatal("unknown user should be absent")
	}
	if tr.IsFresh(ctx, "u1", ref, time.Hour) {
		t.Fatal("absent user must never be fresh")
	}

	seen := ref.Add(-5 * time.Second)
	if err := tr.MarkSeen(ctx, "u1", seen); err != nil {
		t.Fatal(err)
	}
	got, ok := tr.LastSeen(ctx, "u1")
	if !ok || !got.Equal(seen) {
		t.Errorf("LastSeen = %v, %v; want %v", got, ok, seen)
	}
	if !tr.IsFresh(ctx, "u1", ref, 5*time.Second) {
		t.Error("5s old record should be fresh with 5s skew")
	}

	_ = tr.MarkSeen(ctx, "u1", seen.Add(-time.Millisecond))
	if tr.IsFresh(ctx, "u1", ref, 5*time.Second) {
		t.Error("5.001s old record should not be fresh")
	}
}

func TestTrackerBlankUser(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(store.NewMemory())

	if err := tr.MarkSeen(ctx, "  ", ref); err != nil {
		t.Errorf("MarkSeen(blank) = %v", err)
	}
	if _, ok := tr.LastSeen(ctx, ""); ok {
		t.Error("blank user should be absent")
	}
}

type brokenStore struct{ store.Store }

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("store unavailable")
}

func TestTrackerDegradesOnStoreError(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(brokenStore{Store: store.NewMemory()})

	if tr.IsFresh(ctx, "u1", ref, time.Hour) {
		t.Error("store failure must read as not fresh")
	}
}

func TestTrackerMalformedRecord(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	_ = s.Set(ctx, Key("u1"), "yesterday", 0)

	if _, ok := NewTracker(s).LastSeen(ctx, "u1"); ok {
		t.Error("malformed record should read as absent")
	}
}
