// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/drivecast/internal/geo"
	"github.com/tomtom215/drivecast/internal/metrics"
)

var errDown = errors.New("connection refused")

// flakyStore fails every call while down is set.
type flakyStore struct {
	Store
	down  bool
	calls int
}

func (f *flakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.calls++
	if f.down {
		return "", false, errDown
	}
	return f.Store.Get(ctx, key)
}

func (f *flakyStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	f.calls++
	if f.down {
		return false, errDown
	}
	return f.Store.SetIfAbsent(ctx, key, value, ttl)
}

func TestBreakerPassesThrough(t *testing.T) {
	ctx := context.Background()
	b := NewBreaker(NewMemory(), BreakerOptions{Name: "test-pass", Timeout: time.Minute})

	ok, err := b.SetIfAbsent(ctx, "k", "v", 0)
	if err != nil || !ok {
		t.Fatalf("SetIfAbsent = %v, %v", ok, err)
	}
	v, found, err := b.Get(ctx, "k")
	if err != nil || !found || v != "v" {
		t.Errorf("Get = %q, %v, %v", v, found, err)
	}
	if _, found, _ := b.Get(ctx, "missing"); found {
		t.Error("missing key reported found")
	}

	if err := b.GeoAdd(ctx, "bucket", "u1", origin, time.Minute); err != nil {
		t.Fatal(err)
	}
	members, err := b.GeoRadius(ctx, "bucket", origin, 10)
	if err != nil || len(members) != 1 {
		t.Errorf("GeoRadius = %v, %v", members, err)
	}
	p, found, err := b.GeoPosition(ctx, "bucket", "u1")
	if err != nil || !found || p != origin {
		t.Errorf("GeoPosition = %v, %v, %v", p, found, err)
	}
	if _, found, _ := b.GeoPosition(ctx, "bucket", "nobody"); found {
		t.Error("unknown member reported found")
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{Store: NewMemory(), down: true}
	b := NewBreaker(flaky, BreakerOptions{Name: "test-open", FailureThreshold: 3, Timeout: time.Hour})

	for i := 0; i < 3; i++ {
		if _, _, err := b.Get(ctx, "k"); !errors.Is(err, errDown) {
			t.Fatalf("call %d error = %v, want errDown", i, err)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	calls := flaky.calls
	if _, err := b.SetIfAbsent(ctx, "k", "v", 0); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error while open = %v, want ErrOpenState", err)
	}
	if flaky.calls != calls {
		t.Error("open breaker must not reach the backend")
	}

	if got := testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("test-open")); got != 2 {
		t.Errorf("state gauge = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.CircuitBreakerRequests.WithLabelValues("test-open", "rejected")); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	ctx := context.Background()
	b := NewBreaker(&cancelStore{Store: NewMemory()}, BreakerOptions{Name: "test-cancel", FailureThreshold: 1, Timeout: time.Hour})

	for i := 0; i < 3; i++ {
		if err := b.Set(ctx, "k", "v", 0); !errors.Is(err, context.Canceled) {
			t.Fatalf("Set error = %v", err)
		}
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

type cancelStore struct{ Store }

func (c *cancelStore) Set(context.Context, string, string, time.Duration) error {
	return context.Canceled
}

func TestCastResult(t *testing.T) {
	if _, err := castResult[bool]("not a bool", nil); err == nil {
		t.Error("expected type error")
	}
	v, err := castResult[[]string](nil, nil)
	if err != nil || v != nil {
		t.Errorf("nil result = %v, %v", v, err)
	}
	if _, err := castResult[geo.Point](nil, errDown); !errors.Is(err, errDown) {
		t.Errorf("error not propagated: %v", err)
	}
}
