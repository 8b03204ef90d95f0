// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/drivecast/internal/geo"
	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/metrics"
)

// BreakerOptions configures the store circuit breaker.
type BreakerOptions struct {
	Name             string
	MaxRequests      uint32        // probes allowed in half-open state
	Interval         time.Duration // closed-state count reset period
	Timeout          time.Duration // open duration before probing
	FailureThreshold uint32        // consecutive failures that open the circuit
}

// DefaultBreakerOptions returns settings tuned for a low-latency store: trip
// after 5 straight failures, probe again after 10s.
func DefaultBreakerOptions() BreakerOptions {
	return BreakerOptions{
		Name:             "store",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// Breaker wraps a Store with a circuit breaker. While the circuit is open
// every call fails immediately with gobreaker.ErrOpenState.
type Breaker struct {
	next Store
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// NewBreaker wraps next.
func NewBreaker(next Store, opts BreakerOptions) *Breaker {
	if opts.Name == "" {
		opts.Name = "store"
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}

	metrics.CircuitBreakerState.WithLabelValues(opts.Name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(opts.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: opts.MaxRequests,
		Interval:    opts.Interval,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Store circuit breaker state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
		// Cancellation by the caller says nothing about store health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Breaker{next: next, cb: cb, name: opts.Name}
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// execute runs fn through the breaker and records the outcome.
func (b *Breaker) execute(op string, fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		metrics.RecordStoreError(op)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).
				Set(float64(b.cb.Counts().ConsecutiveFailures))
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	return result, nil
}

// castResult converts the breaker's untyped result back to T.
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

type lookup[T any] struct {
	value T
	ok    bool
}

// SetIfAbsent implements Store.
func (b *Breaker) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return castResult[bool](b.execute("set_if_absent", func() (any, error) {
		return b.next.SetIfAbsent(ctx, key, value, ttl)
	}))
}

// Get implements Store.
func (b *Breaker) Get(ctx context.Context, key string) (string, bool, error) {
	r, err := castResult[lookup[string]](b.execute("get", func() (any, error) {
		v, ok, err := b.next.Get(ctx, key)
		return lookup[string]{value: v, ok: ok}, err
	}))
	return r.value, r.ok, err
}

// Set implements Store.
func (b *Breaker) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := b.execute("set", func() (any, error) {
		return nil, b.next.Set(ctx, key, value, ttl)
	})
	return err
}

// Delete implements Store.
func (b *Breaker) Delete(ctx context.Context, key string) error {
	_, err := b.execute("delete", func() (any, error) {
		return nil, b.next.Delete(ctx, key)
	})
	return err
}

// DeleteIfEquals implements Store.
func (b *Breaker) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	return castResult[bool](b.execute("delete_if_equals", func() (any, error) {
		return b.next.DeleteIfEquals(ctx, key, value)
	}))
}

// ExpireIfEquals implements Store.
func (b *Breaker) ExpireIfEquals(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return castResult[bool](b.execute("expire_if_equals", func() (any, error) {
		return b.next.ExpireIfEquals(ctx, key, value, ttl)
	}))
}

// GeoAdd implements Store.
func (b *Breaker) GeoAdd(ctx context.Context, bucket, member string, p geo.Point, ttl time.Duration) error {
	_, err := b.execute("geo_add", func() (any, error) {
		return nil, b.next.GeoAdd(ctx, bucket, member, p, ttl)
	})
	return err
}

// GeoRadius implements Store.
func (b *Breaker) GeoRadius(ctx context.Context, bucket string, center geo.Point, radiusMeters float64) ([]string, error) {
	return castResult[[]string](b.execute("geo_radius", func() (any, error) {
		return b.next.GeoRadius(ctx, bucket, center, radiusMeters)
	}))
}

// GeoPosition implements Store.
func (b *Breaker) GeoPosition(ctx context.Context, bucket, member string) (geo.Point, bool, error) {
	r, err := castResult[lookup[geo.Point]](b.execute("geo_position", func() (any, error) {
		p, ok, err := b.next.GeoPosition(ctx, bucket, member)
		return lookup[geo.Point]{value: p, ok: ok}, err
	}))
	return r.value, r.ok, err
}

// Close closes the wrapped store.
func (b *Breaker) Close() error {
	return b.next.Close()
}
