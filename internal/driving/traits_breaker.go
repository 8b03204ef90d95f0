// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package driving

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/metrics"
)

// Ensure BreakerTraits implements TraitSource
var _ TraitSource = (*BreakerTraits)(nil)

// BreakerTraits wraps a TraitSource with a circuit breaker so a failing
// trait service costs one fast rejection per lookup instead of a timeout.
type BreakerTraits struct {
	next TraitSource
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// BreakerConfig configures the trait circuit breaker.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32        // consecutive failures that open the circuit
	Timeout          time.Duration // open duration before probing again
}

// NewBreakerTraits wraps next.
// Defaults: open after 5 consecutive failures, probe again after 30s with up
// to 3 requests.
func NewBreakerTraits(next TraitSource, cfg BreakerConfig) *BreakerTraits {
	if cfg.Name == "" {
		cfg.Name = "trait-api"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cfg.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] Trait service state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerTraits{next: next, cb: cb, name: cfg.Name}
}

func breakerStateValue(s gobreaker.State) float64 {
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

// State returns the current breaker state.
func (b *BreakerTraits) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerTraits) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
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

type oneResult struct {
	character string
	ok        bool
}

// GetOne implements TraitSource.
func (b *BreakerTraits) GetOne(ctx context.Context, userID string) (string, bool, error) {
	result, err := b.execute(func() (any, error) {
		character, ok, err := b.next.GetOne(ctx, userID)
		return oneResult{character, ok}, err
	})
	if err != nil {
		return "", false, err
	}
	r, _ := result.(oneResult)
	return r.character, r.ok, nil
}

// GetBulk implements TraitSource.
func (b *BreakerTraits) GetBulk(ctx context.Context) (map[string]string, error) {
	result, err := b.execute(func() (any, error) {
		return b.next.GetBulk(ctx)
	})
	if err != nil {
		return nil, err
	}
	m, _ := result.(map[string]string)
	return m, nil
}
