// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package store

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// Options selects and configures a backend.
type Options struct {
	Backend        string
	Redis          RedisOptions
	Badger         BadgerOptions
	BreakerEnabled bool
	Breaker        BreakerOptions
}

// Open builds the configured backend, optionally behind a circuit breaker.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)

	switch opts.Backend {
	case BackendMemory, "":
		s = NewMemory()
	case BackendRedis:
		s, err = NewRedis(ctx, opts.Redis)
	case BackendBadger:
		s, err = NewBadger(opts.Badger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	if opts.BreakerEnabled {
		s = NewBreaker(s, opts.Breaker)
	}
	return s, nil
}
