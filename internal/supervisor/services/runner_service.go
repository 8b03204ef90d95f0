// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package services

import (
	"context"
	"errors"
)

// Runner is a component whose loop blocks until ctx ends.
//
// Satisfied by *relay.Heartbeat, *driving.Broadcaster,
// *driving.CachedTraits, *ingest.Consumer and *websocket.Hub (through
// RunFunc(hub.RunWithContext)).
type Runner interface {
	Run(ctx context.Context) error
}

// RunFunc adapts a plain function to Runner.
type RunFunc func(ctx context.Context) error

// Run calls f(ctx).
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// RunnerService supervises a Runner under a fixed name.
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService wraps r. name shows up in supervisor log events.
func NewRunnerService(name string, r Runner) *RunnerService {
	return &RunnerService{runner: r, name: name}
}

// Serve implements suture.Service.
//
// A runner that returns nil before shutdown was requested is reported as
// an error so the supervisor restarts it; the loops wrapped here are
// expected to live as long as the process.
func (s *RunnerService) Serve(ctx context.Context) error {
	err := s.runner.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		return errUnexpectedExit
	}
	return err
}

// String implements fmt.Stringer.
func (s *RunnerService) String() string {
	return s.name
}

var errUnexpectedExit = errors.New("service exited before shutdown")
