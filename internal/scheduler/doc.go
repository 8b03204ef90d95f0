// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

// Package scheduler runs the repeat notification rounds of an alert.
//
// Each alert gets one goroutine with a bounded lifetime: after an initial
// delay it runs a fixed number of rounds, one Interval apart, then exits.
// The next wait starts only after a round returns, so rounds of one alert
// never overlap. Different alerts run in parallel.
//
//	sched := scheduler.New(scheduler.Config{Rounds: 18, Interval: 10 * time.Second})
//	task := sched.Start("acc-1", func(ctx context.Context, round int) {
//	    // rescan and notify new entrants
//	})
//	<-task.Done()
//
// Starting an alert id that is still repeating returns the running task.
// Serve ties the scheduler to a supervisor: when its context ends every task
// is cancelled and awaited.
package scheduler
