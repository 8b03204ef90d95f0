// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/drivecast/internal/logging"
	"github.com/tomtom215/drivecast/internal/metrics"
)

const (
	// DefaultRounds is the number of repeat rounds per alert.
	DefaultRounds = 18
	// DefaultInterval is the time between rounds.
	DefaultInterval = 10 * time.Second
)

// RoundFunc runs one repeat round. round starts at 1. ctx is cancelled when
// the task is cancelled or the scheduler stops.
type RoundFunc func(ctx context.Context, round int)

// Config controls task timing.
type Config struct {
	Rounds   int
	Interval time.Duration
	// InitialDelay precedes the first round. Zero means one Interval.
	InitialDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Rounds <= 0 {
		c.Rounds = DefaultRounds
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = c.Interval
	}
	return c
}

// Lifetime is the longest a task can keep running rounds when each round
// takes at most roundBudget. It is measured from Start.
func (c Config) Lifetime(roundBudget time.Duration) time.Duration {
	c = c.withDefaults()
	return c.InitialDelay +
		time.Duration(c.Rounds-1)*c.Interval +
		time.Duration(c.Rounds)*roundBudget
}

// Task is one alert's repeat schedule.
type Task struct {
	alertID   string
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	completed atomic.Int32
}

// AlertID returns the alert this task repeats.
func (t *Task) AlertID() string { return t.alertID }

// Cancel stops the task before its next round. A running round sees its
// context cancelled.
func (t *Task) Cancel() { t.cancel() }

// Done is closed when the task has terminated.
func (t *Task) Done() <-chan struct{} { return t.done }

// Completed returns the number of rounds that have finished.
func (t *Task) Completed() int { return int(t.completed.Load()) }

// Scheduler owns the repeat tasks of this node.
type Scheduler struct {
	cfg Config

	mu     sync.Mutex
	tasks  map[string]*Task
	closed bool

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler.
func New(cfg Config) *Scheduler {
	root, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:    cfg.withDefaults(),
		tasks:  make(map[string]*Task),
		root:   root,
		cancel: cancel,
	}
}

// Start begins repeating fn for alertID. If alertID is already repeating the
// running task is returned and fn is ignored. After Stop, Start returns a
// task that is already done.
func (s *Scheduler) Start(alertID string, fn RoundFunc) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tasks[alertID]; ok {
		return t
	}

	ctx, cancel := context.WithCancel(s.root)
	t := &Task{alertID: alertID, ctx: ctx, cancel: cancel, done: make(chan struct{})}
	if s.closed {
		cancel()
		close(t.done)
		return t
	}

	s.tasks[alertID] = t
	s.wg.Add(1)
	metrics.RepeatTasksActive.Inc()
	go s.run(t, fn)
	return t
}

// Lifetime reports Config.Lifetime for this scheduler's timing.
func (s *Scheduler) Lifetime(roundBudget time.Duration) time.Duration {
	return s.cfg.Lifetime(roundBudget)
}

// Cancel stops the task for alertID. It reports whether a task was running.
func (s *Scheduler) Cancel(alertID string) bool {
	s.mu.Lock()
	t, ok := s.tasks[alertID]
	s.mu.Unlock()
	if ok {
		t.Cancel()
	}
	return ok
}

// Active returns the number of running tasks.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Serve blocks until ctx is done, then stops every task.
func (s *Scheduler) Serve(ctx context.Context) error {
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

// Stop cancels every task and waits for them to exit. Later Starts are
// no-ops.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) run(t *Task, fn RoundFunc) {
	defer s.finish(t)

	log := logging.With().Str("alert_id", t.alertID).Logger()
	wait := s.cfg.InitialDelay
	for round := 1; round <= s.cfg.Rounds; round++ {
		if !sleep(t.ctx, wait) {
			log.Debug().Int("completed", t.Completed()).Msg("Repeat task cancelled")
			return
		}
		s.runRound(t, fn, round)
		wait = s.cfg.Interval
	}
	log.Debug().Int("rounds", t.Completed()).Msg("Repeat task finished")
}

func (s *Scheduler) runRound(t *Task, fn RoundFunc, round int) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Str("alert_id", t.alertID).
				Int("round", round).
				Interface("panic", r).
				Msg("Repeat round panicked")
		}
		t.completed.Add(1)
	}()
	fn(t.ctx, round)
}

func (s *Scheduler) finish(t *Task) {
	s.mu.Lock()
	if s.tasks[t.alertID] == t {
		delete(s.tasks, t.alertID)
	}
	s.mu.Unlock()

	t.cancel()
	close(t.done)
	metrics.RepeatTasksActive.Dec()
	s.wg.Done()
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return ctx.Err() == nil
	}
}
