// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package bus

import (
	"context"
	"sync"
)

// Memory is an in-process bus. A single Memory may be shared by several
// simulated nodes. Publish delivers synchronously on the caller's goroutine.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]Handler
	nextID uint64
	closed bool
}

// NewMemory creates an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string]map[uint64]Handler)}
}

// Publish implements Bus.
func (m *Memory) Publish(ctx context.Context, channel string, data []byte) error {
	if channel == "" {
		return ErrEmptyChannel
	}

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	handlers := make([]Handler, 0, len(m.subs[channel]))
	for _, h := range m.subs[channel] {
		handlers = append(handlers, h)
	}
	m.mu.RUnlock()

	for _, h := range handlers {
		body := make([]byte, len(data))
		copy(body, data)
		h(ctx, body)
	}
	return nil
}

// Subscribe implements Bus.
func (m *Memory) Subscribe(_ context.Context, channel string, h Handler) (Subscription, error) {
	if channel == "" {
		return nil, ErrEmptyChannel
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	m.nextID++
	id := m.nextID
	if m.subs[channel] == nil {
		m.subs[channel] = make(map[uint64]Handler)
	}
	m.subs[channel][id] = h
	return &memorySub{bus: m, channel: channel, id: id}, nil
}

// Subscribers returns the number of handlers registered for channel.
func (m *Memory) Subscribers(channel string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[channel])
}

// Close implements Bus. All subscriptions are dropped.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.subs = make(map[string]map[uint64]Handler)
	return nil
}

type memorySub struct {
	bus     *Memory
	channel string
	id      uint64
	once    sync.Once
}

func (s *memorySub) Unsubscribe() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		delete(s.bus.subs[s.channel], s.id)
		if len(s.bus.subs[s.channel]) == 0 {
			delete(s.bus.subs, s.channel)
		}
	})
	return nil
}
