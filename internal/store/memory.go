// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package store

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/drivecast/internal/cache"
	"github.com/tomtom215/drivecast/internal/geo"
)

// sweepEvery is the number of writes between expired-entry sweeps.
const sweepEvery = 256

// bucketCellMeters sizes the grid cells of each location bucket.
const bucketCellMeters = 100

type memValue struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

type memBucket struct {
	grid      *cache.SpatialHashGrid
	expiresAt time.Time
}

// Memory is a process-local Store.
type Memory struct {
	mu      sync.Mutex
	values  map[string]memValue
	buckets map[string]*memBucket
	now     func() time.Time
	writes  int
	closed  bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values:  make(map[string]memValue),
		buckets: make(map[string]*memBucket),
		now:     time.Now,
	}
}

// SetClock replaces the time source used for expiry.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func expired(at, now time.Time) bool {
	return !at.IsZero() && !now.Before(at)
}

// lookupLocked returns the live value for key, evicting it if expired.
func (m *Memory) lookupLocked(key string) (memValue, bool) {
	v, ok := m.values[key]
	if !ok {
		return memValue{}, false
	}
	if expired(v.expiresAt, m.now()) {
		delete(m.values, key)
		return memValue{}, false
	}
	return v, true
}

func (m *Memory) bucketLocked(name string) (*memBucket, bool) {
	b, ok := m.buckets[name]
	if !ok {
		return nil, false
	}
	if expired(b.expiresAt, m.now()) {
		delete(m.buckets, name)
		return nil, false
	}
	return b, true
}

func (m *Memory) wroteLocked() {
	m.writes++
	if m.writes%sweepEvery != 0 {
		return
	}
	now := m.now()
	for k, v := range m.values {
		if expired(v.expiresAt, now) {
			delete(m.values, k)
		}
	}
	for k, b := range m.buckets {
		if expired(b.expiresAt, now) {
			delete(m.buckets, k)
		}
	}
}

// SetIfAbsent implements Store.
func (m *Memory) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}

	if _, ok := m.lookupLocked(key); ok {
		return false, nil
	}
	m.values[key] = memValue{value: value, expiresAt: m.expiry(ttl)}
	m.wroteLocked()
	return true, nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", false, ErrClosed
	}

	v, ok := m.lookupLocked(key)
	return v.value, ok, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	m.values[key] = memValue{value: value, expiresAt: m.expiry(ttl)}
	m.wroteLocked()
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	delete(m.values, key)
	return nil
}

// DeleteIfEquals implements Store.
func (m *Memory) DeleteIfEquals(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}

	v, ok := m.lookupLocked(key)
	if !ok || v.value != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

// ExpireIfEquals implements Store.
func (m *Memory) ExpireIfEquals(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}

	v, ok := m.lookupLocked(key)
	if !ok || v.value != value {
		return false, nil
	}
	v.expiresAt = m.expiry(ttl)
	m.values[key] = v
	return true, nil
}

// GeoAdd implements Store.
func (m *Memory) GeoAdd(_ context.Context, bucket, member string, p geo.Point, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	b, ok := m.bucketLocked(bucket)
	if !ok {
		b = &memBucket{grid: cache.NewSpatialHashGrid(bucketCellMeters)}
		m.buckets[bucket] = b
	}
	b.grid.Insert(member, p)
	if ttl > 0 {
		b.expiresAt = m.expiry(ttl)
	}
	m.wroteLocked()
	return nil
}

// GeoRadius implements Store.
func (m *Memory) GeoRadius(_ context.Context, bucket string, center geo.Point, radiusMeters float64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	b, ok := m.bucketLocked(bucket)
	if !ok {
		return nil, nil
	}
	return b.grid.QueryNearby(center, radiusMeters), nil
}

// GeoPosition implements Store.
func (m *Memory) GeoPosition(_ context.Context, bucket, member string) (geo.Point, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return geo.Point{}, false, ErrClosed
	}

	b, ok := m.bucketLocked(bucket)
	if !ok {
		return geo.Point{}, false, nil
	}
	p, ok := b.grid.Get(member)
	return p, ok, nil
}

// Close implements Store.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
