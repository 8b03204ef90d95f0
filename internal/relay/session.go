// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package relay

import (
	"sort"
	"sync"

	"github.com/tomtom215/drivecast/internal/metrics"
)

// Session is one live client connection on this node.
type Session interface {
	// ID is unique per connection.
	ID() string
	// Send queues payload for delivery to destination. It must not block.
	Send(destination string, payload []byte) error
}

// Registry maps user ids to sessions on this node.
type Registry struct {
	mu        sync.RWMutex
	byUser    map[string]Session
	bySession map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser:    make(map[string]Session),
		bySession: make(map[string]string),
	}
}

// Add maps userID to s, replacing any previous session of that user. The
// replaced session is returned.
func (r *Registry) Add(userID string, s Session) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, had := r.byUser[userID]
	if had && prev.ID() != s.ID() {
		delete(r.bySession, prev.ID())
	}
	// A session serves exactly one user.
	if oldUser, ok := r.bySession[s.ID()]; ok && oldUser != userID {
		delete(r.byUser, oldUser)
	}
	r.byUser[userID] = s
	r.bySession[s.ID()] = userID
	metrics.LocalSessions.Set(float64(len(r.byUser)))

	if had && prev.ID() != s.ID() {
		return prev, true
	}
	return nil, false
}

// Remove drops sessionID. The user mapping is cleared only if it still points
// at this session. It returns the user the session belonged to and whether
// that mapping was cleared.
func (r *Registry) Remove(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.bySession[sessionID]
	if !ok {
		return "", false
	}
	delete(r.bySession, sessionID)

	current, ok := r.byUser[userID]
	if !ok || current.ID() != sessionID {
		return userID, false
	}
	delete(r.byUser, userID)
	metrics.LocalSessions.Set(float64(len(r.byUser)))
	return userID, true
}

// Get returns the session for userID.
func (r *Registry) Get(userID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byUser[userID]
	return s, ok
}

// UserOf returns the user bound to sessionID.
func (r *Registry) UserOf(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.bySession[sessionID]
	return u, ok
}

// Users returns the connected user ids, sorted.
func (r *Registry) Users() []string {
	r.mu.RLock()
	users := make([]string, 0, len(r.byUser))
	for u := range r.byUser {
		users = append(users, u)
	}
	r.mu.RUnlock()

	sort.Strings(users)
	return users
}

// Len returns the number of connected users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
