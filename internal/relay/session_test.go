// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package relay

import (
	"reflect"
	"testing"
)

func TestRegistryAddReplaces(t *testing.T) {
	r := NewRegistry()

	if _, replaced := r.Add("u1", newSession("a")); replaced {
		t.Fatal("first Add reported a replacement")
	}
	prev, replaced := r.Add("u1", newSession("b"))
	if !replaced || prev.ID() != "a" {
		t.Fatalf("Add = %v, %v; want replacement of a", prev, replaced)
	}
	if _, ok := r.UserOf("a"); ok {
		t.Error("replaced session still mapped")
	}
	if s, _ := r.Get("u1"); s.ID() != "b" {
		t.Errorf("Get = %s, want b", s.ID())
	}
	if _, replaced := r.Add("u1", newSession("b")); replaced {
		t.Error("re-adding the same session reported a replacement")
	}
}

func TestRegistryRemove(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(r *Registry)
		remove      string
		wantUser    string
		wantCleared bool
		wantUsers   []string
	}{
		{
			name:        "active session",
			setup:       func(r *Registry) { r.Add("u1", newSession("a")) },
			remove:      "a",
			wantUser:    "u1",
			wantCleared: true,
			wantUsers:   []string{},
		},
		{
			name: "stale session after replacement",
			setup: func(r *Registry) {
				r.Add("u1", newSession("a"))
				r.Add("u1", newSession("b"))
			},
			remove:    "a",
			wantUsers: []string{"u1"},
		},
		{
			name:      "unknown session",
			setup:     func(r *Registry) { r.Add("u2", newSession("c")) },
			remove:    "zzz",
			wantUsers: []string{"u2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			tt.setup(r)
			user, cleared := r.Remove(tt.remove)
			if user != tt.wantUser || cleared != tt.wantCleared {
				t.Errorf("Remove = %q, %v; want %q, %v", user, cleared, tt.wantUser, tt.wantCleared)
			}
			if got := r.Users(); !reflect.DeepEqual(got, tt.wantUsers) {
				t.Errorf("Users = %v, want %v", got, tt.wantUsers)
			}
		})
	}
}

func TestRegistrySessionMovesBetweenUsers(t *testing.T) {
	r := NewRegistry()
	s := newSession("a")
	r.Add("u1", s)
	r.Add("u2", s)

	if _, ok := r.Get("u1"); ok {
		t.Error("u1 still mapped to a session now owned by u2")
	}
	if u, _ := r.UserOf("a"); u != "u2" {
		t.Errorf("UserOf(a) = %q, want u2", u)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestRegistryUsersSorted(t *testing.T) {
	r := NewRegistry()
	r.Add("carol", newSession("3"))
	r.Add("alice", newSession("1"))
	r.Add("bob", newSession("2"))

	want := []string{"alice", "bob", "carol"}
	if got := r.Users(); !reflect.DeepEqual(got, want) {
		t.Errorf("Users = %v, want %v", got, want)
	}
}
