// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package alert

import "testing"

func mustEvent(t *testing.T, in Input) Event {
	t.Helper()
	ev, err := NewEvent(in)
	if err != nil {
		t.Fatalf("NewEvent(%+v): %v", in, err)
	}
	return ev
}

func TestIdentity(t *testing.T) {
	const ts = "2026-08-01T17:03:00"

	tests := []struct {
		name string
		in   Input
		want string
	}{
		{
			name: "accident uses supplied id",
			in:   Input{Type: "accident", AccidentID: "acc-123", Latitude: f64(37.5), Longitude: f64(127), Timestamp: ts},
			want: "acc-123",
		},
		{
			name: "obstacle north east",
			in:   Input{Type: "obstacle", Latitude: f64(37.52342), Longitude: f64(127.123), Timestamp: ts},
			want: "obstacle-N37p523420-E127p123000-20260801170300",
		},
		{
			name: "obstacle south west",
			in:   Input{Type: "obstacle", Latitude: f64(-37.123), Longitude: f64(-127.5), Timestamp: ts},
			want: "obstacle-S37p123000-W127p500000-20260801170300",
		},
		{
			name: "whole degrees",
			in:   Input{Type: "pothole", Latitude: f64(37), Longitude: f64(127), Timestamp: ts},
			want: "pothole-N37p000000-E127p000000-20260801170300",
		},
		{
			name: "drive start",
			in:   Input{Type: "start", UserID: "42", Timestamp: ts},
			want: "start-42-20260801170300",
		},
		{
			name: "drive end",
			in:   Input{Type: "end", UserID: "42", Timestamp: ts},
			want: "end-42-20260801170300",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Identity(mustEvent(t, tt.in)); got != tt.want {
				t.Errorf("Identity() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIdentityStableAcrossRepeats(t *testing.T) {
	in := Input{Type: "obstacle", UserID: "1", Latitude: f64(37.5665), Longitude: f64(126.978), Timestamp: "2026-08-27T09:23:45"}
	a := Identity(mustEvent(t, in))
	in.UserID = "2"
	b := Identity(mustEvent(t, in))
	if a != b {
		t.Errorf("same hazard reported by different users should share an identity: %s vs %s", a, b)
	}
}

func TestIdentityDistinguishesShiftedDigits(t *testing.T) {
	const ts = "2026-08-01T17:03:00"
	tests := []struct {
		name string
		a, b [2]float64
	}{
		{"latitude", [2]float64{37.5, 126.9}, [2]float64{3.75, 126.9}},
		{"longitude", [2]float64{37.5, 126.9}, [2]float64{37.5, 12.69}},
		{"trailing digit", [2]float64{37.51, 126.9}, [2]float64{37.501, 126.9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Identity(mustEvent(t, Input{Type: "obstacle", Latitude: f64(tt.a[0]), Longitude: f64(tt.a[1]), Timestamp: ts}))
			b := Identity(mustEvent(t, Input{Type: "obstacle", Latitude: f64(tt.b[0]), Longitude: f64(tt.b[1]), Timestamp: ts}))
			if a == b {
				t.Errorf("distinct hazards share identity %s", a)
			}
		})
	}
}
