// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package node

import (
	"strings"
	"testing"
)

func TestResolveID(t *testing.T) {
	tests := []struct {
		name     string
		override string
		env      map[string]string
		want     string
	}{
		{"override wins", "n-1", map[string]string{"POD_UID": "uid"}, "n-1"},
		{"pod uid", "", map[string]string{"POD_UID": "uid", "POD_NAME": "pod", "HOSTNAME": "host"}, "uid"},
		{"pod name", "", map[string]string{"POD_NAME": "pod", "HOSTNAME": "host"}, "pod"},
		{"hostname", "", map[string]string{"HOSTNAME": "host"}, "host"},
		{"blank values skipped", " ", map[string]string{"POD_UID": "  ", "HOSTNAME": "host"}, "host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveID(tt.override, func(k string) string { return tt.env[k] })
			if got != tt.want {
				t.Errorf("ResolveID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveIDFallback(t *testing.T) {
	empty := func(string) string { return "" }
	a := ResolveID("", empty)
	b := ResolveID("", empty)

	if !strings.HasPrefix(a, "local-") || len(a) != len("local-")+8 {
		t.Errorf("fallback id = %q", a)
	}
	if a == b {
		t.Error("fallback ids should be random")
	}
}
