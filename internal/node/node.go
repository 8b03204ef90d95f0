// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package node

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// envOrder lists the environment variables consulted for the node id.
// Kubernetes injects POD_UID and POD_NAME through the downward API.
var envOrder = []string{"POD_UID", "POD_NAME", "HOSTNAME"}

// ResolveID picks the node id: explicit override, then the first non-blank
// variable in envOrder, then "local-" plus 8 random hex characters.
func ResolveID(override string, getenv func(string) string) string {
	if id := strings.TrimSpace(override); id != "" {
		return id
	}
	for _, name := range envOrder {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			return v
		}
	}
	return "local-" + uuid.NewString()[:8]
}

// ID resolves the node id from the process environment.
func ID(override string) string {
	return ResolveID(override, os.Getenv)
}
