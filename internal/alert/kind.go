// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package alert

import (
	"fmt"
	"strings"
)

// Kind is the category of an alert event.
type Kind string

const (
	KindAccident   Kind = "ACCIDENT"
	KindObstacle   Kind = "OBSTACLE"
	KindPothole    Kind = "POTHOLE"
	KindDriveStart Kind = "DRIVE_START"
	KindDriveEnd   Kind = "DRIVE_END"
)

// kindNames maps every accepted wire spelling (lowercased) to its Kind.
var kindNames = map[string]Kind{
	"accident":    KindAccident,
	"obstacle":    KindObstacle,
	"pothole":     KindPothole,
	"start":       KindDriveStart,
	"drive_start": KindDriveStart,
	"end":         KindDriveEnd,
	"drive_end":   KindDriveEnd,
}

// Kinds returns every kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindAccident, KindObstacle, KindPothole, KindDriveStart, KindDriveEnd}
}

// ParseKind resolves a wire type name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k, ok := kindNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAccident, KindObstacle, KindPothole, KindDriveStart, KindDriveEnd:
		return true
	}
	return false
}

// Spatial reports whether the kind is delivered by proximity.
func (k Kind) Spatial() bool {
	return k == KindAccident || k == KindObstacle || k == KindPothole
}

// Driving reports whether the kind is a driving status change.
func (k Kind) Driving() bool {
	return k == KindDriveStart || k == KindDriveEnd
}

// Slug is the lowercase short name used in identities, metrics labels and
// message types.
func (k Kind) Slug() string {
	switch k {
	case KindDriveStart:
		return "start"
	case KindDriveEnd:
		return "end"
	default:
		return strings.ToLower(string(k))
	}
}

func (k Kind) String() string { return string(k) }
