// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package alert

import (
	"math"
	"strconv"
	"strings"
)

var timestampDigits = strings.NewReplacer("-", "", ":", "", "T", "")

// Identity returns the alert id used for dedup and repeat scheduling.
//
//	ACCIDENT          accident id as supplied
//	OBSTACLE/POTHOLE  obstacle-N37p566500-E126p978000-20260827092345
//	DRIVE_START/END   start-42-20260827092345
func Identity(e Event) string {
	ts := timestampDigits.Replace(e.timestamp)

	switch e.kind {
	case KindAccident:
		return e.alertID
	case KindObstacle, KindPothole:
		return e.kind.Slug() + "-" +
			coordinateToken(e.point.Lat, "N", "S") + "-" +
			coordinateToken(e.point.Lng, "E", "W") + "-" + ts
	case KindDriveStart, KindDriveEnd:
		return e.kind.Slug() + "-" + e.userID + "-" + ts
	}
	return ""
}

// coordinateToken renders |v| with six fixed decimals and the point written
// as "p", prefixed by the hemisphere letter. Fixed precision keeps distinct
// coordinates distinct (37.5 and 3.75 differ) and equal ones equal however
// they were written.
func coordinateToken(v float64, pos, neg string) string {
	prefix := pos
	if v < 0 {
		prefix = neg
	}
	s := strconv.FormatFloat(math.Abs(v), 'f', 6, 64)
	return prefix + strings.Replace(s, ".", "p", 1)
}
