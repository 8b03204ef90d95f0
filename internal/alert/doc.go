// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

/*
Package alert defines drivecast's alert vocabulary: the closed set of kinds,
validated events, alert identities, per-kind delivery policy and the message
registry that turns an event into a client notification.

# Events

An Event is immutable and can only be obtained from NewEvent, which validates
the wire Input:

	ev, err := alert.NewEvent(alert.Input{
	    Type:       "obstacle",
	    UserID:     "42",
	    Latitude:   ptr(37.5665),
	    Longitude:  ptr(126.978),
	    Timestamp:  "2026-08-27T09:23:45",
	})
	if errors.Is(err, alert.ErrInvalidCoordinates) { ... }

Timestamps are Korean local time (Asia/Seoul, UTC+9, no DST) in the layout
yyyy-MM-ddTHH:mm:ss.

# Identity

Identity derives the dedup key component for an event. Accidents use the
upstream accident id; obstacles and potholes are identified by kind,
position and timestamp; driving status events by user and timestamp.

# Policy and Messages

PolicyFor returns the radius, freshness and retry parameters for a kind.
Registry maps (event, recipient) to the Message and destination queue.
*/
package alert
