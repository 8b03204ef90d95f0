// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

/*
Package cache provides the in-process data structures behind drivecast's
single-node paths.

# Overview

  - Cache: a thread-safe key/value cache with per-entry TTL. The driving
    trait client keeps its hot tier here so repeated 1Hz broadcasts do not
    hit the trait service for every neighbor.
  - SpatialHashGrid: a cell-partitioned index of members by coordinate. The
    in-memory coordination store keeps one grid per location bucket and
    answers radius queries from it.

# Usage Example

	c := cache.New(20 * time.Second)
	defer c.Close()
	c.Set("trait:31", "DOLPHIN")
	if v, ok := c.Get("trait:31"); ok {
	    _ = v.(string)
	}

	grid := cache.NewSpatialHashGrid(50) // 50m cells
	grid.Insert("u1", geo.Point{Lat: 37.5, Lng: 126.9})
	ids := grid.QueryNearby(geo.Point{Lat: 37.5, Lng: 126.9}, 300)

Both types are safe for concurrent use.
*/
package cache
