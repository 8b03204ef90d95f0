// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package geo

import (
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used for distance calculations.
const EarthRadiusMeters = 6371000.0

// MetersPerDegree is the approximate length of one degree of latitude.
const MetersPerDegree = 111320.0

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Valid reports whether the point lies inside latitude [-90, 90] and
// longitude [-180, 180].
func (p Point) Valid() bool {
	return ValidCoordinate(p.Lat, p.Lng)
}

// String formats the point for logs.
func (p Point) String() string {
	return fmt.Sprintf("(%.6f,%.6f)", p.Lat, p.Lng)
}

// ValidCoordinate reports whether lat and lng are inside WGS84 bounds.
// NaN values are rejected.
func ValidCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// DistanceMeters returns the haversine great-circle distance between two
// points in meters.
func DistanceMeters(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Within reports whether b lies within radiusMeters of a (inclusive).
func Within(a, b Point, radiusMeters float64) bool {
	return DistanceMeters(a, b) <= radiusMeters
}

// OffsetMeters returns a point moved north and east by the given distances.
// It is a flat-earth approximation intended for small offsets.
func OffsetMeters(p Point, north, east float64) Point {
	dLat := north / MetersPerDegree
	dLng := east / (MetersPerDegree * math.Cos(p.Lat*math.Pi/180))
	return Point{Lat: p.Lat + dLat, Lng: p.Lng + dLng}
}
