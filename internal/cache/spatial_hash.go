// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package cache

import (
	"math"
	"sort"
	"sync"

	"github.com/tomtom215/drivecast/internal/geo"
)

// SpatialHashGrid divides space into square cells so a radius query only
// inspects the cells overlapping the query circle instead of every member.
//
// Time Complexity:
//   - Insert: O(1)
//   - Remove: O(1) amortized
//   - QueryNearby: O(k) where k = members in the overlapping cells
type SpatialHashGrid struct {
	mu       sync.RWMutex
	cells    map[CellKey]*cell
	cellSize float64 // degrees
	entries  map[string]*SpatialEntry
}

// CellKey identifies a grid cell.
type CellKey struct {
	X, Y int
}

type cell struct {
	entries []*SpatialEntry
}

// SpatialEntry is one member stored in the grid.
type SpatialEntry struct {
	ID    string
	Point geo.Point

	cellKey CellKey
}

// NewSpatialHashGrid creates a grid with cells roughly cellSizeMeters wide.
// Values <= 0 select 100m, which suits the few-hundred-meter alert radii.
func NewSpatialHashGrid(cellSizeMeters float64) *SpatialHashGrid {
	if cellSizeMeters <= 0 {
		cellSizeMeters = 100
	}
	return &SpatialHashGrid{
		cells:    make(map[CellKey]*cell),
		cellSize: cellSizeMeters / geo.MetersPerDegree,
		entries:  make(map[string]*SpatialEntry),
	}
}

func (g *SpatialHashGrid) cellKeyFor(p geo.Point) CellKey {
	lng := p.Lng
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return CellKey{
		X: int(math.Floor(lng / g.cellSize)),
		Y: int(math.Floor(p.Lat / g.cellSize)),
	}
}

// Insert adds or moves a member.
func (g *SpatialHashGrid) Insert(id string, p geo.Point) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.entries[id]; ok {
		g.removeFromCellUnlocked(existing)
	}

	key := g.cellKeyFor(p)
	entry := &SpatialEntry{ID: id, Point: p, cellKey: key}

	c, ok := g.cells[key]
	if !ok {
		c = &cell{entries: make([]*SpatialEntry, 0, 4)}
		g.cells[key] = c
	}
	c.entries = append(c.entries, entry)
	g.entries[id] = entry
}

// Remove deletes a member. It reports whether the member existed.
func (g *SpatialHashGrid) Remove(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.entries[id]
	if !ok {
		return false
	}
	g.removeFromCellUnlocked(entry)
	delete(g.entries, id)
	return true
}

// removeFromCellUnlocked detaches entry from its cell (caller holds the lock).
func (g *SpatialHashGrid) removeFromCellUnlocked(entry *SpatialEntry) {
	c, ok := g.cells[entry.cellKey]
	if !ok {
		return
	}
	for i, e := range c.entries {
		if e.ID == entry.ID {
			c.entries[i] = c.entries[len(c.entries)-1]
			c.entries = c.entries[:len(c.entries)-1]
			break
		}
	}
	if len(c.entries) == 0 {
		delete(g.cells, entry.cellKey)
	}
}

// Get returns a member's position.
func (g *SpatialHashGrid) Get(id string) (geo.Point, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	entry, ok := g.entries[id]
	if !ok {
		return geo.Point{}, false
	}
	return entry.Point, true
}

// QueryNearby returns the IDs of members within radiusMeters of center,
// sorted for stable output.
func (g *SpatialHashGrid) QueryNearby(center geo.Point, radiusMeters float64) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.entries) == 0 {
		return nil
	}

	// Longitude degrees shrink with latitude, so widen the X span accordingly.
	latSpan := int(math.Ceil(radiusMeters/geo.MetersPerDegree/g.cellSize)) + 1
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lngSpan := int(math.Ceil(radiusMeters/(geo.MetersPerDegree*cosLat)/g.cellSize)) + 1
	origin := g.cellKeyFor(center)

	var ids []string
	for dx := -lngSpan; dx <= lngSpan; dx++ {
		for dy := -latSpan; dy <= latSpan; dy++ {
			c, ok := g.cells[CellKey{X: origin.X + dx, Y: origin.Y + dy}]
			if !ok {
				continue
			}
			for _, entry := range c.entries {
				if geo.Within(center, entry.Point, radiusMeters) {
					ids = append(ids, entry.ID)
				}
			}
		}
	}

	sort.Strings(ids)
	return ids
}

// Size returns the number of members.
func (g *SpatialHashGrid) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// NumCells returns the number of non-empty cells.
func (g *SpatialHashGrid) NumCells() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cells)
}
