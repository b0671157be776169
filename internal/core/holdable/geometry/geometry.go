// Package geometry answers the read-only world queries that decide where a
// holdable item may be attached: built structure surfaces, procedural terrain
// cells and grid snapping.
package geometry

import (
	"math"

	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

const (
	// MaxAttachDistance bounds how far from the actor an item can be attached.
	MaxAttachDistance = 150.0
	// ProbeDistance is used when checking whether a position can host an item.
	ProbeDistance = 100.0
	// BindDistance is used when binding an attached item to a terrain cell.
	BindDistance = 150.0
	// CellSearchDepth is the number of neighbour rings scanned for cells.
	CellSearchDepth = 1
)

// Rect is an axis-aligned rectangle.
type Rect struct {
	Min, Max physics.Vec2
}

func (r Rect) Contains(p physics.Vec2) bool {
	return p.X() >= r.Min.X() && p.X() <= r.Max.X() && p.Y() >= r.Min.Y() && p.Y() <= r.Max.Y()
}

// Surface is a built structure an item can be mounted on.
type Surface struct {
	ID        models.EntityID
	Container models.ContainerID
	Bounds    Rect
	// Origin is the container position in world space; attach positions on a
	// surface owned by a container are stored relative to it.
	Origin physics.Vec2
}

// Structures finds the structure surface under a world position.
type Structures interface {
	AttachTargetAt(pos physics.Vec2) (Surface, bool)
}

// Level is the loaded procedural terrain.
type Level interface {
	CellsNear(pos physics.Vec2, searchDepth int) []*Cell
	Cell(id models.CellID) (*Cell, bool)
}

// SurfaceSet is a flat Structures implementation.
type SurfaceSet []Surface

func (s SurfaceSet) AttachTargetAt(pos physics.Vec2) (Surface, bool) {
	for _, surface := range s {
		if surface.Bounds.Contains(pos) {
			return surface, true
		}
	}
	return Surface{}, false
}

// Adapter is the query surface used by the state machine.
type Adapter struct {
	structures Structures
	level      Level
	grid       physics.Vec2
}

// NewAdapter builds an adapter. A nil level means no terrain is loaded.
func NewAdapter(structures Structures, level Level, gridSize physics.Vec2) *Adapter {
	return &Adapter{structures: structures, level: level, grid: gridSize}
}

// SetLevel swaps the loaded terrain; nil unloads it.
func (a *Adapter) SetLevel(level Level) { a.level = level }

// LevelLoaded reports whether terrain queries can succeed.
func (a *Adapter) LevelLoaded() bool { return a.level != nil }

func (a *Adapter) FindSurfaceAttachTarget(pos physics.Vec2) (Surface, bool) {
	if a.structures == nil {
		return Surface{}, false
	}
	return a.structures.AttachTargetAt(pos)
}

// FindTerrainCell returns a solid cell near pos whose interior contains the
// point maxDistance away from pos in the direction of the cell's center.
func (a *Adapter) FindTerrainCell(pos physics.Vec2, maxDistance float64, searchDepth int) (*Cell, bool) {
	if a.level == nil {
		return nil, false
	}
	for _, cell := range a.level.CellsNear(pos, searchDepth) {
		if !cell.Solid() {
			continue
		}
		diff := cell.Center().Sub(pos)
		if diff.Dot(diff) > 0.0001 {
			diff = diff.Normalize()
		}
		if cell.Contains(pos.Add(diff.Mul(maxDistance))) {
			return cell, true
		}
	}
	return nil, false
}

// ResolveCell looks up a weakly referenced cell by id.
func (a *Adapter) ResolveCell(id models.CellID) (*Cell, bool) {
	if a.level == nil || id == 0 {
		return nil, false
	}
	return a.level.Cell(id)
}

func (a *Adapter) SnapToGrid(pos physics.Vec2) physics.Vec2 {
	return physics.Vec2{
		roundTowardsClosest(pos.X(), a.grid.X()),
		roundTowardsClosest(pos.Y(), a.grid.Y()),
	}
}

// AttachPosition computes where an actor standing at userPos and pointing at
// cursor would mount an item. In open space the first solid terrain edge
// crossed on the way shortens the reach.
func (a *Adapter) AttachPosition(userPos, cursor physics.Vec2, openSpace bool) physics.Vec2 {
	diff := clampLength(cursor.Sub(userPos), MaxAttachDistance)
	target := userPos.Add(diff)

	if openSpace && a.level != nil {
	cells:
		for _, cell := range a.level.CellsNear(target, 0) {
			if !cell.Solid() {
				continue
			}
			for _, edge := range cell.Edges() {
				if !edge.Solid {
					continue
				}
				if hit, ok := segmentIntersection(edge.A, edge.B, userPos, target); ok {
					target = hit
					break cells
				}
			}
		}
	}
	return a.SnapToGrid(target)
}

func roundTowardsClosest(v, grid float64) float64 {
	if grid == 0 {
		return v
	}
	return math.Round(v/grid) * grid
}

func clampLength(v physics.Vec2, max float64) physics.Vec2 {
	if l := v.Len(); l > max {
		return v.Mul(max / l)
	}
	return v
}

func segmentIntersection(a1, a2, b1, b2 physics.Vec2) (physics.Vec2, bool) {
	r := a2.Sub(a1)
	s := b2.Sub(b1)
	denom := r.X()*s.Y() - r.Y()*s.X()
	if denom == 0 {
		return physics.Vec2{}, false
	}
	d := b1.Sub(a1)
	t := (d.X()*s.Y() - d.Y()*s.X()) / denom
	u := (d.X()*r.Y() - d.Y()*r.X()) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return physics.Vec2{}, false
	}
	return a1.Add(r.Mul(t)), true
}
