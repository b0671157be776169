package geometry

import (
	"math"
	"sort"

	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

// Edge is one side of a terrain cell. Only solid edges stop an attach ray.
type Edge struct {
	A, B  physics.Vec2
	Solid bool
}

// Cell is a procedurally generated polygonal region of the level.
type Cell struct {
	id       models.CellID
	vertices []physics.Vec2
	edges    []Edge
	center   physics.Vec2
	min, max physics.Vec2
	solid    bool
}

// NewCell builds a cell from its polygon. Every edge starts solid when the
// cell is solid.
func NewCell(id models.CellID, vertices []physics.Vec2, solid bool) *Cell {
	c := &Cell{
		id:       id,
		vertices: append([]physics.Vec2(nil), vertices...),
		solid:    solid,
		min:      physics.Vec2{math.Inf(1), math.Inf(1)},
		max:      physics.Vec2{math.Inf(-1), math.Inf(-1)},
	}
	for i, v := range c.vertices {
		c.center = c.center.Add(v)
		c.min = physics.Vec2{math.Min(c.min.X(), v.X()), math.Min(c.min.Y(), v.Y())}
		c.max = physics.Vec2{math.Max(c.max.X(), v.X()), math.Max(c.max.Y(), v.Y())}
		next := c.vertices[(i+1)%len(c.vertices)]
		c.edges = append(c.edges, Edge{A: v, B: next, Solid: solid})
	}
	if n := len(c.vertices); n > 0 {
		c.center = c.center.Mul(1 / float64(n))
	}
	return c
}

func (c *Cell) ID() models.CellID    { return c.id }
func (c *Cell) Solid() bool          { return c.solid }
func (c *Cell) Center() physics.Vec2 { return c.center }
func (c *Cell) Edges() []Edge        { return c.edges }

// SetSolid changes the cell type, e.g. when terrain is destroyed.
func (c *Cell) SetSolid(solid bool) {
	c.solid = solid
	for i := range c.edges {
		c.edges[i].Solid = solid
	}
}

// Contains reports whether p lies inside the polygon (even-odd rule).
func (c *Cell) Contains(p physics.Vec2) bool {
	if p.X() < c.min.X() || p.X() > c.max.X() || p.Y() < c.min.Y() || p.Y() > c.max.Y() {
		return false
	}
	inside := false
	n := len(c.vertices)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := c.vertices[i], c.vertices[j]
		if (vi.Y() > p.Y()) != (vj.Y() > p.Y()) &&
			p.X() < (vj.X()-vi.X())*(p.Y()-vi.Y())/(vj.Y()-vi.Y())+vi.X() {
			inside = !inside
		}
	}
	return inside
}

// TerrainGrid buckets cells into a uniform grid so that neighbourhood queries
// only touch nearby cells.
type TerrainGrid struct {
	bucketSize float64
	buckets    map[[2]int][]*Cell
	cells      map[models.CellID]*Cell
}

var _ Level = (*TerrainGrid)(nil)

func NewTerrainGrid(bucketSize float64) *TerrainGrid {
	if bucketSize <= 0 {
		bucketSize = 1000
	}
	return &TerrainGrid{
		bucketSize: bucketSize,
		buckets:    make(map[[2]int][]*Cell),
		cells:      make(map[models.CellID]*Cell),
	}
}

func (g *TerrainGrid) Add(c *Cell) {
	g.cells[c.id] = c
	x0, y0 := g.bucket(c.min)
	x1, y1 := g.bucket(c.max)
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			key := [2]int{x, y}
			g.buckets[key] = append(g.buckets[key], c)
		}
	}
}

func (g *TerrainGrid) Cell(id models.CellID) (*Cell, bool) {
	c, ok := g.cells[id]
	return c, ok
}

// CellsNear returns the cells in the bucket containing pos and in searchDepth
// rings of neighbouring buckets, ordered by id.
func (g *TerrainGrid) CellsNear(pos physics.Vec2, searchDepth int) []*Cell {
	if searchDepth < 0 {
		searchDepth = 0
	}
	bx, by := g.bucket(pos)
	seen := make(map[models.CellID]struct{})
	var out []*Cell
	for x := bx - searchDepth; x <= bx+searchDepth; x++ {
		for y := by - searchDepth; y <= by+searchDepth; y++ {
			for _, c := range g.buckets[[2]int{x, y}] {
				if _, dup := seen[c.id]; dup {
					continue
				}
				seen[c.id] = struct{}{}
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (g *TerrainGrid) bucket(p physics.Vec2) (int, int) {
	return int(math.Floor(p.X() / g.bucketSize)), int(math.Floor(p.Y() / g.bucketSize))
}
