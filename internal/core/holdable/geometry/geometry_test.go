package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

func square(x0, y0, size float64) []physics.Vec2 {
	return []physics.Vec2{
		{x0, y0},
		{x0 + size, y0},
		{x0 + size, y0 + size},
		{x0, y0 + size},
	}
}

func TestCellContains(t *testing.T) {
	c := NewCell(1, square(0, 0, 10), true)
	assert.True(t, c.Contains(physics.Vec2{5, 5}))
	assert.False(t, c.Contains(physics.Vec2{11, 5}))
	assert.Equal(t, physics.Vec2{5, 5}, c.Center())
}

func TestFindTerrainCell(t *testing.T) {
	grid := NewTerrainGrid(500)
	rock := NewCell(7, square(200, -100, 400), true)
	grid.Add(rock)
	a := NewAdapter(nil, grid, physics.Vec2{16, 16})

	pos := physics.Vec2{100, 100}
	cell, ok := a.FindTerrainCell(pos, BindDistance, CellSearchDepth)
	require.True(t, ok)
	assert.Equal(t, rock.ID(), cell.ID())

	_, ok = a.FindTerrainCell(pos, 10, CellSearchDepth)
	assert.False(t, ok, "cell boundary farther than maxDistance")

	rock.SetSolid(false)
	_, ok = a.FindTerrainCell(pos, BindDistance, CellSearchDepth)
	assert.False(t, ok, "non-solid cells are ignored")
}

func TestFindTerrainCellWithoutLevel(t *testing.T) {
	a := NewAdapter(nil, nil, physics.Vec2{16, 16})
	_, ok := a.FindTerrainCell(physics.Vec2{}, BindDistance, CellSearchDepth)
	assert.False(t, ok)
	_, ok = a.ResolveCell(3)
	assert.False(t, ok)
	assert.False(t, a.LevelLoaded())
}

func TestFindSurfaceAttachTarget(t *testing.T) {
	surfaces := SurfaceSet{{ID: 9, Container: 2, Bounds: Rect{Min: physics.Vec2{0, 0}, Max: physics.Vec2{100, 20}}}}
	a := NewAdapter(surfaces, nil, physics.Vec2{16, 16})

	s, ok := a.FindSurfaceAttachTarget(physics.Vec2{50, 10})
	require.True(t, ok)
	assert.EqualValues(t, 9, s.ID)

	_, ok = a.FindSurfaceAttachTarget(physics.Vec2{50, 50})
	assert.False(t, ok)
}

func TestSnapToGrid(t *testing.T) {
	a := NewAdapter(nil, nil, physics.Vec2{16, 8})
	assert.Equal(t, physics.Vec2{16, 8}, a.SnapToGrid(physics.Vec2{9, 5}))
	assert.Equal(t, physics.Vec2{-16, 0}, a.SnapToGrid(physics.Vec2{-20, 3}))

	raw := NewAdapter(nil, nil, physics.Vec2{})
	assert.Equal(t, physics.Vec2{1.5, 2.5}, raw.SnapToGrid(physics.Vec2{1.5, 2.5}))
}

func TestAttachPositionClampsReach(t *testing.T) {
	a := NewAdapter(nil, nil, physics.Vec2{1, 1})
	got := a.AttachPosition(physics.Vec2{0, 0}, physics.Vec2{1000, 0}, false)
	assert.Equal(t, physics.Vec2{MaxAttachDistance, 0}, got)
}

func TestAttachPositionStopsAtSolidEdge(t *testing.T) {
	grid := NewTerrainGrid(1000)
	grid.Add(NewCell(1, square(100, -50, 100), true))
	a := NewAdapter(nil, grid, physics.Vec2{1, 1})

	got := a.AttachPosition(physics.Vec2{0, 0}, physics.Vec2{140, 0}, true)
	assert.InDelta(t, 100, got.X(), 1e-9)
	assert.InDelta(t, 0, got.Y(), 1e-9)

	inside := a.AttachPosition(physics.Vec2{0, 0}, physics.Vec2{140, 0}, false)
	assert.Equal(t, physics.Vec2{140, 0}, inside, "edge search only runs in open space")
}

func TestCellsNearDeduplicates(t *testing.T) {
	grid := NewTerrainGrid(10)
	big := NewCell(1, square(0, 0, 35), true)
	small := NewCell(2, square(3, 3, 2), true)
	grid.Add(big)
	grid.Add(small)

	cells := grid.CellsNear(physics.Vec2{5, 5}, 1)
	require.Len(t, cells, 2)
	assert.Equal(t, big.ID(), cells[0].ID())
	assert.Equal(t, small.ID(), cells[1].ID())
}
