package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeighborsParity(t *testing.T) {
	g := NewGrid(14, 8)

	even := g.Neighbors(Coord{Row: 2, Col: 3})
	assert.ElementsMatch(t, []Coord{{1, 2}, {1, 3}, {2, 2}, {2, 4}, {3, 2}, {3, 3}}, even)

	odd := g.Neighbors(Coord{Row: 1, Col: 3})
	assert.ElementsMatch(t, []Coord{{0, 3}, {0, 4}, {1, 2}, {1, 4}, {2, 3}, {2, 4}}, odd)
}

func TestNeighborsFilterOutOfRange(t *testing.T) {
	g := NewGrid(14, 8)
	assert.ElementsMatch(t, []Coord{{0, 1}, {1, 0}}, g.Neighbors(Coord{Row: 0, Col: 0}))
	// odd row, last column: right side is off the grid
	assert.ElementsMatch(t, []Coord{{0, 7}, {1, 6}, {2, 7}}, g.Neighbors(Coord{Row: 1, Col: 7}))
	assert.ElementsMatch(t, []Coord{{12, 7}, {13, 6}}, g.Neighbors(Coord{Row: 13, Col: 7}))
}

func TestNeighborsSymmetric(t *testing.T) {
	g := NewGrid(14, 8)
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			at := Coord{Row: r, Col: c}
			for _, n := range g.Neighbors(at) {
				assert.Contains(t, g.Neighbors(n), at, "%v -> %v", at, n)
			}
		}
	}
}

func TestCellCenter(t *testing.T) {
	x, y := CellCenter(0, 0, 20)
	assert.Equal(t, 20.0, x)
	assert.Equal(t, 20.0, y)

	x, y = CellCenter(0, 2, 20)
	assert.Equal(t, 100.0, x)
	assert.Equal(t, 20.0, y)

	// odd rows shift right by one radius
	x, y = CellCenter(1, 0, 20)
	assert.Equal(t, 40.0, x)
	assert.InDelta(t, 20+20*math.Sqrt(3), y, 1e-9)
}

func TestPutRewritesAddress(t *testing.T) {
	g := NewGrid(4, 4)
	b := g.Put(Coord{Row: 2, Col: 1}, Bubble{Row: 9, Col: 9, Color: ColorBlue})
	assert.Equal(t, Coord{Row: 2, Col: 1}, b.Coord())
	mustValid(t, g)
}

func TestAtOutOfRange(t *testing.T) {
	g := NewGrid(4, 4)
	assert.Nil(t, g.At(Coord{Row: -1, Col: 0}))
	assert.Nil(t, g.At(Coord{Row: 0, Col: 4}))
	assert.False(t, g.Occupied(Coord{Row: 4, Col: 0}))
	assert.Panics(t, func() { g.Remove(Coord{Row: 4, Col: 0}) })
}

func TestCloneIndependent(t *testing.T) {
	g := NewGrid(3, 3)
	place(g, ColorRed, Coord{0, 0}, Coord{0, 1})
	cp := g.Clone()
	require.True(t, g.Equal(cp))

	cp.At(Coord{0, 0}).Color = ColorGreen
	cp.Remove(Coord{0, 1})
	assert.Equal(t, ColorRed, g.At(Coord{0, 0}).Color)
	assert.True(t, g.Occupied(Coord{0, 1}))
	assert.False(t, g.Equal(cp))
}

func TestShiftDown(t *testing.T) {
	g := NewGrid(3, 2)
	place(g, ColorRed, Coord{0, 0})
	place(g, ColorBlue, Coord{1, 1})
	place(g, ColorGreen, Coord{2, 0})

	g.ShiftDown()
	mustValid(t, g)
	assert.False(t, g.RowOccupied(0))
	assert.Equal(t, ColorRed, g.At(Coord{1, 0}).Color)
	assert.Equal(t, ColorBlue, g.At(Coord{2, 1}).Color)
	// the old last row is evicted
	assert.Nil(t, g.At(Coord{2, 0}))
	assert.Equal(t, 2, g.Count())
}

func TestValidateDetectsBadAddress(t *testing.T) {
	g := NewGrid(2, 2)
	b := g.Put(Coord{0, 1}, Bubble{})
	require.NoError(t, g.Validate())
	b.Col = 0
	assert.Error(t, g.Validate())
}

func TestIsBoardLost(t *testing.T) {
	g := NewGrid(14, 8)
	assert.False(t, IsBoardLost(g, 11))
	place(g, ColorRed, Coord{10, 3})
	assert.False(t, IsBoardLost(g, 11))
	place(g, ColorRed, Coord{11, 3})
	assert.True(t, IsBoardLost(g, 11))
	assert.False(t, IsBoardLost(g, 20))
}

func TestCheckCollision(t *testing.T) {
	assert.True(t, CheckCollision(0, 0, 10, 15, 0, 10), "overlapping")
	assert.True(t, CheckCollision(0, 0, 10, 20, 0, 10), "touching")
	assert.False(t, CheckCollision(0, 0, 10, 25, 0, 10))
	assert.Equal(t, 5.0, Distance(0, 0, 3, 4))
	assert.Equal(t, 1.0, Clamp(3, -1, 1))
	assert.Equal(t, -1.0, Clamp(-3, -1, 1))
}
