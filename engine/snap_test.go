package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRadius = 20.0

func TestSnapNearestCell(t *testing.T) {
	g := NewGrid(12, 8)
	place(g, ColorRed, Coord{0, 0})

	x, y := CellCenter(1, 0, testRadius)
	spot, ok := FindBestSnapSpot(g, x+2, y-1, testRadius)
	require.True(t, ok)
	assert.Equal(t, Coord{1, 0}, spot)
}

func TestSnapEmptyGridPicksRowZero(t *testing.T) {
	g := NewGrid(12, 8)
	spot, ok := FindBestSnapSpot(g, 170, 400, testRadius)
	require.True(t, ok)
	assert.Equal(t, 0, spot.Row)
	// x=170 is closest to column 4 (center 180)
	assert.Equal(t, 4, spot.Col)
}

func TestSnapTiesKeepFirst(t *testing.T) {
	g := NewGrid(12, 8)
	// (0,0) and (0,1) centers are 20 and 60; x=40 is equidistant
	spot, ok := FindBestSnapSpot(g, 40, 20, testRadius)
	require.True(t, ok)
	assert.Equal(t, Coord{0, 0}, spot)
}

func TestSnapFullGrid(t *testing.T) {
	g := NewGrid(3, 3)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			place(g, ColorRed, Coord{r, c})
		}
	}
	_, ok := FindBestSnapSpot(g, 50, 50, testRadius)
	assert.False(t, ok)
}

func TestSnapLegality(t *testing.T) {
	rng := NewRand(99)
	for i := 0; i < 300; i++ {
		g := anchored(rng, 12, 8, 0.6, 5)
		x := rng.Float64() * 340
		y := rng.Float64() * 480
		spot, ok := FindBestSnapSpot(g, x, y, testRadius)
		if !ok {
			require.True(t, g.RowOccupied(0))
			continue
		}
		require.False(t, g.Occupied(spot), "snapped onto occupied %v", spot)
		require.True(t, spot.Row == 0 || g.hasOccupiedNeighbor(spot), "unsupported spot %v", spot)
	}
}
