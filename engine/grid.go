// Package engine implements the hex-grid bubble rules: grid topology, match
// search, ceiling connectivity, snapping, avalanches, spells and the attack
// economy. Every function is synchronous and free of I/O.
package engine

import (
	"errors"
	"fmt"
	"math"
)

// ErrGridShape is returned when serialized grid data does not form a rectangle
var ErrGridShape = errors.New("grid is not rectangular")

// ColorID is a stable palette index used to compare bubble colors
type ColorID int

// Coord addresses a grid cell
type Coord struct {
	Row int `json:"r" msgpack:"r"`
	Col int `json:"c" msgpack:"c"`
}

// Bubble occupies exactly one grid cell
type Bubble struct {
	Row     int       `json:"r" msgpack:"r"`
	Col     int       `json:"c" msgpack:"c"`
	Color   ColorID   `json:"color" msgpack:"color"`
	IsSpell bool      `json:"isSpellBubble" msgpack:"isSpellBubble"`
	Spell   SpellKind `json:"spell,omitempty" msgpack:"spell,omitempty"`
}

// Coord returns the cell address stored on the bubble
func (b *Bubble) Coord() Coord {
	return Coord{Row: b.Row, Col: b.Col}
}

// ClearSpell turns a spell bubble back into a plain bubble
func (b *Bubble) ClearSpell() {
	b.IsSpell = false
	b.Spell = SpellNone
}

// Grid is a rows x cols hex table using the odd-row offset layout.
// Odd rows sit half a cell to the right of even rows.
type Grid struct {
	rows  int
	cols  int
	cells []*Bubble
}

// NewGrid creates an empty grid
func NewGrid(rows, cols int) *Grid {
	return &Grid{
		rows:  rows,
		cols:  cols,
		cells: make([]*Bubble, rows*cols),
	}
}

// Rows returns the row count
func (g *Grid) Rows() int { return g.rows }

// Cols returns the column count
func (g *Grid) Cols() int { return g.cols }

// InBounds reports whether c addresses a cell of the grid
func (g *Grid) InBounds(c Coord) bool {
	return c.Row >= 0 && c.Row < g.rows && c.Col >= 0 && c.Col < g.cols
}

func (g *Grid) index(c Coord) int {
	if !g.InBounds(c) {
		panic(fmt.Sprintf("engine: cell (%d,%d) outside %dx%d grid", c.Row, c.Col, g.rows, g.cols))
	}
	return c.Row*g.cols + c.Col
}

// At returns the bubble at c, or nil when the cell is empty or out of range
func (g *Grid) At(c Coord) *Bubble {
	if !g.InBounds(c) {
		return nil
	}
	return g.cells[c.Row*g.cols+c.Col]
}

// Occupied reports whether c holds a bubble
func (g *Grid) Occupied(c Coord) bool {
	return g.At(c) != nil
}

// Put stores a copy of b at c; the stored bubble's address is rewritten to c
func (g *Grid) Put(c Coord, b Bubble) *Bubble {
	b.Row, b.Col = c.Row, c.Col
	g.cells[g.index(c)] = &b
	return g.cells[g.index(c)]
}

// Remove empties c and returns what was there
func (g *Grid) Remove(c Coord) *Bubble {
	i := g.index(c)
	b := g.cells[i]
	g.cells[i] = nil
	return b
}

// Each calls fn for every occupied cell in row-major order
func (g *Grid) Each(fn func(b *Bubble)) {
	for _, b := range g.cells {
		if b != nil {
			fn(b)
		}
	}
}

// Bubbles returns the occupied cells in row-major order
func (g *Grid) Bubbles() []*Bubble {
	out := make([]*Bubble, 0, len(g.cells))
	g.Each(func(b *Bubble) { out = append(out, b) })
	return out
}

// Count returns the number of occupied cells
func (g *Grid) Count() int {
	n := 0
	g.Each(func(*Bubble) { n++ })
	return n
}

// RowOccupied reports whether any cell of row r holds a bubble
func (g *Grid) RowOccupied(r int) bool {
	for c := 0; c < g.cols; c++ {
		if g.cells[r*g.cols+c] != nil {
			return true
		}
	}
	return false
}

// Clone returns a deep copy; mutations of the copy never reach g
func (g *Grid) Clone() *Grid {
	out := NewGrid(g.rows, g.cols)
	for i, b := range g.cells {
		if b != nil {
			cp := *b
			out.cells[i] = &cp
		}
	}
	return out
}

// Equal compares dimensions and every cell by value
func (g *Grid) Equal(o *Grid) bool {
	if g == nil || o == nil {
		return g == o
	}
	if g.rows != o.rows || g.cols != o.cols {
		return false
	}
	for i := range g.cells {
		a, b := g.cells[i], o.cells[i]
		if (a == nil) != (b == nil) {
			return false
		}
		if a != nil && *a != *b {
			return false
		}
	}
	return true
}

// ShiftDown moves every row down by one and leaves row 0 empty.
// Bubbles pushed past the last row are discarded.
func (g *Grid) ShiftDown() {
	for r := g.rows - 1; r > 0; r-- {
		for c := 0; c < g.cols; c++ {
			b := g.cells[(r-1)*g.cols+c]
			if b != nil {
				b.Row = r
			}
			g.cells[r*g.cols+c] = b
		}
	}
	for c := 0; c < g.cols; c++ {
		g.cells[c] = nil
	}
}

// Validate checks that every stored bubble's address matches its cell
func (g *Grid) Validate() error {
	if len(g.cells) != g.rows*g.cols {
		return ErrGridShape
	}
	for i, b := range g.cells {
		if b == nil {
			continue
		}
		if b.Row*g.cols+b.Col != i || b.Col < 0 || b.Col >= g.cols {
			return fmt.Errorf("bubble at cell %d claims (%d,%d)", i, b.Row, b.Col)
		}
	}
	return nil
}

// neighborOffsets is indexed by row parity: [even, odd]
var neighborOffsets = [2][6]Coord{
	{{-1, -1}, {-1, 0}, {0, -1}, {0, 1}, {1, -1}, {1, 0}},
	{{-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, 0}, {1, 1}},
}

// Neighbors returns the in-bounds hex neighbors of c (at most 6)
func (g *Grid) Neighbors(c Coord) []Coord {
	out := make([]Coord, 0, 6)
	for _, d := range neighborOffsets[c.Row&1] {
		n := Coord{Row: c.Row + d.Row, Col: c.Col + d.Col}
		if g.InBounds(n) {
			out = append(out, n)
		}
	}
	return out
}

// hasOccupiedNeighbor reports whether any neighbor of c holds a bubble
func (g *Grid) hasOccupiedNeighbor(c Coord) bool {
	for _, d := range neighborOffsets[c.Row&1] {
		if g.Occupied(Coord{Row: c.Row + d.Row, Col: c.Col + d.Col}) {
			return true
		}
	}
	return false
}

// rowHeight is 2*sin(60deg)
var rowHeight = math.Sqrt(3)

// CellCenter returns the pixel center of a cell for the given bubble radius
func CellCenter(row, col int, radius float64) (float64, float64) {
	x := radius + float64(col)*2*radius + float64(row&1)*radius
	y := radius + float64(row)*radius*rowHeight
	return x, y
}
