package engine

import "testing"

func testEngine(seed uint64) *Engine {
	return New(DefaultConfig(), NewRand(seed))
}

// place puts plain bubbles of color at each coordinate
func place(g *Grid, color ColorID, cells ...Coord) {
	for _, c := range cells {
		g.Put(c, Bubble{Color: color})
	}
}

// randomGrid fills every cell with probability fill, using only the first
// colors palette entries. The result may contain floating bubbles.
func randomGrid(rng Rand, rows, cols int, fill float64, colors int) *Grid {
	g := NewGrid(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if rng.Float64() < fill {
				b := Bubble{Color: ColorID(rng.IntN(colors))}
				if rng.Float64() < 0.1 {
					b.IsSpell = true
					b.Spell = AllSpells[rng.IntN(len(AllSpells))]
				}
				g.Put(Coord{Row: r, Col: c}, b)
			}
		}
	}
	return g
}

// anchored is randomGrid with floaters removed
func anchored(rng Rand, rows, cols int, fill float64, colors int) *Grid {
	g := randomGrid(rng, rows, cols, fill, colors)
	for _, c := range FindFloating(g) {
		g.Remove(c)
	}
	return g
}

func occupancy(g *Grid) []bool {
	out := make([]bool, 0, g.Rows()*g.Cols())
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			out = append(out, g.Occupied(Coord{Row: r, Col: c}))
		}
	}
	return out
}

func coordSet(cs []Coord) map[Coord]bool {
	out := make(map[Coord]bool, len(cs))
	for _, c := range cs {
		out[c] = true
	}
	return out
}

func mustValid(t *testing.T, g *Grid) {
	t.Helper()
	if err := g.Validate(); err != nil {
		t.Fatalf("invalid grid: %v", err)
	}
}
