package engine

// FindFloating returns every occupied cell with no adjacency path to an
// occupied row-0 cell, in row-major order
func FindFloating(g *Grid) []Coord {
	connected := make(map[Coord]bool)
	queue := make([]Coord, 0, g.cols)
	for c := 0; c < g.cols; c++ {
		at := Coord{Row: 0, Col: c}
		if g.Occupied(at) {
			connected[at] = true
			queue = append(queue, at)
		}
	}

	for head := 0; head < len(queue); head++ {
		for _, n := range g.Neighbors(queue[head]) {
			if connected[n] || !g.Occupied(n) {
				continue
			}
			connected[n] = true
			queue = append(queue, n)
		}
	}

	var floating []Coord
	g.Each(func(b *Bubble) {
		if !connected[b.Coord()] {
			floating = append(floating, b.Coord())
		}
	})
	return floating
}
