package engine

// FindBestSnapSpot picks the empty cell nearest to (x, y) among cells that are
// in row 0 or touch an occupied cell. When none qualifies it falls back to the
// empty row-0 cell closest in x. ok is false when row 0 is full as well.
func FindBestSnapSpot(g *Grid, x, y, radius float64) (spot Coord, ok bool) {
	best := -1.0
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			at := Coord{Row: r, Col: c}
			if g.Occupied(at) {
				continue
			}
			if r != 0 && !g.hasOccupiedNeighbor(at) {
				continue
			}
			cx, cy := CellCenter(r, c, radius)
			d := Distance(x, y, cx, cy)
			if best < 0 || d < best {
				best = d
				spot = at
				ok = true
			}
		}
	}
	if ok {
		return spot, true
	}

	best = -1
	for c := 0; c < g.cols; c++ {
		at := Coord{Row: 0, Col: c}
		if g.Occupied(at) {
			continue
		}
		cx, _ := CellCenter(0, c, radius)
		d := cx - x
		if d < 0 {
			d = -d
		}
		if best < 0 || d < best {
			best = d
			spot = at
			ok = true
		}
	}
	return spot, ok
}
