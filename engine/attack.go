package engine

import "math"

// AttackTick converts every living board's attack counter into junk for its
// opponents. The counter keeps its remainder. The returned map holds the junk
// each board is owed; nothing is placed here, see AddJunkBubbles.
func (e *Engine) AttackTick(boards []*Board) map[PlayerID]int {
	out := make(map[PlayerID]int)
	for _, src := range boards {
		if !src.Alive || src.AttackCounter < e.cfg.AttackUnit {
			continue
		}
		units := src.AttackCounter / e.cfg.AttackUnit
		size := units * int(math.Floor(float64(src.Level)))
		src.AttackCounter -= units * e.cfg.AttackUnit
		if size <= 0 {
			continue
		}
		for _, dst := range boards {
			if dst.ID == src.ID || !dst.Alive || dst.Team == src.Team {
				continue
			}
			out[dst.ID] += size
		}
	}
	return out
}

// JunkSlots lists every empty cell touching an occupied one, row-major
func JunkSlots(g *Grid) []Coord {
	var out []Coord
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			at := Coord{Row: r, Col: c}
			if !g.Occupied(at) && g.hasOccupiedNeighbor(at) {
				out = append(out, at)
			}
		}
	}
	return out
}

// AddJunkBubbles places up to count plain bubbles into random junk slots of
// b.Grid and returns how many were placed. The board receives a new grid.
func (e *Engine) AddJunkBubbles(b *Board, count int) int {
	if count <= 0 {
		return 0
	}
	slots := JunkSlots(b.Grid)
	e.rng.Shuffle(len(slots), func(i, j int) { slots[i], slots[j] = slots[j], slots[i] })
	if count > len(slots) {
		count = len(slots)
	}
	g := b.Grid.Clone()
	for _, at := range slots[:count] {
		g.Put(at, e.NewBubble())
	}
	b.Grid = g
	return count
}
