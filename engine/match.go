package engine

// FindMatches returns the maximal same-color component containing seed,
// seed included. An empty seed yields nil. The pop threshold is the caller's.
func FindMatches(g *Grid, seed Coord) []Coord {
	g.index(seed) // out-of-range seeds are a caller bug
	start := g.At(seed)
	if start == nil {
		return nil
	}

	visited := map[Coord]bool{seed: true}
	stack := []Coord{seed}
	matches := []Coord{seed}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range g.Neighbors(cur) {
			if visited[n] {
				continue
			}
			b := g.At(n)
			if b == nil || b.Color != start.Color {
				continue
			}
			visited[n] = true
			stack = append(stack, n)
			matches = append(matches, n)
		}
	}
	return matches
}

// IsBoardLost reports whether any cell of gameOverRow is occupied
func IsBoardLost(g *Grid, gameOverRow int) bool {
	if gameOverRow < 0 || gameOverRow >= g.rows {
		return false
	}
	return g.RowOccupied(gameOverRow)
}
