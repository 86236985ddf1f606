package engine

// AvalancheResult summarises one removal pass
type AvalancheResult struct {
	Matched  int
	Floating int
	Cleared  int // Matched + Floating
	Pops     []Event
	Falling  []FallingBubble
}

// Resolve removes matched from the board's grid, then detaches every bubble
// left without ceiling support. Spells carried by detached bubbles go to the
// board's spell queue while it has room. Falling descriptors are produced only
// when animate is set.
func (e *Engine) Resolve(b *Board, matched []Coord, animate bool) AvalancheResult {
	if len(matched) == 0 {
		return AvalancheResult{}
	}
	sink := &spellSink{queue: b.Spells, max: e.cfg.MaxSpells}
	res := e.resolve(b.Grid, matched, sink, animate)
	b.Spells = sink.queue
	return res
}

// resolve is Resolve on a bare grid. A nil sink discards harvested spells.
func (e *Engine) resolve(g *Grid, matched []Coord, sink *spellSink, animate bool) AvalancheResult {
	var res AvalancheResult
	for _, c := range matched {
		if bub := g.Remove(c); bub != nil {
			res.Matched++
			res.Pops = append(res.Pops, popEvent(bub, e.cfg.BubbleRadius))
		}
	}
	res.Floating = e.dropFloating(g, sink, animate, &res.Falling)
	res.Cleared = res.Matched + res.Floating
	return res
}

// dropFloating removes unsupported bubbles and returns how many fell
func (e *Engine) dropFloating(g *Grid, sink *spellSink, animate bool, falling *[]FallingBubble) int {
	floating := FindFloating(g)
	for _, c := range floating {
		bub := g.Remove(c)
		if bub.IsSpell {
			sink.add(bub.Spell)
		}
		if animate {
			x, y := CellCenter(c.Row, c.Col, e.cfg.BubbleRadius)
			*falling = append(*falling, FallingBubble{
				Bubble: *bub,
				X:      x,
				Y:      y,
				VX:     (e.rng.Float64() - 0.5) * 2,
			})
		}
	}
	return len(floating)
}
