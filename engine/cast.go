package engine

import (
	"math"
	"time"
)

// ApplySpell computes the effect of spell on target without touching target.
// The result carries complete replacement states; call Patch to commit it.
// ok is false when the target is dead or the spell unknown.
func (e *Engine) ApplySpell(target *Board, spell SpellKind, now time.Time) (res SpellResult, ok bool) {
	handler, known := spellHandlers[spell]
	if !known || target == nil || !target.Alive {
		return SpellResult{}, false
	}
	res = SpellResult{
		Spell:         spell,
		StatusEffects: target.StatusEffects.Clone(),
	}
	handler(e, target, &res, now)
	return res, true
}

func (e *Engine) expiry(now time.Time) time.Time {
	return now.Add(e.cfg.EffectDuration)
}

// between returns a uniform value in [lo, hi)
func (e *Engine) between(lo, hi float64) float64 {
	return between(e.rng, lo, hi)
}

func (e *Engine) castTilt(_ *Board, res *SpellResult, now time.Time) {
	angle := e.between(e.cfg.TiltMinDeg, e.cfg.TiltMaxDeg)
	dir := 1
	if e.rng.Float64() < 0.5 {
		dir = -1
	}
	res.StatusEffects[EffectTilt] = StatusEffect{
		Kind:      EffectTilt,
		EndTime:   e.expiry(now),
		Angle:     angle * float64(dir),
		Direction: dir,
	}
}

func (e *Engine) castBrokenLauncher(_ *Board, res *SpellResult, now time.Time) {
	res.StatusEffects[EffectLauncher] = StatusEffect{
		Kind:    EffectLauncher,
		EndTime: e.expiry(now),
		Variant: LauncherVariant(e.rng.IntN(launcherVariants)),
	}
}

func (e *Engine) castStrip(target *Board, res *SpellResult, _ time.Time) {
	if _, rest, ok := TakeSpell(target.Spells, e.cfg.StripFrom); ok {
		res.Spells = rest
	}
	g := target.Grid.Clone()
	changed := false
	g.Each(func(b *Bubble) {
		if b.IsSpell {
			b.ClearSpell()
			changed = true
		}
	})
	if changed {
		res.Grid = g
	}
}

func (e *Engine) castRecolorAll(target *Board, res *SpellResult, now time.Time) {
	g := target.Grid.Clone()
	color := e.RandomColor()
	g.Each(func(b *Bubble) { b.Color = color })
	res.Grid = g
	res.StatusEffects[EffectColorChurn] = StatusEffect{
		Kind:    EffectColorChurn,
		EndTime: e.expiry(now),
	}
}

func (e *Engine) castRowInjection(target *Board, res *SpellResult, _ time.Time) {
	g := target.Grid.Clone()
	g.ShiftDown()
	for c := 0; c < g.cols; c++ {
		if e.rng.Float64() < e.cfg.InjectionFill {
			g.Put(Coord{Row: 0, Col: c}, e.NewBubble())
		}
	}
	// the shifted old ceiling may have lost its anchors
	e.dropFloating(g, nil, true, &res.Falling)
	res.Grid = g
}

func (e *Engine) castNuke(target *Board, res *SpellResult, _ time.Time) {
	g := target.Grid.Clone()
	cells := occupiedCoords(g)
	if len(cells) == 0 {
		return
	}
	share := e.between(e.cfg.NukeMin, e.cfg.NukeMax)
	n := int(math.Floor(float64(len(cells)) * share))
	e.rng.Shuffle(len(cells), func(i, j int) { cells[i], cells[j] = cells[j], cells[i] })
	av := e.resolve(g, cells[:n], nil, true)
	res.Removed = cells[:n]
	res.Falling = av.Falling
	res.Grid = g
}

func (e *Engine) castRecolorSubset(target *Board, res *SpellResult, _ time.Time) {
	g := target.Grid.Clone()
	var plain []*Bubble
	g.Each(func(b *Bubble) {
		if !b.IsSpell {
			plain = append(plain, b)
		}
	})
	if len(plain) == 0 {
		return
	}
	color := e.RandomColor()
	share := e.between(e.cfg.RecolorMin, e.cfg.RecolorMax)
	n := int(math.Floor(float64(len(plain)) * share))
	e.rng.Shuffle(len(plain), func(i, j int) { plain[i], plain[j] = plain[j], plain[i] })
	for _, b := range plain[:n] {
		b.Color = color
	}
	res.Grid = g
}

func (e *Engine) castHarvest(target *Board, res *SpellResult, _ time.Time) {
	g := target.Grid.Clone()
	want := e.cfg.HarvestMinRows + e.rng.IntN(e.cfg.HarvestMaxRows-e.cfg.HarvestMinRows+1)
	sink := &spellSink{queue: append([]SpellKind{}, target.Spells...), max: e.cfg.MaxSpells}
	cleared := 0
	for r := g.rows - 1; r >= 0 && cleared < want; r-- {
		if !g.RowOccupied(r) {
			continue
		}
		for c := 0; c < g.cols; c++ {
			at := Coord{Row: r, Col: c}
			b := g.Remove(at)
			if b == nil {
				continue
			}
			if b.IsSpell {
				sink.add(b.Spell)
			}
			res.Removed = append(res.Removed, at)
		}
		cleared++
	}
	if cleared == 0 {
		return
	}
	e.dropFloating(g, sink, true, &res.Falling)
	res.Grid = g
	res.Spells = sink.queue
}

func occupiedCoords(g *Grid) []Coord {
	out := make([]Coord, 0, len(g.cells))
	g.Each(func(b *Bubble) { out = append(out, b.Coord()) })
	return out
}
