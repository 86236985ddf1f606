package sim

import (
	"time"

	"marbleous-server/engine"
)

// snap commits the projectile to the grid and resolves any match it makes
func (c *Context) snap(b *engine.Board, p *engine.Projectile) {
	b.Projectile = nil
	defer c.checkLost(b)

	spot, ok := engine.FindBestSnapSpot(b.Grid, p.X, p.Y, c.field.Radius)
	if !ok {
		return
	}
	b.Grid.Put(spot, engine.Bubble{Color: p.Bubble.Color})
	c.markDirty(b.ID)

	matched := engine.FindMatches(b.Grid, spot)
	if len(matched) < c.cfg.MatchSize {
		return
	}
	res := c.eng.Resolve(b, matched, true)
	for _, ev := range res.Pops {
		ev.Player = b.ID
		c.emit(ev)
	}
	for _, f := range res.Falling {
		c.emit(engine.Event{Kind: engine.EventFall, Player: b.ID, X: f.X, Y: f.Y, Color: f.Bubble.Color})
	}
	c.eng.MaybeSpawnSpell(b.Grid)
	b.Score += c.eng.Score(res.Cleared, res.Floating)
	b.AttackCounter += res.Cleared
}

// Cast takes one spell from the local queue and applies it to target. Casting
// on yourself is allowed, and required for self-only spells. It reports false
// when the queue is empty, the target is missing or dead, or the spell cannot
// be applied; the queue is left alone in that case.
func (c *Context) Cast(target engine.PlayerID, now time.Time) (engine.SpellResult, bool) {
	caster := c.Local()
	dst := c.players[target]
	if caster == nil || !caster.Alive || dst == nil || !dst.Alive {
		return engine.SpellResult{}, false
	}
	queue := caster.Spells
	spell, rest, ok := engine.TakeSpell(queue, c.cfg.CastFrom)
	if !ok || (spell.SelfOnly() && dst != caster) {
		return engine.SpellResult{}, false
	}
	caster.Spells = rest
	res, ok := c.eng.ApplySpell(dst, spell, now)
	if !ok {
		caster.Spells = queue
		return engine.SpellResult{}, false
	}
	c.markDirty(caster.ID)
	res.Patch(dst)
	c.markDirty(dst.ID)
	c.emit(engine.Event{Kind: engine.EventSpellCast, Player: caster.ID, Spell: spell, Target: dst.ID})
	if res.Grid != nil {
		c.checkLost(dst)
	}
	return res, true
}

// runTimers fires the level and attack cadences that came due by now
func (c *Context) runTimers(now time.Time) {
	for !now.Before(c.nextLevel) {
		c.nextLevel = c.nextLevel.Add(c.cfg.LevelInterval)
		c.LevelUp()
	}
	for !now.Before(c.nextAttack) {
		c.nextAttack = c.nextAttack.Add(c.cfg.AttackInterval)
		c.Attack()
	}
}

// LevelUp raises every living board by one level
func (c *Context) LevelUp() {
	for _, b := range c.Boards() {
		if !b.Alive {
			continue
		}
		b.Level++
		c.markDirty(b.ID)
		c.emit(engine.Event{Kind: engine.EventLevelUp, Player: b.ID, Level: b.Level})
	}
}

// Attack runs one attack-economy tick over the arena and delivers the junk
func (c *Context) Attack() {
	boards := c.Boards()
	before := make(map[engine.PlayerID]int, len(boards))
	for _, b := range boards {
		before[b.ID] = b.AttackCounter
	}
	owed := c.eng.AttackTick(boards)
	for _, b := range boards {
		if b.AttackCounter != before[b.ID] {
			c.markDirty(b.ID)
		}
		n := owed[b.ID]
		if n == 0 {
			continue
		}
		placed := c.eng.AddJunkBubbles(b, n)
		c.markDirty(b.ID)
		c.emit(engine.Event{Kind: engine.EventJunk, Player: b.ID, Count: placed})
		c.checkLost(b)
	}
}

// Living returns the boards still in play
func (c *Context) Living() []*engine.Board {
	var out []*engine.Board
	for _, b := range c.Boards() {
		if b.Alive {
			out = append(out, b)
		}
	}
	return out
}
