package sim

import (
	"math"
	"time"

	"marbleous-server/engine"
)

// Field is the playfield geometry derived from the grid size
type Field struct {
	Width   float64
	Height  float64
	CannonX float64
	CannonY float64
	Radius  float64
}

// NewField lays out a playfield wide enough for an offset odd row, with room
// for the launcher below the last grid row
func NewField(cfg engine.Config) Field {
	r := cfg.BubbleRadius
	width := float64(cfg.Cols)*2*r + r
	_, lastY := engine.CellCenter(cfg.Rows-1, 0, r)
	height := lastY + 4*r
	return Field{
		Width:   width,
		Height:  height,
		CannonX: width / 2,
		CannonY: height - 1.5*r,
		Radius:  r,
	}
}

// loadLauncher moves the next bubble into the launcher and draws a new one
func (c *Context) loadLauncher(b *engine.Board) {
	if !b.Alive {
		return
	}
	if b.Next != nil {
		b.Launcher = b.Next
	} else {
		nb := c.eng.NewBubble()
		b.Launcher = &nb
	}
	nb := c.eng.NewBubble()
	b.Next = &nb
}

// Shoot fires the launcher bubble along the current angle. It reports false
// when no round is running, the board is dead, the launcher is empty or a
// projectile is already in flight.
func (c *Context) Shoot() bool {
	b := c.Local()
	if !c.running || b == nil || !b.Alive || b.Launcher == nil || b.Projectile != nil {
		return false
	}
	speed := c.field.Radius * ShotSpeedFactor
	b.Projectile = &engine.Projectile{
		Bubble: *b.Launcher,
		X:      c.field.CannonX,
		Y:      c.field.CannonY,
		VX:     math.Cos(c.angle) * speed,
		VY:     math.Sin(c.angle) * speed,
	}
	b.Launcher = nil
	c.loadLauncher(b)
	return true
}

func (c *Context) steer(b *engine.Board) {
	speed := RotationSpeed
	dir := 0.0
	if c.input.Left {
		dir--
	}
	if c.input.Right {
		dir++
	}
	if eff, ok := b.StatusEffects[engine.EffectLauncher]; ok {
		switch eff.Variant {
		case engine.LauncherReversed:
			dir = -dir
		case engine.LauncherLocked:
			dir = 0
		case engine.LauncherErratic:
			speed *= ErraticFactor
			c.angle += (c.rng.Float64() - 0.5) * ErraticJitter
		}
	}
	c.angle = engine.Clamp(c.angle+dir*speed, MinAngle, MaxAngle)
}

// autoFire shoots on its own every AutoFireMin plus up to AutoFireJitter
// while the auto-fire launcher is active
func (c *Context) autoFire(b *engine.Board, now time.Time) {
	eff, ok := b.StatusEffects[engine.EffectLauncher]
	if !ok || eff.Variant != engine.LauncherAutoFire {
		c.nextAutoFire = time.Time{}
		return
	}
	if c.nextAutoFire.IsZero() {
		c.nextAutoFire = c.autoFireAt(now)
		return
	}
	if now.After(c.nextAutoFire) && b.Projectile == nil && b.Launcher != nil {
		c.Shoot()
		c.nextAutoFire = c.autoFireAt(now)
	}
}

func (c *Context) autoFireAt(now time.Time) time.Time {
	jitter := time.Duration(c.rng.Float64() * float64(c.cfg.AutoFireJitter))
	return now.Add(c.cfg.AutoFireMin + jitter)
}

// churnLauncher recolours the loaded bubble while colour churn is active
func (c *Context) churnLauncher(b *engine.Board, now time.Time) {
	if !b.StatusEffects.Has(engine.EffectColorChurn) {
		c.lastChurn = time.Time{}
		return
	}
	if c.lastChurn.IsZero() {
		c.lastChurn = now
		return
	}
	if now.Sub(c.lastChurn) < c.cfg.LauncherRecolorEvery {
		return
	}
	c.lastChurn = now
	if b.Launcher != nil {
		b.Launcher.Color = c.eng.RandomColor()
	}
}

// fly advances the projectile one tick and snaps it on contact
func (c *Context) fly(b *engine.Board) {
	p := b.Projectile
	if p == nil {
		return
	}
	if eff, ok := b.StatusEffects[engine.EffectTilt]; ok {
		p.VX += math.Sin(eff.Angle*math.Pi/180) * TiltGravity
	}
	p.X += p.VX
	p.Y += p.VY

	r := c.field.Radius
	if p.Y-r < 0 || c.touchesGrid(b.Grid, p.X, p.Y) {
		c.snap(b, p)
		return
	}
	if p.X-r < 0 || p.X+r > c.field.Width {
		p.X = engine.Clamp(p.X, r, c.field.Width-r)
		p.VX = -p.VX
	}
}

// touchesGrid reports whether a projectile at x, y is within ContactFactor
// radii of any bubble
func (c *Context) touchesGrid(g *engine.Grid, x, y float64) bool {
	r := c.field.Radius
	for _, bub := range g.Bubbles() {
		cx, cy := engine.CellCenter(bub.Row, bub.Col, r)
		if engine.CheckCollision(x, y, r, cx, cy, (ContactFactor-1)*r) {
			return true
		}
	}
	return false
}
