// Package sim runs one client's view of a match: the board arena, the local
// launcher and projectile, per-tick status effect behaviour and the coarse
// level and attack timers. It replaces any process-wide game state; every
// caller owns its Context.
package sim

import (
	"math"
	"time"

	"marbleous-server/engine"
)

const (
	TickRate     = 60 // simulation ticks per second
	TickDuration = time.Second / TickRate

	RotationSpeed   = 0.03 // launcher radians per tick while a key is held
	ShotSpeedFactor = 0.6  // projectile speed in bubble radii per tick
	ContactFactor   = 1.8  // grid contact distance in bubble radii
	TiltGravity     = 0.3  // lateral drift per tick at a 90 degree tilt
	ErraticFactor   = 0.4  // steering speed multiplier for the erratic launcher
	ErraticJitter   = 0.08 // peak-to-peak random angle change per tick

	MinAngle = -math.Pi + 0.1
	MaxAngle = -0.1
)

// Options tunes a Context
type Options struct {
	// Timers makes Step run the level and attack cadences itself. Leave it
	// off when a server owns those timers.
	Timers bool
}

// Input is the steering state held during a tick
type Input struct {
	Left  bool
	Right bool
}

// Inbound is a remote document waiting for the next tick boundary
type Inbound struct {
	Player  engine.PlayerID
	Doc     engine.Doc
	Removed bool
}

// Update is an outgoing document for a board changed since the last Flush
type Update struct {
	Player engine.PlayerID
	Doc    engine.Doc
}

// Context owns the boards of one match
type Context struct {
	eng   *engine.Engine
	cfg   engine.Config
	rng   engine.Rand
	opts  Options
	field Field

	players map[engine.PlayerID]*engine.Board
	order   []engine.PlayerID
	local   engine.PlayerID

	angle  float64
	input  Input
	inbox  []Inbound
	events []engine.Event
	dirty  map[engine.PlayerID]bool

	running      bool
	nextLevel    time.Time
	nextAttack   time.Time
	nextAutoFire time.Time
	lastChurn    time.Time
}

// New creates an empty Context. local names the board this client drives.
func New(eng *engine.Engine, rng engine.Rand, local engine.PlayerID, opts Options) *Context {
	cfg := eng.Config()
	return &Context{
		eng:     eng,
		cfg:     cfg,
		rng:     rng,
		opts:    opts,
		field:   NewField(cfg),
		players: make(map[engine.PlayerID]*engine.Board),
		local:   local,
		angle:   -math.Pi / 2,
		dirty:   make(map[engine.PlayerID]bool),
	}
}

// Engine returns the rules engine in use
func (c *Context) Engine() *engine.Engine { return c.eng }

// Field returns the playfield geometry
func (c *Context) Field() Field { return c.field }

// Angle returns the launcher angle in radians
func (c *Context) Angle() float64 { return c.angle }

// Running reports whether a round is in progress
func (c *Context) Running() bool { return c.running }

// AddPlayer seats a board in the arena, or returns the existing one
func (c *Context) AddPlayer(id engine.PlayerID, name string, team int) *engine.Board {
	if b, ok := c.players[id]; ok {
		return b
	}
	b := engine.NewBoard(id, name, team, c.eng.EmptyGrid())
	c.players[id] = b
	c.order = append(c.order, id)
	return b
}

// RemovePlayer drops a board from the arena
func (c *Context) RemovePlayer(id engine.PlayerID) {
	if _, ok := c.players[id]; !ok {
		return
	}
	delete(c.players, id)
	delete(c.dirty, id)
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Board returns a board by id, or nil
func (c *Context) Board(id engine.PlayerID) *engine.Board {
	return c.players[id]
}

// Local returns the board this client drives, or nil before it is seated
func (c *Context) Local() *engine.Board {
	return c.players[c.local]
}

// Boards returns every board in seating order
func (c *Context) Boards() []*engine.Board {
	out := make([]*engine.Board, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.players[id])
	}
	return out
}

// StartRound gives every board a copy of grid and arms the timers
func (c *Context) StartRound(grid *engine.Grid, now time.Time) {
	for _, b := range c.Boards() {
		b.ResetForRound(grid.Clone())
		c.dirty[b.ID] = true
	}
	if b := c.Local(); b != nil {
		c.loadLauncher(b)
	}
	c.angle = -math.Pi / 2
	c.running = true
	c.nextLevel = now.Add(c.cfg.LevelInterval)
	c.nextAttack = now.Add(c.cfg.AttackInterval)
	c.nextAutoFire = time.Time{}
	c.lastChurn = time.Time{}
}

// StopRound freezes the simulation; boards keep their final state
func (c *Context) StopRound() {
	c.running = false
	if b := c.Local(); b != nil {
		b.Projectile = nil
	}
}

// Enqueue schedules a remote document for the next tick boundary
func (c *Context) Enqueue(in Inbound) {
	c.inbox = append(c.inbox, in)
}

// applyInbox commits queued remote documents in arrival order
func (c *Context) applyInbox() {
	for _, in := range c.inbox {
		if in.Removed {
			c.RemovePlayer(in.Player)
			continue
		}
		b := c.AddPlayer(in.Player, in.Doc.Name, in.Doc.Team)
		wasAlive := b.Alive
		b.ApplyDoc(in.Doc)
		if wasAlive && !b.Alive {
			c.emit(engine.Event{Kind: engine.EventGameOver, Player: b.ID})
		}
	}
	c.inbox = c.inbox[:0]
}

// SetInput records the steering keys held from now on
func (c *Context) SetInput(in Input) {
	c.input = in
}

// Aim points the launcher directly, as a pointer would. A locked launcher
// ignores it and a reversed one mirrors it.
func (c *Context) Aim(angle float64) {
	b := c.Local()
	if b == nil {
		return
	}
	if eff, ok := b.StatusEffects[engine.EffectLauncher]; ok {
		switch eff.Variant {
		case engine.LauncherLocked:
			return
		case engine.LauncherReversed:
			angle = -math.Pi - angle
		}
	}
	c.angle = engine.Clamp(angle, MinAngle, MaxAngle)
}

// Flush returns a document for every board changed since the last call
func (c *Context) Flush() []Update {
	var out []Update
	for _, id := range c.order {
		if !c.dirty[id] {
			continue
		}
		out = append(out, Update{Player: id, Doc: c.players[id].Doc()})
	}
	c.dirty = make(map[engine.PlayerID]bool)
	return out
}

func (c *Context) markDirty(id engine.PlayerID) {
	c.dirty[id] = true
}

func (c *Context) emit(ev engine.Event) {
	c.events = append(c.events, ev)
}

// checkLost marks b dead once it reaches the game-over row
func (c *Context) checkLost(b *engine.Board) {
	if !b.Alive || !c.eng.IsLost(b) {
		return
	}
	b.Alive = false
	b.Projectile = nil
	c.markDirty(b.ID)
	c.emit(engine.Event{Kind: engine.EventGameOver, Player: b.ID})
}

// Step advances the simulation by one tick at now and returns the events it
// produced. Order: remote documents, effect expiry, coarse timers, launcher
// colour churn, steering, auto-fire, projectile flight.
func (c *Context) Step(now time.Time) []engine.Event {
	c.events = nil
	c.applyInbox()

	b := c.Local()
	if b != nil {
		if pruned, changed := engine.SweepEffects(b.StatusEffects, now); changed {
			b.StatusEffects = pruned
			c.markDirty(b.ID)
		}
	}
	if !c.running {
		return c.events
	}
	if c.opts.Timers {
		c.runTimers(now)
	}
	if b == nil || !b.Alive {
		return c.events
	}
	c.churnLauncher(b, now)
	c.steer(b)
	c.autoFire(b, now)
	c.fly(b)
	return c.events
}
