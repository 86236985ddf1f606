package engine

// PlayerID identifies a board owner
type PlayerID string

// Projectile is a bubble in flight, not yet part of the grid
type Projectile struct {
	Bubble Bubble
	X, Y   float64
	VX, VY float64
}

// Board is one player's complete simulation state
type Board struct {
	ID            PlayerID
	Name          string
	Team          int
	Grid          *Grid
	Score         int
	Level         int
	Spells        []SpellKind
	StatusEffects StatusEffects
	AttackCounter int
	Alive         bool

	Launcher   *Bubble
	Next       *Bubble
	Projectile *Projectile
}

// NewBoard creates a living level-1 board around grid
func NewBoard(id PlayerID, name string, team int, grid *Grid) *Board {
	return &Board{
		ID:            id,
		Name:          name,
		Team:          team,
		Grid:          grid,
		Level:         1,
		Spells:        []SpellKind{},
		StatusEffects: StatusEffects{},
		Alive:         true,
	}
}

// ResetForRound puts the board back to its round-start state on grid
func (b *Board) ResetForRound(grid *Grid) {
	b.Grid = grid
	b.Score = 0
	b.Level = 1
	b.Spells = []SpellKind{}
	b.StatusEffects = StatusEffects{}
	b.AttackCounter = 0
	b.Alive = true
	b.Launcher = nil
	b.Next = nil
	b.Projectile = nil
}

// PushSpell appends s to the back of queue. A full queue drops s silently.
func PushSpell(queue []SpellKind, s SpellKind, max int) ([]SpellKind, bool) {
	if len(queue) >= max {
		return queue, false
	}
	return append(queue, s), true
}

// TakeSpell removes one entry from the chosen end and returns it with a fresh
// copy of the remaining queue
func TakeSpell(queue []SpellKind, end QueueEnd) (SpellKind, []SpellKind, bool) {
	if len(queue) == 0 {
		return SpellNone, queue, false
	}
	rest := make([]SpellKind, 0, len(queue)-1)
	var s SpellKind
	if end == QueueFront {
		s = queue[0]
		rest = append(rest, queue[1:]...)
	} else {
		s = queue[len(queue)-1]
		rest = append(rest, queue[:len(queue)-1]...)
	}
	return s, rest, true
}

// spellSink collects spells harvested during an avalanche
type spellSink struct {
	queue []SpellKind
	max   int
}

func (s *spellSink) add(k SpellKind) {
	if s == nil || !k.Valid() {
		return
	}
	s.queue, _ = PushSpell(s.queue, k, s.max)
}
