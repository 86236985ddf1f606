package engine

// Engine binds a configuration to a randomness source. All randomized rules
// (bubble generation, spells, junk placement) hang off it.
type Engine struct {
	cfg Config
	rng Rand
}

// New creates an Engine
func New(cfg Config, rng Rand) *Engine {
	return &Engine{cfg: cfg, rng: rng}
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// RandomColor picks a palette color uniformly
func (e *Engine) RandomColor() ColorID {
	return ColorID(e.rng.IntN(len(e.cfg.Palette)))
}

// NewBubble returns a plain bubble of random color with no address
func (e *Engine) NewBubble() Bubble {
	return Bubble{Row: -1, Col: -1, Color: e.RandomColor()}
}

// EmptyGrid returns an empty grid of the configured size
func (e *Engine) EmptyGrid() *Grid {
	return NewGrid(e.cfg.Rows, e.cfg.Cols)
}

// CreateInitialGrid fills row 0 completely, rows 1-2 at InitialFill, then
// strips anything left without ceiling support
func (e *Engine) CreateInitialGrid() *Grid {
	g := e.EmptyGrid()
	for c := 0; c < g.cols; c++ {
		g.Put(Coord{Row: 0, Col: c}, e.NewBubble())
	}
	for r := 1; r < 3 && r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if e.rng.Float64() < e.cfg.InitialFill {
				g.Put(Coord{Row: r, Col: c}, e.NewBubble())
			}
		}
	}
	for _, c := range FindFloating(g) {
		g.Remove(c)
	}
	return g
}

// spellRowPreference is the row below which new spell bubbles are favoured
const spellRowPreference = 5

// SpawnSpellBubble turns one random plain bubble into a spell bubble carrying
// its color's spell. Bubbles below spellRowPreference are preferred while at
// least three exist. It returns the converted bubble, or nil.
func (e *Engine) SpawnSpellBubble(g *Grid) *Bubble {
	var low, all []*Bubble
	g.Each(func(b *Bubble) {
		if b.IsSpell {
			return
		}
		all = append(all, b)
		if b.Row > spellRowPreference {
			low = append(low, b)
		}
	})
	pool := low
	if len(pool) < 3 {
		pool = all
	}
	if len(pool) == 0 {
		return nil
	}
	target := pool[e.rng.IntN(len(pool))]
	spell, ok := e.cfg.ColorSpells[target.Color]
	if !ok || !spell.Valid() {
		return nil
	}
	target.IsSpell = true
	target.Spell = spell
	return target
}

// MaybeSpawnSpell rolls SpellSpawnChance and spawns a spell bubble on success
func (e *Engine) MaybeSpawnSpell(g *Grid) *Bubble {
	if e.rng.Float64() >= e.cfg.SpellSpawnChance {
		return nil
	}
	return e.SpawnSpellBubble(g)
}

// Score returns the points for a clear of cleared bubbles, floating of which fell
func (e *Engine) Score(cleared, floating int) int {
	return cleared*e.cfg.ScorePerBubble + floating*floating*e.cfg.ScorePerBubble
}

// IsLost reports whether b has a bubble on the configured game-over row
func (e *Engine) IsLost(b *Board) bool {
	return IsBoardLost(b.Grid, e.cfg.GameOverRow)
}
