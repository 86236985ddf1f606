package engine

import (
	"fmt"
	"time"
)

// SpellKind identifies a spell
type SpellKind int

const (
	SpellNone           SpellKind = 0
	SpellTilt           SpellKind = 1 // timed board tilt, lateral projectile drift
	SpellBrokenLauncher SpellKind = 2 // timed launcher distortion, random variant
	SpellStrip          SpellKind = 3 // drop one queued spell, clear spell bubbles
	SpellRecolorAll     SpellKind = 4 // one color for the whole board + launcher churn
	SpellRowInjection   SpellKind = 5 // push a new partial row in from the top
	SpellNuke           SpellKind = 6 // remove a random share of bubbles
	SpellRecolorSubset  SpellKind = 7 // force a random share to one color
	SpellHarvest        SpellKind = 8 // clear bottom rows, keep their spells

	spellCount = 9
)

var spellNames = [spellCount]string{
	SpellNone:           "",
	SpellTilt:           "tilt",
	SpellBrokenLauncher: "broken_launcher",
	SpellStrip:          "strip",
	SpellRecolorAll:     "recolor_all",
	SpellRowInjection:   "row_injection",
	SpellNuke:           "nuke",
	SpellRecolorSubset:  "recolor_subset",
	SpellHarvest:        "harvest",
}

// AllSpells lists every castable spell
var AllSpells = []SpellKind{
	SpellTilt, SpellBrokenLauncher, SpellStrip, SpellRecolorAll,
	SpellRowInjection, SpellNuke, SpellRecolorSubset, SpellHarvest,
}

// Valid reports whether s names a castable spell
func (s SpellKind) Valid() bool {
	return s > SpellNone && s < spellCount
}

// SelfOnly reports whether s may only target the caster's own board.
// Harvest feeds the target's queue, so aiming it elsewhere would gift spells.
func (s SpellKind) SelfOnly() bool {
	return s == SpellHarvest
}

func (s SpellKind) String() string {
	if s < 0 || s >= spellCount {
		return fmt.Sprintf("spell(%d)", int(s))
	}
	return spellNames[s]
}

// MarshalText encodes the spell by name
func (s SpellKind) MarshalText() ([]byte, error) {
	if s < 0 || s >= spellCount {
		return nil, fmt.Errorf("unknown spell %d", int(s))
	}
	return []byte(spellNames[s]), nil
}

// UnmarshalText decodes a spell name
func (s *SpellKind) UnmarshalText(text []byte) error {
	k, ok := ParseSpell(string(text))
	if !ok {
		return fmt.Errorf("unknown spell %q", text)
	}
	*s = k
	return nil
}

// ParseSpell looks a spell up by name
func ParseSpell(name string) (SpellKind, bool) {
	for i, n := range spellNames {
		if n == name {
			return SpellKind(i), true
		}
	}
	return SpellNone, false
}

// SpellResult is the patch produced by casting a spell on a board. Grid and
// Spells are complete replacement states, nil when unchanged.
type SpellResult struct {
	Spell         SpellKind
	StatusEffects StatusEffects
	Grid          *Grid
	Spells        []SpellKind
	Removed       []Coord
	Falling       []FallingBubble
}

// Patch applies the result to board
func (r SpellResult) Patch(b *Board) {
	b.StatusEffects = r.StatusEffects
	if r.Grid != nil {
		b.Grid = r.Grid
	}
	if r.Spells != nil {
		b.Spells = r.Spells
	}
}

type spellHandler func(e *Engine, target *Board, res *SpellResult, now time.Time)

// spellHandlers has an entry for every valid SpellKind
var spellHandlers = map[SpellKind]spellHandler{
	SpellTilt:           (*Engine).castTilt,
	SpellBrokenLauncher: (*Engine).castBrokenLauncher,
	SpellStrip:          (*Engine).castStrip,
	SpellRecolorAll:     (*Engine).castRecolorAll,
	SpellRowInjection:   (*Engine).castRowInjection,
	SpellNuke:           (*Engine).castNuke,
	SpellRecolorSubset:  (*Engine).castRecolorSubset,
	SpellHarvest:        (*Engine).castHarvest,
}
