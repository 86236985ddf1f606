package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var castTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// castBoard returns a board with a settled mixed grid, two spell bubbles and
// a short spell queue
func castBoard(e *Engine) *Board {
	g := e.CreateInitialGrid()
	g.At(Coord{0, 1}).IsSpell = true
	g.At(Coord{0, 1}).Spell = SpellTilt
	g.At(Coord{0, 4}).IsSpell = true
	g.At(Coord{0, 4}).Spell = SpellNuke
	b := NewBoard("target", "target", 1, g)
	b.Spells = []SpellKind{SpellStrip, SpellHarvest}
	return b
}

func TestSpellTableComplete(t *testing.T) {
	assert.Len(t, spellHandlers, len(AllSpells))
	for _, s := range AllSpells {
		assert.True(t, s.Valid(), s.String())
		assert.Contains(t, spellHandlers, s, s.String())
	}
	assert.False(t, SpellNone.Valid())
}

func TestSpellNames(t *testing.T) {
	for _, s := range AllSpells {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var back SpellKind
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}
	var k SpellKind
	assert.Error(t, k.UnmarshalText([]byte("fireball")))
	assert.Equal(t, "spell(42)", SpellKind(42).String())
}

func TestApplySpellLeavesTargetUntouched(t *testing.T) {
	for _, s := range AllSpells {
		e := testEngine(21)
		b := castBoard(e)
		grid := b.Grid.Clone()
		spells := append([]SpellKind{}, b.Spells...)

		res, ok := e.ApplySpell(b, s, castTime)
		require.True(t, ok, s.String())
		assert.Equal(t, s, res.Spell)
		assert.True(t, grid.Equal(b.Grid), "%s mutated the target grid", s)
		assert.Equal(t, spells, b.Spells, "%s mutated the target queue", s)
		assert.Empty(t, b.StatusEffects, "%s mutated the target effects", s)
		if res.Grid != nil {
			mustValid(t, res.Grid)
			assert.NotSame(t, b.Grid, res.Grid)
		}
	}
}

func TestApplySpellRejects(t *testing.T) {
	e := testEngine(1)
	b := castBoard(e)
	_, ok := e.ApplySpell(b, SpellNone, castTime)
	assert.False(t, ok)
	_, ok = e.ApplySpell(b, SpellKind(99), castTime)
	assert.False(t, ok)

	b.Alive = false
	_, ok = e.ApplySpell(b, SpellTilt, castTime)
	assert.False(t, ok)
	_, ok = e.ApplySpell(nil, SpellTilt, castTime)
	assert.False(t, ok)
}

func TestCastTilt(t *testing.T) {
	for seed := uint64(0); seed < 30; seed++ {
		e := testEngine(seed)
		res, ok := e.ApplySpell(castBoard(e), SpellTilt, castTime)
		require.True(t, ok)
		eff, has := res.StatusEffects[EffectTilt]
		require.True(t, has)
		assert.Equal(t, castTime.Add(10*time.Second), eff.EndTime)
		mag := math.Abs(eff.Angle)
		assert.True(t, mag >= 10 && mag < 40, "angle %v", eff.Angle)
		assert.Equal(t, eff.Angle > 0, eff.Direction == 1)
		assert.Contains(t, []int{-1, 1}, eff.Direction)
		assert.Nil(t, res.Grid)
	}
}

func TestCastBrokenLauncher(t *testing.T) {
	seen := map[LauncherVariant]bool{}
	for seed := uint64(0); seed < 60; seed++ {
		e := testEngine(seed)
		res, _ := e.ApplySpell(castBoard(e), SpellBrokenLauncher, castTime)
		eff := res.StatusEffects[EffectLauncher]
		require.GreaterOrEqual(t, int(eff.Variant), 0)
		require.Less(t, int(eff.Variant), launcherVariants)
		seen[eff.Variant] = true
	}
	assert.Len(t, seen, launcherVariants)
}

func TestCastOverwritesSameKind(t *testing.T) {
	e := testEngine(3)
	b := castBoard(e)
	first, _ := e.ApplySpell(b, SpellTilt, castTime)
	first.Patch(b)
	later := castTime.Add(5 * time.Second)
	second, _ := e.ApplySpell(b, SpellTilt, later)
	second.Patch(b)
	assert.Len(t, b.StatusEffects, 1)
	assert.Equal(t, later.Add(10*time.Second), b.StatusEffects[EffectTilt].EndTime)
}

func TestCastStrip(t *testing.T) {
	e := testEngine(4)
	b := castBoard(e)
	res, _ := e.ApplySpell(b, SpellStrip, castTime)

	// oldest entry goes first
	assert.Equal(t, []SpellKind{SpellHarvest}, res.Spells)
	require.NotNil(t, res.Grid)
	res.Grid.Each(func(bub *Bubble) {
		assert.False(t, bub.IsSpell)
		assert.Equal(t, SpellNone, bub.Spell)
	})
	assert.Equal(t, occupancy(b.Grid), occupancy(res.Grid))
}

func TestCastStripEmpty(t *testing.T) {
	e := testEngine(4)
	b := NewBoard("t", "t", 0, e.CreateInitialGrid())
	res, _ := e.ApplySpell(b, SpellStrip, castTime)
	assert.Nil(t, res.Spells)
	assert.Nil(t, res.Grid, "no spell bubbles, grid unchanged")
}

func TestCastStripFromBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StripFrom = QueueBack
	e := New(cfg, NewRand(4))
	res, _ := e.ApplySpell(castBoard(e), SpellStrip, castTime)
	assert.Equal(t, []SpellKind{SpellStrip}, res.Spells)
}

func TestCastRecolorAll(t *testing.T) {
	e := testEngine(5)
	b := castBoard(e)
	res, _ := e.ApplySpell(b, SpellRecolorAll, castTime)
	require.NotNil(t, res.Grid)

	assert.Equal(t, occupancy(b.Grid), occupancy(res.Grid))
	colors := map[ColorID]bool{}
	res.Grid.Each(func(bub *Bubble) { colors[bub.Color] = true })
	assert.Len(t, colors, 1)
	// spell bubbles keep their spell
	assert.Equal(t, SpellTilt, res.Grid.At(Coord{0, 1}).Spell)
	assert.True(t, res.StatusEffects.Has(EffectColorChurn))
}

func TestCastRowInjection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InjectionFill = 1
	e := New(cfg, NewRand(6))
	g := NewGrid(cfg.Rows, cfg.Cols)
	for r := 0; r < 3; r++ {
		for c := 0; c < cfg.Cols; c++ {
			place(g, ColorID((r+c)%4), Coord{r, c})
		}
	}
	g.At(Coord{2, 3}).IsSpell = true
	g.At(Coord{2, 3}).Spell = SpellNuke
	b := NewBoard("t", "t", 0, g)
	res, _ := e.ApplySpell(b, SpellRowInjection, castTime)
	require.NotNil(t, res.Grid)

	for c := 0; c < cfg.Cols; c++ {
		nb := res.Grid.At(Coord{0, c})
		require.NotNil(t, nb)
		assert.False(t, nb.IsSpell)
	}
	b.Grid.Each(func(old *Bubble) {
		moved := res.Grid.At(Coord{old.Row + 1, old.Col})
		require.NotNil(t, moved)
		assert.Equal(t, old.Color, moved.Color)
		assert.Equal(t, old.Spell, moved.Spell)
	})
	assert.Empty(t, FindFloating(res.Grid))
}

func TestCastRowInjectionEvictsLastRow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InjectionFill = 1
	e := New(cfg, NewRand(6))
	g := NewGrid(cfg.Rows, cfg.Cols)
	for r := 0; r < cfg.Rows; r++ {
		place(g, ColorBlue, Coord{r, 0})
	}
	res, _ := e.ApplySpell(NewBoard("t", "t", 0, g), SpellRowInjection, castTime)
	assert.Equal(t, cfg.Cols+cfg.Rows-1, res.Grid.Count())
	assert.True(t, IsBoardLost(res.Grid, cfg.GameOverRow))
}

func TestCastRowInjectionDropsUnanchored(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InjectionFill = 0
	e := New(cfg, NewRand(6))
	g := NewGrid(cfg.Rows, cfg.Cols)
	place(g, ColorBlue, Coord{0, 0}, Coord{1, 0})
	res, _ := e.ApplySpell(NewBoard("t", "t", 0, g), SpellRowInjection, castTime)
	assert.Equal(t, 0, res.Grid.Count())
	assert.Len(t, res.Falling, 2)
}

func TestCastNuke(t *testing.T) {
	for seed := uint64(0); seed < 30; seed++ {
		e := testEngine(seed)
		b := castBoard(e)
		n := b.Grid.Count()
		res, _ := e.ApplySpell(b, SpellNuke, castTime)
		require.NotNil(t, res.Grid)

		assert.GreaterOrEqual(t, len(res.Removed), int(math.Floor(float64(n)*0.3)))
		assert.LessOrEqual(t, len(res.Removed), int(math.Floor(float64(n)*0.8)))
		assert.Equal(t, n-len(res.Removed)-len(res.Falling), res.Grid.Count())
		assert.Empty(t, FindFloating(res.Grid))
		// nuking credits nobody
		assert.Nil(t, res.Spells)
	}
}

func TestCastNukeEmptyBoard(t *testing.T) {
	e := testEngine(1)
	res, ok := e.ApplySpell(NewBoard("t", "t", 0, NewGrid(14, 8)), SpellNuke, castTime)
	assert.True(t, ok)
	assert.Nil(t, res.Grid)
}

func TestCastRecolorSubset(t *testing.T) {
	for seed := uint64(0); seed < 30; seed++ {
		e := testEngine(seed)
		b := castBoard(e)
		res, _ := e.ApplySpell(b, SpellRecolorSubset, castTime)
		require.NotNil(t, res.Grid)
		assert.Equal(t, occupancy(b.Grid), occupancy(res.Grid))

		changed := map[ColorID]bool{}
		b.Grid.Each(func(old *Bubble) {
			now := res.Grid.At(old.Coord())
			if old.IsSpell {
				assert.Equal(t, *old, *now, "spell bubbles are never recolored")
				return
			}
			if now.Color != old.Color {
				changed[now.Color] = true
			}
		})
		assert.LessOrEqual(t, len(changed), 1)
	}
}

func TestCastHarvest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HarvestMinRows, cfg.HarvestMaxRows = 2, 2
	e := New(cfg, NewRand(8))

	g := NewGrid(cfg.Rows, cfg.Cols)
	for r := 0; r <= 5; r++ {
		place(g, ColorID(r%3), Coord{r, 0})
	}
	g.Put(Coord{5, 1}, Bubble{Color: ColorRed, IsSpell: true, Spell: SpellTilt})
	g.Put(Coord{4, 1}, Bubble{Color: ColorCyan, IsSpell: true, Spell: SpellRecolorAll})
	b := NewBoard("me", "me", 0, g)
	b.Spells = []SpellKind{SpellNuke}

	res, _ := e.ApplySpell(b, SpellHarvest, castTime)
	require.NotNil(t, res.Grid)
	assert.ElementsMatch(t, []Coord{{4, 0}, {4, 1}, {5, 0}, {5, 1}}, res.Removed)
	assert.Equal(t, 4, res.Grid.Count())
	assert.False(t, res.Grid.RowOccupied(4))
	assert.Equal(t, []SpellKind{SpellNuke, SpellTilt, SpellRecolorAll}, res.Spells)
}

func TestCastHarvestRespectsCapacity(t *testing.T) {
	cfg := DefaultConfig()
	e := New(cfg, NewRand(8))
	g := NewGrid(cfg.Rows, cfg.Cols)
	place(g, ColorRed, Coord{0, 0})
	g.Put(Coord{1, 0}, Bubble{Color: ColorRed, IsSpell: true, Spell: SpellTilt})
	b := NewBoard("me", "me", 0, g)
	for len(b.Spells) < cfg.MaxSpells {
		b.Spells = append(b.Spells, SpellStrip)
	}

	res, _ := e.ApplySpell(b, SpellHarvest, castTime)
	assert.Len(t, res.Spells, cfg.MaxSpells)
	assert.NotContains(t, res.Spells, SpellTilt)
	assert.Equal(t, 0, res.Grid.Count())
}

func TestCastHarvestEmptyBoard(t *testing.T) {
	e := testEngine(1)
	res, _ := e.ApplySpell(NewBoard("t", "t", 0, NewGrid(14, 8)), SpellHarvest, castTime)
	assert.Nil(t, res.Grid)
	assert.Nil(t, res.Spells)
}

func TestTakeAndPushSpell(t *testing.T) {
	q := []SpellKind{SpellTilt, SpellNuke, SpellStrip}
	s, rest, ok := TakeSpell(q, QueueBack)
	assert.True(t, ok)
	assert.Equal(t, SpellStrip, s)
	assert.Equal(t, []SpellKind{SpellTilt, SpellNuke}, rest)

	s, rest, _ = TakeSpell(q, QueueFront)
	assert.Equal(t, SpellTilt, s)
	assert.Equal(t, []SpellKind{SpellNuke, SpellStrip}, rest)
	assert.Len(t, q, 3, "input queue is not modified")

	_, _, ok = TakeSpell(nil, QueueBack)
	assert.False(t, ok)

	full := []SpellKind{SpellTilt, SpellTilt}
	out, added := PushSpell(full, SpellNuke, 2)
	assert.False(t, added)
	assert.Equal(t, full, out)
}
