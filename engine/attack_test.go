package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attackBoards() (a, b, ally, dead *Board) {
	a = NewBoard("a", "a", 1, NewGrid(14, 8))
	b = NewBoard("b", "b", 2, NewGrid(14, 8))
	ally = NewBoard("ally", "ally", 1, NewGrid(14, 8))
	dead = NewBoard("dead", "dead", 3, NewGrid(14, 8))
	dead.Alive = false
	return
}

func TestAttackTickUnitsAndRemainder(t *testing.T) {
	e := testEngine(1)
	a, b, ally, dead := attackBoards()
	a.AttackCounter = 23
	a.Level = 2

	out := e.AttackTick([]*Board{a, b, ally, dead})
	assert.Equal(t, map[PlayerID]int{"b": 4}, out)
	assert.Equal(t, 3, a.AttackCounter)
}

func TestAttackTickBelowUnit(t *testing.T) {
	e := testEngine(1)
	a, b, _, _ := attackBoards()
	a.AttackCounter = 9
	out := e.AttackTick([]*Board{a, b})
	assert.Empty(t, out)
	assert.Equal(t, 9, a.AttackCounter)
}

func TestAttackTickEvenlyDivisible(t *testing.T) {
	e := testEngine(1)
	a, b, _, _ := attackBoards()
	a.AttackCounter = 30
	out := e.AttackTick([]*Board{a, b})
	assert.Equal(t, 3, out["b"])
	assert.Equal(t, 0, a.AttackCounter)
}

func TestAttackTickDeadAttacker(t *testing.T) {
	e := testEngine(1)
	a, b, _, dead := attackBoards()
	dead.AttackCounter = 50
	out := e.AttackTick([]*Board{a, b, dead})
	assert.Empty(t, out)
	assert.Equal(t, 50, dead.AttackCounter)
}

func TestAttackTickMutual(t *testing.T) {
	e := testEngine(1)
	a, b, ally, _ := attackBoards()
	a.AttackCounter = 10
	b.AttackCounter = 25
	b.Level = 3
	out := e.AttackTick([]*Board{a, b, ally})
	assert.Equal(t, 1, out["b"])
	assert.Equal(t, 6, out["a"])
	assert.Equal(t, 6, out["ally"])
	assert.Equal(t, 5, b.AttackCounter)
}

func TestAddJunkBubblesLimitedSlots(t *testing.T) {
	e := testEngine(2)
	g := NewGrid(2, 3)
	place(g, ColorRed, Coord{0, 0}, Coord{0, 1})
	b := NewBoard("p", "p", 0, g)
	require.ElementsMatch(t, []Coord{{0, 2}, {1, 0}, {1, 1}}, JunkSlots(g))

	placed := e.AddJunkBubbles(b, 5)
	assert.Equal(t, 3, placed)
	assert.Equal(t, 5, b.Grid.Count())
	assert.Nil(t, b.Grid.At(Coord{1, 2}))
	assert.Empty(t, FindFloating(b.Grid))
	assert.Equal(t, 2, g.Count(), "old grid state is left alone")
}

func TestAddJunkBubblesNeverSpells(t *testing.T) {
	rng := NewRand(5)
	e := testEngine(5)
	for i := 0; i < 100; i++ {
		b := NewBoard("p", "p", 0, anchored(rng, 14, 8, 0.5, 7))
		before := b.Grid.Clone()
		n := rng.IntN(12)
		placed := e.AddJunkBubbles(b, n)
		require.LessOrEqual(t, placed, n)
		require.Equal(t, before.Count()+placed, b.Grid.Count())
		require.Empty(t, FindFloating(b.Grid))
		mustValid(t, b.Grid)
		b.Grid.Each(func(bub *Bubble) {
			if before.At(bub.Coord()) == nil {
				require.False(t, bub.IsSpell)
			}
		})
	}
}

func TestAddJunkBubblesEmptyGrid(t *testing.T) {
	e := testEngine(2)
	b := NewBoard("p", "p", 0, NewGrid(14, 8))
	assert.Equal(t, 0, e.AddJunkBubbles(b, 4))
	assert.Equal(t, 0, e.AddJunkBubbles(b, 0))
}
