package engine

import "math/rand/v2"

// Rand is the randomness the engine consumes. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

// NewRand returns a seeded PCG source, so a seed fully determines a game
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// between returns a uniform value in [lo, hi)
func between(r Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}
