// Package rng provides the seeded random source injected into the simulation.
// All randomness in a run flows through one Source so that a seed reproduces
// placements and pursuer parameters.
package rng

import (
	"math"
	"math/rand/v2"
)

// Source is the subset of a random generator the simulation needs.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n).
	IntN(n int) int
}

// Rand is a seeded PCG generator.
type Rand struct {
	seed uint64
	r    *rand.Rand
}

// New returns a generator seeded with seed.
func New(seed uint64) *Rand {
	return &Rand{
		seed: seed,
		r:    rand.New(rand.NewPCG(seed, mix(seed))),
	}
}

// Seed returns the seed the generator was created with.
func (g *Rand) Seed() uint64 { return g.seed }

func (g *Rand) Float64() float64 { return g.r.Float64() }

func (g *Rand) IntN(n int) int { return g.r.IntN(n) }

// Reseed restarts the sequence from a new seed.
func (g *Rand) Reseed(seed uint64) {
	g.seed = seed
	g.r = rand.New(rand.NewPCG(seed, mix(seed)))
}

// Range returns a uniform value in [lo, hi).
func Range(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// Angle returns a uniform angle in [0, 2π).
func Angle(src Source) float64 {
	return src.Float64() * 2 * math.Pi
}

// Sign returns -1 or 1 with equal probability.
func Sign(src Source) float64 {
	if src.Float64() < 0.5 {
		return -1
	}
	return 1
}

// Weighted picks an index from weights proportionally. Weights need not sum to 1.
// It returns -1 when weights is empty or sums to zero.
func Weighted(src Source, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return -1
	}
	x := src.Float64() * total
	for i, w := range weights {
		if x < w {
			return i
		}
		x -= w
	}
	return len(weights) - 1
}

// mix derives the second PCG word from the seed (splitmix64 finaliser).
func mix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// Sequence is a Source that replays fixed values, for tests and scripted runs.
// Float64 values cycle; IntN returns int(v*n) of the next value.
type Sequence struct {
	Values []float64
	next   int
}

func (s *Sequence) Float64() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	v := s.Values[s.next%len(s.Values)]
	s.next++
	return v
}

func (s *Sequence) IntN(n int) int {
	v := int(s.Float64() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}
