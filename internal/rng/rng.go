// Package rng wraps math/rand/v2 for deterministic, injectable randomness.
package rng

import "math/rand/v2"

// RNG is a thin convenience wrapper around math/rand/v2 for deterministic seeding.
// It is not safe for concurrent use; give each process its own.
type RNG struct {
	seed uint64
	r    *rand.Rand
}

// New creates a deterministic RNG using the provided seed.
func New(seed uint64) *RNG {
	return &RNG{seed: seed, r: rand.New(rand.NewPCG(seed, 0))}
}

// Seed returns the seed the RNG was created with.
func (r *RNG) Seed() uint64 { return r.seed }

// Float64 returns a uniform value in [0, 1).
func (r *RNG) Float64() float64 { return r.r.Float64() }

// Uniform returns a uniform value in [lo, hi).
func (r *RNG) Uniform(lo, hi float64) float64 {
	return lo + r.r.Float64()*(hi-lo)
}

// Perturbation returns a value in [-width/2, width/2) scaled by multiplier.
func (r *RNG) Perturbation(width float64, multiplier int) float64 {
	return (r.r.Float64()*width - width/2) * float64(multiplier)
}
