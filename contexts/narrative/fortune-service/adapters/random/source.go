package random

import "math/rand/v2"

// SystemSource draws from the process-wide PRNG.
type SystemSource struct{}

func (SystemSource) Float64() float64 { return rand.Float64() }

func (SystemSource) IntN(n int) int { return rand.IntN(n) }

// SeededSource is a deterministic source for tests and replayable rolls.
type SeededSource struct {
	rng *rand.Rand
}

func NewSeededSource(seed uint64) *SeededSource {
	return &SeededSource{rng: rand.New(rand.NewPCG(seed, seed))}
}

func (s *SeededSource) Float64() float64 { return s.rng.Float64() }

func (s *SeededSource) IntN(n int) int { return s.rng.IntN(n) }
