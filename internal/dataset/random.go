// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"math/rand/v2"
	"sync/atomic"

	"github.com/pdiddy/mesh-classifier/pkg/types"
)

// Source hands out the random stream used to prepare one sample. It is
// safe for concurrent use.
//
// Eval streams depend only on the seed and the sample index, so repeated
// reads of a sample are identical. Train streams also mix in a draw
// counter, so every read of a sample is jittered and padded differently.
type Source struct {
	phase types.Phase
	seed  uint64
	draws atomic.Uint64
}

// NewSource builds a Source for phase. A zero seed in the train phase is
// replaced with a fresh random seed.
func NewSource(phase types.Phase, seed int64) *Source {
	s := &Source{phase: phase, seed: uint64(seed)}
	if seed == 0 && phase == types.PhaseTrain {
		s.seed = rand.Uint64()
	}
	return s
}

// Seed returns the effective seed.
func (s *Source) Seed() uint64 {
	return s.seed
}

// ForSample returns a fresh generator for sample index i.
func (s *Source) ForSample(i int) *rand.Rand {
	stream := uint64(i)
	if s.phase == types.PhaseTrain {
		stream = splitmix(stream ^ splitmix(s.draws.Add(1)))
	}
	return rand.New(rand.NewPCG(s.seed, stream))
}

// splitmix scrambles x so that nearby counters yield unrelated streams.
func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
