// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"math/rand/v2"

	"github.com/pdiddy/mesh-classifier/pkg/types"
)

const (
	jitterSigma = 0.01
	jitterClip  = 0.05
)

// Jitter returns a copy of faces with Gaussian noise added to the center
// columns. Noise is clipped to ±jitterClip; corner and normal columns are
// left unchanged.
func Jitter(faces []types.Face, rng *rand.Rand) []types.Face {
	out := make([]types.Face, len(faces))
	copy(out, faces)
	for i := range out {
		for c := types.CenterOffset; c < types.CenterOffset+3; c++ {
			noise := clip(jitterSigma*rng.NormFloat64(), -jitterClip, jitterClip)
			out[i][c] = float32(float64(out[i][c]) + noise)
		}
	}
	return out
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
