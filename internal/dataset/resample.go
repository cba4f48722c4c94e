// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"math/rand/v2"

	"github.com/pdiddy/mesh-classifier/pkg/types"
)

// ResampleToFixedSize returns exactly target face and neighbor rows.
//
// With fewer than target rows, the originals are kept in order and each
// missing row is an independent uniform draw, with replacement, from the
// originals; a drawn row keeps its neighbor tuple. With more than target
// rows, the first target rows are kept and neighbor indices that point
// past the cut are folded back into range modulo target. An empty input
// is rejected with *EmptyMeshError.
//
// The inputs are not modified; every returned neighbor row is a fresh slice.
func ResampleToFixedSize(faces []types.Face, neighbors [][]int64, target int, rng *rand.Rand) ([]types.Face, [][]int64, error) {
	n := len(faces)
	if n == 0 {
		return nil, nil, &EmptyMeshError{}
	}

	keep := min(n, target)
	outFaces := make([]types.Face, target)
	outNeighbors := make([][]int64, target)
	copy(outFaces, faces[:keep])
	for i := 0; i < keep; i++ {
		outNeighbors[i] = copyNeighbors(neighbors[i], target)
	}

	for i := keep; i < target; i++ {
		src := rng.IntN(n)
		outFaces[i] = faces[src]
		outNeighbors[i] = copyNeighbors(neighbors[src], target)
	}
	return outFaces, outNeighbors, nil
}

func copyNeighbors(row []int64, target int) []int64 {
	out := make([]int64, len(row))
	for j, idx := range row {
		if idx >= int64(target) {
			idx %= int64(target)
		}
		out[j] = idx
	}
	return out
}
