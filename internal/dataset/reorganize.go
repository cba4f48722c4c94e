// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import "github.com/pdiddy/mesh-classifier/pkg/types"

// Reorganize transposes faces into channel-major tensors. Corner channels
// are re-expressed relative to the face center; centers and normals are
// copied as is. The neighbor rows are adopted, not copied.
func Reorganize(faces []types.Face, neighbors [][]int64, target int) types.PreparedTensor {
	f := len(faces)
	var t types.PreparedTensor
	for c := range t.Centers {
		t.Centers[c] = make([]float32, f)
	}
	for c := range t.Corners {
		t.Corners[c] = make([]float32, f)
	}
	for c := range t.Normals {
		t.Normals[c] = make([]float32, f)
	}

	for i, face := range faces {
		for c := 0; c < 3; c++ {
			t.Centers[c][i] = face[types.CenterOffset+c]
			t.Normals[c][i] = face[types.NormalOffset+c]
		}
		for g := 0; g < types.CornerGroups; g++ {
			for c := 0; c < 3; c++ {
				t.Corners[g*3+c][i] = face[types.CornerOffset+g*3+c] - face[types.CenterOffset+c]
			}
		}
	}

	t.NeighborIndex = neighbors
	t.Target = int64(target)
	return t
}
