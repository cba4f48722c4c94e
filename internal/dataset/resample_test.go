// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/mesh-classifier/pkg/types"
)

func TestResamplePadsWithOriginalRows(t *testing.T) {
	faces, neighbors := gridMesh(8)
	rng := rand.New(rand.NewPCG(1, 2))

	outFaces, outNeighbors, err := ResampleToFixedSize(faces, neighbors, 10, rng)
	require.NoError(t, err)
	require.Len(t, outFaces, 10)
	require.Len(t, outNeighbors, 10)

	assert.Equal(t, faces, outFaces[:8], "original rows keep their order")
	assert.Equal(t, neighbors, outNeighbors[:8])

	for i := 8; i < 10; i++ {
		src := -1
		for j, f := range faces {
			if f == outFaces[i] {
				src = j
			}
		}
		require.GreaterOrEqual(t, src, 0, "pad row %d is not one of the originals", i)
		assert.Equal(t, neighbors[src], outNeighbors[i], "pad row %d keeps its neighbor tuple", i)
	}
}

func TestResampleDrawsIndependently(t *testing.T) {
	faces, neighbors := gridMesh(4)
	rng := rand.New(rand.NewPCG(7, 7))

	outFaces, _, err := ResampleToFixedSize(faces, neighbors, 400, rng)
	require.NoError(t, err)

	seen := make(map[types.Face]int)
	for _, f := range outFaces[4:] {
		seen[f]++
	}
	assert.Len(t, seen, 4, "every original row should be drawn at least once in 396 draws")
}

func TestResampleExactSize(t *testing.T) {
	faces, neighbors := gridMesh(6)
	outFaces, outNeighbors, err := ResampleToFixedSize(faces, neighbors, 6, rand.New(rand.NewPCG(0, 0)))
	require.NoError(t, err)
	assert.Equal(t, faces, outFaces)
	assert.Equal(t, neighbors, outNeighbors)

	outNeighbors[0][0] = 99
	assert.NotEqual(t, int64(99), neighbors[0][0], "input rows must not be aliased")
}

func TestResampleTruncates(t *testing.T) {
	faces, neighbors := gridMesh(12)
	outFaces, outNeighbors, err := ResampleToFixedSize(faces, neighbors, 5, rand.New(rand.NewPCG(0, 0)))
	require.NoError(t, err)

	assert.Equal(t, faces[:5], outFaces)
	for i, row := range outNeighbors {
		for _, idx := range row {
			assert.True(t, idx >= 0 && idx < 5, "row %d neighbor %d out of range", i, idx)
		}
	}
	// Face 0 wraps to face 11, which folds to 11 % 5.
	assert.Equal(t, []int64{1, 1, 0}, outNeighbors[0])
}

func TestResampleEmpty(t *testing.T) {
	_, _, err := ResampleToFixedSize(nil, nil, 10, rand.New(rand.NewPCG(0, 0)))
	var empty *EmptyMeshError
	assert.True(t, errors.As(err, &empty))
}
