// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio/npy"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/mesh-classifier/pkg/types"
)

// writeRecord stores faces and neighbors as a two-array .npz archive.
func writeRecord(t *testing.T, path string, faces []types.Face, neighbors [][]int64) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	flatFaces := make([]float64, 0, len(faces)*types.FaceWidth)
	for _, f := range faces {
		for _, v := range f {
			flatFaces = append(flatFaces, float64(v))
		}
	}
	var flatNeighbors []int64
	for _, row := range neighbors {
		flatNeighbors = append(flatNeighbors, row...)
	}

	writeArrays(t, path, map[string]any{
		"faces.npy":     flatFaces,
		"neighbors.npy": flatNeighbors,
	})
}

func writeArrays(t *testing.T, path string, arrays map[string]any) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, data := range arrays {
		w, err := zw.Create(name)
		require.NoError(t, err)
		require.NoError(t, npy.Write(w, data))
	}
	require.NoError(t, zw.Close())
}

// gridMesh builds n faces with exactly representable coordinates. Face i
// is centered at (i, i/2, i/4) with corners offset by quarter units and a
// unit normal along z. Each face's neighbors wrap around the ring.
func gridMesh(n int) ([]types.Face, [][]int64) {
	faces := make([]types.Face, n)
	neighbors := make([][]int64, n)
	for i := 0; i < n; i++ {
		cx, cy, cz := float32(i), float32(i)/2, float32(i)/4
		faces[i] = types.Face{
			cx, cy, cz,
			cx + 0.25, cy, cz,
			cx, cy + 0.25, cz,
			cx - 0.25, cy - 0.25, cz,
			0, 0, 1,
		}
		neighbors[i] = []int64{
			int64((i + 1) % n),
			int64((i + n - 1) % n),
			int64(i),
		}
	}
	return faces, neighbors
}
