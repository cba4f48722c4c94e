// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/mesh-classifier/pkg/types"
)

// memReader serves records from memory keyed by path.
type memReader map[string]types.RawMeshSample

func (m memReader) read(path string) (types.RawMeshSample, error) {
	s, ok := m[path]
	if !ok {
		return types.RawMeshSample{}, fmt.Errorf("no record %s", path)
	}
	return s, nil
}

func newMemLoader(t *testing.T, cfg Config, sizes ...int) (*Loader, memReader) {
	t.Helper()
	records := memReader{}
	var samples []types.LabeledSample
	for i, n := range sizes {
		path := fmt.Sprintf("mesh-%d.npz", i)
		faces, neighbors := gridMesh(n)
		records[path] = types.RawMeshSample{Path: path, Faces: faces, Neighbors: neighbors}
		samples = append(samples, types.LabeledSample{Path: path, Label: "ad", Target: i % 2})
	}
	l, err := NewLoader(samples, cfg, WithReader(records.read))
	require.NoError(t, err)
	return l, records
}

func TestLoaderFixedShape(t *testing.T) {
	l, _ := newMemLoader(t, Config{MaxFaces: 16, Augment: true, Phase: types.PhaseTrain, Seed: 3}, 1, 7, 16, 20)

	for i := 0; i < l.Len(); i++ {
		tensor, err := l.Get(i)
		require.NoError(t, err)

		for c := range tensor.Centers {
			assert.Len(t, tensor.Centers[c], 16)
			assert.Len(t, tensor.Normals[c], 16)
		}
		for c := range tensor.Corners {
			assert.Len(t, tensor.Corners[c], 16)
		}
		require.Len(t, tensor.NeighborIndex, 16)
		assert.Equal(t, 3, tensor.FanOut())
		for f, row := range tensor.NeighborIndex {
			for _, idx := range row {
				assert.True(t, idx >= 0 && idx < 16, "sample %d face %d neighbor %d", i, f, idx)
			}
		}
		assert.Equal(t, int64(i%2), tensor.Target)
	}
}

func TestLoaderCornersRelativeToCenter(t *testing.T) {
	l, records := newMemLoader(t, Config{MaxFaces: 10, Phase: types.PhaseTrain, Seed: 5}, 8)
	raw := records["mesh-0.npz"]

	tensor, err := l.Get(0)
	require.NoError(t, err)

	for f := 0; f < raw.Len(); f++ {
		face := raw.Faces[f]
		for c := 0; c < 3; c++ {
			assert.Equal(t, face[c], tensor.Centers[c][f])
			assert.Equal(t, face[types.NormalOffset+c], tensor.Normals[c][f])

			var rebuilt float32
			for g := 0; g < types.CornerGroups; g++ {
				got := tensor.Corners[g*3+c][f] + tensor.Centers[c][f]
				assert.Equal(t, face[types.CornerOffset+g*3+c], got, "face %d corner %d channel %d", f, g, c)
				rebuilt += tensor.Corners[g*3+c][f]
			}
			var original float32
			for g := 0; g < types.CornerGroups; g++ {
				original += face[types.CornerOffset+g*3+c]
			}
			assert.Equal(t, original, rebuilt+3*tensor.Centers[c][f])
		}
	}
}

func TestLoaderJitterBound(t *testing.T) {
	faces, neighbors := gridMesh(32)
	raw := types.RawMeshSample{Path: "m", Faces: faces, Neighbors: neighbors}
	l, err := NewLoader(nil, Config{MaxFaces: 32, Augment: true, Phase: types.PhaseTrain})
	require.NoError(t, err)

	var moved bool
	for run := 0; run < 20; run++ {
		tensor, err := l.Prepare(raw, 0, rand.New(rand.NewPCG(uint64(run), 1)))
		require.NoError(t, err)
		for f := range faces {
			for c := 0; c < 3; c++ {
				d := math.Abs(float64(tensor.Centers[c][f]) - float64(faces[f][c]))
				assert.LessOrEqual(t, d, jitterClip+1e-5)
				if d > 0 {
					moved = true
				}
				assert.Equal(t, faces[f][types.NormalOffset+c], tensor.Normals[c][f], "normals are never jittered")
			}
		}
	}
	assert.True(t, moved, "augmentation should perturb centers")
}

func TestJitterOnlyTouchesCenters(t *testing.T) {
	faces, _ := gridMesh(10)
	out := Jitter(faces, rand.New(rand.NewPCG(9, 9)))
	for i := range faces {
		assert.Equal(t, faces[i][types.CornerOffset:], out[i][types.CornerOffset:])
	}
	assert.NotEqual(t, faces, out)
}

func TestLoaderEvalIdempotent(t *testing.T) {
	l, _ := newMemLoader(t, Config{MaxFaces: 12, Augment: true, Phase: types.PhaseEval, Seed: 42}, 5)
	assert.False(t, l.Augmenting())

	first, err := l.Get(0)
	require.NoError(t, err)
	second, err := l.Get(0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoaderTrainReadsDiffer(t *testing.T) {
	l, _ := newMemLoader(t, Config{MaxFaces: 64, Phase: types.PhaseTrain, Seed: 42}, 5)

	first, err := l.Get(0)
	require.NoError(t, err)
	second, err := l.Get(0)
	require.NoError(t, err)
	assert.NotEqual(t, first.NeighborIndex, second.NeighborIndex, "pad draws should differ between reads")
}

func TestLoaderConcurrentGet(t *testing.T) {
	l, _ := newMemLoader(t, Config{MaxFaces: 24, Augment: true, Phase: types.PhaseTrain, Seed: 1}, 3, 9, 24, 11)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < l.Len(); i++ {
				tensor, err := l.Get(i)
				if err != nil {
					errs <- err
					return
				}
				if tensor.Faces() != 24 {
					errs <- fmt.Errorf("sample %d has %d faces", i, tensor.Faces())
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestLoaderErrors(t *testing.T) {
	faces, neighbors := gridMesh(3)
	badNeighbors := [][]int64{{1, 2, 0}, {0, 7, 1}, {0, 1, 2}}
	ragged := [][]int64{{1, 2, 0}, {0, 1}, {0, 1, 2}}

	tests := []struct {
		name  string
		raw   types.RawMeshSample
		check func(t *testing.T, err error)
	}{
		{
			name: "empty mesh",
			raw:  types.RawMeshSample{Path: "empty"},
			check: func(t *testing.T, err error) {
				var e *EmptyMeshError
				require.True(t, errors.As(err, &e))
				assert.Equal(t, "empty", e.Path)
			},
		},
		{
			name: "neighbor out of range",
			raw:  types.RawMeshSample{Path: "bad", Faces: faces, Neighbors: badNeighbors},
			check: func(t *testing.T, err error) {
				var e *IndexResolutionError
				require.True(t, errors.As(err, &e))
				assert.Equal(t, 1, e.Face)
				assert.Equal(t, int64(7), e.Neighbor)
			},
		},
		{
			name: "ragged neighbors",
			raw:  types.RawMeshSample{Path: "ragged", Faces: faces, Neighbors: ragged},
			check: func(t *testing.T, err error) {
				var e *MissingFacesError
				require.True(t, errors.As(err, &e))
			},
		},
		{
			name: "row count mismatch",
			raw:  types.RawMeshSample{Path: "short", Faces: faces, Neighbors: neighbors[:2]},
			check: func(t *testing.T, err error) {
				var e *MissingFacesError
				require.True(t, errors.As(err, &e))
			},
		},
	}

	l, err := NewLoader(nil, Config{MaxFaces: 4, Phase: types.PhaseEval})
	require.NoError(t, err)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Prepare(tt.raw, 0, rand.New(rand.NewPCG(0, 0)))
			tt.check(t, err)
		})
	}
}

func TestNewLoaderValidation(t *testing.T) {
	_, err := NewLoader(nil, Config{MaxFaces: 0, Phase: types.PhaseTrain})
	assert.Error(t, err)
	_, err = NewLoader(nil, Config{MaxFaces: 4, Phase: "validate"})
	assert.Error(t, err)
}

func TestOpenFromDirectory(t *testing.T) {
	root := t.TempDir()
	faces, neighbors := gridMesh(8)
	writeRecord(t, filepath.Join(root, "ad", "train", "x.npz"), faces, neighbors)
	writeRecord(t, filepath.Join(root, "cn", "test", "y.npz"), faces, neighbors)

	cfg := types.DefaultPipelineConfig().Dataset
	cfg.DataRoot = root
	cfg.MaxFaces = 10
	cfg.AugmentData = false

	l, err := Open(cfg, types.PhaseTrain, nil)
	require.NoError(t, err)
	require.Equal(t, 1, l.Len())

	tensor, err := l.Get(0)
	require.NoError(t, err)
	assert.Equal(t, 10, tensor.Faces())
	assert.Equal(t, int64(0), tensor.Target)

	for f := 0; f < 8; f++ {
		assert.Equal(t, faces[f][0], tensor.Centers[0][f])
	}

	_, err = Open(cfg, types.PhaseEval, nil)
	require.NoError(t, err)

	cfg.EvalSplit = "val"
	_, err = Open(cfg, types.PhaseEval, nil)
	assert.ErrorContains(t, err, `no mesh records found for split "val"`)
}

func TestOpenFromManifestSplitsDisjoint(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.csv")
	require.NoError(t, os.WriteFile(manifest, []byte(
		"file,label,split\na.npz,ad,train\nb.npz,cn,train\nc.npz,ad,test\nd.npz,cn,test\n"), 0o644))

	cfg := types.DefaultPipelineConfig().Dataset
	cfg.Manifest = manifest
	cfg.SplitColumn = "split"

	train, err := Open(cfg, types.PhaseTrain, nil)
	require.NoError(t, err)
	eval, err := Open(cfg, types.PhaseEval, nil)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := range train.Len() {
		seen[train.Sample(i).Path] = true
	}
	require.Equal(t, 2, eval.Len())
	for i := range eval.Len() {
		assert.False(t, seen[eval.Sample(i).Path], "eval sample %s also in train", eval.Sample(i).Path)
	}
}

func TestOpenFromManifestRequiresSplitColumn(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.csv")
	require.NoError(t, os.WriteFile(manifest, []byte("file,label\na.npz,ad\nb.npz,cn\n"), 0o644))

	cfg := types.DefaultPipelineConfig().Dataset
	cfg.Manifest = manifest

	for _, phase := range []types.Phase{types.PhaseTrain, types.PhaseEval} {
		_, err := Open(cfg, phase, nil)
		assert.ErrorContains(t, err, "split column is required", "phase %s", phase)
	}
}
