// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"archive/zip"
	"fmt"
	"strings"

	"github.com/sbinet/npyio/npy"

	"github.com/pdiddy/mesh-classifier/pkg/types"
)

const (
	facesArray     = "faces"
	neighborsArray = "neighbors"
)

// ReadRecord loads the faces and neighbors arrays of one .npz mesh record.
// A record without both arrays, or with inconsistent shapes, yields a
// *MissingFacesError. Storage failures are returned wrapped.
func ReadRecord(path string) (types.RawMeshSample, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return types.RawMeshSample{}, fmt.Errorf("opening mesh record %s: %w", path, err)
	}
	defer zr.Close()

	arrays := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		arrays[strings.TrimSuffix(f.Name, ".npy")] = f
	}
	facesFile, okFaces := arrays[facesArray]
	neighborsFile, okNeighbors := arrays[neighborsArray]
	if !okFaces || !okNeighbors {
		return types.RawMeshSample{}, &MissingFacesError{Path: path, Reason: "record lacks a faces/neighbors pair"}
	}

	faceData, faceShape, err := readFloats(facesFile)
	if err != nil {
		return types.RawMeshSample{}, fmt.Errorf("reading faces of %s: %w", path, err)
	}
	n, err := rowCount(faceShape, len(faceData), types.FaceWidth)
	if err != nil {
		return types.RawMeshSample{}, &MissingFacesError{Path: path, Reason: "faces: " + err.Error()}
	}

	neighborData, neighborShape, err := readInts(neighborsFile)
	if err != nil {
		return types.RawMeshSample{}, fmt.Errorf("reading neighbors of %s: %w", path, err)
	}
	if n == 0 {
		return types.RawMeshSample{Path: path}, nil
	}
	if len(neighborData)%n != 0 {
		return types.RawMeshSample{}, &MissingFacesError{
			Path:   path,
			Reason: fmt.Sprintf("neighbors hold %d values for %d faces", len(neighborData), n),
		}
	}
	k := len(neighborData) / n
	if len(neighborShape) == 2 && (neighborShape[0] != n || neighborShape[1] != k) {
		return types.RawMeshSample{}, &MissingFacesError{
			Path:   path,
			Reason: fmt.Sprintf("neighbors shape %v does not match %d faces", neighborShape, n),
		}
	}

	sample := types.RawMeshSample{
		Path:      path,
		Faces:     make([]types.Face, n),
		Neighbors: make([][]int64, n),
	}
	for i := 0; i < n; i++ {
		for c := 0; c < types.FaceWidth; c++ {
			sample.Faces[i][c] = float32(faceData[i*types.FaceWidth+c])
		}
		row := make([]int64, k)
		copy(row, neighborData[i*k:(i+1)*k])
		sample.Neighbors[i] = row
	}
	return sample, nil
}

// rowCount derives the number of rows of a row-major array whose rows are
// width wide. One-dimensional arrays are accepted when their length divides.
func rowCount(shape []int, size, width int) (int, error) {
	switch len(shape) {
	case 2:
		if shape[1] != width {
			return 0, fmt.Errorf("expected %d columns, got shape %v", width, shape)
		}
		return shape[0], nil
	case 1:
		if size%width != 0 {
			return 0, fmt.Errorf("%d values do not form rows of %d", size, width)
		}
		return size / width, nil
	default:
		return 0, fmt.Errorf("unsupported shape %v", shape)
	}
}

func readFloats(f *zip.File) ([]float64, []int, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()

	r, err := npy.NewReader(rc)
	if err != nil {
		return nil, nil, err
	}
	shape := r.Header.Descr.Shape

	switch r.Header.Descr.Type {
	case "<f4", "|f4", "f4":
		var data []float32
		if err := r.Read(&data); err != nil {
			return nil, nil, err
		}
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v)
		}
		return out, shape, nil
	default:
		var data []float64
		if err := r.Read(&data); err != nil {
			return nil, nil, err
		}
		return data, shape, nil
	}
}

func readInts(f *zip.File) ([]int64, []int, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()

	r, err := npy.NewReader(rc)
	if err != nil {
		return nil, nil, err
	}
	shape := r.Header.Descr.Shape

	switch r.Header.Descr.Type {
	case "<i4", "|i4", "i4":
		var data []int32
		if err := r.Read(&data); err != nil {
			return nil, nil, err
		}
		out := make([]int64, len(data))
		for i, v := range data {
			out[i] = int64(v)
		}
		return out, shape, nil
	default:
		var data []int64
		if err := r.Read(&data); err != nil {
			return nil, nil, err
		}
		return data, shape, nil
	}
}
