// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the meshtrain pipeline.
package types

// Phase is one half of a training epoch.
type Phase string

const (
	PhaseTrain Phase = "train"
	PhaseEval  Phase = "eval"
)

func (p Phase) String() string {
	return string(p)
}

// Feature layout of a single face: center, three corners, normal.
const (
	FaceWidth    = 15
	CenterOffset = 0
	CornerOffset = 3
	NormalOffset = 12
	CornerGroups = 3
)

// Face is the per-face feature vector as stored in a mesh record.
type Face [FaceWidth]float32

// RawMeshSample is one mesh record as read from storage. Faces and
// Neighbors always have the same length.
type RawMeshSample struct {
	// Path is the record's location on disk.
	Path string `json:"path" yaml:"path"`

	// Faces holds one 15-component feature vector per face.
	Faces []Face `json:"faces" yaml:"faces"`

	// Neighbors holds, per face, the indices of its adjacent faces.
	Neighbors [][]int64 `json:"neighbors" yaml:"neighbors"`
}

// Len returns the number of faces in the record.
func (s RawMeshSample) Len() int {
	return len(s.Faces)
}

// FanOut returns the adjacency width K, or 0 for an empty record.
func (s RawMeshSample) FanOut() int {
	if len(s.Neighbors) == 0 {
		return 0
	}
	return len(s.Neighbors[0])
}

// LabeledSample pairs a record location with its diagnostic category.
type LabeledSample struct {
	Path   string `json:"path" yaml:"path"`
	Label  string `json:"label" yaml:"label"`
	Target int    `json:"target" yaml:"target"`
}

// PreparedTensor is a fixed-size, channel-major view of one mesh ready for
// batching. Centers[c][f] is channel c of face f.
type PreparedTensor struct {
	Centers [3][]float32

	// Corners holds three groups of three channels, each expressed
	// relative to the face center.
	Corners [9][]float32

	Normals [3][]float32

	// NeighborIndex is F×K; every value is in [0, F).
	NeighborIndex [][]int64

	Target int64
}

// Faces returns F, the number of faces in the tensor.
func (t PreparedTensor) Faces() int {
	return len(t.Centers[0])
}

// FanOut returns K, the adjacency width.
func (t PreparedTensor) FanOut() int {
	if len(t.NeighborIndex) == 0 {
		return 0
	}
	return len(t.NeighborIndex[0])
}

// EpochResult summarizes one phase of one epoch.
type EpochResult struct {
	Epoch    int     `json:"epoch" yaml:"epoch"`
	Phase    Phase   `json:"phase" yaml:"phase"`
	Loss     float64 `json:"loss" yaml:"loss"`
	Accuracy float64 `json:"accuracy" yaml:"accuracy"`

	// MAP is only meaningful when HasMAP is set (eval phase).
	MAP    float64 `json:"map,omitempty" yaml:"map,omitempty"`
	HasMAP bool    `json:"-" yaml:"-"`

	Samples     int   `json:"samples" yaml:"samples"`
	Predictions []int `json:"-" yaml:"-"`
	Labels      []int `json:"-" yaml:"-"`
}
