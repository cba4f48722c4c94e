// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dataset turns mesh records into fixed-size tensors for batching.
//
// A record holds N faces of 15 features (center, three corners, normal)
// and an N×K neighbor table. The Loader reads a record, optionally jitters
// face centers in the train phase, resamples the faces to exactly MaxFaces
// and reorganizes them into channel-major center, corner, and normal
// tensors. Every call allocates its own output and touches no shared
// state beyond the read-only record, so a Loader may be used from many
// goroutines at once.
package dataset

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/pdiddy/mesh-classifier/pkg/types"
)

// Config controls how a Loader prepares samples.
type Config struct {
	MaxFaces int
	Augment  bool
	Phase    types.Phase
	Seed     int64
}

// RecordReader loads one mesh record from storage.
type RecordReader func(path string) (types.RawMeshSample, error)

// Loader prepares labeled samples on demand. Records are re-read on every
// access; nothing is cached.
type Loader struct {
	samples []types.LabeledSample
	cfg     Config
	source  *Source
	read    RecordReader
	logger  *slog.Logger
}

// Option customizes a Loader.
type Option func(*Loader)

// WithReader replaces the .npz record reader.
func WithReader(r RecordReader) Option {
	return func(l *Loader) { l.read = r }
}

// WithLogger sets the logger used for per-sample diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithSource replaces the random source derived from Config.Seed.
func WithSource(s *Source) Option {
	return func(l *Loader) { l.source = s }
}

// NewLoader builds a Loader over samples.
func NewLoader(samples []types.LabeledSample, cfg Config, opts ...Option) (*Loader, error) {
	if cfg.MaxFaces <= 0 {
		return nil, fmt.Errorf("max faces must be positive, got %d", cfg.MaxFaces)
	}
	if cfg.Phase != types.PhaseTrain && cfg.Phase != types.PhaseEval {
		return nil, fmt.Errorf("unknown phase %q", cfg.Phase)
	}
	l := &Loader{
		samples: samples,
		cfg:     cfg,
		source:  NewSource(cfg.Phase, cfg.Seed),
		read:    ReadRecord,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Len returns the number of samples.
func (l *Loader) Len() int {
	return len(l.samples)
}

// Sample returns the labeled sample at index i.
func (l *Loader) Sample(i int) types.LabeledSample {
	return l.samples[i]
}

// Phase returns the phase the Loader prepares samples for.
func (l *Loader) Phase() types.Phase {
	return l.cfg.Phase
}

// Seed returns the seed of the Loader's random source.
func (l *Loader) Seed() uint64 {
	return l.source.Seed()
}

// Augmenting reports whether center jitter is applied.
func (l *Loader) Augmenting() bool {
	return l.cfg.Augment && l.cfg.Phase == types.PhaseTrain
}

// Get reads and prepares sample i.
func (l *Loader) Get(i int) (types.PreparedTensor, error) {
	if i < 0 || i >= len(l.samples) {
		return types.PreparedTensor{}, fmt.Errorf("sample index %d out of range [0, %d)", i, len(l.samples))
	}
	s := l.samples[i]
	raw, err := l.read(s.Path)
	if err != nil {
		return types.PreparedTensor{}, err
	}
	return l.Prepare(raw, s.Target, l.source.ForSample(i))
}

// Prepare transforms one record into a PreparedTensor using rng for jitter
// and padding draws. Jitter, when enabled, is applied before padding so
// pad rows are drawn from the jittered faces, and corners are centered on
// the jittered centers.
func (l *Loader) Prepare(raw types.RawMeshSample, target int, rng *rand.Rand) (types.PreparedTensor, error) {
	n := raw.Len()
	if n == 0 {
		return types.PreparedTensor{}, &EmptyMeshError{Path: raw.Path}
	}
	if len(raw.Neighbors) != n {
		return types.PreparedTensor{}, &MissingFacesError{
			Path:   raw.Path,
			Reason: fmt.Sprintf("%d faces but %d neighbor rows", n, len(raw.Neighbors)),
		}
	}
	if err := checkNeighbors(raw); err != nil {
		return types.PreparedTensor{}, err
	}

	faces := raw.Faces
	if l.Augmenting() {
		faces = Jitter(faces, rng)
	}
	if n > l.cfg.MaxFaces {
		l.logger.Debug("truncating mesh", "path", raw.Path, "faces", n, "max_faces", l.cfg.MaxFaces)
	}

	faces, neighbors, err := ResampleToFixedSize(faces, raw.Neighbors, l.cfg.MaxFaces, rng)
	if err != nil {
		return types.PreparedTensor{}, err
	}
	return Reorganize(faces, neighbors, target), nil
}

// checkNeighbors verifies every neighbor index names a face of the record.
func checkNeighbors(raw types.RawMeshSample) error {
	n := int64(raw.Len())
	k := raw.FanOut()
	for i, row := range raw.Neighbors {
		if len(row) != k {
			return &MissingFacesError{
				Path:   raw.Path,
				Reason: fmt.Sprintf("neighbor row %d has %d entries, expected %d", i, len(row), k),
			}
		}
		for _, idx := range row {
			if idx < 0 || idx >= n {
				return &IndexResolutionError{Path: raw.Path, Face: i, Neighbor: idx, Faces: int(n)}
			}
		}
	}
	return nil
}
