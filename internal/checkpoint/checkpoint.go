// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package checkpoint persists model parameter snapshots. Every write is a
// whole-file replacement: the snapshot is written to a temporary file in
// the destination directory and renamed into place, so a failed write never
// leaves a partial checkpoint behind. Snapshots can additionally be mirrored
// to an S3-compatible bucket.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pdiddy/mesh-classifier/internal/model"
	"github.com/pdiddy/mesh-classifier/pkg/types"
)

// Checkpoint is one persisted snapshot.
type Checkpoint struct {
	Epoch    int          `json:"epoch"`
	Accuracy float64      `json:"accuracy"`
	MAP      float64      `json:"map"`
	SavedAt  time.Time    `json:"saved_at"`
	Params   model.Params `json:"params"`
}

// Mirror receives a copy of every checkpoint written locally.
type Mirror interface {
	Put(ctx context.Context, name string, data []byte) error
}

// Store writes checkpoints under a root directory.
type Store struct {
	root     string
	bestName string
	codec    Codec
	mirror   Mirror
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMirror copies every written checkpoint to m.
func WithMirror(m Mirror) Option {
	return func(s *Store) { s.mirror = m }
}

// WithLogger sets the logger used for write notices.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates the checkpoint root if needed.
func NewStore(cfg types.CheckpointConfig, opts ...Option) (*Store, error) {
	codec, err := ParseCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	if cfg.Root == "" {
		return nil, fmt.Errorf("checkpoint root is required")
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint root: %w", err)
	}
	s := &Store{
		root:     cfg.Root,
		bestName: cfg.BestName,
		codec:    codec,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if s.bestName == "" {
		s.bestName = "best.ckpt"
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Root returns the checkpoint directory.
func (s *Store) Root() string { return s.root }

// EpochPath returns the file a periodic snapshot for epoch is written to.
func (s *Store) EpochPath(epoch int) string {
	return filepath.Join(s.root, strconv.Itoa(epoch)+".ckpt")
}

// BestPath returns the file the best snapshot is written to.
func (s *Store) BestPath() string {
	return filepath.Join(s.root, s.bestName)
}

// SaveEpoch writes the periodic snapshot for ckpt.Epoch.
func (s *Store) SaveEpoch(ctx context.Context, ckpt Checkpoint) (string, error) {
	return s.save(ctx, s.EpochPath(ckpt.Epoch), ckpt)
}

// SaveBest writes the best snapshot, replacing any earlier one.
func (s *Store) SaveBest(ctx context.Context, ckpt Checkpoint) (string, error) {
	return s.save(ctx, s.BestPath(), ckpt)
}

func (s *Store) save(ctx context.Context, path string, ckpt Checkpoint) (string, error) {
	if ckpt.SavedAt.IsZero() {
		ckpt.SavedAt = time.Now().UTC()
	}
	data, err := Encode(ckpt, s.codec)
	if err != nil {
		return "", err
	}
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	s.logger.Info("checkpoint written", "path", path, "epoch", ckpt.Epoch, "bytes", len(data), "codec", s.codec)

	if s.mirror != nil {
		if err := s.mirror.Put(ctx, filepath.Base(path), data); err != nil {
			return path, fmt.Errorf("mirroring checkpoint %s: %w", filepath.Base(path), err)
		}
	}
	return path, nil
}

// Encode serializes ckpt into the on-disk format.
func Encode(ckpt Checkpoint, codec Codec) ([]byte, error) {
	raw, err := json.Marshal(ckpt)
	if err != nil {
		return nil, fmt.Errorf("encoding checkpoint: %w", err)
	}
	return encodeFrame(raw, codec)
}

// Decode parses a checkpoint produced by Encode.
func Decode(data []byte) (Checkpoint, error) {
	raw, _, err := decodeFrame(data)
	if err != nil {
		return Checkpoint{}, err
	}
	var ckpt Checkpoint
	if err := json.Unmarshal(raw, &ckpt); err != nil {
		return Checkpoint{}, fmt.Errorf("decoding checkpoint: %w", err)
	}
	return ckpt, nil
}

// Load reads the checkpoint at path.
func Load(path string) (Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("reading checkpoint: %w", err)
	}
	ckpt, err := Decode(data)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("%s: %w", path, err)
	}
	return ckpt, nil
}

func writeAtomic(destPath string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	if writeErr == nil {
		writeErr = tmpFile.Sync()
	}
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing checkpoint: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
