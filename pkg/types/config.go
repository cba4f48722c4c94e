// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// DatasetConfig holds settings for locating and preparing mesh samples.
type DatasetConfig struct {
	// DataRoot is the base directory laid out as <category>/<split>/*.npz.
	DataRoot string `json:"data_root" yaml:"data_root"`

	// Manifest is an optional CSV file listing mesh files and their labels.
	// When set, it replaces the directory scan of DataRoot.
	Manifest string `json:"manifest,omitempty" yaml:"manifest,omitempty"`

	// FileColumn names the manifest column holding the mesh file path (default "file").
	FileColumn string `json:"file_column,omitempty" yaml:"file_column,omitempty"`

	// LabelColumn names the manifest column holding the diagnostic label (default "label").
	LabelColumn string `json:"label_column,omitempty" yaml:"label_column,omitempty"`

	// SplitColumn names the manifest column used to select the split. It is
	// required whenever Manifest is set.
	SplitColumn string `json:"split_column,omitempty" yaml:"split_column,omitempty"`

	// TrainSplit and EvalSplit name the split directories (default "train" and "test").
	TrainSplit string `json:"train_split" yaml:"train_split"`
	EvalSplit  string `json:"eval_split" yaml:"eval_split"`

	// MaxFaces is the fixed face count every prepared sample is resampled to.
	MaxFaces int `json:"max_faces" yaml:"max_faces"`

	// AugmentData enables center jitter during the train phase.
	AugmentData bool `json:"augment_data" yaml:"augment_data"`

	// Labels maps category strings to class indices.
	Labels map[string]int `json:"labels" yaml:"labels"`

	// Seed drives padding and jitter random streams. Zero picks a fresh
	// seed for the train phase and keeps eval deterministic.
	Seed int64 `json:"seed" yaml:"seed"`
}

// TrainConfig holds epoch-level settings for the train/eval loop.
type TrainConfig struct {
	MaxEpoch  int `json:"max_epoch" yaml:"max_epoch"`
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Workers bounds the number of samples prepared concurrently.
	Workers int `json:"workers" yaml:"workers"`

	// CheckpointEvery is the periodic snapshot cadence in epochs (default 10).
	CheckpointEvery int `json:"checkpoint_every" yaml:"checkpoint_every"`

	// Hidden is the embedding width of the baseline classifier.
	Hidden int `json:"hidden" yaml:"hidden"`

	// TopK limits the ranking depth of the retrieval metric (default 1000).
	TopK int `json:"top_k" yaml:"top_k"`
}

// OptimizerConfig holds SGD and learning-rate schedule settings.
type OptimizerConfig struct {
	LR          float64 `json:"lr" yaml:"lr"`
	Momentum    float64 `json:"momentum" yaml:"momentum"`
	WeightDecay float64 `json:"weight_decay" yaml:"weight_decay"`
	Milestones  []int   `json:"milestones" yaml:"milestones"`
	Gamma       float64 `json:"gamma" yaml:"gamma"`
}

// RemoteConfig configures an S3-compatible mirror for checkpoints.
type RemoteConfig struct {
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Bucket   string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	UseSSL   bool   `json:"use_ssl,omitempty" yaml:"use_ssl,omitempty"`
}

// Enabled reports whether a remote mirror is configured.
func (r RemoteConfig) Enabled() bool {
	return r.Endpoint != "" && r.Bucket != ""
}

// CheckpointConfig holds settings for model snapshot persistence.
type CheckpointConfig struct {
	// Root is the directory periodic and best snapshots are written to.
	Root string `json:"root" yaml:"root"`

	// BestName is the file name of the best-accuracy snapshot.
	BestName string `json:"best_name" yaml:"best_name"`

	// Codec selects snapshot compression: none, zstd, or lz4.
	Codec string `json:"codec" yaml:"codec"`

	Remote RemoteConfig `json:"remote,omitempty" yaml:"remote,omitempty"`
}

// MetricsConfig holds settings for scalar time-series logging.
type MetricsConfig struct {
	// DBPath is the SQLite database holding per-epoch scalars.
	DBPath string `json:"db_path" yaml:"db_path"`

	// TextfilePath, when set, receives Prometheus gauges after every scalar.
	TextfilePath string `json:"textfile_path,omitempty" yaml:"textfile_path,omitempty"`
}

// LogConfig selects the structured log level and format.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// PipelineConfig groups all configuration for a training run.
type PipelineConfig struct {
	Dataset    DatasetConfig    `json:"dataset" yaml:"dataset"`
	Train      TrainConfig      `json:"train" yaml:"train"`
	Optimizer  OptimizerConfig  `json:"optimizer" yaml:"optimizer"`
	Checkpoint CheckpointConfig `json:"checkpoint" yaml:"checkpoint"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// DefaultPipelineConfig returns the configuration used when no file or flag
// overrides a value.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Dataset: DatasetConfig{
			DataRoot:    "dataset",
			FileColumn:  "file",
			LabelColumn: "label",
			TrainSplit:  "train",
			EvalSplit:   "test",
			MaxFaces:    1024,
			AugmentData: true,
			Labels:      map[string]int{"ad": 0, "cn": 1},
		},
		Train: TrainConfig{
			MaxEpoch:        150,
			BatchSize:       64,
			Workers:         4,
			CheckpointEvery: 10,
			Hidden:          64,
			TopK:            1000,
		},
		Optimizer: OptimizerConfig{
			LR:          0.01,
			Momentum:    0.9,
			WeightDecay: 0.0005,
			Milestones:  []int{30, 60},
			Gamma:       0.1,
		},
		Checkpoint: CheckpointConfig{
			Root:     "ckpt_root",
			BestName: "MeshNet_best.ckpt",
			Codec:    "zstd",
		},
		Metrics: MetricsConfig{
			DBPath: "runs/metrics.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults.
func LoadConfig(path string) (PipelineConfig, error) {
	cfg := DefaultPipelineConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	// A configured label map replaces the default one instead of merging into it.
	defaults := cfg.Dataset.Labels
	cfg.Dataset.Labels = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Dataset.Labels == nil {
		cfg.Dataset.Labels = defaults
	}
	return cfg, nil
}

// Validate checks the settings a run cannot start without.
func (c PipelineConfig) Validate() error {
	var errs []error
	if c.Dataset.MaxFaces <= 0 {
		errs = append(errs, fmt.Errorf("dataset.max_faces must be positive, got %d", c.Dataset.MaxFaces))
	}
	if len(c.Dataset.Labels) == 0 {
		errs = append(errs, errors.New("dataset.labels must not be empty"))
	}
	if c.Dataset.DataRoot == "" && c.Dataset.Manifest == "" {
		errs = append(errs, errors.New("one of dataset.data_root or dataset.manifest is required"))
	}
	if c.Dataset.Manifest != "" && c.Dataset.SplitColumn == "" {
		errs = append(errs, errors.New("dataset.split_column is required with dataset.manifest, or train and eval would read the same rows"))
	}
	if c.Train.MaxEpoch <= 0 {
		errs = append(errs, fmt.Errorf("train.max_epoch must be positive, got %d", c.Train.MaxEpoch))
	}
	if c.Train.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("train.batch_size must be positive, got %d", c.Train.BatchSize))
	}
	if c.Optimizer.LR <= 0 {
		errs = append(errs, fmt.Errorf("optimizer.lr must be positive, got %g", c.Optimizer.LR))
	}
	switch c.Checkpoint.Codec {
	case "", "none", "zstd", "lz4":
	default:
		errs = append(errs, fmt.Errorf("checkpoint.codec %q: use none, zstd, or lz4", c.Checkpoint.Codec))
	}
	if c.Checkpoint.Root == "" {
		errs = append(errs, errors.New("checkpoint.root is required"))
	}
	return errors.Join(errs...)
}
