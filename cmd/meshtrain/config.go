// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/mesh-classifier/pkg/types"
)

// flagKeys maps command-line flags to configuration keys. A flag only
// overrides the configuration when it is set explicitly.
var flagKeys = map[string]string{
	"data-root":    "dataset.data_root",
	"manifest":     "dataset.manifest",
	"split-column": "dataset.split_column",
	"max-faces":    "dataset.max_faces",
	"augment":      "dataset.augment_data",
	"seed":         "dataset.seed",
	"epochs":       "train.max_epoch",
	"batch-size":   "train.batch_size",
	"workers":      "train.workers",
	"hidden":       "train.hidden",
	"top-k":        "train.top_k",
	"lr":           "optimizer.lr",
	"ckpt-root":    "checkpoint.root",
	"codec":        "checkpoint.codec",
	"metrics-db":   "metrics.db_path",
	"textfile":     "metrics.textfile_path",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

type override struct {
	key   string
	apply func(c *types.PipelineConfig, key string)
}

// overrides lists every key that environment variables and flags may set
// on top of the config file.
var overrides = []override{
	{"dataset.data_root", func(c *types.PipelineConfig, k string) { c.Dataset.DataRoot = viper.GetString(k) }},
	{"dataset.manifest", func(c *types.PipelineConfig, k string) { c.Dataset.Manifest = viper.GetString(k) }},
	{"dataset.split_column", func(c *types.PipelineConfig, k string) { c.Dataset.SplitColumn = viper.GetString(k) }},
	{"dataset.max_faces", func(c *types.PipelineConfig, k string) { c.Dataset.MaxFaces = viper.GetInt(k) }},
	{"dataset.augment_data", func(c *types.PipelineConfig, k string) { c.Dataset.AugmentData = viper.GetBool(k) }},
	{"dataset.seed", func(c *types.PipelineConfig, k string) { c.Dataset.Seed = viper.GetInt64(k) }},
	{"train.max_epoch", func(c *types.PipelineConfig, k string) { c.Train.MaxEpoch = viper.GetInt(k) }},
	{"train.batch_size", func(c *types.PipelineConfig, k string) { c.Train.BatchSize = viper.GetInt(k) }},
	{"train.workers", func(c *types.PipelineConfig, k string) { c.Train.Workers = viper.GetInt(k) }},
	{"train.checkpoint_every", func(c *types.PipelineConfig, k string) { c.Train.CheckpointEvery = viper.GetInt(k) }},
	{"train.hidden", func(c *types.PipelineConfig, k string) { c.Train.Hidden = viper.GetInt(k) }},
	{"train.top_k", func(c *types.PipelineConfig, k string) { c.Train.TopK = viper.GetInt(k) }},
	{"optimizer.lr", func(c *types.PipelineConfig, k string) { c.Optimizer.LR = viper.GetFloat64(k) }},
	{"optimizer.momentum", func(c *types.PipelineConfig, k string) { c.Optimizer.Momentum = viper.GetFloat64(k) }},
	{"optimizer.weight_decay", func(c *types.PipelineConfig, k string) { c.Optimizer.WeightDecay = viper.GetFloat64(k) }},
	{"optimizer.gamma", func(c *types.PipelineConfig, k string) { c.Optimizer.Gamma = viper.GetFloat64(k) }},
	{"optimizer.milestones", func(c *types.PipelineConfig, k string) { c.Optimizer.Milestones = viper.GetIntSlice(k) }},
	{"checkpoint.root", func(c *types.PipelineConfig, k string) { c.Checkpoint.Root = viper.GetString(k) }},
	{"checkpoint.best_name", func(c *types.PipelineConfig, k string) { c.Checkpoint.BestName = viper.GetString(k) }},
	{"checkpoint.codec", func(c *types.PipelineConfig, k string) { c.Checkpoint.Codec = viper.GetString(k) }},
	{"checkpoint.remote.endpoint", func(c *types.PipelineConfig, k string) { c.Checkpoint.Remote.Endpoint = viper.GetString(k) }},
	{"checkpoint.remote.bucket", func(c *types.PipelineConfig, k string) { c.Checkpoint.Remote.Bucket = viper.GetString(k) }},
	{"checkpoint.remote.prefix", func(c *types.PipelineConfig, k string) { c.Checkpoint.Remote.Prefix = viper.GetString(k) }},
	{"checkpoint.remote.use_ssl", func(c *types.PipelineConfig, k string) { c.Checkpoint.Remote.UseSSL = viper.GetBool(k) }},
	{"metrics.db_path", func(c *types.PipelineConfig, k string) { c.Metrics.DBPath = viper.GetString(k) }},
	{"metrics.textfile_path", func(c *types.PipelineConfig, k string) { c.Metrics.TextfilePath = viper.GetString(k) }},
	{"log.level", func(c *types.PipelineConfig, k string) { c.Log.Level = viper.GetString(k) }},
	{"log.format", func(c *types.PipelineConfig, k string) { c.Log.Format = viper.GetString(k) }},
}

// loadConfig resolves the run configuration: defaults, then the config
// file, then MESHTRAIN_* environment variables and explicitly set flags.
func loadConfig(cmd *cobra.Command) (types.PipelineConfig, error) {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return types.PipelineConfig{}, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	cfg := types.DefaultPipelineConfig()
	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := types.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	for _, o := range overrides {
		if viper.IsSet(o.key) {
			o.apply(&cfg, o.key)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// newLogger builds the structured logger described by cfg, writing to stderr.
func newLogger(cfg types.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("log format %q: use text or json", cfg.Format)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

// setup loads the configuration and logger every run command starts from.
func setup(cmd *cobra.Command) (types.PipelineConfig, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cfg, nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}
