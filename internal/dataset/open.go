// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"fmt"
	"log/slog"

	"github.com/pdiddy/mesh-classifier/pkg/types"
)

// Labels returns the configured label map, falling back to DefaultLabels.
func Labels(cfg types.DatasetConfig) LabelMap {
	if len(cfg.Labels) == 0 {
		return DefaultLabels()
	}
	return LabelMap(cfg.Labels)
}

// SplitFor returns the split name configured for phase.
func SplitFor(cfg types.DatasetConfig, phase types.Phase) string {
	if phase == types.PhaseTrain {
		if cfg.TrainSplit != "" {
			return cfg.TrainSplit
		}
		return "train"
	}
	if cfg.EvalSplit != "" {
		return cfg.EvalSplit
	}
	return "test"
}

// Open collects the samples of one phase, from the manifest when one is
// configured or from the data root otherwise, and wraps them in a Loader.
// A manifest must name a split column.
func Open(cfg types.DatasetConfig, phase types.Phase, logger *slog.Logger) (*Loader, error) {
	labels := Labels(cfg)
	split := SplitFor(cfg, phase)

	var (
		samples []types.LabeledSample
		err     error
	)
	if cfg.Manifest != "" {
		if cfg.SplitColumn == "" {
			return nil, fmt.Errorf("manifest %s: a split column is required to tell %s rows from %s rows",
				cfg.Manifest, SplitFor(cfg, types.PhaseTrain), SplitFor(cfg, types.PhaseEval))
		}
		samples, err = ScanManifest(cfg.Manifest, ManifestOptions{
			FileColumn:  cfg.FileColumn,
			LabelColumn: cfg.LabelColumn,
			SplitColumn: cfg.SplitColumn,
			Split:       split,
		}, labels)
	} else {
		samples, err = ScanDirectory(cfg.DataRoot, split, labels)
	}
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no mesh records found for split %q", split)
	}

	if logger != nil {
		logger.Info("dataset opened", "phase", phase, "split", split, "samples", len(samples))
	}
	return NewLoader(samples, Config{
		MaxFaces: cfg.MaxFaces,
		Augment:  cfg.AugmentData,
		Phase:    phase,
		Seed:     cfg.Seed,
	}, WithLogger(logger))
}
