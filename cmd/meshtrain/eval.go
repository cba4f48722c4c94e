// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mesh-classifier/internal/checkpoint"
	"github.com/pdiddy/mesh-classifier/internal/dataset"
	"github.com/pdiddy/mesh-classifier/internal/model"
	"github.com/pdiddy/mesh-classifier/internal/trainer"
	"github.com/pdiddy/mesh-classifier/pkg/types"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score a checkpoint on the evaluation split",
	Long: `Eval loads a checkpoint and makes one pass over the evaluation split,
printing accuracy and a per-class precision/recall/F1 report.

Samples whose neighbor indices do not resolve to a face are skipped and
counted; any other failure aborts the pass. By default the best checkpoint
under the checkpoint root is used; --remote fetches a checkpoint by name
from the configured bucket instead.`,
	RunE: runEval,
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ckpt, source, err := loadEvalCheckpoint(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	net, err := model.PooledFromParams(ckpt.Params)
	if err != nil {
		return fmt.Errorf("loading %s: %w", source, err)
	}
	logger.Info("checkpoint loaded", "source", source, "epoch", ckpt.Epoch, "accuracy", ckpt.Accuracy)

	evalSet, err := dataset.Open(cfg.Dataset, types.PhaseEval, logger)
	if err != nil {
		return fmt.Errorf("opening eval split: %w", err)
	}

	fmt.Println("Running Test")
	summary, err := trainer.Evaluate(ctx, net, evalSet, trainer.EvalOptions{
		BatchSize:  cfg.Train.BatchSize,
		Workers:    cfg.Train.Workers,
		ClassNames: dataset.Labels(cfg.Dataset).Names(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	return summary.Write(os.Stdout)
}

func loadEvalCheckpoint(ctx context.Context, cmd *cobra.Command, cfg types.PipelineConfig) (checkpoint.Checkpoint, string, error) {
	remote, _ := cmd.Flags().GetString("remote")
	if remote != "" {
		if !cfg.Checkpoint.Remote.Enabled() {
			return checkpoint.Checkpoint{}, "", fmt.Errorf("--remote needs checkpoint.remote.endpoint and checkpoint.remote.bucket")
		}
		mirror, err := newMirror(cfg.Checkpoint.Remote)
		if err != nil {
			return checkpoint.Checkpoint{}, "", err
		}
		ckpt, err := mirror.Fetch(ctx, remote)
		return ckpt, cfg.Checkpoint.Remote.Bucket + "/" + remote, err
	}

	path, _ := cmd.Flags().GetString("checkpoint")
	if path == "" {
		store, err := checkpoint.NewStore(cfg.Checkpoint)
		if err != nil {
			return checkpoint.Checkpoint{}, "", err
		}
		path = store.BestPath()
	}
	ckpt, err := checkpoint.Load(path)
	return ckpt, path, err
}

func init() {
	evalCmd.Flags().String("checkpoint", "", "checkpoint file (default: best checkpoint under the checkpoint root)")
	evalCmd.Flags().String("remote", "", "fetch this checkpoint name from the configured bucket")
	evalCmd.Flags().String("data-root", "", "dataset root laid out as <category>/<split>/*.npz")
	evalCmd.Flags().String("manifest", "", "CSV manifest listing mesh files and labels")
	evalCmd.Flags().String("split-column", "", "manifest column naming each row's split")
	evalCmd.Flags().Int("max-faces", 0, "fixed face count every mesh is resampled to")
	evalCmd.Flags().Int64("seed", 0, "padding seed")
	evalCmd.Flags().Int("batch-size", 0, "samples per batch")
	evalCmd.Flags().Int("workers", 0, "samples prepared concurrently")
	evalCmd.Flags().String("ckpt-root", "", "checkpoint directory")

	rootCmd.AddCommand(evalCmd)
}
