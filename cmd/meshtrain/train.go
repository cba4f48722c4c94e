// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mesh-classifier/internal/batch"
	"github.com/pdiddy/mesh-classifier/internal/checkpoint"
	"github.com/pdiddy/mesh-classifier/internal/dataset"
	"github.com/pdiddy/mesh-classifier/internal/metrics"
	"github.com/pdiddy/mesh-classifier/internal/model"
	"github.com/pdiddy/mesh-classifier/internal/trainer"
	"github.com/pdiddy/mesh-classifier/pkg/types"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run the train/evaluate epoch loop",
	Long: `Train scans the train and evaluation splits, then runs max_epoch epochs.
Each epoch makes one training pass and one evaluation pass, prints loss,
accuracy, mAP, and a per-class report, and records the scalars under a new
run in the metrics database.

A checkpoint is written every checkpoint_every epochs, and the parameters
with the best evaluation accuracy are written once the run ends.`,
	RunE: runTrain,
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	trainSet, err := dataset.Open(cfg.Dataset, types.PhaseTrain, logger)
	if err != nil {
		return fmt.Errorf("opening train split: %w", err)
	}
	evalSet, err := dataset.Open(cfg.Dataset, types.PhaseEval, logger)
	if err != nil {
		return fmt.Errorf("opening eval split: %w", err)
	}
	labels := dataset.Labels(cfg.Dataset)
	seed := trainSet.Seed()

	net := model.NewPooled(labels.Classes(), cfg.Train.Hidden, seed)
	params := net.Parameters().Count()
	fmt.Printf("Number of total parameters: %d, number of trainable parameters: %d\n", params, params)

	opt := model.NewSGD(cfg.Optimizer)
	sched := model.NewMultiStepLR(opt, cfg.Optimizer.Milestones, cfg.Optimizer.Gamma)

	store, err := openCheckpoints(ctx, cfg.Checkpoint, logger)
	if err != nil {
		return err
	}

	metricsStore, err := metrics.NewStore(cfg.Metrics)
	if err != nil {
		return err
	}
	defer metricsStore.Close()

	run, err := metricsStore.StartRun(ctx, metrics.RunName(time.Now(), cfg.Train.BatchSize, cfg.Train.MaxEpoch), cfg)
	if err != nil {
		return err
	}
	scalars := metrics.MultiWriter{metricsStore.Writer(run)}
	if cfg.Metrics.TextfilePath != "" {
		scalars = append(scalars, metrics.NewTextfile(cfg.Metrics.TextfilePath, run.Name))
	}
	logger.Info("run started", "run", run.Name, "id", run.ID, "seed", seed,
		"train_samples", trainSet.Len(), "eval_samples", evalSet.Len())

	opts := batch.Options{BatchSize: cfg.Train.BatchSize, Workers: cfg.Train.Workers, Shuffle: true, Seed: seed}
	trainBatches := batch.New(trainSet, opts)
	opts.Seed = seed + 1
	evalBatches := batch.New(evalSet, opts)

	loop, err := trainer.NewLoop(trainer.Config{
		MaxEpoch:        cfg.Train.MaxEpoch,
		CheckpointEvery: cfg.Train.CheckpointEvery,
		TopK:            cfg.Train.TopK,
		ClassNames:      labels.Names(),
	}, net, model.CrossEntropy{}, opt, trainBatches, evalBatches, store,
		trainer.WithScheduler(sched),
		trainer.WithScalars(scalars),
		trainer.WithOutput(os.Stdout),
		trainer.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	best, runErr := loop.Run(ctx)
	if err := metricsStore.FinishRun(context.WithoutCancel(ctx), run.ID); err != nil {
		logger.Warn("could not mark run finished", "run", run.Name, "error", err)
	}
	if runErr != nil {
		if ctx.Err() != nil {
			fmt.Printf("Interrupted; best checkpoint so far: %s (epoch %d)\n", store.BestPath(), best.Epoch)
		}
		return runErr
	}

	fmt.Printf("Best eval accuracy: %.4f (epoch %d), best mAP: %.4f\n", best.Accuracy, best.Epoch, best.MAP)
	fmt.Printf("Best checkpoint: %s\n", store.BestPath())
	fmt.Printf("Run: %s (%s)\n", run.Name, run.ID)
	return nil
}

// openCheckpoints opens the local checkpoint store, mirrored to the
// configured bucket when a remote is set.
func openCheckpoints(ctx context.Context, cfg types.CheckpointConfig, logger *slog.Logger) (*checkpoint.Store, error) {
	opts := []checkpoint.Option{checkpoint.WithLogger(logger)}
	if cfg.Remote.Enabled() {
		mirror, err := newMirror(cfg.Remote)
		if err != nil {
			return nil, err
		}
		if err := mirror.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		opts = append(opts, checkpoint.WithMirror(checkpoint.WithRetry(mirror, 0, logger)))
		logger.Info("mirroring checkpoints", "endpoint", cfg.Remote.Endpoint, "bucket", cfg.Remote.Bucket, "prefix", cfg.Remote.Prefix)
	}
	return checkpoint.NewStore(cfg, opts...)
}

func newMirror(cfg types.RemoteConfig) (*checkpoint.MinioMirror, error) {
	keys, err := loadedSecrets.Require(checkpoint.AccessKeySecret, checkpoint.SecretKeySecret)
	if err != nil {
		return nil, fmt.Errorf("checkpoint mirror: %w", err)
	}
	return checkpoint.NewMinioMirror(cfg, keys[0], keys[1])
}

func init() {
	trainCmd.Flags().String("data-root", "", "dataset root laid out as <category>/<split>/*.npz")
	trainCmd.Flags().String("manifest", "", "CSV manifest listing mesh files and labels (replaces the directory scan)")
	trainCmd.Flags().String("split-column", "", "manifest column naming each row's split (required with --manifest)")
	trainCmd.Flags().Int("max-faces", 0, "fixed face count every mesh is resampled to")
	trainCmd.Flags().Bool("augment", true, "jitter face centers during training")
	trainCmd.Flags().Int64("seed", 0, "random seed (0 = fresh seed for training)")
	trainCmd.Flags().Int("epochs", 0, "number of epochs")
	trainCmd.Flags().Int("batch-size", 0, "samples per batch")
	trainCmd.Flags().Int("workers", 0, "samples prepared concurrently")
	trainCmd.Flags().Int("hidden", 0, "embedding width of the classifier")
	trainCmd.Flags().Int("top-k", 0, "retrieval ranking depth for mAP")
	trainCmd.Flags().Float64("lr", 0, "initial learning rate")
	trainCmd.Flags().String("ckpt-root", "", "checkpoint directory")
	trainCmd.Flags().String("codec", "", "checkpoint compression: none, zstd, or lz4")
	trainCmd.Flags().String("metrics-db", "", "SQLite database for per-epoch scalars")
	trainCmd.Flags().String("textfile", "", "Prometheus textfile to mirror scalars into")

	rootCmd.AddCommand(trainCmd)
}
