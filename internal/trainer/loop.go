// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package trainer drives epoch-level training: each epoch runs a train
// phase and an evaluate phase, folds the evaluate result into the best
// state, and persists periodic and best snapshots.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pdiddy/mesh-classifier/internal/batch"
	"github.com/pdiddy/mesh-classifier/internal/checkpoint"
	"github.com/pdiddy/mesh-classifier/internal/metrics"
	"github.com/pdiddy/mesh-classifier/internal/model"
	"github.com/pdiddy/mesh-classifier/internal/report"
	"github.com/pdiddy/mesh-classifier/internal/retrieval"
	"github.com/pdiddy/mesh-classifier/pkg/types"
)

// Batches delivers one pass over a split, batch by batch, in order.
type Batches interface {
	Len() int
	Each(ctx context.Context, fn func(batch.Batch) error) error
}

// CheckpointSink persists snapshots.
type CheckpointSink interface {
	SaveEpoch(ctx context.Context, ckpt checkpoint.Checkpoint) (string, error)
	SaveBest(ctx context.Context, ckpt checkpoint.Checkpoint) (string, error)
}

// Config holds the loop's epoch-level settings.
type Config struct {
	MaxEpoch        int
	CheckpointEvery int

	// TopK is the retrieval ranking depth for mAP.
	TopK int

	// ClassNames labels the rows of the classification report.
	ClassNames []string
}

// Loop runs training and evaluation epochs.
type Loop struct {
	cfg       Config
	model     model.Model
	criterion model.Criterion
	opt       *model.SGD
	sched     *model.MultiStepLR
	data      map[types.Phase]Batches
	sink      CheckpointSink

	scalars metrics.ScalarWriter
	out     io.Writer
	logger  *slog.Logger

	controller *Controller
}

// Option configures a Loop.
type Option func(*Loop)

// WithScheduler steps s at the start of every train phase.
func WithScheduler(s *model.MultiStepLR) Option {
	return func(l *Loop) { l.sched = s }
}

// WithScalars records every epoch result to w.
func WithScalars(w metrics.ScalarWriter) Option {
	return func(l *Loop) { l.scalars = w }
}

// WithOutput sets the writer console summaries go to.
func WithOutput(w io.Writer) Option {
	return func(l *Loop) { l.out = w }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// NewLoop wires a Loop. The model's parameters at this point are the best
// snapshot until an evaluate phase beats zero accuracy.
func NewLoop(cfg Config, m model.Model, crit model.Criterion, opt *model.SGD, train, eval Batches, sink CheckpointSink, opts ...Option) (*Loop, error) {
	if cfg.MaxEpoch <= 0 {
		return nil, fmt.Errorf("max epoch must be positive, got %d", cfg.MaxEpoch)
	}
	if m == nil || crit == nil || opt == nil || sink == nil {
		return nil, errors.New("model, criterion, optimizer, and checkpoint sink are required")
	}
	if train == nil || eval == nil {
		return nil, errors.New("train and eval batches are required")
	}
	l := &Loop{
		cfg:       cfg,
		model:     m,
		criterion: crit,
		opt:       opt,
		data:      map[types.Phase]Batches{types.PhaseTrain: train, types.PhaseEval: eval},
		sink:      sink,
		out:       io.Discard,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(l)
	}
	l.controller = NewController(cfg.CheckpointEvery, model.Snapshot(m))
	return l, nil
}

// Best returns the best state observed so far.
func (l *Loop) Best() BestState {
	return l.controller.Best()
}

// RunPhase makes one pass over the phase's split. Only the train phase
// updates parameters; only the evaluate phase computes mAP.
func (l *Loop) RunPhase(ctx context.Context, epoch int, phase types.Phase) (types.EpochResult, error) {
	data, ok := l.data[phase]
	if !ok {
		return types.EpochResult{}, fmt.Errorf("unknown phase %q", phase)
	}
	training := phase == types.PhaseTrain
	if training && l.sched != nil {
		l.sched.Step()
	}
	l.model.SetTraining(training)

	res := types.EpochResult{Epoch: epoch, Phase: phase}
	var lossSum float64
	var correct int
	var features retrieval.Accumulator

	err := data.Each(ctx, func(b batch.Batch) error {
		targets := b.Targets()
		if training {
			l.opt.ZeroGrad(l.model)
		}
		out, err := l.model.Forward(ctx, b)
		if err != nil {
			return fmt.Errorf("forward pass: %w", err)
		}
		loss, grad, err := l.criterion.Loss(out.Logits, targets)
		if err != nil {
			return fmt.Errorf("computing loss: %w", err)
		}
		if training {
			if err := l.model.Backward(grad); err != nil {
				return fmt.Errorf("backward pass: %w", err)
			}
			l.opt.Step(l.model)
		} else if err := features.Append(out.Embedding, targets); err != nil {
			return err
		}

		preds := model.Argmax(out.Logits)
		for i, p := range preds {
			if p == targets[i] {
				correct++
			}
		}
		lossSum += loss * float64(b.Size())
		res.Samples += b.Size()
		res.Predictions = append(res.Predictions, preds...)
		res.Labels = append(res.Labels, targets...)
		return nil
	})
	if err != nil {
		return res, err
	}

	if n := data.Len(); n > 0 {
		res.Loss = lossSum / float64(n)
		res.Accuracy = float64(correct) / float64(n)
	}
	if !training {
		res.MAP, err = features.MAP(ctx, l.cfg.TopK)
		if err != nil {
			return res, fmt.Errorf("computing mAP: %w", err)
		}
		res.HasMAP = true
	}
	return res, nil
}

// Run executes epochs 1..MaxEpoch, then writes the best snapshot. Model,
// criterion, and storage errors end the run; reporting errors do not. A
// cancelled run still writes the best snapshot before returning.
func (l *Loop) Run(ctx context.Context) (BestState, error) {
	start := time.Now()
	rule := strings.Repeat("-", 60)

	for epoch := 1; epoch <= l.cfg.MaxEpoch; epoch++ {
		fmt.Fprintln(l.out, rule)
		fmt.Fprintf(l.out, "Epoch: %d / %d\n", epoch, l.cfg.MaxEpoch)
		fmt.Fprintln(l.out, rule)

		for _, phase := range []types.Phase{types.PhaseTrain, types.PhaseEval} {
			res, err := l.RunPhase(ctx, epoch, phase)
			if err != nil {
				return l.abort(ctx, fmt.Errorf("epoch %d %s phase: %w", epoch, phase, err))
			}

			if phase == types.PhaseEval {
				d := l.controller.Observe(res, func() model.Params { return model.Snapshot(l.model) })
				if d.NewBestAccuracy || d.NewBestMAP {
					l.logger.Info("new best", "epoch", epoch, "accuracy", res.Accuracy, "map", res.MAP,
						"best_accuracy", d.NewBestAccuracy, "best_map", d.NewBestMAP)
				}
				if d.Checkpoint {
					if _, err := l.sink.SaveEpoch(ctx, checkpoint.Checkpoint{
						Epoch:    epoch,
						Accuracy: res.Accuracy,
						MAP:      res.MAP,
						Params:   model.Snapshot(l.model),
					}); err != nil {
						return l.abort(ctx, fmt.Errorf("saving epoch %d checkpoint: %w", epoch, err))
					}
				}
			}
			l.reportSafely(ctx, res)
		}
	}

	best := l.Best()
	fmt.Fprintf(l.out, "total time : %.3fs\n", time.Since(start).Seconds())
	fmt.Fprintf(l.out, "Number of total parameters: %d\n", l.model.Parameters().Count())
	if err := l.saveBest(ctx, best); err != nil {
		return best, err
	}
	return best, nil
}

// abort ends a run with err. When the run was cancelled, the best snapshot
// observed so far is still written, outside the cancelled context.
func (l *Loop) abort(ctx context.Context, err error) (BestState, error) {
	best := l.Best()
	if ctx.Err() == nil {
		return best, err
	}
	l.logger.Warn("run interrupted, saving best snapshot", "best_epoch", best.Epoch, "best_accuracy", best.Accuracy)
	if saveErr := l.saveBest(context.WithoutCancel(ctx), best); saveErr != nil {
		return best, errors.Join(err, saveErr)
	}
	return best, err
}

func (l *Loop) saveBest(ctx context.Context, best BestState) error {
	if _, err := l.sink.SaveBest(ctx, checkpoint.Checkpoint{
		Epoch:    best.Epoch,
		Accuracy: best.Accuracy,
		MAP:      best.MAP,
		Params:   best.Params,
	}); err != nil {
		return fmt.Errorf("saving best checkpoint: %w", err)
	}
	return nil
}

// reportSafely emits console, report, and scalar output for res. Failures
// and panics are logged and never reach the caller.
func (l *Loop) reportSafely(ctx context.Context, res types.EpochResult) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("reporting panicked", "epoch", res.Epoch, "phase", res.Phase, "panic", r)
		}
	}()
	if err := l.report(ctx, res); err != nil {
		l.logger.Warn("reporting failed", "epoch", res.Epoch, "phase", res.Phase, "error", err)
	}
}

func (l *Loop) report(ctx context.Context, res types.EpochResult) error {
	var errs []error
	if res.HasMAP {
		fmt.Fprintf(l.out, "%s Loss: %.4f Acc: %.4f mAP: %.4f\n", res.Phase, res.Loss, res.Accuracy, res.MAP)
		cls, err := report.Build(res.Labels, res.Predictions, l.cfg.ClassNames)
		if err == nil {
			err = cls.Write(l.out)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("classification report: %w", err))
		}
	} else {
		fmt.Fprintf(l.out, "%s Loss: %.4f Acc: %.4f\n", res.Phase, res.Loss, res.Accuracy)
	}
	if l.scalars != nil {
		if err := metrics.WriteEpoch(ctx, l.scalars, res); err != nil {
			errs = append(errs, fmt.Errorf("scalars: %w", err))
		}
	}
	return errors.Join(errs...)
}
