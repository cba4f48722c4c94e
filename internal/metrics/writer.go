// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/mesh-classifier/pkg/types"
)

// Scalar tags written once per epoch.
const (
	TagTrainLoss = "data/train_loss"
	TagTrainAcc  = "data/train_acc"
	TagTestLoss  = "data/test_loss"
	TagTestAcc   = "data/test_acc"
	TagTestMAP   = "data/test_map"
)

// Tags returns the loss and accuracy tags for phase.
func Tags(phase types.Phase) (loss, acc string) {
	if phase == types.PhaseTrain {
		return TagTrainLoss, TagTrainAcc
	}
	return TagTestLoss, TagTestAcc
}

// RunName formats the name of a run started at t, e.g.
// "Mar01_12-00-00-bs64_e150".
func RunName(t time.Time, batchSize, maxEpoch int) string {
	return fmt.Sprintf("%s-bs%d_e%d", t.Format("Jan02_15-04-05"), batchSize, maxEpoch)
}

// ScalarWriter records one value per tag and step.
type ScalarWriter interface {
	AddScalar(ctx context.Context, tag string, step int, value float64) error
}

// RunWriter writes scalars into one run of a Store.
type RunWriter struct {
	store *Store
	run   Run
}

// Writer returns a ScalarWriter bound to run.
func (s *Store) Writer(run Run) *RunWriter {
	return &RunWriter{store: s, run: run}
}

// Run returns the run this writer records into.
func (w *RunWriter) Run() Run { return w.run }

func (w *RunWriter) AddScalar(ctx context.Context, tag string, step int, value float64) error {
	return w.store.AddScalar(ctx, w.run.ID, tag, step, value)
}

// MultiWriter fans every scalar out to each writer. All writers are
// attempted; their errors are joined.
type MultiWriter []ScalarWriter

func (m MultiWriter) AddScalar(ctx context.Context, tag string, step int, value float64) error {
	var errs []error
	for _, w := range m {
		if w == nil {
			continue
		}
		if err := w.AddScalar(ctx, tag, step, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteEpoch records an epoch result under the tags for its phase.
// mAP is written only when the result carries one.
func WriteEpoch(ctx context.Context, w ScalarWriter, r types.EpochResult) error {
	lossTag, accTag := Tags(r.Phase)
	err := errors.Join(
		w.AddScalar(ctx, lossTag, r.Epoch, r.Loss),
		w.AddScalar(ctx, accTag, r.Epoch, r.Accuracy),
	)
	if r.HasMAP {
		err = errors.Join(err, w.AddScalar(ctx, TagTestMAP, r.Epoch, r.MAP))
	}
	return err
}
