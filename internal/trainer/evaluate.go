// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/pdiddy/mesh-classifier/internal/batch"
	"github.com/pdiddy/mesh-classifier/internal/dataset"
	"github.com/pdiddy/mesh-classifier/internal/model"
	"github.com/pdiddy/mesh-classifier/internal/report"
)

// EvalOptions configures a standalone evaluation pass.
type EvalOptions struct {
	BatchSize  int
	Workers    int
	ClassNames []string
	Logger     *slog.Logger
}

// EvalSummary is the outcome of Evaluate.
type EvalSummary struct {
	Correct  int
	Examples int
	Skipped  int
	Accuracy float64
	Report   report.Classification
}

// Write prints the summary the way the evaluation command shows it.
func (s EvalSummary) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "TEST ACC: [%.4f %%] (%d/%d, %d skipped)\n",
		s.Accuracy*100, s.Correct, s.Examples, s.Skipped); err != nil {
		return err
	}
	return s.Report.Write(w)
}

// Evaluate runs m once over every sample of src in order. Samples whose
// preparation fails with an IndexResolutionError are skipped and counted;
// any other error aborts the pass. Accuracy is over the samples evaluated.
func Evaluate(ctx context.Context, m model.Model, src batch.Source, opts EvalOptions) (EvalSummary, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m.SetTraining(false)

	var sum EvalSummary
	var labels, preds []int
	for start := 0; start < src.Len(); start += opts.BatchSize {
		end := min(start+opts.BatchSize, src.Len())
		indices := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			indices = append(indices, i)
		}

		results, err := batch.PrepareAll(ctx, src, indices, opts.Workers)
		if err != nil {
			return sum, err
		}
		var b batch.Batch
		for _, r := range results {
			if r.Err != nil {
				var idxErr *dataset.IndexResolutionError
				if !errors.As(r.Err, &idxErr) {
					return sum, fmt.Errorf("preparing sample %d: %w", r.Index, r.Err)
				}
				sum.Skipped++
				logger.Warn("index error, skipping sample", "skipped", sum.Skipped, "sample", r.Index, "error", r.Err)
				continue
			}
			b.Indices = append(b.Indices, r.Index)
			b.Items = append(b.Items, r.Tensor)
		}
		if b.Size() == 0 {
			continue
		}

		out, err := m.Forward(ctx, b)
		if err != nil {
			return sum, fmt.Errorf("forward pass: %w", err)
		}
		targets := b.Targets()
		for i, p := range model.Argmax(out.Logits) {
			if p == targets[i] {
				sum.Correct++
			}
			preds = append(preds, p)
		}
		labels = append(labels, targets...)
		sum.Examples += b.Size()
	}

	if sum.Examples > 0 {
		sum.Accuracy = float64(sum.Correct) / float64(sum.Examples)
	}
	cls, err := report.Build(labels, preds, opts.ClassNames)
	if err != nil {
		return sum, err
	}
	sum.Report = cls
	return sum, nil
}
