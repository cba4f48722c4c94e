// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch groups prepared mesh samples into batches. Samples are
// prepared concurrently by a bounded worker pool; batches are delivered to
// the caller one at a time, in order, and only when complete.
package batch

import (
	"context"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/mesh-classifier/pkg/types"
)

// Source provides indexed samples. dataset.Loader satisfies it.
type Source interface {
	Len() int
	Get(i int) (types.PreparedTensor, error)
}

// Batch is a group of prepared samples. Indices[i] is the source index of
// Items[i].
type Batch struct {
	Indices []int
	Items   []types.PreparedTensor
}

// Size returns the number of samples in the batch.
func (b Batch) Size() int {
	return len(b.Items)
}

// Targets returns the class index of every sample.
func (b Batch) Targets() []int {
	out := make([]int, len(b.Items))
	for i, item := range b.Items {
		out[i] = int(item.Target)
	}
	return out
}

// Result is the outcome of preparing one sample.
type Result struct {
	Index  int
	Tensor types.PreparedTensor
	Err    error
}

// PrepareAll prepares the given indices with at most workers concurrent
// calls to src.Get. Per-sample failures are reported in the results; only
// context cancellation is returned as an error.
func PrepareAll(ctx context.Context, src Source, indices []int, workers int) ([]Result, error) {
	results := make([]Result, len(indices))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for k, idx := range indices {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tensor, err := src.Get(idx)
			results[k] = Result{Index: idx, Tensor: tensor, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Options configures a Batcher.
type Options struct {
	BatchSize int

	// Workers bounds concurrent sample preparation (default 1).
	Workers int

	// Shuffle permutes sample order at the start of every pass.
	Shuffle bool

	// Seed seeds the shuffle order.
	Seed uint64

	// Prefetch is the number of finished batches buffered ahead of the
	// consumer (default 2).
	Prefetch int
}

// Batcher iterates a Source in batches.
type Batcher struct {
	src  Source
	opts Options
	rng  *rand.Rand
}

// New returns a Batcher over src.
func New(src Source, opts Options) *Batcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Prefetch <= 0 {
		opts.Prefetch = 2
	}
	return &Batcher{
		src:  src,
		opts: opts,
		rng:  rand.New(rand.NewPCG(opts.Seed, 0x6d657368)),
	}
}

// Len returns the number of samples in one pass.
func (b *Batcher) Len() int {
	return b.src.Len()
}

// Batches returns the number of batches in one pass.
func (b *Batcher) Batches() int {
	return (b.src.Len() + b.opts.BatchSize - 1) / b.opts.BatchSize
}

// order returns the sample order for one pass.
func (b *Batcher) order() []int {
	order := make([]int, b.src.Len())
	for i := range order {
		order[i] = i
	}
	if b.opts.Shuffle {
		b.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return order
}

type pending struct {
	batch Batch
	err   error
}

// Each makes one pass over the source and calls fn with every batch in
// order. The first preparation error, or the first error from fn, stops
// the pass and is returned.
func (b *Batcher) Each(ctx context.Context, fn func(Batch) error) error {
	order := b.order()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ready := make(chan pending, b.opts.Prefetch)
	go func() {
		defer close(ready)
		for start := 0; start < len(order); start += b.opts.BatchSize {
			end := min(start+b.opts.BatchSize, len(order))
			batch, err := b.assemble(ctx, order[start:end])
			select {
			case ready <- pending{batch: batch, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for p := range ready {
		if p.err != nil {
			return p.err
		}
		if err := fn(p.batch); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (b *Batcher) assemble(ctx context.Context, indices []int) (Batch, error) {
	results, err := PrepareAll(ctx, b.src, indices, b.opts.Workers)
	if err != nil {
		return Batch{}, err
	}
	batch := Batch{
		Indices: make([]int, len(results)),
		Items:   make([]types.PreparedTensor, len(results)),
	}
	for i, r := range results {
		if r.Err != nil {
			return Batch{}, r.Err
		}
		batch.Indices[i] = r.Index
		batch.Items[i] = r.Tensor
	}
	return batch, nil
}
