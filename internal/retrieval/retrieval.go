// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieval scores evaluate-phase embeddings by mean average
// precision: every sample queries the whole set and its neighbors are
// ranked by Euclidean distance.
package retrieval

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// DefaultTopK is the ranking depth used when none is configured.
const DefaultTopK = 1000

// Accumulator collects embeddings and labels across one evaluate phase.
type Accumulator struct {
	features [][]float64
	labels   []int
}

// Append adds a batch of embeddings and their labels.
func (a *Accumulator) Append(features [][]float64, labels []int) error {
	if len(features) != len(labels) {
		return fmt.Errorf("retrieval: %d feature rows for %d labels", len(features), len(labels))
	}
	a.features = append(a.features, features...)
	a.labels = append(a.labels, labels...)
	return nil
}

// Len returns the number of accumulated samples.
func (a *Accumulator) Len() int { return len(a.labels) }

// Reset empties the accumulator for the next phase.
func (a *Accumulator) Reset() {
	a.features, a.labels = nil, nil
}

// MAP computes mean average precision over everything appended so far.
func (a *Accumulator) MAP(ctx context.Context, topK int) (float64, error) {
	return MeanAveragePrecision(ctx, a.features, a.labels, topK)
}

// MeanAveragePrecision ranks every sample against the whole set (itself
// included) and averages the interpolated precision over the relevant hits
// in the first topK positions. An empty set scores zero.
func MeanAveragePrecision(ctx context.Context, features [][]float64, labels []int, topK int) (float64, error) {
	n := len(labels)
	if len(features) != n {
		return 0, fmt.Errorf("retrieval: %d feature rows for %d labels", len(features), n)
	}
	if n == 0 {
		return 0, nil
	}
	width := len(features[0])
	for i, f := range features {
		if len(f) != width {
			return 0, fmt.Errorf("retrieval: feature row %d has width %d, want %d", i, len(f), width)
		}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	topK = min(topK, n)

	ap := make([]float64, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for q := range n {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ap[q] = averagePrecision(features, labels, q, topK)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var sum float64
	for _, v := range ap {
		sum += v
	}
	return sum / float64(n), nil
}

func averagePrecision(features [][]float64, labels []int, q, topK int) float64 {
	order := make([]int, len(features))
	dist := make([]float64, len(features))
	for i, f := range features {
		order[i] = i
		dist[i] = squaredDistance(features[q], f)
	}
	sort.SliceStable(order, func(a, b int) bool { return dist[order[a]] < dist[order[b]] })

	var hits int
	var precision []float64
	for rank, i := range order[:topK] {
		if labels[i] == labels[q] {
			hits++
			precision = append(precision, float64(hits)/float64(rank+1))
		}
	}
	if len(precision) == 0 {
		return 0
	}
	// Interpolate: each point takes the best precision at or after it.
	for i := len(precision) - 2; i >= 0; i-- {
		precision[i] = max(precision[i], precision[i+1])
	}
	var sum float64
	for _, p := range precision {
		sum += p
	}
	return sum / float64(len(precision))
}

func squaredDistance(a, b []float64) float64 {
	var d float64
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return d
}
