// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package model defines the contract between the training loop and a mesh
// classifier, along with the loss, optimizer, and learning-rate schedule
// the loop drives.
package model

import (
	"context"
	"fmt"
	"sort"

	"github.com/pdiddy/mesh-classifier/internal/batch"
)

// Output is the result of a forward pass over one batch.
type Output struct {
	// Logits holds one row of class scores per sample.
	Logits [][]float64

	// Embedding holds one feature row per sample, used for retrieval.
	Embedding [][]float64
}

// Model maps a batch of prepared meshes to logits and an embedding.
type Model interface {
	// Forward runs the model over b. In training mode it retains what
	// Backward needs.
	Forward(ctx context.Context, b batch.Batch) (Output, error)

	// Backward accumulates parameter gradients given the loss gradient
	// with respect to the logits of the last training Forward.
	Backward(gradLogits [][]float64) error

	// SetTraining switches between training and evaluation mode.
	SetTraining(training bool)

	// Parameters returns the live parameter tensors by name.
	Parameters() Params

	// Gradients returns the live gradient buffers, keyed like Parameters.
	Gradients() Params

	// LoadParameters copies p into the model's parameters.
	LoadParameters(p Params) error
}

// Params is a set of named parameter tensors.
type Params map[string][]float64

// Clone returns a deep copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for name, v := range p {
		out[name] = append([]float64(nil), v...)
	}
	return out
}

// Count returns the total number of scalar parameters.
func (p Params) Count() int {
	var n int
	for _, v := range p {
		n += len(v)
	}
	return n
}

// Names returns the parameter names in sorted order.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CopyInto copies p into dst, which must have the same names and sizes.
func (p Params) CopyInto(dst Params) error {
	if len(p) != len(dst) {
		return fmt.Errorf("parameter set has %d tensors, model has %d", len(p), len(dst))
	}
	for name, v := range p {
		d, ok := dst[name]
		if !ok {
			return fmt.Errorf("unexpected parameter %q", name)
		}
		if len(d) != len(v) {
			return fmt.Errorf("parameter %q has %d values, model expects %d", name, len(v), len(d))
		}
		copy(d, v)
	}
	return nil
}

// Snapshot returns a deep copy of m's current parameters.
func Snapshot(m Model) Params {
	return m.Parameters().Clone()
}

// Argmax returns the index of the largest logit in every row.
func Argmax(logits [][]float64) []int {
	out := make([]int, len(logits))
	for i, row := range logits {
		best := 0
		for j := 1; j < len(row); j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		out[i] = best
	}
	return out
}
