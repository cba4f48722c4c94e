// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"fmt"
	"math"
)

// Criterion scores logits against targets.
type Criterion interface {
	// Loss returns the mean loss over the batch and its gradient with
	// respect to the logits.
	Loss(logits [][]float64, targets []int) (float64, [][]float64, error)
}

// CrossEntropy is softmax cross-entropy averaged over the batch.
type CrossEntropy struct{}

func (CrossEntropy) Loss(logits [][]float64, targets []int) (float64, [][]float64, error) {
	if len(logits) != len(targets) {
		return 0, nil, fmt.Errorf("cross entropy: %d logit rows for %d targets", len(logits), len(targets))
	}
	if len(logits) == 0 {
		return 0, nil, nil
	}

	scale := 1 / float64(len(logits))
	grad := make([][]float64, len(logits))
	var total float64
	for i, row := range logits {
		t := targets[i]
		if t < 0 || t >= len(row) {
			return 0, nil, fmt.Errorf("cross entropy: target %d outside %d classes", t, len(row))
		}
		p := softmax(row)
		total -= math.Log(math.Max(p[t], math.SmallestNonzeroFloat64))
		g := make([]float64, len(row))
		for j := range row {
			g[j] = p[j] * scale
		}
		g[t] -= scale
		grad[i] = g
	}
	return total * scale, grad, nil
}

func softmax(row []float64) []float64 {
	hi := math.Inf(-1)
	for _, v := range row {
		hi = math.Max(hi, v)
	}
	out := make([]float64, len(row))
	var sum float64
	for j, v := range row {
		out[j] = math.Exp(v - hi)
		sum += out[j]
	}
	for j := range out {
		out[j] /= sum
	}
	return out
}
