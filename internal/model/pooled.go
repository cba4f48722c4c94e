// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/pdiddy/mesh-classifier/internal/batch"
	"github.com/pdiddy/mesh-classifier/pkg/types"
)

// FeatureWidth is the length of the pooled descriptor: mean and standard
// deviation of each of the 15 channels, plus mean neighbor normal agreement.
const FeatureWidth = 2*types.FaceWidth + 1

// Pooled is a small baseline classifier. It pools every mesh into a fixed
// descriptor, maps it through one tanh hidden layer (the embedding) and a
// linear output layer.
type Pooled struct {
	hidden   int
	classes  int
	params   Params
	grads    Params
	training bool

	lastX [][]float64
	lastH [][]float64
}

const (
	fc1Weight = "fc1.weight"
	fc1Bias   = "fc1.bias"
	fc2Weight = "fc2.weight"
	fc2Bias   = "fc2.bias"
)

// NewPooled returns a Pooled model with Glorot-uniform weights drawn from seed.
func NewPooled(classes, hidden int, seed uint64) *Pooled {
	rng := rand.New(rand.NewPCG(seed, 0x706f6f6c))
	m := &Pooled{
		hidden:  hidden,
		classes: classes,
		params: Params{
			fc1Weight: glorot(rng, hidden, FeatureWidth),
			fc1Bias:   make([]float64, hidden),
			fc2Weight: glorot(rng, classes, hidden),
			fc2Bias:   make([]float64, classes),
		},
	}
	m.grads = make(Params, len(m.params))
	for name, p := range m.params {
		m.grads[name] = make([]float64, len(p))
	}
	return m
}

// PooledFromParams builds a Pooled model shaped after p, typically the
// parameters of a checkpoint, and loads p into it.
func PooledFromParams(p Params) (*Pooled, error) {
	hidden, classes := len(p[fc1Bias]), len(p[fc2Bias])
	if hidden == 0 || classes == 0 {
		return nil, fmt.Errorf("pooled: parameters lack %s or %s", fc1Bias, fc2Bias)
	}
	m := NewPooled(classes, hidden, 0)
	if err := m.LoadParameters(p); err != nil {
		return nil, fmt.Errorf("pooled: %w", err)
	}
	return m, nil
}

func glorot(rng *rand.Rand, out, in int) []float64 {
	limit := math.Sqrt(6 / float64(in+out))
	w := make([]float64, out*in)
	for i := range w {
		w[i] = (2*rng.Float64() - 1) * limit
	}
	return w
}

func (m *Pooled) SetTraining(training bool) {
	m.training = training
	if !training {
		m.lastX, m.lastH = nil, nil
	}
}

func (m *Pooled) Parameters() Params { return m.params }

func (m *Pooled) Gradients() Params { return m.grads }

func (m *Pooled) LoadParameters(p Params) error {
	return p.CopyInto(m.params)
}

func (m *Pooled) Forward(ctx context.Context, b batch.Batch) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	w1, b1 := m.params[fc1Weight], m.params[fc1Bias]
	w2, b2 := m.params[fc2Weight], m.params[fc2Bias]

	out := Output{
		Logits:    make([][]float64, b.Size()),
		Embedding: make([][]float64, b.Size()),
	}
	xs := make([][]float64, b.Size())
	for i, item := range b.Items {
		x := Features(item)
		h := make([]float64, m.hidden)
		for j := range h {
			z := b1[j]
			row := w1[j*FeatureWidth : (j+1)*FeatureWidth]
			for k, v := range x {
				z += row[k] * v
			}
			h[j] = math.Tanh(z)
		}
		logits := make([]float64, m.classes)
		for c := range logits {
			z := b2[c]
			row := w2[c*m.hidden : (c+1)*m.hidden]
			for j, v := range h {
				z += row[j] * v
			}
			logits[c] = z
		}
		xs[i] = x
		out.Embedding[i] = h
		out.Logits[i] = logits
	}

	if m.training {
		m.lastX, m.lastH = xs, out.Embedding
	}
	return out, nil
}

func (m *Pooled) Backward(gradLogits [][]float64) error {
	if m.lastX == nil {
		return errors.New("pooled: backward without a training forward pass")
	}
	if len(gradLogits) != len(m.lastX) {
		return errors.New("pooled: gradient rows do not match the last batch")
	}
	w2 := m.params[fc2Weight]
	gw1, gb1 := m.grads[fc1Weight], m.grads[fc1Bias]
	gw2, gb2 := m.grads[fc2Weight], m.grads[fc2Bias]

	for i, g := range gradLogits {
		x, h := m.lastX[i], m.lastH[i]
		for c, gc := range g {
			gb2[c] += gc
			row := gw2[c*m.hidden : (c+1)*m.hidden]
			for j, hj := range h {
				row[j] += gc * hj
			}
		}
		for j, hj := range h {
			var dh float64
			for c, gc := range g {
				dh += gc * w2[c*m.hidden+j]
			}
			dz := dh * (1 - hj*hj)
			gb1[j] += dz
			row := gw1[j*FeatureWidth : (j+1)*FeatureWidth]
			for k, v := range x {
				row[k] += dz * v
			}
		}
	}
	return nil
}

// Features pools a prepared mesh into a FeatureWidth descriptor.
func Features(t types.PreparedTensor) []float64 {
	channels := make([][]float32, 0, types.FaceWidth)
	channels = append(channels, t.Centers[:]...)
	channels = append(channels, t.Corners[:]...)
	channels = append(channels, t.Normals[:]...)

	out := make([]float64, 0, FeatureWidth)
	for _, ch := range channels {
		mean, std := moments(ch)
		out = append(out, mean, std)
	}
	return append(out, normalAgreement(t))
}

func moments(ch []float32) (float64, float64) {
	if len(ch) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range ch {
		sum += float64(v)
	}
	mean := sum / float64(len(ch))
	var sq float64
	for _, v := range ch {
		d := float64(v) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(ch)))
}

// normalAgreement is the mean dot product between each face normal and
// the normals of its neighbors; flat regions score 1.
func normalAgreement(t types.PreparedTensor) float64 {
	var sum float64
	var n int
	for f, row := range t.NeighborIndex {
		for _, nb := range row {
			if nb < 0 || int(nb) >= t.Faces() {
				continue
			}
			var dot float64
			for c := 0; c < 3; c++ {
				dot += float64(t.Normals[c][f]) * float64(t.Normals[c][nb])
			}
			sum += dot
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
