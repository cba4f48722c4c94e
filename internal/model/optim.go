// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import "github.com/pdiddy/mesh-classifier/pkg/types"

// SGD is stochastic gradient descent with momentum and L2 weight decay.
type SGD struct {
	lr          float64
	momentum    float64
	weightDecay float64
	velocity    Params
}

// NewSGD builds an optimizer from cfg.
func NewSGD(cfg types.OptimizerConfig) *SGD {
	return &SGD{
		lr:          cfg.LR,
		momentum:    cfg.Momentum,
		weightDecay: cfg.WeightDecay,
		velocity:    make(Params),
	}
}

// LR returns the current learning rate.
func (o *SGD) LR() float64 { return o.lr }

// SetLR replaces the learning rate.
func (o *SGD) SetLR(lr float64) { o.lr = lr }

// ZeroGrad clears m's gradient buffers.
func (o *SGD) ZeroGrad(m Model) {
	for _, g := range m.Gradients() {
		clear(g)
	}
}

// Step applies one update to m's parameters from its gradients.
func (o *SGD) Step(m Model) {
	grads := m.Gradients()
	for name, p := range m.Parameters() {
		g := grads[name]
		if g == nil {
			continue
		}
		v := o.velocity[name]
		if o.momentum != 0 && v == nil {
			v = make([]float64, len(p))
			o.velocity[name] = v
		}
		for i := range p {
			d := g[i] + o.weightDecay*p[i]
			if o.momentum != 0 {
				v[i] = o.momentum*v[i] + d
				d = v[i]
			}
			p[i] -= o.lr * d
		}
	}
}

// MultiStepLR decays the optimizer's learning rate by gamma at each
// milestone epoch. Step is called once at the start of every train phase,
// so the phase of epoch e runs with every milestone <= e applied.
type MultiStepLR struct {
	opt        *SGD
	base       float64
	milestones []int
	gamma      float64
	last       int
}

// NewMultiStepLR schedules opt starting from its current learning rate.
func NewMultiStepLR(opt *SGD, milestones []int, gamma float64) *MultiStepLR {
	return &MultiStepLR{
		opt:        opt,
		base:       opt.LR(),
		milestones: append([]int(nil), milestones...),
		gamma:      gamma,
		last:       0,
	}
}

// Step advances the schedule by one epoch and updates the optimizer.
func (s *MultiStepLR) Step() {
	s.last++
	lr := s.base
	for _, m := range s.milestones {
		if s.last >= m {
			lr *= s.gamma
		}
	}
	s.opt.SetLR(lr)
}
