// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package trainer

import (
	"github.com/pdiddy/mesh-classifier/internal/model"
	"github.com/pdiddy/mesh-classifier/pkg/types"
)

// DefaultCheckpointEvery is the periodic snapshot cadence in epochs.
const DefaultCheckpointEvery = 10

// BestState is the best evaluation outcome seen so far in a run.
type BestState struct {
	Accuracy float64
	MAP      float64

	// Epoch is the epoch Params was captured at; zero means the initial
	// parameters.
	Epoch  int
	Params model.Params
}

// Decision tells the loop what to persist after an evaluate phase.
type Decision struct {
	NewBestAccuracy bool
	NewBestMAP      bool
	Checkpoint      bool
}

// Controller folds evaluate-phase results into a BestState. It performs no
// I/O; the loop acts on the Decisions it returns.
type Controller struct {
	every int
	best  BestState
}

// NewController starts from initial parameters with zero best accuracy and
// mAP. every <= 0 selects DefaultCheckpointEvery.
func NewController(every int, initial model.Params) *Controller {
	if every <= 0 {
		every = DefaultCheckpointEvery
	}
	return &Controller{every: every, best: BestState{Params: initial}}
}

// Observe folds r into the best state. Only evaluate-phase results count.
// snapshot is called, at most once, when r sets a new best accuracy.
func (c *Controller) Observe(r types.EpochResult, snapshot func() model.Params) Decision {
	var d Decision
	if r.Phase != types.PhaseEval {
		return d
	}
	if r.Accuracy > c.best.Accuracy {
		c.best.Accuracy = r.Accuracy
		c.best.Epoch = r.Epoch
		c.best.Params = snapshot()
		d.NewBestAccuracy = true
	}
	if r.HasMAP && r.MAP > c.best.MAP {
		c.best.MAP = r.MAP
		d.NewBestMAP = true
	}
	d.Checkpoint = r.Epoch%c.every == 0
	return d
}

// Best returns the current best state.
func (c *Controller) Best() BestState {
	return c.best
}
