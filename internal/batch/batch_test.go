// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/mesh-classifier/pkg/types"
)

// fakeSource returns a tensor whose target equals its index. Indices in
// fail produce an error.
type fakeSource struct {
	n        int
	fail     map[int]error
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (s *fakeSource) Len() int { return s.n }

func (s *fakeSource) Get(i int) (types.PreparedTensor, error) {
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if cur <= peak || s.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if err, ok := s.fail[i]; ok {
		return types.PreparedTensor{}, err
	}
	return types.PreparedTensor{Target: int64(i)}, nil
}

func collect(t *testing.T, b *Batcher) [][]int {
	t.Helper()
	var out [][]int
	err := b.Each(context.Background(), func(batch Batch) error {
		assert.Equal(t, batch.Indices, batch.Targets())
		out = append(out, batch.Targets())
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestEachInOrder(t *testing.T) {
	src := &fakeSource{n: 10}
	b := New(src, Options{BatchSize: 4, Workers: 3})

	got := collect(t, b)
	assert.Equal(t, [][]int{{0, 1, 2, 3}, {4, 5, 6, 7}, {8, 9}}, got)
	assert.Equal(t, 3, b.Batches())
	assert.Equal(t, 10, b.Len())
}

func TestEachShuffleCoversEverySample(t *testing.T) {
	src := &fakeSource{n: 50}
	b := New(src, Options{BatchSize: 8, Workers: 4, Shuffle: true, Seed: 11})

	first := collect(t, b)
	second := collect(t, b)

	flatten := func(batches [][]int) []int {
		var all []int
		for _, batch := range batches {
			all = append(all, batch...)
		}
		return all
	}
	a, c := flatten(first), flatten(second)
	assert.NotEqual(t, a, c, "each pass should use a new order")

	sort.Ints(a)
	for i, v := range a {
		assert.Equal(t, i, v)
	}
}

func TestEachBoundsWorkers(t *testing.T) {
	src := &fakeSource{n: 24, delay: 2 * time.Millisecond}
	b := New(src, Options{BatchSize: 12, Workers: 3})
	collect(t, b)
	assert.LessOrEqual(t, src.peak.Load(), int32(3))
}

func TestEachStopsOnSampleError(t *testing.T) {
	boom := errors.New("unreadable record")
	src := &fakeSource{n: 9, fail: map[int]error{5: boom}}
	b := New(src, Options{BatchSize: 3, Workers: 2})

	var seen int
	err := b.Each(context.Background(), func(batch Batch) error {
		seen++
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, seen, "only the batch before the failing one is delivered")
}

func TestEachStopsOnCallbackError(t *testing.T) {
	src := &fakeSource{n: 9}
	b := New(src, Options{BatchSize: 3})

	stop := fmt.Errorf("stop")
	var seen int
	err := b.Each(context.Background(), func(batch Batch) error {
		seen++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

func TestEachCancelled(t *testing.T) {
	src := &fakeSource{n: 100, delay: time.Millisecond}
	b := New(src, Options{BatchSize: 10, Workers: 2})

	ctx, cancel := context.WithCancel(context.Background())
	err := b.Each(ctx, func(batch Batch) error {
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrepareAllKeepsPerSampleErrors(t *testing.T) {
	boom := errors.New("bad")
	src := &fakeSource{n: 4, fail: map[int]error{2: boom}}

	results, err := PrepareAll(context.Background(), src, []int{3, 2, 1}, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 3, results[0].Index)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.Equal(t, int64(1), results[2].Tensor.Target)
}
