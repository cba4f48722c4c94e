// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	labels := []int{0, 0, 0, 1, 1, 1, 1, 1}
	preds := []int{0, 0, 1, 1, 1, 1, 0, 1}

	r, err := Build(labels, preds, []string{"ad", "cn"})
	require.NoError(t, err)
	require.Len(t, r.Classes, 2)

	ad, cn := r.Classes[0], r.Classes[1]
	assert.Equal(t, "ad", ad.Name)
	assert.InDelta(t, 2.0/3, ad.Precision, 1e-12)
	assert.InDelta(t, 2.0/3, ad.Recall, 1e-12)
	assert.Equal(t, 3, ad.Support)

	assert.InDelta(t, 0.8, cn.Precision, 1e-12)
	assert.InDelta(t, 0.8, cn.Recall, 1e-12)
	assert.InDelta(t, 0.8, cn.F1, 1e-12)
	assert.Equal(t, 5, cn.Support)

	assert.InDelta(t, 0.75, r.Accuracy, 1e-12)
	assert.InDelta(t, (2.0/3+0.8)/2, r.MacroAvg.F1, 1e-12)
	assert.InDelta(t, (3*(2.0/3)+5*0.8)/8, r.WeightedAvg.Recall, 1e-12)
	assert.Equal(t, 8, r.WeightedAvg.Support)
}

func TestBuildUndefinedRatiosScoreZero(t *testing.T) {
	r, err := Build([]int{0, 0}, []int{0, 0}, []string{"ad", "cn"})
	require.NoError(t, err)
	assert.Zero(t, r.Classes[1].Precision)
	assert.Zero(t, r.Classes[1].F1)
	assert.Equal(t, 1.0, r.Accuracy)
}

func TestBuildNamesUnknownClassesByIndex(t *testing.T) {
	r, err := Build([]int{0, 2}, []int{0, 2}, []string{"ad"})
	require.NoError(t, err)
	require.Len(t, r.Classes, 3)
	assert.Equal(t, "1", r.Classes[1].Name)
	assert.Equal(t, "2", r.Classes[2].Name)
}

func TestBuildErrors(t *testing.T) {
	_, err := Build([]int{0}, nil, nil)
	assert.Error(t, err)
	_, err = Build([]int{-1}, []int{0}, nil)
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	r, err := Build([]int{0, 1}, []int{0, 1}, []string{"ad", "cn"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf))
	out := buf.String()
	assert.Contains(t, out, "precision")
	assert.Contains(t, out, "          ad     1.0000     1.0000     1.0000          1")
	assert.Contains(t, out, "    accuracy                           1.0000          2")
	assert.Contains(t, out, "weighted avg")
}
