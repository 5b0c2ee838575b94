package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurocost/pkg/common"
)

func costVectors(costs ...float64) []common.FeatureVector {
	out := make([]common.FeatureVector, len(costs))
	for i, c := range costs {
		out[i] = common.FeatureVector{0, c, 0}
	}
	return out
}

func TestRegressionTreeStepFunction(t *testing.T) {
	x := costVectors(1, 2, 3, 10, 11, 12)
	y := []float64{1, 1, 1, 5, 5, 5}

	rt := NewRegressionTree(TreeParams{})
	require.NoError(t, rt.Fit(x, y))

	assert.Equal(t, 1.0, rt.Predict(common.FeatureVector{0, 2, 0}))
	assert.Equal(t, 5.0, rt.Predict(common.FeatureVector{0, 11, 0}))
	assert.Equal(t, 1, rt.Depth())
	assert.Equal(t, 1, rt.Nodes[0].Feature)
	assert.Equal(t, 6.5, rt.Nodes[0].Threshold)
}

func TestRegressionTreeMaxDepth(t *testing.T) {
	x := costVectors(1, 2, 3, 4, 5, 6, 7, 8)
	y := []float64{1, 2, 3, 4, 5, 6, 7, 8}

	rt := NewRegressionTree(TreeParams{MaxDepth: 2})
	require.NoError(t, rt.Fit(x, y))
	assert.LessOrEqual(t, rt.Depth(), 2)

	full := NewRegressionTree(TreeParams{})
	require.NoError(t, full.Fit(x, y))
	for i := range x {
		assert.Equal(t, y[i], full.Predict(x[i]), "unbounded tree memorizes distinct rows")
	}
}

func TestRegressionTreeMinSamplesLeaf(t *testing.T) {
	x := costVectors(1, 2, 3, 4)
	y := []float64{0, 0, 0, 100}

	rt := NewRegressionTree(TreeParams{MinSamplesLeaf: 2})
	require.NoError(t, rt.Fit(x, y))
	for _, n := range rt.Nodes {
		if n.Feature >= 0 {
			assert.Equal(t, 2.5, n.Threshold)
		}
	}
}

func TestRegressionTreeRejectsBadInput(t *testing.T) {
	rt := NewRegressionTree(TreeParams{})
	assert.ErrorIs(t, rt.Fit(nil, nil), ErrEmptyTrainingSet)
	assert.ErrorIs(t, rt.Fit(costVectors(1, 2), []float64{1}), ErrLengthMismatch)
}

func TestClassifierSeparatesByFeature(t *testing.T) {
	x := []common.FeatureVector{
		{1, 10, 5}, {1, 20, 5}, {2, 30, 5},
		{6, 10, 5}, {7, 20, 5}, {8, 30, 5},
	}
	labels := []int{0, 0, 0, 1, 1, 1}

	c := NewDecisionTreeClassifier(TreeParams{MaxDepth: 4})
	require.NoError(t, c.Fit(x, labels))

	assert.Equal(t, 0, c.Predict(common.FeatureVector{1, 15, 5}))
	assert.Equal(t, 1, c.Predict(common.FeatureVector{9, 15, 5}))
	assert.Equal(t, 0, c.Nodes[0].Feature)
}

func TestClassifierTieFavorsZero(t *testing.T) {
	x := []common.FeatureVector{{1, 1, 1}, {1, 1, 1}}
	c := NewDecisionTreeClassifier(TreeParams{MaxDepth: 4})
	require.NoError(t, c.Fit(x, []int{1, 0}))
	assert.Equal(t, 0, c.Predict(common.FeatureVector{1, 1, 1}))
}

func TestClassifierRespectsMaxDepth(t *testing.T) {
	var x []common.FeatureVector
	var labels []int
	for i := 0; i < 64; i++ {
		x = append(x, common.FeatureVector{0, float64(i), 0})
		labels = append(labels, i%2)
	}
	c := NewDecisionTreeClassifier(TreeParams{MaxDepth: 4})
	require.NoError(t, c.Fit(x, labels))
	assert.LessOrEqual(t, c.Depth(), 4)
}
