package model

import (
	"math/rand/v2"

	"neurocost/pkg/common"
)

// ForestParams configures a bagged regression forest.
type ForestParams struct {
	NumTrees int        `json:"n_estimators"`
	Seed     uint64     `json:"seed"`
	Tree     TreeParams `json:"tree"`
}

// Forest averages regression trees, each grown on a bootstrap sample of the
// training set. Tree i draws its sample from a PCG stream seeded with
// (Seed, i), so a fixed seed reproduces the same forest.
type Forest struct {
	Params ForestParams `json:"params"`
	Trees  []*Tree      `json:"trees"`
}

func NewForest(params ForestParams) *Forest {
	if params.NumTrees <= 0 {
		params.NumTrees = 100
	}
	return &Forest{Params: params}
}

func (f *Forest) Fit(x []common.FeatureVector, y []float64) error {
	if err := checkShape(len(x), len(y)); err != nil {
		return err
	}
	n := len(x)
	f.Trees = make([]*Tree, 0, f.Params.NumTrees)
	idx := make([]int, n)
	for t := 0; t < f.Params.NumTrees; t++ {
		rng := rand.New(rand.NewPCG(f.Params.Seed, uint64(t)))
		for i := range idx {
			idx[i] = rng.IntN(n)
		}
		f.Trees = append(f.Trees, growTree(SquaredError, f.Params.Tree, x, y, idx))
	}
	return nil
}

// Fitted reports whether the forest holds at least one tree.
func (f *Forest) Fitted() bool {
	return len(f.Trees) > 0
}

// Predict returns the mean of the tree predictions, 0 for an unfitted forest.
func (f *Forest) Predict(x common.FeatureVector) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range f.Trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// PredictBatch applies Predict to every row.
func (f *Forest) PredictBatch(xs []common.FeatureVector) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = f.Predict(x)
	}
	return out
}
