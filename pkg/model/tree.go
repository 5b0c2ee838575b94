package model

import (
	"sort"

	"neurocost/pkg/common"
)

// Criterion selects the impurity measure used to grow a tree.
type Criterion int

const (
	// SquaredError grows regression trees; leaves hold the target mean.
	SquaredError Criterion = iota
	// Gini grows binary classification trees; leaves hold the majority class.
	Gini
)

// TreeParams bounds tree growth. MaxDepth 0 means unlimited.
type TreeParams struct {
	MaxDepth        int `json:"max_depth"`
	MinSamplesSplit int `json:"min_samples_split"`
	MinSamplesLeaf  int `json:"min_samples_leaf"`
}

func (p TreeParams) normalized() TreeParams {
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	if p.MaxDepth < 0 {
		p.MaxDepth = 0
	}
	return p
}

// Node is one entry of a flattened tree. Feature < 0 marks a leaf.
// Samples with x[Feature] <= Threshold go Left.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

// Tree is a CART decision tree stored as a flat node array rooted at index 0.
type Tree struct {
	Criterion Criterion  `json:"criterion"`
	Params    TreeParams `json:"params"`
	Nodes     []Node     `json:"nodes"`
}

// Predict walks the tree and returns the leaf value. An empty tree predicts 0.
func (t *Tree) Predict(x common.FeatureVector) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// builder grows a tree over a sample index list; duplicates in idx act as
// bootstrap weights.
type builder struct {
	x      []common.FeatureVector
	y      []float64
	params TreeParams
	crit   Criterion
	nodes  []Node
}

func growTree(crit Criterion, params TreeParams, x []common.FeatureVector, y []float64, idx []int) *Tree {
	b := &builder{x: x, y: y, params: params.normalized(), crit: crit}
	b.grow(idx, 0)
	return &Tree{Criterion: crit, Params: b.params, Nodes: b.nodes}
}

func (b *builder) leafValue(idx []int) float64 {
	switch b.crit {
	case Gini:
		ones := 0
		for _, i := range idx {
			if b.y[i] == 1 {
				ones++
			}
		}
		// 平票时取 0
		if ones > len(idx)-ones {
			return 1
		}
		return 0
	default:
		sum := 0.0
		for _, i := range idx {
			sum += b.y[i]
		}
		return sum / float64(len(idx))
	}
}

func (b *builder) pure(idx []int) bool {
	first := b.y[idx[0]]
	for _, i := range idx[1:] {
		if b.y[i] != first {
			return false
		}
	}
	return true
}

func (b *builder) grow(idx []int, depth int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Value: b.leafValue(idx)})

	if len(idx) < b.params.MinSamplesSplit ||
		(b.params.MaxDepth > 0 && depth >= b.params.MaxDepth) ||
		b.pure(idx) {
		return self
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return self
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return self
}

// bestSplit scans every feature and every boundary between distinct sorted
// values. Lower score is better; the first best split found wins.
func (b *builder) bestSplit(idx []int) (feature int, threshold float64, ok bool) {
	n := len(idx)
	minLeaf := b.params.MinSamplesLeaf
	sorted := make([]int, n)

	bestScore := 0.0
	for f := 0; f < common.NumFeatures; f++ {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.x[sorted[a]][f] < b.x[sorted[c]][f]
		})

		var totSum, totOnes float64
		for _, i := range sorted {
			totSum += b.y[i]
		}
		totOnes = totSum

		var leftSum float64
		for k := 0; k < n-1; k++ {
			leftSum += b.y[sorted[k]]
			nl := k + 1
			nr := n - nl
			lo := b.x[sorted[k]][f]
			hi := b.x[sorted[k+1]][f]
			if lo == hi || nl < minLeaf || nr < minLeaf {
				continue
			}

			var score float64
			switch b.crit {
			case Gini:
				score = giniWeighted(leftSum, float64(nl)) + giniWeighted(totOnes-leftSum, float64(nr))
			default:
				rightSum := totSum - leftSum
				// 最小化 SSE 等价于最大化 sumL²/nL + sumR²/nR
				score = -(leftSum*leftSum/float64(nl) + rightSum*rightSum/float64(nr))
			}

			if !ok || score < bestScore {
				t := lo + (hi-lo)/2
				if t == hi {
					t = lo
				}
				feature, threshold, bestScore, ok = f, t, score, true
			}
		}
	}
	return feature, threshold, ok
}

// giniWeighted returns n * gini for a node holding `ones` positives out of n.
func giniWeighted(ones, n float64) float64 {
	p1 := ones / n
	p0 := 1 - p1
	return n * (1 - p0*p0 - p1*p1)
}

// RegressionTree is a single CART regressor.
type RegressionTree struct {
	Tree
}

func NewRegressionTree(params TreeParams) *RegressionTree {
	return &RegressionTree{Tree: Tree{Criterion: SquaredError, Params: params}}
}

func (rt *RegressionTree) Fit(x []common.FeatureVector, y []float64) error {
	if err := checkShape(len(x), len(y)); err != nil {
		return err
	}
	rt.Tree = *growTree(SquaredError, rt.Params, x, y, seq(len(x)))
	return nil
}

// DecisionTreeClassifier is a binary Gini CART classifier.
type DecisionTreeClassifier struct {
	Tree
}

func NewDecisionTreeClassifier(params TreeParams) *DecisionTreeClassifier {
	return &DecisionTreeClassifier{Tree: Tree{Criterion: Gini, Params: params}}
}

// Fit accepts labels in {0, 1}; any non-zero label counts as 1.
func (c *DecisionTreeClassifier) Fit(x []common.FeatureVector, labels []int) error {
	if err := checkShape(len(x), len(labels)); err != nil {
		return err
	}
	y := make([]float64, len(labels))
	for i, l := range labels {
		if l != 0 {
			y[i] = 1
		}
	}
	c.Tree = *growTree(Gini, c.Params, x, y, seq(len(x)))
	return nil
}

func (c *DecisionTreeClassifier) Predict(x common.FeatureVector) int {
	if c.Tree.Predict(x) == 1 {
		return 1
	}
	return 0
}

func seq(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}
