package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// RegressionTree is a CART-style regression tree with deterministic split
// selection: features are scanned in index order, candidate thresholds are
// midpoints between consecutive sorted values, and the first split with the
// lowest sum of squared errors wins.
type RegressionTree struct {
	maxDepth int
	minLeaf  int
}

// NewRegressionTree creates a tree estimator.
func NewRegressionTree(maxDepth, minLeaf int) *RegressionTree {
	return &RegressionTree{maxDepth: maxDepth, minLeaf: minLeaf}
}

func (e *RegressionTree) Name() string { return NameRegressionTree }

func (e *RegressionTree) Family() int { return FamilyTree }

func (e *RegressionTree) Fit(features [][]float64, labels []float64) (Fitted, error) {
	if err := checkDimensions(features, labels); err != nil {
		return nil, err
	}
	if e.maxDepth <= 0 || e.minLeaf <= 0 {
		return nil, fmt.Errorf("invalid tree parameters: max_depth=%d min_leaf=%d", e.maxDepth, e.minLeaf)
	}

	idx := make([]int, len(features))
	for i := range idx {
		idx[i] = i
	}
	root := grow(features, labels, idx, e.maxDepth, e.minLeaf)
	return &treeFitted{Root: root}, nil
}

// treeNode is one serializable node. Leaves carry a value; internal nodes
// carry a split.
type treeNode struct {
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Value     float64   `json:"value"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
}

func (n *treeNode) leaf() bool { return n.Left == nil && n.Right == nil }

type treeFitted struct {
	Root *treeNode `json:"root"`
}

func (m *treeFitted) Predict(vector []float64) float64 {
	node := m.Root
	for !node.leaf() {
		if node.Feature < len(vector) && vector[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

func (m *treeFitted) MarshalParams() ([]byte, error) {
	return json.Marshal(m)
}

func loadTreeParams(params []byte) (Fitted, error) {
	var m treeFitted
	if err := json.Unmarshal(params, &m); err != nil {
		return nil, fmt.Errorf("decode tree params: %w", err)
	}
	if m.Root == nil {
		return nil, fmt.Errorf("decode tree params: empty tree")
	}
	return &m, nil
}

func grow(features [][]float64, labels []float64, idx []int, depth, minLeaf int) *treeNode {
	node := &treeNode{Value: meanAt(labels, idx)}
	if depth == 0 || len(idx) < 2*minLeaf {
		return node
	}

	feature, threshold, ok := bestSplit(features, labels, idx, minLeaf)
	if !ok {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if features[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	node.Feature = feature
	node.Threshold = threshold
	node.Left = grow(features, labels, left, depth-1, minLeaf)
	node.Right = grow(features, labels, right, depth-1, minLeaf)
	return node
}

// bestSplit scans features in index order and returns the split minimizing
// total SSE. Ties keep the earliest (feature, threshold), making the tree
// reproducible across runs.
func bestSplit(features [][]float64, labels []float64, idx []int, minLeaf int) (int, float64, bool) {
	bestSSE := sseAt(labels, idx)
	bestFeature, bestThreshold := -1, 0.0
	width := len(features[idx[0]])

	for f := 0; f < width; f++ {
		sorted := make([]int, len(idx))
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, b int) bool {
			return features[sorted[a]][f] < features[sorted[b]][f]
		})

		for cut := minLeaf; cut <= len(sorted)-minLeaf; cut++ {
			lo, hi := features[sorted[cut-1]][f], features[sorted[cut]][f]
			if lo == hi {
				continue
			}
			threshold := (lo + hi) / 2
			sse := sseAt(labels, sorted[:cut]) + sseAt(labels, sorted[cut:])
			if sse < bestSSE {
				bestSSE = sse
				bestFeature = f
				bestThreshold = threshold
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func meanAt(labels []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += labels[i]
	}
	return sum / float64(len(idx))
}

func sseAt(labels []float64, idx []int) float64 {
	m := meanAt(labels, idx)
	sse := 0.0
	for _, i := range idx {
		d := labels[i] - m
		sse += d * d
	}
	return sse
}
