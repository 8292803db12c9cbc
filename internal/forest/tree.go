package forest

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// Node is a decision tree node. Rows with x[Feature] <= Threshold go left.
type Node struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      *Node
	Right     *Node

	Samples int
	// Proba is the class distribution of a leaf, aligned with the classes
	// the tree was fitted with.
	Proba []float64
}

// Tree is a CART classifier.
type Tree struct {
	MaxDepth            int     // 0 => no limit
	MinSamplesSplit     int     // minimum samples to attempt a split
	MinSamplesLeaf      int     // minimum samples required in each leaf
	MaxFeatures         int     // 0 => all features
	Criterion           string  // "gini" (default) or "entropy"
	MinImpurityDecrease float64 // minimal gain to accept a split

	NumClasses int
	Root       *Node
}

// TreeOption configures a Tree.
type TreeOption func(*Tree)

// WithTreeMaxDepth limits the depth of the tree.
func WithTreeMaxDepth(d int) TreeOption {
	return func(t *Tree) { t.MaxDepth = d }
}

// WithTreeMaxFeatures sets how many features are tried per split.
func WithTreeMaxFeatures(k int) TreeOption {
	return func(t *Tree) { t.MaxFeatures = k }
}

// WithTreeCriterion selects "gini" or "entropy".
func WithTreeCriterion(c string) TreeOption {
	return func(t *Tree) { t.Criterion = c }
}

func WithTreeMinImpurityDecrease(d float64) TreeOption {
	return func(t *Tree) { t.MinImpurityDecrease = d }
}

func WithTreeMinSamplesLeaf(n int) TreeOption {
	return func(t *Tree) { t.MinSamplesLeaf = n }
}

func WithTreeMinSamplesSplit(n int) TreeOption {
	return func(t *Tree) { t.MinSamplesSplit = n }
}

// NewTree returns a tree with sklearn-like defaults.
func NewTree(opts ...TreeOption) *Tree {
	t := &Tree{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Criterion:       CriterionGini,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

type sample struct {
	v     float64
	class int
}

// fit grows the tree over the rows in idx. y holds class indices in
// [0, nClasses).
func (t *Tree) fit(X [][]float64, y []int, idx []int, nClasses int, rnd *rand.Rand) error {
	if len(idx) == 0 {
		return errors.New("tree: no samples")
	}
	t.NumClasses = nClasses
	t.Root = t.build(X, y, idx, 0, len(X[0]), rnd)
	return nil
}

func (t *Tree) build(X [][]float64, y []int, idx []int, depth, p int, rnd *rand.Rand) *Node {
	counts := classCounts(y, idx, t.NumClasses)
	node := &Node{Samples: len(idx)}

	if isPure(counts) || len(idx) < t.MinSamplesSplit || (t.MaxDepth > 0 && depth >= t.MaxDepth) {
		return makeLeaf(node, counts)
	}

	parent := t.impurity(counts)
	best := split{feature: -1}
	for _, f := range t.candidateFeatures(p, rnd) {
		s := t.bestSplit(X, y, idx, f, counts, parent)
		if s.feature >= 0 && s.gain > best.gain {
			best = s
		}
	}
	if best.feature < 0 || best.gain <= t.MinImpurityDecrease {
		return makeLeaf(node, counts)
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if X[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = t.build(X, y, left, depth+1, p, rnd)
	node.Right = t.build(X, y, right, depth+1, p, rnd)
	return node
}

// candidateFeatures draws MaxFeatures distinct columns (partial Fisher-Yates).
func (t *Tree) candidateFeatures(p int, rnd *rand.Rand) []int {
	feats := make([]int, p)
	for j := range feats {
		feats[j] = j
	}
	if t.MaxFeatures <= 0 || t.MaxFeatures >= p {
		return feats
	}
	for i := 0; i < t.MaxFeatures; i++ {
		j := i + rnd.Intn(p-i)
		feats[i], feats[j] = feats[j], feats[i]
	}
	return feats[:t.MaxFeatures]
}

// bestSplit scans the sorted values of feature f, moving one sample at a
// time from the right partition to the left.
func (t *Tree) bestSplit(X [][]float64, y []int, idx []int, f int, total []int, parent float64) split {
	samples := make([]sample, len(idx))
	for k, i := range idx {
		samples[k] = sample{v: X[i][f], class: y[i]}
	}
	sort.Slice(samples, func(a, b int) bool { return samples[a].v < samples[b].v })

	n := len(samples)
	left := make([]int, len(total))
	right := append([]int(nil), total...)
	best := split{feature: -1}

	for s := 1; s < n; s++ {
		c := samples[s-1].class
		left[c]++
		right[c]--
		if samples[s].v == samples[s-1].v {
			continue
		}
		if s < t.MinSamplesLeaf || n-s < t.MinSamplesLeaf {
			continue
		}
		weighted := (float64(s)*t.impurity(left) + float64(n-s)*t.impurity(right)) / float64(n)
		gain := parent - weighted
		if gain > best.gain {
			thr := (samples[s-1].v + samples[s].v) / 2
			if thr >= samples[s].v {
				thr = samples[s-1].v
			}
			best = split{feature: f, threshold: thr, gain: gain}
		}
	}
	return best
}

func (t *Tree) impurity(counts []int) float64 {
	if t.Criterion == CriterionEntropy {
		return entropyFromCounts(counts)
	}
	return giniFromCounts(counts)
}

// predictProba walks x down to a leaf.
func (t *Tree) predictProba(x []float64) []float64 {
	if t.Root == nil {
		p := make([]float64, t.NumClasses)
		for i := range p {
			p[i] = 1 / float64(len(p))
		}
		return p
	}
	node := t.Root
	for !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Proba
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	return nodeDepth(t.Root)
}

func nodeDepth(n *Node) int {
	if n == nil || n.Leaf {
		return 0
	}
	return 1 + max(nodeDepth(n.Left), nodeDepth(n.Right))
}

func makeLeaf(node *Node, counts []int) *Node {
	node.Leaf = true
	node.Proba = countsToProba(counts)
	return node
}

func classCounts(y []int, idx []int, nClasses int) []int {
	counts := make([]int, nClasses)
	for _, i := range idx {
		counts[y[i]]++
	}
	return counts
}

func giniFromCounts(counts []int) float64 {
	n := 0.0
	for _, c := range counts {
		n += float64(c)
	}
	if n == 0 {
		return 0
	}
	res := 0.0
	for _, c := range counts {
		p := float64(c) / n
		res += p * (1 - p)
	}
	return res
}

func entropyFromCounts(counts []int) float64 {
	n := 0.0
	for _, c := range counts {
		n += float64(c)
	}
	if n == 0 {
		return 0
	}
	res := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		res -= p * math.Log2(p)
	}
	return res
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func countsToProba(counts []int) []float64 {
	n := 0
	for _, c := range counts {
		n += c
	}
	p := make([]float64, len(counts))
	if n == 0 {
		return p
	}
	for i, c := range counts {
		p[i] = float64(c) / float64(n)
	}
	return p
}
