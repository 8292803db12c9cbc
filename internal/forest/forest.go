package forest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Split criteria.
const (
	CriterionGini    = "gini"
	CriterionEntropy = "entropy"
)

// Forest is a random forest classifier. Probabilities are the mean of the
// per-tree leaf distributions.
type Forest struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	// MaxFeatures <= 0 picks sqrt(p) features per split.
	MaxFeatures int
	Bootstrap   bool
	// Criterion is "gini" or "entropy".
	Criterion           string
	MinImpurityDecrease float64
	RandomState         int64
	// Workers bounds concurrent tree fitting; 0 => GOMAXPROCS.
	Workers int

	Classes []int
	Trees   []*Tree
}

// Option functional config for Forest.
type Option func(*Forest)

func WithNEstimators(n int) Option {
	return func(f *Forest) { f.NEstimators = n }
}

func WithMaxDepth(d int) Option {
	return func(f *Forest) { f.MaxDepth = d }
}

func WithMinSamplesSplit(n int) Option {
	return func(f *Forest) { f.MinSamplesSplit = n }
}

func WithMinSamplesLeaf(n int) Option {
	return func(f *Forest) { f.MinSamplesLeaf = n }
}

func WithMaxFeatures(k int) Option {
	return func(f *Forest) { f.MaxFeatures = k }
}

func WithBootstrap(b bool) Option {
	return func(f *Forest) { f.Bootstrap = b }
}

// WithCriterion sets the split criterion; an empty string keeps gini.
func WithCriterion(c string) Option {
	return func(f *Forest) {
		if c != "" {
			f.Criterion = c
		}
	}
}

func WithMinImpurityDecrease(d float64) Option {
	return func(f *Forest) { f.MinImpurityDecrease = d }
}

func WithRandomState(seed int64) Option {
	return func(f *Forest) { f.RandomState = seed }
}

func WithWorkers(n int) Option {
	return func(f *Forest) { f.Workers = n }
}

// New initializes the forest with sensible defaults.
func New(opts ...Option) *Forest {
	f := &Forest{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		Criterion:       CriterionGini,
		RandomState:     42,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fit trains the forest on X (n x p) and integer labels y. Each tree gets
// its own seed derived from RandomState, so results do not depend on
// scheduling.
func (f *Forest) Fit(ctx context.Context, X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("forest: empty X")
	}
	n := len(X)
	if len(y) != n {
		return errors.New("forest: X and y length mismatch")
	}
	p := len(X[0])
	if p == 0 {
		return errors.New("forest: no features")
	}
	for i := range X {
		if len(X[i]) != p {
			return fmt.Errorf("forest: row %d has %d features, want %d", i, len(X[i]), p)
		}
	}
	if f.NEstimators < 1 {
		return errors.New("forest: need at least one tree")
	}
	if f.Criterion != CriterionGini && f.Criterion != CriterionEntropy {
		return fmt.Errorf("forest: unknown criterion %q", f.Criterion)
	}
	if f.MinImpurityDecrease < 0 {
		return errors.New("forest: negative min impurity decrease")
	}

	f.Classes = distinctSorted(y)
	classIdx := make(map[int]int, len(f.Classes))
	for i, c := range f.Classes {
		classIdx[c] = i
	}
	yIdx := make([]int, n)
	for i, label := range y {
		yIdx[i] = classIdx[label]
	}

	maxFeatures := f.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = max(1, int(math.Sqrt(float64(p))))
	}

	workers := f.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*Tree, f.NEstimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rnd := rand.New(rand.NewSource(f.RandomState + int64(i)))

			sampleIdx := make([]int, n)
			for j := range sampleIdx {
				if f.Bootstrap {
					sampleIdx[j] = rnd.Intn(n)
				} else {
					sampleIdx[j] = j
				}
			}

			tree := NewTree(
				WithTreeMaxDepth(f.MaxDepth),
				WithTreeMinSamplesSplit(f.MinSamplesSplit),
				WithTreeMinSamplesLeaf(f.MinSamplesLeaf),
				WithTreeMaxFeatures(maxFeatures),
				WithTreeCriterion(f.Criterion),
				WithTreeMinImpurityDecrease(f.MinImpurityDecrease),
			)
			if err := tree.fit(X, yIdx, sampleIdx, len(f.Classes), rnd); err != nil {
				return fmt.Errorf("forest: tree %d: %w", i, err)
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.Trees = trees
	return nil
}

// PredictProba returns, for each row, probabilities aligned with Classes.
func (f *Forest) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, x := range X {
		out[i] = f.predictProbaSingle(x)
	}
	return out
}

// Predict returns the class with the highest mean probability per row.
func (f *Forest) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i, x := range X {
		probs := f.predictProbaSingle(x)
		best := 0
		for j := 1; j < len(probs); j++ {
			if probs[j] > probs[best] {
				best = j
			}
		}
		out[i] = f.Classes[best]
	}
	return out
}

func (f *Forest) predictProbaSingle(x []float64) []float64 {
	sum := make([]float64, len(f.Classes))
	for _, t := range f.Trees {
		for j, p := range t.predictProba(x) {
			sum[j] += p
		}
	}
	if len(f.Trees) == 0 {
		return sum
	}
	for j := range sum {
		sum[j] /= float64(len(f.Trees))
	}
	return sum
}

// Accuracy is the share of rows whose predicted class equals y.
func (f *Forest) Accuracy(X [][]float64, y []int) float64 {
	if len(y) == 0 {
		return 0
	}
	pred := f.Predict(X)
	hits := 0
	for i := range y {
		if pred[i] == y[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(y))
}

func distinctSorted(y []int) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, v := range y {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
