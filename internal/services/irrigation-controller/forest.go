package irrigation_controller

import (
	"cmp"
	"math/rand/v2"
	"slices"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"
)

// ForestConfig controls how a regression forest is grown.
type ForestConfig struct {
	Estimators      int
	Seed            uint64
	MinSamplesSplit int
	MaxDepth        int // 0 means unbounded
}

// Forest is an ensemble of regression trees, each fit on a bootstrap resample
// and split on squared error over all features. Immutable after FitForest.
type Forest struct {
	trees     []*treeNode
	nFeatures int
}

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

// FitForest grows cfg.Estimators trees. The same data and seed always yield the same forest.
func FitForest(x [][]float64, y []float64, cfg ForestConfig) (*Forest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, eris.Errorf("forest: need matching non-empty samples, got %d rows and %d targets", len(x), len(y))
	}
	if cfg.Estimators <= 0 {
		return nil, eris.New("forest: estimators must be positive")
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	nf := len(x[0])
	for i, row := range x {
		if len(row) != nf {
			return nil, eris.Errorf("forest: row %d has %d features, want %d", i, len(row), nf)
		}
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	b := &treeBuilder{x: x, y: y, cfg: cfg, nFeatures: nf}
	f := &Forest{nFeatures: nf, trees: make([]*treeNode, 0, cfg.Estimators)}
	n := len(x)
	for range cfg.Estimators {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.IntN(n)
		}
		f.trees = append(f.trees, b.grow(sample, 0))
	}
	return f, nil
}

// Predict averages the trees' leaf values for one row.
func (f *Forest) Predict(row []float64) (float64, error) {
	if len(row) != f.nFeatures {
		return 0, eris.Errorf("forest: got %d features, want %d", len(row), f.nFeatures)
	}
	var sum float64
	for _, t := range f.trees {
		n := t
		for !n.leaf {
			if row[n.feature] <= n.threshold {
				n = n.left
			} else {
				n = n.right
			}
		}
		sum += n.value
	}
	return sum / float64(len(f.trees)), nil
}

// Size is the number of trees.
func (f *Forest) Size() int { return len(f.trees) }

type treeBuilder struct {
	x         [][]float64
	y         []float64
	cfg       ForestConfig
	nFeatures int
}

func (b *treeBuilder) leaf(idx []int) *treeNode {
	ys := make([]float64, len(idx))
	for i, j := range idx {
		ys[i] = b.y[j]
	}
	return &treeNode{leaf: true, value: stat.Mean(ys, nil)}
}

func (b *treeBuilder) grow(idx []int, depth int) *treeNode {
	if len(idx) < b.cfg.MinSamplesSplit || (b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth) {
		return b.leaf(idx)
	}
	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return b.leaf(idx)
	}
	var left, right []int
	for _, j := range idx {
		if b.x[j][feature] <= threshold {
			left = append(left, j)
		} else {
			right = append(right, j)
		}
	}
	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      b.grow(left, depth+1),
		right:     b.grow(right, depth+1),
	}
}

// bestSplit finds the midpoint threshold minimising the summed squared error of both sides.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	var total, totalSq float64
	for _, j := range idx {
		total += b.y[j]
		totalSq += b.y[j] * b.y[j]
	}
	parentSSE := totalSq - total*total/float64(n)
	if parentSSE <= 1e-12 {
		return 0, 0, false
	}

	bestSSE := parentSSE
	bestFeature, bestThreshold, found := 0, 0.0, false
	sorted := make([]int, n)
	for f := 0; f < b.nFeatures; f++ {
		copy(sorted, idx)
		slices.SortStableFunc(sorted, func(a, c int) int {
			return cmp.Compare(b.x[a][f], b.x[c][f])
		})
		var ls, lsq float64
		for k := 1; k < n; k++ {
			yv := b.y[sorted[k-1]]
			ls += yv
			lsq += yv * yv
			lo, hi := b.x[sorted[k-1]][f], b.x[sorted[k]][f]
			if lo == hi {
				continue
			}
			rs, rsq := total-ls, totalSq-lsq
			sse := (lsq - ls*ls/float64(k)) + (rsq - rs*rs/float64(n-k))
			if sse < bestSSE {
				bestSSE, bestFeature, bestThreshold, found = sse, f, (lo+hi)/2, true
			}
		}
	}
	return bestFeature, bestThreshold, found
}
