package forest

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"golang.org/x/sync/semaphore"

	"gocre/domain/core"
	"gocre/domain/sample"
	"gocre/ports"
)

const (
	// Gradient boosting constants: slow learning over half-sample bags.
	shrinkage   = 0.1
	bagFraction = 0.5

	// Stride between per-tree seeds so tree streams never overlap.
	treeSeedStride = 1_000_003

	// Fraction of rows drawn when bootstrapping without replacement.
	subsampleFraction = 0.632
)

// Learner fits regression-tree ensembles. It implements ports.RuleLearnerPort.
type Learner struct {
	workers int64
}

// NewLearner creates a learner with a bounded fitting pool.
func NewLearner() *Learner {
	return &Learner{workers: 4}
}

func validateFit(cov *sample.Covariates, target []float64, spec ports.EnsembleSpec) error {
	if cov == nil {
		return core.NewInvalidInputError("covariates", "nil covariate table")
	}
	if err := cov.Validate(); err != nil {
		return err
	}
	if len(target) != cov.RowCount() {
		return core.NewInvalidInputError("target",
			fmt.Sprintf("%d values for %d covariate rows", len(target), cov.RowCount()))
	}
	if spec.Trees < 0 {
		return core.NewInvalidInputError("trees", "must be non-negative")
	}
	if spec.NodeSize < 1 || spec.MaxNodes < 2 || spec.MaxDepth < 1 {
		return core.NewInvalidInputError("ensemble_spec", "degenerate tree shape")
	}
	return nil
}

// FitBagged fits spec.Trees randomized trees on bootstrap resamples. Each
// tree gets its own derived seed, so results do not depend on scheduling.
func (l *Learner) FitBagged(ctx context.Context, cov *sample.Covariates, target []float64, spec ports.EnsembleSpec, seed int64) ([]*ports.TreeNode, error) {
	if err := validateFit(cov, target, spec); err != nil {
		return nil, err
	}
	if spec.Trees == 0 {
		return nil, nil
	}

	n := cov.RowCount()
	mtry := cov.ColumnCount() / 3
	if mtry < 1 {
		mtry = 1
	}
	tp := treeParams{
		nodeSize: spec.NodeSize,
		maxNodes: spec.MaxNodes,
		maxDepth: spec.MaxDepth,
		mtry:     mtry,
	}

	trees := make([]*ports.TreeNode, spec.Trees)
	sem := semaphore.NewWeighted(l.workers)
	var wg sync.WaitGroup
	for i := 0; i < spec.Trees; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer sem.Release(1)
			rng := rand.New(rand.NewSource(seed + int64(idx)*treeSeedStride))
			rows := bootstrapRows(n, spec.Replace, rng)
			trees[idx] = growTree(cov, target, rows, tp, rng)
		}(i)
	}
	wg.Wait()

	return trees, nil
}

// FitBoosted fits a gradient-boosted sequence of trees on squared-error
// residuals. Boosting is inherently sequential: each tree sees the residuals
// left by the ones before it.
func (l *Learner) FitBoosted(ctx context.Context, cov *sample.Covariates, target []float64, spec ports.EnsembleSpec, seed int64) ([]*ports.TreeNode, error) {
	if err := validateFit(cov, target, spec); err != nil {
		return nil, err
	}
	if spec.Trees == 0 {
		return nil, nil
	}

	n := cov.RowCount()
	tp := treeParams{
		nodeSize: spec.NodeSize,
		maxNodes: spec.MaxNodes,
		maxDepth: spec.MaxDepth,
	}
	colIndex := columnIndex(cov)

	mean := 0.0
	for _, y := range target {
		mean += y
	}
	mean /= float64(n)

	fitted := make([]float64, n)
	residual := make([]float64, n)
	for i := range fitted {
		fitted[i] = mean
	}

	bagSize := int(math.Floor(bagFraction * float64(n)))
	if bagSize < 1 {
		bagSize = 1
	}

	trees := make([]*ports.TreeNode, 0, spec.Trees)
	for m := 0; m < spec.Trees; m++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng := rand.New(rand.NewSource(seed + int64(m)*treeSeedStride))

		for i := range residual {
			residual[i] = target[i] - fitted[i]
		}
		bag := rng.Perm(n)[:bagSize]

		tree := growTree(cov, residual, bag, tp, rng)
		trees = append(trees, tree)

		for i := 0; i < n; i++ {
			fitted[i] += shrinkage * predictRow(tree, cov, colIndex, i)
		}
	}

	return trees, nil
}

// bootstrapRows draws the per-tree training rows: n with replacement, or a
// 0.632 fraction without.
func bootstrapRows(n int, replace bool, rng *rand.Rand) []int {
	if replace {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = rng.Intn(n)
		}
		return rows
	}
	k := int(math.Floor(subsampleFraction * float64(n)))
	if k < 1 {
		k = 1
	}
	return rng.Perm(n)[:k]
}

func columnIndex(cov *sample.Covariates) map[string]int {
	idx := make(map[string]int, len(cov.Names))
	for i, name := range cov.Names {
		idx[name] = i
	}
	return idx
}
