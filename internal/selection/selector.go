package selection

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"gocre/domain/core"
	"gocre/domain/params"
	"gocre/domain/rule"
)

const (
	// Number of half-sample resamples in stability selection.
	stabilityResamples = 50

	// Stride between per-resample seeds so resample streams never overlap.
	resampleSeedStride = 1_000_003

	cvFolds = 10
)

// Selector picks the informative subset of candidate rules by regressing
// estimated effects on the rule indicator matrix under an L1 penalty that
// grows with rule length.
type Selector struct {
	workers int64
}

// NewSelector creates a selector with a bounded resampling pool.
func NewSelector() *Selector {
	return &Selector{workers: 4}
}

// Select returns the rules surviving stability selection, or, when stability
// selection is disabled, the rules active at the cross-validated lambda one
// standard error above the minimum. An empty or all-constant matrix selects
// nothing.
func (s *Selector) Select(ctx context.Context, matrix *rule.Matrix, ite []float64, hyper params.Hyper, seed int64) (*rule.Set, error) {
	if err := matrix.Validate(); err != nil {
		return nil, err
	}
	if len(ite) != matrix.RowCount() {
		return nil, core.NewInvalidInputError("ite",
			fmt.Sprintf("%d effects for %d matrix rows", len(ite), matrix.RowCount()))
	}
	if err := hyper.Validate(); err != nil {
		return nil, err
	}
	if matrix.ColumnCount() == 0 {
		return rule.NewSet(), nil
	}

	weights := make([]float64, matrix.ColumnCount())
	for j := range weights {
		weights[j] = math.Pow(float64(matrix.Rules[j].Len()), hyper.PenaltyRL)
	}

	var kept []int
	var err error
	if hyper.StabilitySelection {
		kept, err = s.stabilitySelect(ctx, matrix, ite, weights, hyper, seed)
	} else {
		kept, err = s.cvSelect(ctx, matrix, ite, weights, seed)
	}
	if err != nil {
		return nil, err
	}

	sort.Ints(kept)
	set := rule.NewSet()
	for _, j := range kept {
		set.Add(matrix.Rules[j])
	}
	log.Printf("[Selector] Kept %d of %d candidate rules", set.Len(), matrix.ColumnCount())
	return set, nil
}

// stabilitySelect fits the lasso path on half-sample resamples and keeps the
// rules whose entry among the first q path positions is frequent enough.
// Resamples run concurrently on pre-derived seeds, so scheduling cannot
// change the outcome.
func (s *Selector) stabilitySelect(ctx context.Context, matrix *rule.Matrix, ite []float64, weights []float64, hyper params.Hyper, seed int64) ([]int, error) {
	n := matrix.RowCount()
	half := n / 2
	if half < 2 {
		return nil, nil
	}

	p := matrix.ColumnCount()
	q := int(math.Floor(math.Sqrt(hyper.PFER * (2*hyper.Cutoff - 1) * float64(p))))
	if q < 1 {
		q = 1
	}

	picked := make([][]int, stabilityResamples)
	sem := semaphore.NewWeighted(s.workers)
	var wg sync.WaitGroup
	for b := 0; b < stabilityResamples; b++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer sem.Release(1)
			rng := rand.New(rand.NewSource(seed + int64(idx)*resampleSeedStride))
			rows := rng.Perm(n)[:half]
			sort.Ints(rows)

			prob := buildProblem(matrix, ite, weights, rows)
			if len(prob.cols) == 0 {
				return
			}
			path := prob.fitPath(prob.lambdaPath())
			for _, j := range entryOrder(path, q) {
				picked[idx] = append(picked[idx], prob.colIdx[j])
			}
		}(b)
	}
	wg.Wait()

	counts := make([]int, p)
	for _, cols := range picked {
		for _, j := range cols {
			counts[j]++
		}
	}

	var kept []int
	for j, c := range counts {
		if float64(c)/float64(stabilityResamples) >= hyper.Cutoff {
			kept = append(kept, j)
		}
	}
	return kept, nil
}

// cvSelect fits the lasso path on the full data and picks the sparsest
// lambda whose cross-validated error is within one standard error of the
// minimum.
func (s *Selector) cvSelect(ctx context.Context, matrix *rule.Matrix, ite []float64, weights []float64, seed int64) ([]int, error) {
	full := buildProblem(matrix, ite, weights, nil)
	if len(full.cols) == 0 {
		return nil, nil
	}
	lambdas := full.lambdaPath()
	fullPath := full.fitPath(lambdas)

	n := matrix.RowCount()
	folds := cvFolds
	if n < folds {
		folds = n
	}

	rng := rand.New(rand.NewSource(seed))
	foldOf := make([]int, n)
	for i, r := range rng.Perm(n) {
		foldOf[r] = i % folds
	}

	foldMSE := make([][]float64, folds)
	for f := 0; f < folds; f++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var train, held []int
		for r := 0; r < n; r++ {
			if foldOf[r] == f {
				held = append(held, r)
			} else {
				train = append(train, r)
			}
		}

		prob := buildProblem(matrix, ite, weights, train)
		path := prob.fitPath(lambdas)

		mse := make([]float64, len(lambdas))
		for k, beta := range path {
			sum := 0.0
			for _, r := range held {
				d := ite[r] - prob.predictRow(matrix, r, beta)
				sum += d * d
			}
			mse[k] = sum / float64(len(held))
		}
		foldMSE[f] = mse
	}

	cvm := make([]float64, len(lambdas))
	for k := range cvm {
		for f := 0; f < folds; f++ {
			cvm[k] += foldMSE[f][k]
		}
		cvm[k] /= float64(folds)
	}

	kmin := 0
	for k, m := range cvm {
		if m < cvm[kmin] {
			kmin = k
		}
	}
	variance := 0.0
	for f := 0; f < folds; f++ {
		d := foldMSE[f][kmin] - cvm[kmin]
		variance += d * d
	}
	variance /= float64(folds - 1)
	threshold := cvm[kmin] + math.Sqrt(variance/float64(folds))

	k1se := kmin
	for k := 0; k <= kmin; k++ {
		if cvm[k] <= threshold {
			k1se = k
			break
		}
	}

	var kept []int
	for j, b := range fullPath[k1se] {
		if b != 0 {
			kept = append(kept, full.colIdx[j])
		}
	}
	return kept, nil
}
