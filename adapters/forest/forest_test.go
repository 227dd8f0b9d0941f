package forest

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"gocre/domain/core"
	"gocre/domain/sample"
	"gocre/ports"
)

// stepData builds a dataset where y is a clean step on x1, plus a noise
// covariate, so the best first split is unambiguous.
func stepData(t *testing.T, n int, seed int64) (*sample.Covariates, []float64) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	x1 := make([]float64, n)
	x2 := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x1[i] = float64(i % 2)
		x2[i] = rng.Float64()
		y[i] = 10 * x1[i]
	}
	cov, err := sample.NewCovariates([]string{"x1", "x2"}, [][]float64{x1, x2})
	if err != nil {
		t.Fatalf("NewCovariates failed: %v", err)
	}
	return cov, y
}

func treeString(node *ports.TreeNode) string {
	if node.IsLeaf() {
		return fmt.Sprintf("L(%.6f)", node.Prediction)
	}
	return fmt.Sprintf("[%s<=%.6f %s %s]", node.Var, node.Threshold, treeString(node.Left), treeString(node.Right))
}

func countLeaves(node *ports.TreeNode) int {
	if node.IsLeaf() {
		return 1
	}
	return countLeaves(node.Left) + countLeaves(node.Right)
}

func maxTreeDepth(node *ports.TreeNode) int {
	if node.IsLeaf() {
		return 0
	}
	left := maxTreeDepth(node.Left)
	right := maxTreeDepth(node.Right)
	if left > right {
		return left + 1
	}
	return right + 1
}

// TestGrowTreeFindsStepSplit tests that a clean step yields the obvious split
func TestGrowTreeFindsStepSplit(t *testing.T) {
	cov, y := stepData(t, 40, 1)
	rows := make([]int, 40)
	for i := range rows {
		rows[i] = i
	}

	tree := growTree(cov, y, rows, treeParams{nodeSize: 5, maxNodes: 2, maxDepth: 3}, rand.New(rand.NewSource(1)))

	if tree.IsLeaf() {
		t.Fatal("Expected a split, got a leaf")
	}
	if tree.Var != "x1" {
		t.Errorf("Split variable = %q, want x1", tree.Var)
	}
	if tree.Threshold != 0.5 {
		t.Errorf("Threshold = %v, want 0.5", tree.Threshold)
	}
	if tree.Left.Prediction != 0 || tree.Right.Prediction != 10 {
		t.Errorf("Leaf predictions = %v, %v, want 0, 10", tree.Left.Prediction, tree.Right.Prediction)
	}
}

// TestGrowTreeRespectsConstraints tests node and depth caps
func TestGrowTreeRespectsConstraints(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n := 200
	cols := make([][]float64, 4)
	names := make([]string, 4)
	for j := range cols {
		names[j] = fmt.Sprintf("x%d", j+1)
		cols[j] = make([]float64, n)
		for i := range cols[j] {
			cols[j][i] = rng.NormFloat64()
		}
	}
	y := make([]float64, n)
	for i := range y {
		y[i] = cols[0][i] + cols[1][i]*cols[2][i] + rng.NormFloat64()
	}
	cov, _ := sample.NewCovariates(names, cols)
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}

	for _, tc := range []struct{ maxNodes, maxDepth int }{{2, 1}, {5, 3}, {8, 2}} {
		tree := growTree(cov, y, rows, treeParams{nodeSize: 10, maxNodes: tc.maxNodes, maxDepth: tc.maxDepth}, rand.New(rand.NewSource(7)))
		if leaves := countLeaves(tree); leaves > tc.maxNodes {
			t.Errorf("maxNodes=%d: got %d leaves", tc.maxNodes, leaves)
		}
		if depth := maxTreeDepth(tree); depth > tc.maxDepth {
			t.Errorf("maxDepth=%d: got depth %d", tc.maxDepth, depth)
		}
	}
}

// TestGrowTreeNodeSizeBlocksSplit tests the minimum child size constraint
func TestGrowTreeNodeSizeBlocksSplit(t *testing.T) {
	cov, y := stepData(t, 10, 2)
	rows := make([]int, 10)
	for i := range rows {
		rows[i] = i
	}

	tree := growTree(cov, y, rows, treeParams{nodeSize: 6, maxNodes: 5, maxDepth: 3}, rand.New(rand.NewSource(1)))
	if !tree.IsLeaf() {
		t.Error("Split should be blocked when children cannot reach nodeSize")
	}
}

// TestFitBaggedDeterministic tests seed reproducibility across fits
func TestFitBaggedDeterministic(t *testing.T) {
	cov, y := stepData(t, 60, 4)
	spec := ports.EnsembleSpec{Trees: 8, NodeSize: 5, MaxNodes: 4, MaxDepth: 3, Replace: true}
	learner := NewLearner()

	first, err := learner.FitBagged(context.Background(), cov, y, spec, 99)
	if err != nil {
		t.Fatalf("FitBagged failed: %v", err)
	}
	second, err := learner.FitBagged(context.Background(), cov, y, spec, 99)
	if err != nil {
		t.Fatalf("FitBagged failed: %v", err)
	}

	if len(first) != spec.Trees {
		t.Fatalf("Got %d trees, want %d", len(first), spec.Trees)
	}
	for i := range first {
		if treeString(first[i]) != treeString(second[i]) {
			t.Errorf("Tree %d differs across same-seed fits", i)
		}
	}
}

// TestFitBaggedWithoutReplacement tests the 0.632 subsample path
func TestFitBaggedWithoutReplacement(t *testing.T) {
	cov, y := stepData(t, 50, 5)
	spec := ports.EnsembleSpec{Trees: 3, NodeSize: 2, MaxNodes: 4, MaxDepth: 3, Replace: false}

	trees, err := NewLearner().FitBagged(context.Background(), cov, y, spec, 11)
	if err != nil {
		t.Fatalf("FitBagged failed: %v", err)
	}
	// The step is recoverable even from a 0.632 subsample.
	for i, tree := range trees {
		if tree.IsLeaf() {
			t.Errorf("Tree %d found no split on a clean step", i)
		}
	}
}

// TestFitBoostedSequential tests boosted fitting output
func TestFitBoostedSequential(t *testing.T) {
	cov, y := stepData(t, 80, 6)
	spec := ports.EnsembleSpec{Trees: 10, NodeSize: 5, MaxNodes: 4, MaxDepth: 2}

	trees, err := NewLearner().FitBoosted(context.Background(), cov, y, spec, 21)
	if err != nil {
		t.Fatalf("FitBoosted failed: %v", err)
	}
	if len(trees) != spec.Trees {
		t.Fatalf("Got %d trees, want %d", len(trees), spec.Trees)
	}
	if trees[0].IsLeaf() || trees[0].Var != "x1" {
		t.Errorf("First boosted tree should split on the signal variable, got %s", treeString(trees[0]))
	}
}

// TestFitZeroTrees tests the empty-ensemble short circuit
func TestFitZeroTrees(t *testing.T) {
	cov, y := stepData(t, 20, 7)
	spec := ports.EnsembleSpec{Trees: 0, NodeSize: 5, MaxNodes: 4, MaxDepth: 3}

	learner := NewLearner()
	bagged, err := learner.FitBagged(context.Background(), cov, y, spec, 1)
	if err != nil || bagged != nil {
		t.Errorf("Zero bagged trees should return nil, nil; got %v, %v", bagged, err)
	}
	boosted, err := learner.FitBoosted(context.Background(), cov, y, spec, 1)
	if err != nil || boosted != nil {
		t.Errorf("Zero boosted trees should return nil, nil; got %v, %v", boosted, err)
	}
}

// TestFitValidation tests input validation
func TestFitValidation(t *testing.T) {
	cov, y := stepData(t, 20, 8)
	learner := NewLearner()

	_, err := learner.FitBagged(context.Background(), cov, y[:10], ports.EnsembleSpec{Trees: 1, NodeSize: 1, MaxNodes: 2, MaxDepth: 1}, 1)
	if !core.IsInvalidInputError(err) {
		t.Errorf("Expected invalid input for short target, got %v", err)
	}

	_, err = learner.FitBagged(context.Background(), cov, y, ports.EnsembleSpec{Trees: 1, NodeSize: 0, MaxNodes: 2, MaxDepth: 1}, 1)
	if !core.IsInvalidInputError(err) {
		t.Errorf("Expected invalid input for zero node size, got %v", err)
	}
}

// TestRegressorRecoversStep tests end-to-end forest regression
func TestRegressorRecoversStep(t *testing.T) {
	n := 200
	rng := rand.New(rand.NewSource(9))
	x1 := make([]float64, n)
	x2 := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x1[i] = rng.Float64()
		x2[i] = rng.Float64()
		y[i] = 0.0
		if x1[i] > 0.5 {
			y[i] = 5.0
		}
	}
	cov, _ := sample.NewCovariates([]string{"x1", "x2"}, [][]float64{x1, x2})

	model, err := NewRegressor().FitRegressor(context.Background(), cov, y, 33)
	if err != nil {
		t.Fatalf("FitRegressor failed: %v", err)
	}
	preds, err := model.Predict(cov)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	for i := 0; i < n; i++ {
		want := 0.0
		if x1[i] > 0.5 {
			want = 5.0
		}
		// Skip rows near the boundary where bootstrap thresholds wobble.
		if math.Abs(x1[i]-0.5) < 0.05 {
			continue
		}
		if math.Abs(preds[i]-want) > 1.0 {
			t.Fatalf("Prediction %d = %v, want near %v (x1=%v)", i, preds[i], want, x1[i])
		}
	}
}

// TestRegressorPredictMissingVar tests the missing split variable edge
func TestRegressorPredictMissingVar(t *testing.T) {
	cov, y := stepData(t, 40, 10)

	model, err := NewRegressor().FitRegressor(context.Background(), cov, y, 5)
	if err != nil {
		t.Fatalf("FitRegressor failed: %v", err)
	}

	other, _ := sample.NewCovariates([]string{"unrelated"}, [][]float64{make([]float64, 4)})
	_, err = model.Predict(other)
	if err == nil {
		t.Fatal("Expected error for missing split variable")
	}
	if !core.IsInvalidInputError(err) {
		t.Errorf("Expected invalid input error, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing from table") {
		t.Errorf("Error should name the missing variable, got %v", err)
	}
}
