package forest

import (
	"context"
	"fmt"

	"gocre/domain/core"
	"gocre/domain/sample"
	"gocre/ports"
)

// Regressor fits a bagged-forest response surface. It implements
// ports.RegressorPort for the effect estimators' outcome models, which want
// deeper trees than rule discovery does.
type Regressor struct {
	Trees    int
	NodeSize int
	MaxNodes int
	MaxDepth int

	learner *Learner
}

// NewRegressor creates a regressor with outcome-model defaults.
func NewRegressor() *Regressor {
	return &Regressor{
		Trees:    50,
		NodeSize: 5,
		MaxNodes: 64,
		MaxDepth: 8,
		learner:  NewLearner(),
	}
}

// FitRegressor fits the forest and returns a prediction model.
func (r *Regressor) FitRegressor(ctx context.Context, cov *sample.Covariates, target []float64, seed int64) (ports.RegressionModel, error) {
	if r.Trees < 1 {
		return nil, core.NewInvalidInputError("trees", "regressor needs at least one tree")
	}
	spec := ports.EnsembleSpec{
		Trees:    r.Trees,
		NodeSize: r.NodeSize,
		MaxNodes: r.MaxNodes,
		MaxDepth: r.MaxDepth,
		Replace:  true,
	}
	trees, err := r.learner.FitBagged(ctx, cov, target, spec, seed)
	if err != nil {
		return nil, err
	}

	vars := make(map[string]bool)
	for _, t := range trees {
		collectVars(t, vars)
	}
	return &forestModel{trees: trees, vars: vars}, nil
}

// forestModel averages per-tree predictions.
type forestModel struct {
	trees []*ports.TreeNode
	vars  map[string]bool
}

func (m *forestModel) Predict(cov *sample.Covariates) ([]float64, error) {
	if cov == nil {
		return nil, core.NewInvalidInputError("covariates", "nil covariate table")
	}
	for v := range m.vars {
		if _, ok := cov.ColumnIndex(v); !ok {
			return nil, core.NewInvalidInputError("covariates",
				fmt.Sprintf("model split variable %q missing from table", v))
		}
	}

	colIndex := columnIndex(cov)
	n := cov.RowCount()
	preds := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for _, t := range m.trees {
			sum += predictRow(t, cov, colIndex, i)
		}
		preds[i] = sum / float64(len(m.trees))
	}
	return preds, nil
}

func collectVars(node *ports.TreeNode, vars map[string]bool) {
	if node == nil || node.IsLeaf() {
		return
	}
	vars[node.Var] = true
	collectVars(node.Left, vars)
	collectVars(node.Right, vars)
}
