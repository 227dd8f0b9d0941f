package ports

import (
	"context"

	"gocre/domain/sample"
)

// TreeNode is one node of a fitted threshold tree, exposed structurally so
// rule extraction can walk root-to-node paths. Left holds rows with
// value <= Threshold, Right the rest.
type TreeNode struct {
	Var        string
	Threshold  float64
	Left       *TreeNode
	Right      *TreeNode
	Prediction float64
}

// IsLeaf reports whether the node has no split
func (n *TreeNode) IsLeaf() bool {
	return n.Left == nil && n.Right == nil
}

// EnsembleSpec shapes a tree-ensemble fit.
type EnsembleSpec struct {
	Trees    int
	NodeSize int
	MaxNodes int
	MaxDepth int
	Replace  bool
}

// RuleLearnerPort fits tree ensembles over (covariates, target) pairs and
// returns their structure. The pipeline extracts candidate rules from the
// returned trees; it never interprets predictions.
type RuleLearnerPort interface {
	// FitBagged fits randomized trees on bootstrap resamples.
	FitBagged(ctx context.Context, cov *sample.Covariates, target []float64, spec EnsembleSpec, seed int64) ([]*TreeNode, error)

	// FitBoosted fits a gradient-boosted sequence of shallow trees.
	FitBoosted(ctx context.Context, cov *sample.Covariates, target []float64, spec EnsembleSpec, seed int64) ([]*TreeNode, error)
}

// RegressionModel predicts a numeric response for new covariate rows.
type RegressionModel interface {
	Predict(cov *sample.Covariates) ([]float64, error)
}

// RegressorPort fits a numeric response surface. Effect estimators use it
// for their outcome models.
type RegressorPort interface {
	FitRegressor(ctx context.Context, cov *sample.Covariates, target []float64, seed int64) (RegressionModel, error)
}
