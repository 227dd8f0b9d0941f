package ports

import (
	"context"

	"gocre/domain/sample"
)

// ITEEstimatorPort estimates unit-level treatment effects from an
// observation set. Implementations are external collaborators; the pipeline
// depends only on this contract and never branches on method internals.
type ITEEstimatorPort interface {
	// Method returns the selector this estimator answers to (e.g. "aipw").
	Method() string

	// EstimateITE returns one effect estimate per observation row, in row
	// order. The seed makes any internal resampling reproducible.
	EstimateITE(ctx context.Context, obs *sample.Observations, seed int64) ([]float64, error)
}

// EstimatorRegistryPort resolves method selectors to estimator
// implementations. Unknown selectors fail with an invalid input error.
type EstimatorRegistryPort interface {
	Estimator(method string) (ITEEstimatorPort, error)
	Methods() []string
}
