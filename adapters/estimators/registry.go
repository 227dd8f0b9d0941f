package estimators

import (
	"fmt"
	"sort"

	"gocre/domain/core"
	"gocre/ports"
)

// Registry maps method selectors to estimator implementations. It
// implements ports.EstimatorRegistryPort.
type Registry struct {
	byMethod map[string]ports.ITEEstimatorPort
}

// NewRegistry wires the supported estimators. Outcome surfaces share the
// given regressor; offsetVar names the exposure column for the Poisson
// estimator and may be empty.
func NewRegistry(outcome ports.RegressorPort, offsetVar string) *Registry {
	r := &Registry{byMethod: make(map[string]ports.ITEEstimatorPort)}
	for _, e := range []ports.ITEEstimatorPort{
		&AIPW{Outcome: outcome},
		&TLearner{Outcome: outcome},
		&SLearner{Outcome: outcome},
		&TPoisson{OffsetVar: offsetVar},
	} {
		r.byMethod[e.Method()] = e
	}
	return r
}

// Estimator resolves a method selector
func (r *Registry) Estimator(method string) (ports.ITEEstimatorPort, error) {
	e, ok := r.byMethod[method]
	if !ok {
		return nil, core.NewInvalidInputError("ite_method",
			fmt.Sprintf("no estimator registered for %q", method))
	}
	return e, nil
}

// Methods returns the registered selectors, sorted
func (r *Registry) Methods() []string {
	methods := make([]string, 0, len(r.byMethod))
	for m := range r.byMethod {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}
