// Package estimators provides the built-in unit-level effect estimators:
// doubly robust AIPW, the T- and S-learner regression contrasts, and a
// per-arm Poisson rate model for count outcomes.
package estimators

import (
	"errors"
	"hash/fnv"

	"gocre/domain/core"
	"gocre/domain/sample"
)

// subSeed derives a labeled child seed so internal fits never share a
// random stream.
func subSeed(seed int64, label string) int64 {
	h := fnv.New64a()
	h.Write([]byte(label))
	return seed + int64(h.Sum64()&0x7FFFFFFF)
}

// checkObservations rejects inputs no estimator can work with: invalid
// tables and single-arm treatment assignments.
func checkObservations(method string, obs *sample.Observations) error {
	if obs == nil {
		return core.NewEstimationError(method, errors.New("nil observations"))
	}
	if err := obs.Validate(); err != nil {
		return core.NewEstimationError(method, err)
	}
	treated := obs.TreatedCount()
	if treated == 0 || treated == obs.RowCount() {
		return core.NewEstimationError(method, errors.New("both treatment arms must be populated"))
	}
	return nil
}

// armRows partitions row indices by treatment assignment.
func armRows(obs *sample.Observations) (treated, control []int) {
	for i, t := range obs.Treatment {
		if t == 1 {
			treated = append(treated, i)
		} else {
			control = append(control, i)
		}
	}
	return treated, control
}

func treatmentAsFloat(obs *sample.Observations) []float64 {
	out := make([]float64, len(obs.Treatment))
	for i, t := range obs.Treatment {
		out[i] = float64(t)
	}
	return out
}
