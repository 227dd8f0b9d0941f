package estimators

import (
	"context"
	"fmt"

	"gocre/domain/core"
	"gocre/domain/params"
	"gocre/domain/sample"
	"gocre/ports"
)

// SLearner fits a single outcome surface over the covariates plus a
// synthetic treatment column, then contrasts its predictions with the
// column forced to 1 and to 0.
type SLearner struct {
	Outcome ports.RegressorPort
}

func (s *SLearner) Method() string { return params.MethodSLearner }

func (s *SLearner) EstimateITE(ctx context.Context, obs *sample.Observations, seed int64) ([]float64, error) {
	if err := checkObservations(s.Method(), obs); err != nil {
		return nil, err
	}

	name := freeColumnName(obs.Covariates, "treatment")
	augmented, err := withColumn(obs.Covariates, name, treatmentAsFloat(obs))
	if err != nil {
		return nil, core.NewEstimationError(s.Method(), err)
	}

	model, err := s.Outcome.FitRegressor(ctx, augmented, obs.Outcome, subSeed(seed, "slearner/surface"))
	if err != nil {
		return nil, core.NewEstimationError(s.Method(), err)
	}

	n := obs.RowCount()
	ite := make([]float64, n)
	for _, arm := range []float64{1, 0} {
		forced := make([]float64, n)
		for i := range forced {
			forced[i] = arm
		}
		counter, err := withColumn(obs.Covariates, name, forced)
		if err != nil {
			return nil, core.NewEstimationError(s.Method(), err)
		}
		preds, err := model.Predict(counter)
		if err != nil {
			return nil, core.NewEstimationError(s.Method(), err)
		}
		for i, p := range preds {
			if arm == 1 {
				ite[i] += p
			} else {
				ite[i] -= p
			}
		}
	}
	return ite, nil
}

// freeColumnName returns base if unused, otherwise the first base_k that is.
func freeColumnName(cov *sample.Covariates, base string) string {
	if _, taken := cov.ColumnIndex(base); !taken {
		return base
	}
	for k := 1; ; k++ {
		name := fmt.Sprintf("%s_%d", base, k)
		if _, taken := cov.ColumnIndex(name); !taken {
			return name
		}
	}
}

// withColumn returns a copy of the covariates with one extra column.
func withColumn(cov *sample.Covariates, name string, values []float64) (*sample.Covariates, error) {
	names := append(append([]string(nil), cov.Names...), name)
	cols := append(append([][]float64(nil), cov.Cols...), values)
	return sample.NewCovariates(names, cols)
}
