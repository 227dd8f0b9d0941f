package estimators

import (
	"context"

	"gocre/domain/core"
	"gocre/domain/params"
	"gocre/domain/sample"
	"gocre/ports"
)

// AIPW is the doubly robust estimator: per-arm outcome surfaces augmented
// with inverse-propensity-weighted residuals. It stays consistent when
// either the outcome models or the propensity model is misspecified.
type AIPW struct {
	Outcome ports.RegressorPort
}

func (a *AIPW) Method() string { return params.MethodAIPW }

func (a *AIPW) EstimateITE(ctx context.Context, obs *sample.Observations, seed int64) ([]float64, error) {
	if err := checkObservations(a.Method(), obs); err != nil {
		return nil, err
	}

	x := designMatrix(obs.Covariates)
	betaP, err := fitLogistic(x, treatmentAsFloat(obs))
	if err != nil {
		return nil, core.NewEstimationError(a.Method(), err)
	}
	prop := predictProbability(x, betaP)

	treated, control := armRows(obs)
	mu1, err := a.armSurface(ctx, obs, treated, subSeed(seed, "aipw/treated"))
	if err != nil {
		return nil, err
	}
	mu0, err := a.armSurface(ctx, obs, control, subSeed(seed, "aipw/control"))
	if err != nil {
		return nil, err
	}

	ite := make([]float64, obs.RowCount())
	for i := range ite {
		augmented := mu1[i] - mu0[i]
		if obs.Treatment[i] == 1 {
			augmented += (obs.Outcome[i] - mu1[i]) / prop[i]
		} else {
			augmented -= (obs.Outcome[i] - mu0[i]) / (1 - prop[i])
		}
		ite[i] = augmented
	}
	return ite, nil
}

// armSurface fits the outcome model on one arm and predicts it for every
// observation.
func (a *AIPW) armSurface(ctx context.Context, obs *sample.Observations, rows []int, seed int64) ([]float64, error) {
	arm := obs.Subset(rows)
	model, err := a.Outcome.FitRegressor(ctx, arm.Covariates, arm.Outcome, seed)
	if err != nil {
		return nil, core.NewEstimationError(a.Method(), err)
	}
	preds, err := model.Predict(obs.Covariates)
	if err != nil {
		return nil, core.NewEstimationError(a.Method(), err)
	}
	return preds, nil
}
