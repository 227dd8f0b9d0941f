package estimators

import (
	"context"

	"gocre/domain/core"
	"gocre/domain/params"
	"gocre/domain/sample"
	"gocre/ports"
)

// TLearner fits one outcome surface per treatment arm and differences the
// two predictions.
type TLearner struct {
	Outcome ports.RegressorPort
}

func (t *TLearner) Method() string { return params.MethodTLearner }

func (t *TLearner) EstimateITE(ctx context.Context, obs *sample.Observations, seed int64) ([]float64, error) {
	if err := checkObservations(t.Method(), obs); err != nil {
		return nil, err
	}

	treated, control := armRows(obs)
	mu1, err := t.armSurface(ctx, obs, treated, subSeed(seed, "tlearner/treated"))
	if err != nil {
		return nil, err
	}
	mu0, err := t.armSurface(ctx, obs, control, subSeed(seed, "tlearner/control"))
	if err != nil {
		return nil, err
	}

	ite := make([]float64, obs.RowCount())
	for i := range ite {
		ite[i] = mu1[i] - mu0[i]
	}
	return ite, nil
}

func (t *TLearner) armSurface(ctx context.Context, obs *sample.Observations, rows []int, seed int64) ([]float64, error) {
	arm := obs.Subset(rows)
	model, err := t.Outcome.FitRegressor(ctx, arm.Covariates, arm.Outcome, seed)
	if err != nil {
		return nil, core.NewEstimationError(t.Method(), err)
	}
	preds, err := model.Predict(obs.Covariates)
	if err != nil {
		return nil, core.NewEstimationError(t.Method(), err)
	}
	return preds, nil
}
