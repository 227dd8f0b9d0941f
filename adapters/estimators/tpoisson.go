package estimators

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"gocre/domain/core"
	"gocre/domain/params"
	"gocre/domain/sample"
)

// TPoisson fits per-arm log-link Poisson models for count outcomes and
// differences the fitted rates. The optional offset covariate carries
// exposure: it enters the linear predictor with a fixed unit coefficient
// and is excluded from the rate design, so effects are per unit of
// exposure.
type TPoisson struct {
	OffsetVar string
}

func (t *TPoisson) Method() string { return params.MethodTPoisson }

func (t *TPoisson) EstimateITE(ctx context.Context, obs *sample.Observations, _ int64) ([]float64, error) {
	if err := checkObservations(t.Method(), obs); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, y := range obs.Outcome {
		if y < 0 {
			return nil, core.NewEstimationError(t.Method(),
				fmt.Errorf("outcome row %d is negative, counts required", i))
		}
	}

	offset, design, err := t.splitOffset(obs.Covariates)
	if err != nil {
		return nil, err
	}
	x := designMatrix(design)

	treated, control := armRows(obs)
	rate1, err := t.armRates(x, obs, treated, offset)
	if err != nil {
		return nil, err
	}
	rate0, err := t.armRates(x, obs, control, offset)
	if err != nil {
		return nil, err
	}

	ite := make([]float64, obs.RowCount())
	for i := range ite {
		ite[i] = rate1[i] - rate0[i]
	}
	return ite, nil
}

// splitOffset resolves the exposure column into log-offsets and removes it
// from the rate design.
func (t *TPoisson) splitOffset(cov *sample.Covariates) ([]float64, *sample.Covariates, error) {
	if t.OffsetVar == "" {
		return nil, cov, nil
	}
	exposure, ok := cov.Column(t.OffsetVar)
	if !ok {
		return nil, nil, core.NewEstimationError(t.Method(),
			fmt.Errorf("offset covariate %q not found", t.OffsetVar))
	}
	offset := make([]float64, len(exposure))
	for i, e := range exposure {
		if e <= 0 {
			return nil, nil, core.NewEstimationError(t.Method(),
				fmt.Errorf("offset covariate %q must be positive, row %d is %v", t.OffsetVar, i, e))
		}
		offset[i] = math.Log(e)
	}
	design := cov.Drop(t.OffsetVar)
	if design.ColumnCount() == 0 {
		return nil, nil, core.NewEstimationError(t.Method(),
			errors.New("no covariates left after removing the offset"))
	}
	return offset, design, nil
}

// armRates fits one arm's rate model and predicts per-unit rates for every
// observation.
func (t *TPoisson) armRates(x *mat.Dense, obs *sample.Observations, rows []int, offset []float64) ([]float64, error) {
	y := make([]float64, len(rows))
	for i, r := range rows {
		y[i] = obs.Outcome[r]
	}
	var armOffset []float64
	if offset != nil {
		armOffset = make([]float64, len(rows))
		for i, r := range rows {
			armOffset[i] = offset[r]
		}
	}

	beta, err := fitPoisson(subMatrix(x, rows), y, armOffset)
	if err != nil {
		return nil, core.NewEstimationError(t.Method(), err)
	}
	return predictRate(x, beta), nil
}

func subMatrix(x *mat.Dense, rows []int) *mat.Dense {
	_, p := x.Dims()
	sub := mat.NewDense(len(rows), p, nil)
	for i, r := range rows {
		for j := 0; j < p; j++ {
			sub.Set(i, j, x.At(r, j))
		}
	}
	return sub
}
