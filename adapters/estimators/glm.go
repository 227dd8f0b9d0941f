package estimators

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"gocre/domain/sample"
)

const (
	irlsMaxIter   = 25
	irlsTolerance = 1e-8

	// Fitted propensities are clipped away from the boundaries before any
	// inverse weighting.
	propensityFloor = 0.01
	propensityCeil  = 0.99

	// Linear predictors are clamped before exponentiation.
	linkClamp = 30
)

var errSingularFit = errors.New("singular weighted least squares system")

// designMatrix lays the covariates out row-major behind a leading intercept.
func designMatrix(cov *sample.Covariates) *mat.Dense {
	n, p := cov.RowCount(), cov.ColumnCount()
	x := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
	}
	for j, col := range cov.Cols {
		for i, v := range col {
			x.Set(i, j+1, v)
		}
	}
	return x
}

// fitLogistic estimates Bernoulli regression coefficients by iteratively
// reweighted least squares.
func fitLogistic(x *mat.Dense, y []float64) ([]float64, error) {
	n, p := x.Dims()
	beta := make([]float64, p)
	w := make([]float64, n)
	z := make([]float64, n)

	for iter := 0; iter < irlsMaxIter; iter++ {
		eta := linearPredictor(x, beta, nil)
		for i := range eta {
			mu := sigmoid(eta[i])
			wi := mu * (1 - mu)
			if wi < 1e-6 {
				wi = 1e-6
			}
			w[i] = wi
			z[i] = eta[i] + (y[i]-mu)/wi
		}
		next, err := solveWLS(x, z, w)
		if err != nil {
			return nil, err
		}
		done := maxAbsDiff(beta, next) < irlsTolerance
		beta = next
		if done {
			break
		}
	}
	return beta, nil
}

// fitPoisson estimates log-link Poisson coefficients. The offset enters the
// linear predictor with a fixed unit coefficient; pass nil for none.
func fitPoisson(x *mat.Dense, y, offset []float64) ([]float64, error) {
	n, p := x.Dims()
	beta := make([]float64, p)
	w := make([]float64, n)
	z := make([]float64, n)

	for iter := 0; iter < irlsMaxIter; iter++ {
		eta := linearPredictor(x, beta, offset)
		for i := range eta {
			mu := math.Exp(clamp(eta[i]))
			if mu < 1e-6 {
				mu = 1e-6
			}
			w[i] = mu
			z[i] = eta[i] + (y[i]-mu)/mu
			if offset != nil {
				z[i] -= offset[i]
			}
		}
		next, err := solveWLS(x, z, w)
		if err != nil {
			return nil, err
		}
		done := maxAbsDiff(beta, next) < irlsTolerance
		beta = next
		if done {
			break
		}
	}
	return beta, nil
}

// predictProbability returns clipped logistic fitted values.
func predictProbability(x *mat.Dense, beta []float64) []float64 {
	eta := linearPredictor(x, beta, nil)
	probs := make([]float64, len(eta))
	for i, e := range eta {
		probs[i] = clipProbability(sigmoid(e))
	}
	return probs
}

// predictRate returns exp(x beta), the Poisson rate per unit of exposure.
func predictRate(x *mat.Dense, beta []float64) []float64 {
	eta := linearPredictor(x, beta, nil)
	rates := make([]float64, len(eta))
	for i, e := range eta {
		rates[i] = math.Exp(clamp(e))
	}
	return rates
}

// solveWLS solves (X'WX) beta = X'Wz for diagonal weights.
func solveWLS(x *mat.Dense, z, w []float64) ([]float64, error) {
	n, p := x.Dims()
	xtwx := mat.NewSymDense(p, nil)
	xtwz := mat.NewVecDense(p, nil)
	for a := 0; a < p; a++ {
		for b := a; b < p; b++ {
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += w[i] * x.At(i, a) * x.At(i, b)
			}
			xtwx.SetSym(a, b, sum)
		}
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += w[i] * x.At(i, a) * z[i]
		}
		xtwz.SetVec(a, sum)
	}

	var chol mat.Cholesky
	if !chol.Factorize(xtwx) {
		return nil, errSingularFit
	}
	sol := mat.NewVecDense(p, nil)
	if err := chol.SolveVecTo(sol, xtwz); err != nil {
		return nil, errSingularFit
	}
	beta := make([]float64, p)
	for a := 0; a < p; a++ {
		beta[a] = sol.AtVec(a)
	}
	return beta, nil
}

func linearPredictor(x *mat.Dense, beta, offset []float64) []float64 {
	n, p := x.Dims()
	eta := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for a := 0; a < p; a++ {
			sum += x.At(i, a) * beta[a]
		}
		if offset != nil {
			sum += offset[i]
		}
		eta[i] = sum
	}
	return eta
}

func sigmoid(eta float64) float64 {
	return 1 / (1 + math.Exp(-clamp(eta)))
}

func clamp(eta float64) float64 {
	if eta > linkClamp {
		return linkClamp
	}
	if eta < -linkClamp {
		return -linkClamp
	}
	return eta
}

func clipProbability(p float64) float64 {
	if p < propensityFloor {
		return propensityFloor
	}
	if p > propensityCeil {
		return propensityCeil
	}
	return p
}

func maxAbsDiff(a, b []float64) float64 {
	maxD := 0.0
	for i := range a {
		if d := math.Abs(a[i] - b[i]); d > maxD {
			maxD = d
		}
	}
	return maxD
}
