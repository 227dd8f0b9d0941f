package selection

import (
	"math"
	"sort"

	"gocre/domain/rule"
)

const (
	// Coordinate-descent convergence settings.
	cdTolerance = 1e-7
	cdMaxIter   = 1000

	// Lambda path shape: glmnet-style log-spaced grid.
	pathLength    = 100
	lambdaMinRate = 1e-3
)

// lassoProblem is a standardized L1 design: centered response, centered
// unit-variance columns, per-column penalty weights. It keeps the
// standardization constants so predictions can be made on rows outside the
// fitting subset.
type lassoProblem struct {
	cols   [][]float64 // standardized, problem-local
	y      []float64   // centered
	w      []float64   // penalty weights, problem-local
	n      int
	colIdx []int // problem column -> source matrix column
	means  []float64
	sds    []float64
	yMean  float64
}

// buildProblem standardizes the given rows of every non-degenerate column.
// Columns constant within the row subset carry no signal there and are
// excluded; colIdx maps the survivors back to source matrix positions.
func buildProblem(matrix *rule.Matrix, ite []float64, weights []float64, rows []int) *lassoProblem {
	if rows == nil {
		rows = make([]int, matrix.RowCount())
		for i := range rows {
			rows[i] = i
		}
	}
	n := len(rows)
	p := &lassoProblem{n: n}

	p.yMean = 0
	for _, r := range rows {
		p.yMean += ite[r]
	}
	p.yMean /= float64(n)
	p.y = make([]float64, n)
	for i, r := range rows {
		p.y[i] = ite[r] - p.yMean
	}

	for j := 0; j < matrix.ColumnCount(); j++ {
		src := matrix.Column(j)
		mean := 0.0
		for _, r := range rows {
			mean += src[r]
		}
		mean /= float64(n)

		variance := 0.0
		for _, r := range rows {
			d := src[r] - mean
			variance += d * d
		}
		variance /= float64(n)
		if variance == 0 {
			continue
		}
		sd := math.Sqrt(variance)

		col := make([]float64, n)
		for i, r := range rows {
			col[i] = (src[r] - mean) / sd
		}
		p.cols = append(p.cols, col)
		p.w = append(p.w, weights[j])
		p.colIdx = append(p.colIdx, j)
		p.means = append(p.means, mean)
		p.sds = append(p.sds, sd)
	}
	return p
}

// lambdaPath returns the log-spaced grid from the smallest lambda that
// zeroes every coefficient down to lambdaMinRate of it.
func (p *lassoProblem) lambdaPath() []float64 {
	lambdaMax := 0.0
	for j, col := range p.cols {
		dot := 0.0
		for i, v := range col {
			dot += v * p.y[i]
		}
		candidate := math.Abs(dot) / (float64(p.n) * p.w[j])
		if candidate > lambdaMax {
			lambdaMax = candidate
		}
	}
	if lambdaMax == 0 {
		lambdaMax = 1
	}

	path := make([]float64, pathLength)
	logMax := math.Log(lambdaMax)
	logMin := math.Log(lambdaMax * lambdaMinRate)
	for k := 0; k < pathLength; k++ {
		t := float64(k) / float64(pathLength-1)
		path[k] = math.Exp(logMax + t*(logMin-logMax))
	}
	return path
}

// fitAt runs cyclic coordinate descent at one lambda, warm-starting from
// beta. Soft-threshold updates on unit-variance columns need no line search.
func (p *lassoProblem) fitAt(lambda float64, beta []float64, residual []float64) {
	for iter := 0; iter < cdMaxIter; iter++ {
		maxDelta := 0.0
		for j, col := range p.cols {
			old := beta[j]
			rho := old
			for i, v := range col {
				rho += v * residual[i] / float64(p.n)
			}
			updated := softThreshold(rho, lambda*p.w[j])
			if updated == old {
				continue
			}
			delta := updated - old
			for i, v := range col {
				residual[i] -= v * delta
			}
			beta[j] = updated
			if d := math.Abs(delta); d > maxDelta {
				maxDelta = d
			}
		}
		if maxDelta < cdTolerance {
			return
		}
	}
}

// fitPath fits the whole lambda grid with warm starts and returns the
// coefficient vector at every grid point.
func (p *lassoProblem) fitPath(lambdas []float64) [][]float64 {
	beta := make([]float64, len(p.cols))
	residual := append([]float64(nil), p.y...)

	path := make([][]float64, len(lambdas))
	for k, lambda := range lambdas {
		p.fitAt(lambda, beta, residual)
		path[k] = append([]float64(nil), beta...)
	}
	return path
}

// predictRow evaluates the fitted model on one source-matrix row, undoing
// the standardization.
func (p *lassoProblem) predictRow(matrix *rule.Matrix, row int, beta []float64) float64 {
	pred := p.yMean
	for j, src := range p.colIdx {
		if beta[j] == 0 {
			continue
		}
		pred += beta[j] * (matrix.Column(src)[row] - p.means[j]) / p.sds[j]
	}
	return pred
}

// entryOrder walks the path from the largest lambda down and reports the
// first q problem columns to enter the active set. Columns entering at the
// same grid point rank by coefficient magnitude, ties by index.
func entryOrder(path [][]float64, q int) []int {
	entered := make([]bool, 0)
	if len(path) > 0 {
		entered = make([]bool, len(path[0]))
	}
	order := make([]int, 0, q)

	for _, beta := range path {
		type entry struct {
			j   int
			mag float64
		}
		var fresh []entry
		for j, b := range beta {
			if b != 0 && !entered[j] {
				fresh = append(fresh, entry{j, math.Abs(b)})
			}
		}
		sort.Slice(fresh, func(a, b int) bool {
			if fresh[a].mag != fresh[b].mag {
				return fresh[a].mag > fresh[b].mag
			}
			return fresh[a].j < fresh[b].j
		})
		for _, e := range fresh {
			entered[e.j] = true
			order = append(order, e.j)
			if len(order) == q {
				return order
			}
		}
	}
	return order
}

func softThreshold(z, gamma float64) float64 {
	switch {
	case z > gamma:
		return z - gamma
	case z < -gamma:
		return z + gamma
	default:
		return 0
	}
}
