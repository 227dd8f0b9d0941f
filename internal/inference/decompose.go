package inference

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"gocre/domain/cate"
	"gocre/domain/core"
	"gocre/domain/rule"
)

const (
	ciLevel = 0.95

	// Relative residual-norm bound below which an indicator column counts
	// as linearly dependent on the columns before it.
	aliasTolerance = 1e-8
)

// Decompose regresses estimated effects on the selected rule indicators and
// prunes, one at a time, the rules whose coefficients fail the significance
// threshold. The baseline is never pruned. With no rules left the
// decomposition degenerates to the mean effect.
func Decompose(matrix *rule.Matrix, ite []float64, tPvalue float64) (*cate.Model, *cate.Table, error) {
	if err := matrix.Validate(); err != nil {
		return nil, nil, err
	}
	n := matrix.RowCount()
	if len(ite) != n {
		return nil, nil, core.NewInvalidInputError("ite",
			fmt.Sprintf("%d effects for %d matrix rows", len(ite), n))
	}
	if tPvalue <= 0 || tPvalue >= 1 || math.IsNaN(tPvalue) {
		return nil, nil, core.NewInvalidInputError("t_pvalue",
			fmt.Sprintf("%v is outside (0, 1)", tPvalue))
	}
	if n < 2 {
		return nil, nil, core.NewInvalidInputError("ite", "decomposition needs at least 2 rows")
	}

	active := independentColumns(matrix)
	if dropped := matrix.ColumnCount() - len(active); dropped > 0 {
		log.Printf("[Decomposer] Dropped %d aliased rule column(s)", dropped)
	}

	for len(active) > 0 {
		if n-(len(active)+1) < 1 {
			return nil, nil, core.NewInvalidInputError("rule_matrix",
				fmt.Sprintf("%d rows cannot support %d coefficients", n, len(active)+1))
		}
		fit, err := fitOLS(matrix, ite, active)
		if err != nil {
			return nil, nil, err
		}

		worst, worstP := -1, -1.0
		for k := range active {
			if p := fit.p[k+1]; p >= worstP {
				worst, worstP = k, p
			}
		}
		if worstP <= tPvalue {
			return assemble(matrix, active, fit)
		}
		active = append(active[:worst], active[worst+1:]...)
	}

	if matrix.ColumnCount() > 0 {
		log.Printf("[Decomposer] No rule passed p <= %v, reporting mean effect only", tPvalue)
	}
	return interceptOnly(ite)
}

type olsFit struct {
	beta []float64 // intercept first
	se   []float64
	t    []float64
	p    []float64
	df   float64
}

// fitOLS solves the least-squares decomposition for the active columns and
// derives t statistics from the unscaled coefficient covariance.
func fitOLS(matrix *rule.Matrix, ite []float64, active []int) (*olsFit, error) {
	n := matrix.RowCount()
	p := len(active) + 1

	cols := make([][]float64, p)
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	cols[0] = ones
	for k, j := range active {
		cols[k+1] = matrix.Column(j)
	}

	xtx := mat.NewSymDense(p, nil)
	xty := mat.NewVecDense(p, nil)
	for a := 0; a < p; a++ {
		for b := a; b < p; b++ {
			xtx.SetSym(a, b, dot(cols[a], cols[b]))
		}
		xty.SetVec(a, dot(cols[a], ite))
	}

	var chol mat.Cholesky
	if !chol.Factorize(xtx) {
		return nil, core.NewInvalidInputError("rule_matrix", "design is numerically singular")
	}
	beta := mat.NewVecDense(p, nil)
	if err := chol.SolveVecTo(beta, xty); err != nil {
		return nil, core.NewInvalidInputError("rule_matrix", "design is numerically singular")
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, core.NewInvalidInputError("rule_matrix", "design is numerically singular")
	}

	rss := 0.0
	for i := 0; i < n; i++ {
		fitted := 0.0
		for a := 0; a < p; a++ {
			fitted += beta.AtVec(a) * cols[a][i]
		}
		d := ite[i] - fitted
		rss += d * d
	}
	df := float64(n - p)
	sigma2 := rss / df

	fit := &olsFit{
		beta: make([]float64, p),
		se:   make([]float64, p),
		t:    make([]float64, p),
		p:    make([]float64, p),
		df:   df,
	}
	for a := 0; a < p; a++ {
		fit.beta[a] = beta.AtVec(a)
		fit.se[a] = math.Sqrt(sigma2 * inv.At(a, a))
		fit.t[a], fit.p[a] = tStat(fit.beta[a], fit.se[a], df)
	}
	return fit, nil
}

// independentColumns walks the indicator columns in order and keeps each one
// that is not a linear combination of the intercept and the kept columns
// before it. Dropping the later duplicate keeps discovery order meaningful.
func independentColumns(matrix *rule.Matrix) []int {
	n := matrix.RowCount()
	root := make([]float64, n)
	for i := range root {
		root[i] = 1 / math.Sqrt(float64(n))
	}
	basis := [][]float64{root}

	var kept []int
	for j := 0; j < matrix.ColumnCount(); j++ {
		v := append([]float64(nil), matrix.Column(j)...)
		orig := dot(v, v)
		for _, b := range basis {
			proj := dot(v, b)
			for i := range v {
				v[i] -= proj * b[i]
			}
		}
		rest := dot(v, v)
		if orig == 0 || rest/orig <= aliasTolerance {
			continue
		}
		norm := math.Sqrt(rest)
		for i := range v {
			v[i] /= norm
		}
		basis = append(basis, v)
		kept = append(kept, j)
	}
	return kept
}

func assemble(matrix *rule.Matrix, active []int, fit *olsFit) (*cate.Model, *cate.Table, error) {
	tcrit := tCritical(fit.df)

	model := &cate.Model{Intercept: fit.beta[0]}
	table := &cate.Table{Rows: []cate.Row{tableRow(cate.BaselineLabel, 0, fit, tcrit)}}
	for k, j := range active {
		model.Rules = append(model.Rules, matrix.Rules[j])
		model.Coefficients = append(model.Coefficients, fit.beta[k+1])
		table.Rows = append(table.Rows, tableRow(matrix.Keys[j], k+1, fit, tcrit))
	}

	log.Printf("[Decomposer] %d rule(s) retained in the effect decomposition", len(active))
	return model, table, nil
}

func tableRow(label string, a int, fit *olsFit, tcrit float64) cate.Row {
	return cate.Row{
		Rule:     label,
		Estimate: fit.beta[a],
		StdError: fit.se[a],
		TValue:   fit.t[a],
		PValue:   fit.p[a],
		CILower:  fit.beta[a] - tcrit*fit.se[a],
		CIUpper:  fit.beta[a] + tcrit*fit.se[a],
	}
}

// interceptOnly reports the mean effect with its one-sample uncertainty.
func interceptOnly(ite []float64) (*cate.Model, *cate.Table, error) {
	n := len(ite)
	mean := 0.0
	for _, v := range ite {
		mean += v
	}
	mean /= float64(n)

	variance := 0.0
	for _, v := range ite {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n - 1)

	se := math.Sqrt(variance / float64(n))
	df := float64(n - 1)
	tval, pval := tStat(mean, se, df)
	tcrit := tCritical(df)

	model := &cate.Model{Intercept: mean}
	table := &cate.Table{Rows: []cate.Row{{
		Rule:     cate.BaselineLabel,
		Estimate: mean,
		StdError: se,
		TValue:   tval,
		PValue:   pval,
		CILower:  mean - tcrit*se,
		CIUpper:  mean + tcrit*se,
	}}}
	return model, table, nil
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func tStat(estimate, se, df float64) (float64, float64) {
	if se == 0 {
		if estimate == 0 {
			return 0, 1
		}
		return math.Inf(int(math.Copysign(1, estimate))), 0
	}
	t := estimate / se
	st := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return t, 2 * st.CDF(-math.Abs(t))
}

func tCritical(df float64) float64 {
	st := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return st.Quantile(1 - (1-ciLevel)/2)
}
