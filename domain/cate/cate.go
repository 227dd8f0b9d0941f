package cate

import (
	"fmt"

	"gocre/domain/core"
	"gocre/domain/rule"
	"gocre/domain/sample"
)

// BaselineLabel names the intercept row of a decomposition table.
const BaselineLabel = "(baseline)"

// Row is one line of the effect decomposition: the baseline or a single
// rule with its additive effect estimate and uncertainty.
type Row struct {
	Rule     string  `json:"rule"`
	Estimate float64 `json:"estimate"`
	StdError float64 `json:"std_error"`
	TValue   float64 `json:"t_value"`
	PValue   float64 `json:"p_value"`
	CILower  float64 `json:"ci_lower"`
	CIUpper  float64 `json:"ci_upper"`
}

// Table is the decomposition output: the baseline row first, then one row
// per surviving rule in discovery order.
type Table struct {
	Rows []Row `json:"rows"`
}

// Baseline returns the intercept row
func (t *Table) Baseline() Row {
	return t.Rows[0]
}

// RuleRows returns the per-rule rows, excluding the baseline
func (t *Table) RuleRows() []Row {
	if len(t.Rows) <= 1 {
		return nil
	}
	return t.Rows[1:]
}

// Model is the fitted additive decomposition: a baseline effect plus one
// coefficient per surviving rule. It predicts unit-level effects for any
// covariate table carrying the rules' variables.
type Model struct {
	Intercept    float64     `json:"intercept"`
	Rules        []rule.Rule `json:"rules"`
	Coefficients []float64   `json:"coefficients"`
}

// Validate ensures rules and coefficients align
func (m *Model) Validate() error {
	if m == nil {
		return core.NewInvalidInputError("model", "nil model")
	}
	if len(m.Rules) != len(m.Coefficients) {
		return core.NewInvalidInputError("model",
			fmt.Sprintf("%d rules for %d coefficients", len(m.Rules), len(m.Coefficients)))
	}
	return nil
}

// Predict evaluates the model against a prebuilt indicator matrix whose
// columns align with the model's rules. With no rules the prediction is the
// constant baseline.
func (m *Model) Predict(matrix *rule.Matrix) ([]float64, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := matrix.Validate(); err != nil {
		return nil, err
	}
	if matrix.ColumnCount() != len(m.Rules) {
		return nil, core.NewInvalidInputError("rule_matrix",
			fmt.Sprintf("%d columns for %d model rules", matrix.ColumnCount(), len(m.Rules)))
	}
	for j, r := range m.Rules {
		if matrix.Keys[j] != r.Key() {
			return nil, core.NewInvalidInputError("rule_matrix",
				fmt.Sprintf("column %d is %q, model expects %q", j, matrix.Keys[j], r.Key()))
		}
	}

	preds := make([]float64, matrix.RowCount())
	for i := range preds {
		preds[i] = m.Intercept
	}
	for j, beta := range m.Coefficients {
		col := matrix.Column(j)
		for i, v := range col {
			preds[i] += beta * v
		}
	}
	return preds, nil
}

// PredictCovariates builds the indicator matrix for a covariate table and
// predicts unit-level effects.
func (m *Model) PredictCovariates(cov *sample.Covariates) ([]float64, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	matrix, err := rule.BuildMatrix(cov, rule.NewSet(m.Rules...))
	if err != nil {
		return nil, err
	}
	return m.Predict(matrix)
}
