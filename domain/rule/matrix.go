package rule

import (
	"fmt"

	"gocre/domain/core"
	"gocre/domain/sample"
)

// Matrix is the rule indicator matrix: one 0/1 column per rule, one row per
// observation. It is a pure projection of a covariate table through a rule
// set and is always rebuilt, never persisted.
type Matrix struct {
	Rules []Rule
	Keys  []string
	Cols  [][]float64
	Rows  int
}

// BuildMatrix evaluates every rule in the set against the covariate table.
// A cell is 1 when every condition of the rule holds for the row. Rules that
// reference unknown covariates are rejected.
func BuildMatrix(cov *sample.Covariates, set *Set) (*Matrix, error) {
	if cov == nil {
		return nil, core.NewInvalidInputError("covariates", "nil covariate table")
	}
	if err := cov.Validate(); err != nil {
		return nil, err
	}

	n := cov.RowCount()
	m := &Matrix{Rows: n}
	if set.IsEmpty() {
		return m, nil
	}

	for _, r := range set.Rules() {
		col := make([]float64, n)
		for i := range col {
			col[i] = 1
		}
		for _, cond := range r.Conditions {
			values, ok := cov.Column(cond.Var)
			if !ok {
				return nil, core.NewInvalidInputError("rule",
					fmt.Sprintf("rule %q references unknown covariate %q", r.Key(), cond.Var))
			}
			for i, v := range values {
				if col[i] == 1 && !cond.Holds(v) {
					col[i] = 0
				}
			}
		}
		m.Rules = append(m.Rules, r)
		m.Keys = append(m.Keys, r.Key())
		m.Cols = append(m.Cols, col)
	}
	return m, nil
}

// RowCount returns the number of observations
func (m *Matrix) RowCount() int {
	return m.Rows
}

// ColumnCount returns the number of rule columns
func (m *Matrix) ColumnCount() int {
	return len(m.Cols)
}

// Column returns the indicator column at position j
func (m *Matrix) Column(j int) []float64 {
	return m.Cols[j]
}

// Support returns the fraction of rows satisfying rule j
func (m *Matrix) Support(j int) float64 {
	if m.Rows == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range m.Cols[j] {
		sum += v
	}
	return sum / float64(m.Rows)
}

// Keep returns a new matrix containing only the columns at the given
// positions, preserving relative order.
func (m *Matrix) Keep(positions []int) *Matrix {
	kept := &Matrix{Rows: m.Rows}
	for _, j := range positions {
		kept.Rules = append(kept.Rules, m.Rules[j])
		kept.Keys = append(kept.Keys, m.Keys[j])
		kept.Cols = append(kept.Cols, m.Cols[j])
	}
	return kept
}

// Validate ensures column lengths agree with the row count
func (m *Matrix) Validate() error {
	if m == nil {
		return core.NewInvalidInputError("rule_matrix", "nil matrix")
	}
	if len(m.Cols) != len(m.Rules) || len(m.Cols) != len(m.Keys) {
		return core.NewInvalidInputError("rule_matrix", "column metadata out of sync")
	}
	for j, col := range m.Cols {
		if len(col) != m.Rows {
			return core.NewInvalidInputError("rule_matrix",
				fmt.Sprintf("column %d has %d rows, expected %d", j, len(col), m.Rows))
		}
	}
	return nil
}
