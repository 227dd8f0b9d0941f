package sample

import (
	"fmt"
	"math"

	"gocre/domain/core"
)

// Covariates is the canonical covariate table for all rule and effect
// computation. Columns are named, numeric, and equal length; categorical
// covariates enter pre-encoded as numeric level codes.
type Covariates struct {
	Names []string
	Cols  [][]float64
}

// NewCovariates builds a validated covariate table.
func NewCovariates(names []string, cols [][]float64) (*Covariates, error) {
	c := &Covariates{Names: names, Cols: cols}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate ensures the table is internally consistent
func (c *Covariates) Validate() error {
	if len(c.Names) == 0 {
		return core.NewInvalidInputError("covariates", "at least one covariate is required")
	}
	if len(c.Names) != len(c.Cols) {
		return core.NewInvalidInputError("covariates",
			fmt.Sprintf("%d names for %d columns", len(c.Names), len(c.Cols)))
	}

	seen := make(map[string]bool, len(c.Names))
	for i, name := range c.Names {
		if name == "" {
			return core.NewInvalidInputError("covariates", fmt.Sprintf("column %d has empty name", i))
		}
		if seen[name] {
			return core.NewInvalidInputError("covariates", fmt.Sprintf("duplicate column name %q", name))
		}
		seen[name] = true
	}

	rows := len(c.Cols[0])
	for i, col := range c.Cols {
		if len(col) != rows {
			return core.NewInvalidInputError("covariates",
				fmt.Sprintf("column %q has %d rows, expected %d", c.Names[i], len(col), rows))
		}
		for j, v := range col {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return core.NewInvalidInputError("covariates",
					fmt.Sprintf("column %q row %d is not finite", c.Names[i], j))
			}
		}
	}
	return nil
}

// RowCount returns the number of rows
func (c *Covariates) RowCount() int {
	if len(c.Cols) == 0 {
		return 0
	}
	return len(c.Cols[0])
}

// ColumnCount returns the number of covariates
func (c *Covariates) ColumnCount() int {
	return len(c.Names)
}

// ColumnIndex returns the column position for a covariate name
func (c *Covariates) ColumnIndex(name string) (int, bool) {
	for i, n := range c.Names {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// Column returns the data for a named covariate
func (c *Covariates) Column(name string) ([]float64, bool) {
	idx, ok := c.ColumnIndex(name)
	if !ok {
		return nil, false
	}
	return c.Cols[idx], true
}

// Subset returns a new table containing the given rows, in the given order.
// Indices are not revalidated against duplicates; callers pass partitions.
func (c *Covariates) Subset(rows []int) *Covariates {
	cols := make([][]float64, len(c.Cols))
	for j, col := range c.Cols {
		sub := make([]float64, len(rows))
		for i, r := range rows {
			sub[i] = col[r]
		}
		cols[j] = sub
	}
	names := make([]string, len(c.Names))
	copy(names, c.Names)
	return &Covariates{Names: names, Cols: cols}
}

// Drop returns a new table without the named column. Dropping a column that
// does not exist returns the table unchanged.
func (c *Covariates) Drop(name string) *Covariates {
	idx, ok := c.ColumnIndex(name)
	if !ok {
		return c
	}
	names := make([]string, 0, len(c.Names)-1)
	cols := make([][]float64, 0, len(c.Cols)-1)
	for j := range c.Names {
		if j == idx {
			continue
		}
		names = append(names, c.Names[j])
		cols = append(cols, c.Cols[j])
	}
	return &Covariates{Names: names, Cols: cols}
}

// Observations aligns an outcome vector, a binary treatment vector, the
// covariate table, and an optional caller-supplied effect vector by row.
type Observations struct {
	Outcome    []float64
	Treatment  []int
	Covariates *Covariates
	ITE        []float64 // optional; empty means estimate internally
}

// NewObservations builds a validated observation set.
func NewObservations(outcome []float64, treatment []int, cov *Covariates, ite []float64) (*Observations, error) {
	o := &Observations{Outcome: outcome, Treatment: treatment, Covariates: cov, ITE: ite}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Validate ensures all vectors align and the treatment is strictly binary
func (o *Observations) Validate() error {
	if o.Covariates == nil {
		return core.NewInvalidInputError("covariates", "missing covariate table")
	}
	if err := o.Covariates.Validate(); err != nil {
		return err
	}

	n := o.Covariates.RowCount()
	if n == 0 {
		return core.NewInvalidInputError("observations", "no rows")
	}
	if len(o.Outcome) != n {
		return core.NewInvalidInputError("outcome",
			fmt.Sprintf("%d values for %d covariate rows", len(o.Outcome), n))
	}
	if len(o.Treatment) != n {
		return core.NewInvalidInputError("treatment",
			fmt.Sprintf("%d values for %d covariate rows", len(o.Treatment), n))
	}
	for i, y := range o.Outcome {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return core.NewInvalidInputError("outcome", fmt.Sprintf("row %d is not finite", i))
		}
	}
	for i, z := range o.Treatment {
		if z != 0 && z != 1 {
			return core.NewInvalidInputError("treatment",
				fmt.Sprintf("row %d has value %d, expected 0 or 1", i, z))
		}
	}
	if len(o.ITE) != 0 && len(o.ITE) != n {
		return core.NewInvalidInputError("ite",
			fmt.Sprintf("%d values for %d covariate rows", len(o.ITE), n))
	}
	for i, v := range o.ITE {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return core.NewInvalidInputError("ite", fmt.Sprintf("row %d is not finite", i))
		}
	}
	return nil
}

// RowCount returns the number of observations
func (o *Observations) RowCount() int {
	return len(o.Outcome)
}

// HasITE reports whether a caller-supplied effect vector rides along
func (o *Observations) HasITE() bool {
	return len(o.ITE) > 0
}

// Subset returns a new observation set containing the given rows, in the
// given order. The supplied effect vector, when present, follows the same
// assignment.
func (o *Observations) Subset(rows []int) *Observations {
	out := &Observations{
		Outcome:    make([]float64, len(rows)),
		Treatment:  make([]int, len(rows)),
		Covariates: o.Covariates.Subset(rows),
	}
	for i, r := range rows {
		out.Outcome[i] = o.Outcome[r]
		out.Treatment[i] = o.Treatment[r]
	}
	if o.HasITE() {
		out.ITE = make([]float64, len(rows))
		for i, r := range rows {
			out.ITE[i] = o.ITE[r]
		}
	}
	return out
}

// TreatedCount returns the number of treated rows
func (o *Observations) TreatedCount() int {
	count := 0
	for _, z := range o.Treatment {
		count += z
	}
	return count
}
