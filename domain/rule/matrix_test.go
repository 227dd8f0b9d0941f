package rule

import (
	"testing"

	"gocre/domain/core"
	"gocre/domain/sample"
)

func matrixFixture(t *testing.T) (*sample.Covariates, *Set) {
	t.Helper()
	cov, err := sample.NewCovariates(
		[]string{"x1", "x2"},
		[][]float64{
			{0, 1, 1, 0},
			{1, 0, 1, 0},
		},
	)
	if err != nil {
		t.Fatalf("NewCovariates failed: %v", err)
	}
	set := NewSet(
		MustNew(Condition{Var: "x1", Op: OpGT, Threshold: 0.5}),
		MustNew(
			Condition{Var: "x1", Op: OpGT, Threshold: 0.5},
			Condition{Var: "x2", Op: OpLTE, Threshold: 0.5},
		),
	)
	return cov, set
}

// TestBuildMatrixEvaluation tests row-wise conjunction evaluation
func TestBuildMatrixEvaluation(t *testing.T) {
	cov, set := matrixFixture(t)

	m, err := BuildMatrix(cov, set)
	if err != nil {
		t.Fatalf("BuildMatrix failed: %v", err)
	}
	if m.RowCount() != 4 || m.ColumnCount() != 2 {
		t.Fatalf("Got %dx%d matrix, want 4x2", m.RowCount(), m.ColumnCount())
	}

	// x1>0.5 holds for rows 1 and 2.
	want0 := []float64{0, 1, 1, 0}
	// x1>0.5 & x2<=0.5 holds for row 1 only.
	want1 := []float64{0, 1, 0, 0}
	for i := 0; i < 4; i++ {
		if m.Column(0)[i] != want0[i] {
			t.Errorf("Column 0 row %d = %v, want %v", i, m.Column(0)[i], want0[i])
		}
		if m.Column(1)[i] != want1[i] {
			t.Errorf("Column 1 row %d = %v, want %v", i, m.Column(1)[i], want1[i])
		}
	}

	if got := m.Support(0); got != 0.5 {
		t.Errorf("Support(0) = %v, want 0.5", got)
	}
	if got := m.Support(1); got != 0.25 {
		t.Errorf("Support(1) = %v, want 0.25", got)
	}
}

// TestBuildMatrixIdempotent tests that rebuilding yields an identical matrix
func TestBuildMatrixIdempotent(t *testing.T) {
	cov, set := matrixFixture(t)

	first, err := BuildMatrix(cov, set)
	if err != nil {
		t.Fatalf("BuildMatrix failed: %v", err)
	}
	second, err := BuildMatrix(cov, set)
	if err != nil {
		t.Fatalf("BuildMatrix failed: %v", err)
	}

	if first.ColumnCount() != second.ColumnCount() {
		t.Fatalf("Column counts differ: %d vs %d", first.ColumnCount(), second.ColumnCount())
	}
	for j := 0; j < first.ColumnCount(); j++ {
		if first.Keys[j] != second.Keys[j] {
			t.Errorf("Column %d key differs", j)
		}
		for i := 0; i < first.RowCount(); i++ {
			if first.Column(j)[i] != second.Column(j)[i] {
				t.Errorf("Cell (%d,%d) differs between builds", i, j)
			}
		}
	}
}

// TestBuildMatrixUnknownCovariate tests the unknown-name edge case
func TestBuildMatrixUnknownCovariate(t *testing.T) {
	cov, _ := matrixFixture(t)
	set := NewSet(MustNew(Condition{Var: "x99", Op: OpGT, Threshold: 0.5}))

	_, err := BuildMatrix(cov, set)
	if err == nil {
		t.Fatal("Expected error for unknown covariate, got none")
	}
	if !core.IsInvalidInputError(err) {
		t.Errorf("Expected invalid input error, got %v", err)
	}
}

// TestBuildMatrixEmptySet tests the empty-set short circuit
func TestBuildMatrixEmptySet(t *testing.T) {
	cov, _ := matrixFixture(t)

	m, err := BuildMatrix(cov, NewSet())
	if err != nil {
		t.Fatalf("BuildMatrix failed: %v", err)
	}
	if m.ColumnCount() != 0 {
		t.Errorf("Expected 0 columns for empty set, got %d", m.ColumnCount())
	}
	if m.RowCount() != 4 {
		t.Errorf("Row count should still reflect the table, got %d", m.RowCount())
	}
}

// TestMatrixKeep tests column subsetting
func TestMatrixKeep(t *testing.T) {
	cov, set := matrixFixture(t)
	m, _ := BuildMatrix(cov, set)

	kept := m.Keep([]int{1})
	if kept.ColumnCount() != 1 {
		t.Fatalf("Expected 1 column, got %d", kept.ColumnCount())
	}
	if kept.Keys[0] != m.Keys[1] {
		t.Error("Keep selected the wrong column")
	}
	if err := kept.Validate(); err != nil {
		t.Errorf("Kept matrix failed validation: %v", err)
	}
}
