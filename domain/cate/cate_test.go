package cate

import (
	"testing"

	"gocre/domain/core"
	"gocre/domain/rule"
	"gocre/domain/sample"
)

func modelFixture(t *testing.T) (*Model, *sample.Covariates) {
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
	m := &Model{
		Intercept: 2.0,
		Rules: []rule.Rule{
			rule.MustNew(
				rule.Condition{Var: "x1", Op: rule.OpGT, Threshold: 0.5},
				rule.Condition{Var: "x2", Op: rule.OpLTE, Threshold: 0.5},
			),
		},
		Coefficients: []float64{1.5},
	}
	return m, cov
}

// TestPredictCovariates tests additive prediction through rule indicators
func TestPredictCovariates(t *testing.T) {
	m, cov := modelFixture(t)

	preds, err := m.PredictCovariates(cov)
	if err != nil {
		t.Fatalf("PredictCovariates failed: %v", err)
	}

	// Only row 1 satisfies x1>0.5 & x2<=0.5.
	want := []float64{2.0, 3.5, 2.0, 2.0}
	for i := range want {
		if preds[i] != want[i] {
			t.Errorf("preds[%d] = %v, want %v", i, preds[i], want[i])
		}
	}
}

// TestPredictInterceptOnly tests the degenerate constant prediction
func TestPredictInterceptOnly(t *testing.T) {
	_, cov := modelFixture(t)
	m := &Model{Intercept: -0.25}

	preds, err := m.PredictCovariates(cov)
	if err != nil {
		t.Fatalf("PredictCovariates failed: %v", err)
	}
	for i, p := range preds {
		if p != -0.25 {
			t.Errorf("preds[%d] = %v, want constant intercept", i, p)
		}
	}
}

// TestPredictMisalignedMatrix tests column alignment validation
func TestPredictMisalignedMatrix(t *testing.T) {
	m, cov := modelFixture(t)

	other := rule.NewSet(rule.MustNew(rule.Condition{Var: "x1", Op: rule.OpGT, Threshold: 0.5}))
	matrix, err := rule.BuildMatrix(cov, other)
	if err != nil {
		t.Fatalf("BuildMatrix failed: %v", err)
	}

	_, err = m.Predict(matrix)
	if err == nil {
		t.Fatal("Expected misalignment error, got none")
	}
	if !core.IsInvalidInputError(err) {
		t.Errorf("Expected invalid input error, got %v", err)
	}
}

// TestModelValidate tests rule/coefficient alignment
func TestModelValidate(t *testing.T) {
	m := &Model{
		Rules:        []rule.Rule{rule.MustNew(rule.Condition{Var: "x1", Op: rule.OpGT, Threshold: 0})},
		Coefficients: nil,
	}
	if err := m.Validate(); err == nil {
		t.Error("Expected validation error for misaligned coefficients")
	}
}

// TestTableAccessors tests baseline/rule row split
func TestTableAccessors(t *testing.T) {
	table := &Table{Rows: []Row{
		{Rule: BaselineLabel, Estimate: 1.0},
		{Rule: "x1>0.5", Estimate: 2.0},
	}}

	if table.Baseline().Rule != BaselineLabel {
		t.Error("Baseline row should come first")
	}
	rows := table.RuleRows()
	if len(rows) != 1 || rows[0].Rule != "x1>0.5" {
		t.Error("RuleRows should exclude the baseline")
	}

	empty := &Table{Rows: []Row{{Rule: BaselineLabel}}}
	if empty.RuleRows() != nil {
		t.Error("Intercept-only table should have no rule rows")
	}
}
