package params

import (
	"testing"

	"gocre/domain/core"
)

// TestDefaultsAreValid tests that the documented defaults pass validation
func TestDefaultsAreValid(t *testing.T) {
	if err := DefaultMethod().Validate(); err != nil {
		t.Errorf("Default method params invalid: %v", err)
	}
	if err := DefaultHyper().Validate(); err != nil {
		t.Errorf("Default hyper params invalid: %v", err)
	}
}

// TestMethodValidation tests method selector and ratio validation
func TestMethodValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Method)
	}{
		{"ratio zero", func(m *Method) { m.RatioDis = 0 }},
		{"ratio one", func(m *Method) { m.RatioDis = 1 }},
		{"bart unsupported", func(m *Method) { m.ITEMethodDis = "bart" }},
		{"causal forest unsupported", func(m *Method) { m.ITEMethodInf = "cf" }},
		{"unknown method", func(m *Method) { m.ITEMethodInf = "mystery" }},
		{"empty intervention var", func(m *Method) { m.InterventionVars = []string{"x1", ""} }},
		{"duplicate intervention var", func(m *Method) { m.InterventionVars = []string{"x1", "x1"} }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := DefaultMethod()
			test.mutate(&m)
			err := m.Validate()
			if err == nil {
				t.Fatal("Expected validation error, got none")
			}
			if !core.IsInvalidInputError(err) {
				t.Errorf("Expected invalid input error, got %v", err)
			}
		})
	}

	// Every supported selector passes on both sides.
	for _, method := range SupportedITEMethods() {
		m := DefaultMethod()
		m.ITEMethodDis = method
		m.ITEMethodInf = method
		if err := m.Validate(); err != nil {
			t.Errorf("Supported method %q rejected: %v", method, err)
		}
	}
}

// TestHyperValidation tests threshold ranges
func TestHyperValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Hyper)
	}{
		{"negative rf trees", func(h *Hyper) { h.NTreesRF = -1 }},
		{"negative gbm trees", func(h *Hyper) { h.NTreesGBM = -1 }},
		{"node size zero", func(h *Hyper) { h.NodeSize = 0 }},
		{"max nodes one", func(h *Hyper) { h.MaxNodes = 1 }},
		{"max depth zero", func(h *Hyper) { h.MaxDepth = 0 }},
		{"t_decay negative", func(h *Hyper) { h.TDecay = -0.1 }},
		{"t_ext zero", func(h *Hyper) { h.TExt = 0 }},
		{"t_ext half", func(h *Hyper) { h.TExt = 0.5 }},
		{"t_corr zero", func(h *Hyper) { h.TCorr = 0 }},
		{"t_pvalue one", func(h *Hyper) { h.TPvalue = 1 }},
		{"cutoff half", func(h *Hyper) { h.Cutoff = 0.5 }},
		{"cutoff above one", func(h *Hyper) { h.Cutoff = 1.01 }},
		{"pfer zero", func(h *Hyper) { h.PFER = 0 }},
		{"negative penalty", func(h *Hyper) { h.PenaltyRL = -1 }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			h := DefaultHyper()
			test.mutate(&h)
			err := h.Validate()
			if err == nil {
				t.Fatal("Expected validation error, got none")
			}
			if !core.IsInvalidInputError(err) {
				t.Errorf("Expected invalid input error, got %v", err)
			}
		})
	}

	// Zero trees on both ensembles is allowed; it yields an empty
	// candidate set downstream rather than a validation failure.
	h := DefaultHyper()
	h.NTreesRF = 0
	h.NTreesGBM = 0
	if err := h.Validate(); err != nil {
		t.Errorf("Zero tree counts should validate: %v", err)
	}
}
