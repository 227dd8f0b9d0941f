package rule

import (
	"testing"

	"gocre/domain/core"
)

// TestCanonicalization tests that condition order never changes rule identity
func TestCanonicalization(t *testing.T) {
	a := MustNew(
		Condition{Var: "x2", Op: OpLTE, Threshold: 0.5},
		Condition{Var: "x1", Op: OpGT, Threshold: 0.5},
	)
	b := MustNew(
		Condition{Var: "x1", Op: OpGT, Threshold: 0.5},
		Condition{Var: "x2", Op: OpLTE, Threshold: 0.5},
	)

	if a.Key() != b.Key() {
		t.Errorf("Permuted conditions produced different keys: %q vs %q", a.Key(), b.Key())
	}
	if a.String() != "x1>0.5 & x2<=0.5" {
		t.Errorf("Unexpected canonical rendering: %q", a.String())
	}
}

// TestConditionMerge tests that same-variable same-operator conditions
// collapse to the binding threshold
func TestConditionMerge(t *testing.T) {
	tests := []struct {
		name     string
		conds    []Condition
		expected string
	}{
		{
			"lte keeps smallest",
			[]Condition{{Var: "x1", Op: OpLTE, Threshold: 0.8}, {Var: "x1", Op: OpLTE, Threshold: 0.3}},
			"x1<=0.3",
		},
		{
			"gt keeps largest",
			[]Condition{{Var: "x1", Op: OpGT, Threshold: 0.2}, {Var: "x1", Op: OpGT, Threshold: 0.7}},
			"x1>0.7",
		},
		{
			"opposite operators both kept",
			[]Condition{{Var: "x1", Op: OpGT, Threshold: 0.2}, {Var: "x1", Op: OpLTE, Threshold: 0.7}},
			"x1<=0.7 & x1>0.2",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := MustNew(test.conds...)
			if r.String() != test.expected {
				t.Errorf("Got %q, want %q", r.String(), test.expected)
			}
		})
	}
}

// TestNewValidation tests condition validation
func TestNewValidation(t *testing.T) {
	tests := []struct {
		name  string
		conds []Condition
	}{
		{"no conditions", nil},
		{"empty var", []Condition{{Var: " ", Op: OpGT, Threshold: 1}}},
		{"bad operator", []Condition{{Var: "x1", Op: Op(">="), Threshold: 1}}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := New(test.conds...)
			if err == nil {
				t.Error("Expected error, got none")
			}
			if !core.IsInvalidInputError(err) {
				t.Errorf("Expected invalid input error, got %v", err)
			}
		})
	}
}

// TestParseRoundTrip tests that Parse inverts String
func TestParseRoundTrip(t *testing.T) {
	texts := []string{
		"x1>0.5",
		"x1>0.5 & x2<=0.5",
		"age<=41.5 & income>32000 & x9>0.1",
	}

	for _, text := range texts {
		r, err := Parse(text)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", text, err)
		}
		if r.String() != text {
			t.Errorf("Round trip changed %q to %q", text, r.String())
		}
	}
}

// TestParseRejectsBadInput tests operator and threshold validation in Parse
func TestParseRejectsBadInput(t *testing.T) {
	for _, text := range []string{"", "x1", "x1>=0.5", "x1<0.5", "x1==1", "x1>abc", ">0.5"} {
		if _, err := Parse(text); err == nil {
			t.Errorf("Parse(%q) should fail", text)
		}
	}
}

// TestSetDeduplication tests that sets are deduplicated by canonical key
func TestSetDeduplication(t *testing.T) {
	r1 := MustNew(
		Condition{Var: "x1", Op: OpGT, Threshold: 0.5},
		Condition{Var: "x2", Op: OpLTE, Threshold: 0.5},
	)
	r2 := MustNew(
		Condition{Var: "x2", Op: OpLTE, Threshold: 0.5},
		Condition{Var: "x1", Op: OpGT, Threshold: 0.5},
	)
	r3 := MustNew(Condition{Var: "x3", Op: OpGT, Threshold: 1})

	s := NewSet(r1, r2, r3)
	if s.Len() != 2 {
		t.Fatalf("Expected 2 distinct rules, got %d", s.Len())
	}
	if !s.Contains(r2) {
		t.Error("Set should contain the canonical form of r2")
	}
	if s.At(0).Key() != r1.Key() {
		t.Error("Generation order not preserved")
	}
}

// TestSetKeep tests order-preserving filtering
func TestSetKeep(t *testing.T) {
	rules := []Rule{
		MustNew(Condition{Var: "a", Op: OpGT, Threshold: 1}),
		MustNew(Condition{Var: "b", Op: OpGT, Threshold: 1}),
		MustNew(Condition{Var: "c", Op: OpGT, Threshold: 1}),
	}
	s := NewSet(rules...)

	kept := s.Keep([]int{0, 2})
	if kept.Len() != 2 {
		t.Fatalf("Expected 2 rules, got %d", kept.Len())
	}
	if kept.At(0).Key() != rules[0].Key() || kept.At(1).Key() != rules[2].Key() {
		t.Error("Keep changed relative order")
	}
}
