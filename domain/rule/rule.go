package rule

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gocre/domain/core"
)

// Op is a threshold comparison operator. Decision rules use half-open
// threshold conditions only, so two operators cover every tree split.
type Op string

const (
	OpLTE Op = "<="
	OpGT  Op = ">"
)

// Condition is a single covariate threshold test.
type Condition struct {
	Var       string  `json:"var"`
	Op        Op      `json:"op"`
	Threshold float64 `json:"threshold"`
}

// Holds evaluates the condition against a covariate value
func (c Condition) Holds(v float64) bool {
	if c.Op == OpLTE {
		return v <= c.Threshold
	}
	return v > c.Threshold
}

// String renders the condition in canonical text form, e.g. "x1<=0.5"
func (c Condition) String() string {
	return c.Var + string(c.Op) + strconv.FormatFloat(c.Threshold, 'g', -1, 64)
}

// Rule is a conjunction of threshold conditions over covariates. Conditions
// are held in canonical order (variable, operator, threshold) and conditions
// on the same variable with the same operator are merged to the binding one,
// so logically equal rules compare equal by Key.
type Rule struct {
	Conditions []Condition `json:"conditions"`
}

// New builds a canonical rule from one or more conditions.
func New(conds ...Condition) (Rule, error) {
	if len(conds) == 0 {
		return Rule{}, core.NewInvalidInputError("rule", "at least one condition is required")
	}
	for _, c := range conds {
		if strings.TrimSpace(c.Var) == "" {
			return Rule{}, core.NewInvalidInputError("rule", "condition has empty variable name")
		}
		if c.Op != OpLTE && c.Op != OpGT {
			return Rule{}, core.NewInvalidInputError("rule",
				fmt.Sprintf("unsupported operator %q", c.Op))
		}
		if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) {
			return Rule{}, core.NewInvalidInputError("rule",
				fmt.Sprintf("threshold for %s is not finite", c.Var))
		}
	}

	merged := mergeConditions(conds)
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Var != merged[j].Var {
			return merged[i].Var < merged[j].Var
		}
		if merged[i].Op != merged[j].Op {
			return merged[i].Op < merged[j].Op
		}
		return merged[i].Threshold < merged[j].Threshold
	})
	return Rule{Conditions: merged}, nil
}

// MustNew builds a rule and panics on invalid conditions. Test helper.
func MustNew(conds ...Condition) Rule {
	r, err := New(conds...)
	if err != nil {
		panic(err)
	}
	return r
}

// mergeConditions collapses same-variable same-operator conditions to the
// binding one: the smallest threshold for <=, the largest for >.
func mergeConditions(conds []Condition) []Condition {
	type key struct {
		v  string
		op Op
	}
	binding := make(map[key]float64, len(conds))
	order := make([]key, 0, len(conds))
	for _, c := range conds {
		k := key{c.Var, c.Op}
		cur, seen := binding[k]
		if !seen {
			binding[k] = c.Threshold
			order = append(order, k)
			continue
		}
		if c.Op == OpLTE && c.Threshold < cur {
			binding[k] = c.Threshold
		}
		if c.Op == OpGT && c.Threshold > cur {
			binding[k] = c.Threshold
		}
	}
	out := make([]Condition, 0, len(order))
	for _, k := range order {
		out = append(out, Condition{Var: k.v, Op: k.op, Threshold: binding[k]})
	}
	return out
}

// Len returns the number of conditions
func (r Rule) Len() int {
	return len(r.Conditions)
}

// Key returns the canonical identity of the rule. Equal keys mean equal rules.
func (r Rule) Key() string {
	return r.String()
}

// String renders the rule in canonical text form, e.g. "x1>0.5 & x2<=0.3"
func (r Rule) String() string {
	parts := make([]string, len(r.Conditions))
	for i, c := range r.Conditions {
		parts[i] = c.String()
	}
	return strings.Join(parts, " & ")
}

// Vars returns the distinct covariate names the rule tests, in condition order
func (r Rule) Vars() []string {
	seen := make(map[string]bool, len(r.Conditions))
	vars := make([]string, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		if !seen[c.Var] {
			seen[c.Var] = true
			vars = append(vars, c.Var)
		}
	}
	return vars
}

// Parse is the inverse of String: it reads "x1>0.5 & x2<=0.3" back into a
// canonical rule.
func Parse(s string) (Rule, error) {
	if strings.TrimSpace(s) == "" {
		return Rule{}, core.NewInvalidInputError("rule", "empty rule text")
	}
	parts := strings.Split(s, "&")
	conds := make([]Condition, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		cond, err := parseCondition(part)
		if err != nil {
			return Rule{}, err
		}
		conds = append(conds, cond)
	}
	return New(conds...)
}

func parseCondition(s string) (Condition, error) {
	var op Op
	var idx int
	switch {
	case strings.Contains(s, "<="):
		op = OpLTE
		idx = strings.Index(s, "<=")
	case strings.Contains(s, ">="), strings.Contains(s, "=="), strings.Contains(s, "<"):
		return Condition{}, core.NewInvalidInputError("rule",
			fmt.Sprintf("unsupported operator in condition %q", s))
	case strings.Contains(s, ">"):
		op = OpGT
		idx = strings.Index(s, ">")
	default:
		return Condition{}, core.NewInvalidInputError("rule",
			fmt.Sprintf("no operator in condition %q", s))
	}

	name := strings.TrimSpace(s[:idx])
	rest := strings.TrimSpace(s[idx+len(op):])
	if name == "" {
		return Condition{}, core.NewInvalidInputError("rule",
			fmt.Sprintf("missing variable in condition %q", s))
	}
	threshold, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return Condition{}, core.NewInvalidInputError("rule",
			fmt.Sprintf("bad threshold in condition %q", s))
	}
	return Condition{Var: name, Op: op, Threshold: threshold}, nil
}
