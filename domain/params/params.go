package params

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gocre/domain/core"
)

// Supported effect-estimation method selectors. BART and causal-forest
// estimators are deliberately unsupported selectors.
const (
	MethodAIPW     = "aipw"
	MethodTLearner = "tlearner"
	MethodSLearner = "slearner"
	MethodTPoisson = "tpoisson"
)

var supportedITEMethods = map[string]bool{
	MethodAIPW:     true,
	MethodTLearner: true,
	MethodSLearner: true,
	MethodTPoisson: true,
}

// SupportedITEMethods returns the valid method selectors, sorted.
func SupportedITEMethods() []string {
	methods := make([]string, 0, len(supportedITEMethods))
	for m := range supportedITEMethods {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Method holds the run-level choices: how to split, how to estimate effects
// on each side, which covariates may appear in rules, and the seed. Values
// are validated once at entry and then treated as read-only.
type Method struct {
	RatioDis         float64  `json:"ratio_dis"`
	ITEMethodDis     string   `json:"ite_method_dis"`
	ITEMethodInf     string   `json:"ite_method_inf"`
	InterventionVars []string `json:"intervention_vars,omitempty"`
	Offset           string   `json:"offset,omitempty"`
	Seed             int64    `json:"seed"`
}

// DefaultMethod returns the documented defaults.
func DefaultMethod() Method {
	return Method{
		RatioDis:     0.5,
		ITEMethodDis: MethodAIPW,
		ITEMethodInf: MethodAIPW,
		Seed:         42,
	}
}

// Validate checks ranges and method selectors
func (m Method) Validate() error {
	if m.RatioDis <= 0 || m.RatioDis >= 1 || math.IsNaN(m.RatioDis) {
		return core.NewInvalidInputError("ratio_dis",
			fmt.Sprintf("%v is outside (0, 1)", m.RatioDis))
	}
	for _, pair := range []struct {
		field string
		value string
	}{
		{"ite_method_dis", m.ITEMethodDis},
		{"ite_method_inf", m.ITEMethodInf},
	} {
		if !supportedITEMethods[pair.value] {
			return core.NewInvalidInputError(pair.field,
				fmt.Sprintf("unsupported method %q, expected one of %s",
					pair.value, strings.Join(SupportedITEMethods(), ", ")))
		}
	}
	seen := make(map[string]bool, len(m.InterventionVars))
	for _, v := range m.InterventionVars {
		if strings.TrimSpace(v) == "" {
			return core.NewInvalidInputError("intervention_vars", "empty covariate name")
		}
		if seen[v] {
			return core.NewInvalidInputError("intervention_vars",
				fmt.Sprintf("duplicate covariate %q", v))
		}
		seen[v] = true
	}
	return nil
}

// Hyper holds the discovery and selection knobs: tree-ensemble shape, the
// three filter thresholds, the significance level, and stability-selection
// settings.
type Hyper struct {
	NTreesRF  int  `json:"ntrees_rf"`
	NTreesGBM int  `json:"ntrees_gbm"`
	NodeSize  int  `json:"node_size"`
	MaxNodes  int  `json:"max_nodes"`
	MaxDepth  int  `json:"max_depth"`
	Replace   bool `json:"replace"`

	TDecay  float64 `json:"t_decay"`
	TExt    float64 `json:"t_ext"`
	TCorr   float64 `json:"t_corr"`
	TPvalue float64 `json:"t_pvalue"`

	StabilitySelection bool    `json:"stability_selection"`
	Cutoff             float64 `json:"cutoff"`
	PFER               float64 `json:"pfer"`
	PenaltyRL          float64 `json:"penalty_rl"`
}

// DefaultHyper returns the documented defaults.
func DefaultHyper() Hyper {
	return Hyper{
		NTreesRF:           20,
		NTreesGBM:          20,
		NodeSize:           20,
		MaxNodes:           5,
		MaxDepth:           3,
		Replace:            true,
		TDecay:             0.025,
		TExt:               0.01,
		TCorr:              1,
		TPvalue:            0.05,
		StabilitySelection: true,
		Cutoff:             0.9,
		PFER:               1,
		PenaltyRL:          1,
	}
}

// Validate checks every knob range
func (h Hyper) Validate() error {
	if h.NTreesRF < 0 {
		return core.NewInvalidInputError("ntrees_rf", "must be non-negative")
	}
	if h.NTreesGBM < 0 {
		return core.NewInvalidInputError("ntrees_gbm", "must be non-negative")
	}
	if h.NodeSize < 1 {
		return core.NewInvalidInputError("node_size", "must be at least 1")
	}
	if h.MaxNodes < 2 {
		return core.NewInvalidInputError("max_nodes", "must be at least 2")
	}
	if h.MaxDepth < 1 {
		return core.NewInvalidInputError("max_depth", "must be at least 1")
	}
	if h.TDecay < 0 || h.TDecay >= 1 || math.IsNaN(h.TDecay) {
		return core.NewInvalidInputError("t_decay",
			fmt.Sprintf("%v is outside [0, 1)", h.TDecay))
	}
	if h.TExt <= 0 || h.TExt >= 0.5 || math.IsNaN(h.TExt) {
		return core.NewInvalidInputError("t_ext",
			fmt.Sprintf("%v is outside (0, 0.5)", h.TExt))
	}
	if h.TCorr <= 0 || math.IsNaN(h.TCorr) {
		return core.NewInvalidInputError("t_corr",
			fmt.Sprintf("%v is outside (0, inf)", h.TCorr))
	}
	if h.TPvalue <= 0 || h.TPvalue >= 1 || math.IsNaN(h.TPvalue) {
		return core.NewInvalidInputError("t_pvalue",
			fmt.Sprintf("%v is outside (0, 1)", h.TPvalue))
	}
	if h.Cutoff <= 0.5 || h.Cutoff > 1 || math.IsNaN(h.Cutoff) {
		return core.NewInvalidInputError("cutoff",
			fmt.Sprintf("%v is outside (0.5, 1]", h.Cutoff))
	}
	if h.PFER <= 0 || math.IsNaN(h.PFER) {
		return core.NewInvalidInputError("pfer", "must be positive")
	}
	if h.PenaltyRL < 0 || math.IsNaN(h.PenaltyRL) {
		return core.NewInvalidInputError("penalty_rl", "must be non-negative")
	}
	return nil
}
