package discovery

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"gocre/domain/core"
	"gocre/domain/params"
	"gocre/domain/rule"
)

// Funnel counts survivors after each filter stage.
type Funnel struct {
	AfterDecay       int
	AfterSupport     int
	AfterCorrelation int
}

// FilterResult is the output of the full filter pipeline: the surviving
// rules, their indicator matrix, their relevance scores, and the funnel.
type FilterResult struct {
	Set    *rule.Set
	Matrix *rule.Matrix
	Scores []float64
	Funnel Funnel
}

// ApplyFilters runs the three discovery filters in their fixed order:
// variance decay, support extremity, pairwise correlation. An empty rule
// set passes through every stage unchanged.
func ApplyFilters(set *rule.Set, matrix *rule.Matrix, ite []float64, hyper params.Hyper) (*FilterResult, error) {
	kept, scores, err := FilterIrrelevant(matrix, ite, hyper.TDecay)
	if err != nil {
		return nil, err
	}
	set, matrix = set.Keep(kept), matrix.Keep(kept)
	result := &FilterResult{Funnel: Funnel{AfterDecay: set.Len()}}

	kept, err = FilterExtreme(matrix, hyper.TExt)
	if err != nil {
		return nil, err
	}
	set, matrix, scores = set.Keep(kept), matrix.Keep(kept), pick(scores, kept)
	result.Funnel.AfterSupport = set.Len()

	kept, err = FilterCorrelated(matrix, scores, hyper.TCorr)
	if err != nil {
		return nil, err
	}
	set, matrix, scores = set.Keep(kept), matrix.Keep(kept), pick(scores, kept)
	result.Funnel.AfterCorrelation = set.Len()

	result.Set = set
	result.Matrix = matrix
	result.Scores = scores
	return result, nil
}

// FilterIrrelevant scores each rule by the relative drop in effect
// sum-of-squares achieved by splitting on its indicator, and keeps rules
// scoring at least tDecay. Returns surviving column positions and their
// scores, aligned.
func FilterIrrelevant(matrix *rule.Matrix, ite []float64, tDecay float64) ([]int, []float64, error) {
	if err := matrix.Validate(); err != nil {
		return nil, nil, err
	}
	if len(ite) != matrix.RowCount() {
		return nil, nil, core.NewInvalidInputError("ite",
			fmt.Sprintf("%d values for %d matrix rows", len(ite), matrix.RowCount()))
	}
	if tDecay < 0 || tDecay >= 1 || math.IsNaN(tDecay) {
		return nil, nil, core.NewInvalidInputError("t_decay",
			fmt.Sprintf("%v is outside [0, 1)", tDecay))
	}

	sseTotal := sumOfSquares(ite)
	kept := make([]int, 0, matrix.ColumnCount())
	scores := make([]float64, 0, matrix.ColumnCount())
	for j := 0; j < matrix.ColumnCount(); j++ {
		score := decayScore(matrix.Column(j), ite, sseTotal)
		if score < tDecay {
			continue
		}
		kept = append(kept, j)
		scores = append(scores, score)
	}
	return kept, scores, nil
}

// decayScore is (SSE_total - SSE_split) / SSE_total, where SSE_split sums
// squared deviations within the rule's inside and outside groups. A constant
// effect vector or a degenerate indicator scores zero.
func decayScore(indicator, ite []float64, sseTotal float64) float64 {
	if sseTotal == 0 {
		return 0
	}

	var sumIn, sumOut float64
	var nIn, nOut int
	for i, v := range indicator {
		if v == 1 {
			sumIn += ite[i]
			nIn++
		} else {
			sumOut += ite[i]
			nOut++
		}
	}
	if nIn == 0 || nOut == 0 {
		return 0
	}

	meanIn := sumIn / float64(nIn)
	meanOut := sumOut / float64(nOut)
	var sseSplit float64
	for i, v := range indicator {
		if v == 1 {
			sseSplit += (ite[i] - meanIn) * (ite[i] - meanIn)
		} else {
			sseSplit += (ite[i] - meanOut) * (ite[i] - meanOut)
		}
	}
	return (sseTotal - sseSplit) / sseTotal
}

// FilterExtreme keeps rules whose support lies inside [tExt, 1-tExt].
// Supports of exactly 0 or 1 never survive a valid threshold.
func FilterExtreme(matrix *rule.Matrix, tExt float64) ([]int, error) {
	if err := matrix.Validate(); err != nil {
		return nil, err
	}
	if tExt <= 0 || tExt >= 0.5 || math.IsNaN(tExt) {
		return nil, core.NewInvalidInputError("t_ext",
			fmt.Sprintf("%v is outside (0, 0.5)", tExt))
	}

	kept := make([]int, 0, matrix.ColumnCount())
	for j := 0; j < matrix.ColumnCount(); j++ {
		support := matrix.Support(j)
		if support < tExt || support > 1-tExt {
			continue
		}
		kept = append(kept, j)
	}
	return kept, nil
}

// FilterCorrelated walks survivor pairs in generation order and, whenever
// the absolute correlation of two indicator columns exceeds tCorr, discards
// the lower-scored rule. Score ties keep the earlier rule, so the best rule
// of any correlated group always survives.
func FilterCorrelated(matrix *rule.Matrix, scores []float64, tCorr float64) ([]int, error) {
	if err := matrix.Validate(); err != nil {
		return nil, err
	}
	if len(scores) != matrix.ColumnCount() {
		return nil, core.NewInvalidInputError("scores",
			fmt.Sprintf("%d scores for %d matrix columns", len(scores), matrix.ColumnCount()))
	}
	if tCorr < 0 || math.IsNaN(tCorr) {
		return nil, core.NewInvalidInputError("t_corr", "must be non-negative")
	}

	p := matrix.ColumnCount()
	discarded := make([]bool, p)
	for i := 0; i < p; i++ {
		if discarded[i] {
			continue
		}
		for j := i + 1; j < p; j++ {
			if discarded[j] {
				continue
			}
			corr, err := stats.Pearson(matrix.Column(i), matrix.Column(j))
			if err != nil {
				return nil, core.NewInvalidInputError("rule_matrix",
					fmt.Sprintf("correlation of columns %d and %d: %v", i, j, err))
			}
			if math.Abs(corr) <= tCorr {
				continue
			}
			if scores[j] < scores[i] || scores[j] == scores[i] {
				discarded[j] = true
			} else {
				discarded[i] = true
				break
			}
		}
	}

	kept := make([]int, 0, p)
	for i := 0; i < p; i++ {
		if !discarded[i] {
			kept = append(kept, i)
		}
	}
	return kept, nil
}

func sumOfSquares(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	sse := 0.0
	for _, v := range values {
		sse += (v - mean) * (v - mean)
	}
	return sse
}

func pick(values []float64, positions []int) []float64 {
	out := make([]float64, len(positions))
	for i, p := range positions {
		out[i] = values[p]
	}
	return out
}
