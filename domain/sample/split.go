package sample

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gocre/domain/core"
)

// Split is an honest partition of an observation set: rules are discovered
// on one side and their effects estimated on the other, so no row informs
// both stages.
type Split struct {
	Discovery *Observations
	Inference *Observations

	// Row indices into the parent set, ascending within each side.
	DiscoveryRows []int
	InferenceRows []int
}

// HonestSplit partitions obs into disjoint, exhaustive discovery and
// inference subsamples. Assignment is a uniform draw without stratification;
// discovery receives floor(ratio*n) rows. The same rng state always yields
// the same partition.
func HonestSplit(obs *Observations, ratio float64, rng *rand.Rand) (*Split, error) {
	if obs == nil {
		return nil, core.NewInvalidInputError("observations", "nil observation set")
	}
	if err := obs.Validate(); err != nil {
		return nil, err
	}
	if ratio <= 0 || ratio >= 1 || math.IsNaN(ratio) {
		return nil, core.NewInvalidInputError("ratio_dis",
			fmt.Sprintf("%v is outside (0, 1)", ratio))
	}
	if rng == nil {
		return nil, core.NewInvalidInputError("rng", "nil random source")
	}

	n := obs.RowCount()
	nDis := int(math.Floor(ratio * float64(n)))
	if nDis < 1 || n-nDis < 1 {
		return nil, core.NewInvalidInputError("ratio_dis",
			fmt.Sprintf("ratio %v leaves an empty subsample for n=%d", ratio, n))
	}

	perm := rng.Perm(n)
	disRows := append([]int(nil), perm[:nDis]...)
	infRows := append([]int(nil), perm[nDis:]...)

	// Sort within each side so subsamples preserve dataset order.
	sort.Ints(disRows)
	sort.Ints(infRows)

	return &Split{
		Discovery:     obs.Subset(disRows),
		Inference:     obs.Subset(infRows),
		DiscoveryRows: disRows,
		InferenceRows: infRows,
	}, nil
}
