// Package synthetic generates benchmark datasets with planted subgroup
// effects and known ground truth, for demos and end-to-end verification.
package synthetic

import (
	"fmt"
	"math"
	"math/rand"

	"gocre/domain/sample"
)

// Config shapes the generated dataset. Covariates are binary, so every
// planted subgroup is exactly expressible as a threshold rule.
type Config struct {
	Rows       int
	Covariates int
	Seed       int64

	// EffectSize is the magnitude of each planted subgroup effect.
	EffectSize float64

	// Noise is the outcome noise standard deviation (continuous mode).
	Noise float64

	// Confounded ties the treatment propensity to x1 instead of a coin
	// flip.
	Confounded bool

	// Counts switches to Poisson outcomes with planted rate differences.
	Counts bool
}

func DefaultConfig() Config {
	return Config{
		Rows:       1000,
		Covariates: 10,
		Seed:       42,
		EffectSize: 2,
		Noise:      0.1,
	}
}

// Dataset bundles generated observations with their ground truth.
type Dataset struct {
	Observations *sample.Observations
	TrueITE      []float64
}

// TrueRuleKeys returns the planted subgroup rules in canonical form: the
// first raises the effect, the second lowers it.
func TrueRuleKeys() []string {
	return []string{"x1>0.5 & x2<=0.5", "x5>0.5 & x6<=0.5"}
}

// Generate builds the benchmark set. The effect is +EffectSize where x1=1
// and x2=0 plus -EffectSize where x5=1 and x6=0; the contributions add, so
// rows in both subgroups net to zero and each planted rule carries exactly
// its own effect.
func Generate(cfg Config) (*Dataset, error) {
	if cfg.Rows < 10 {
		return nil, fmt.Errorf("rows must be >= 10")
	}
	if cfg.Covariates < 6 {
		return nil, fmt.Errorf("need at least 6 covariates for the planted subgroups")
	}
	if cfg.EffectSize <= 0 {
		return nil, fmt.Errorf("effect size must be > 0")
	}
	if cfg.Noise < 0 {
		return nil, fmt.Errorf("noise must be >= 0")
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	names := make([]string, cfg.Covariates)
	cols := make([][]float64, cfg.Covariates)
	for j := 0; j < cfg.Covariates; j++ {
		names[j] = fmt.Sprintf("x%d", j+1)
		cols[j] = make([]float64, cfg.Rows)
		for i := 0; i < cfg.Rows; i++ {
			cols[j][i] = float64(rng.Intn(2))
		}
	}

	// Planted effect per row, additive across subgroups.
	tau := make([]float64, cfg.Rows)
	for i := 0; i < cfg.Rows; i++ {
		if cols[0][i] == 1 && cols[1][i] == 0 {
			tau[i] += cfg.EffectSize
		}
		if cols[4][i] == 1 && cols[5][i] == 0 {
			tau[i] -= cfg.EffectSize
		}
	}

	treatment := make([]int, cfg.Rows)
	for i := 0; i < cfg.Rows; i++ {
		p := 0.5
		if cfg.Confounded {
			p = 0.3 + 0.4*cols[0][i]
		}
		if rng.Float64() < p {
			treatment[i] = 1
		}
	}

	outcome := make([]float64, cfg.Rows)
	trueITE := make([]float64, cfg.Rows)
	if cfg.Counts {
		for i := 0; i < cfg.Rows; i++ {
			rate0 := 1 + cols[2][i]
			rate1 := rate0 + tau[i]
			if rate1 < 0.1 {
				rate1 = 0.1
			}
			trueITE[i] = rate1 - rate0
			rate := rate0
			if treatment[i] == 1 {
				rate = rate1
			}
			outcome[i] = float64(samplePoisson(rng, rate))
		}
	} else {
		for i := 0; i < cfg.Rows; i++ {
			trueITE[i] = tau[i]
			base := cols[2][i] - cols[3][i]
			outcome[i] = base + tau[i]*float64(treatment[i]) + rng.NormFloat64()*cfg.Noise
		}
	}

	cov, err := sample.NewCovariates(names, cols)
	if err != nil {
		return nil, err
	}
	obs, err := sample.NewObservations(outcome, treatment, cov, nil)
	if err != nil {
		return nil, err
	}

	return &Dataset{Observations: obs, TrueITE: trueITE}, nil
}

// samplePoisson draws from Poisson(lambda) by Knuth's product method, which
// is exact and fast for the small rates generated here.
func samplePoisson(rng *rand.Rand, lambda float64) int {
	threshold := math.Exp(-lambda)
	k := 0
	product := rng.Float64()
	for product > threshold {
		k++
		product *= rng.Float64()
	}
	return k
}
