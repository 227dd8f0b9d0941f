package discovery

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"

	"gocre/domain/core"
	"gocre/domain/params"
	"gocre/domain/rule"
	"gocre/domain/sample"
	"gocre/ports"
)

// Generator turns tree ensembles into candidate rule sets: every
// root-to-node path of every fitted tree becomes one conjunction of
// threshold conditions, deduplicated by canonical key.
type Generator struct {
	learner ports.RuleLearnerPort
}

// NewGenerator creates a generator around a tree-ensemble collaborator.
func NewGenerator(learner ports.RuleLearnerPort) *Generator {
	return &Generator{learner: learner}
}

// Generate fits the randomized and boosted ensembles on (covariates, ite)
// and extracts candidate rules. When interventionVars is non-empty only
// those covariates may appear in splits; unknown names are rejected. Zero
// trees on both ensembles yields an empty set.
func (g *Generator) Generate(ctx context.Context, cov *sample.Covariates, ite []float64, interventionVars []string, hyper params.Hyper, seed int64) (*rule.Set, error) {
	if cov == nil {
		return nil, core.NewInvalidInputError("covariates", "nil covariate table")
	}
	if err := cov.Validate(); err != nil {
		return nil, err
	}
	if len(ite) != cov.RowCount() {
		return nil, core.NewInvalidInputError("ite",
			fmt.Sprintf("%d values for %d covariate rows", len(ite), cov.RowCount()))
	}

	splitCov := cov
	if len(interventionVars) > 0 {
		restricted, err := restrictColumns(cov, interventionVars)
		if err != nil {
			return nil, err
		}
		splitCov = restricted
	}

	set := rule.NewSet()
	if hyper.NTreesRF == 0 && hyper.NTreesGBM == 0 {
		return set, nil
	}

	spec := ports.EnsembleSpec{
		NodeSize: hyper.NodeSize,
		MaxNodes: hyper.MaxNodes,
		MaxDepth: hyper.MaxDepth,
		Replace:  hyper.Replace,
	}

	if hyper.NTreesRF > 0 {
		spec.Trees = hyper.NTreesRF
		trees, err := g.learner.FitBagged(ctx, splitCov, ite, spec, mixSeed(seed, "bagged"))
		if err != nil {
			return nil, err
		}
		if err := extractRules(trees, set); err != nil {
			return nil, err
		}
	}

	if hyper.NTreesGBM > 0 {
		spec.Trees = hyper.NTreesGBM
		trees, err := g.learner.FitBoosted(ctx, splitCov, ite, spec, mixSeed(seed, "boosted"))
		if err != nil {
			return nil, err
		}
		if err := extractRules(trees, set); err != nil {
			return nil, err
		}
	}

	log.Printf("[Generator] Extracted %d distinct candidate rules from %d+%d trees",
		set.Len(), hyper.NTreesRF, hyper.NTreesGBM)
	return set, nil
}

// restrictColumns keeps only the named covariates, in dataset column order.
func restrictColumns(cov *sample.Covariates, names []string) (*sample.Covariates, error) {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := cov.ColumnIndex(name); !ok {
			return nil, core.NewInvalidInputError("intervention_vars",
				fmt.Sprintf("unknown covariate %q", name))
		}
		wanted[name] = true
	}
	keptNames := make([]string, 0, len(names))
	keptCols := make([][]float64, 0, len(names))
	for i, name := range cov.Names {
		if wanted[name] {
			keptNames = append(keptNames, name)
			keptCols = append(keptCols, cov.Cols[i])
		}
	}
	return &sample.Covariates{Names: keptNames, Cols: keptCols}, nil
}

// extractRules adds one rule per root-to-node path, excluding the bare root.
func extractRules(trees []*ports.TreeNode, set *rule.Set) error {
	for _, tree := range trees {
		if err := walkPaths(tree, nil, set); err != nil {
			return err
		}
	}
	return nil
}

func walkPaths(node *ports.TreeNode, path []rule.Condition, set *rule.Set) error {
	if node == nil || node.IsLeaf() {
		return nil
	}

	left := append(append([]rule.Condition(nil), path...),
		rule.Condition{Var: node.Var, Op: rule.OpLTE, Threshold: node.Threshold})
	right := append(append([]rule.Condition(nil), path...),
		rule.Condition{Var: node.Var, Op: rule.OpGT, Threshold: node.Threshold})

	for _, conds := range [][]rule.Condition{left, right} {
		r, err := rule.New(conds...)
		if err != nil {
			return err
		}
		set.Add(r)
	}

	if err := walkPaths(node.Left, left, set); err != nil {
		return err
	}
	return walkPaths(node.Right, right, set)
}

// mixSeed derives a labeled substream seed so the two ensembles never share
// random state.
func mixSeed(seed int64, label string) int64 {
	h := fnv.New64a()
	h.Write([]byte(label))
	return seed + int64(h.Sum64()&0x7FFFFFFF)
}
