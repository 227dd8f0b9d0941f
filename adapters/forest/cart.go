package forest

import (
	"math/rand"
	"sort"

	"gocre/domain/sample"
	"gocre/ports"
)

// treeParams shapes a single tree fit. A zero mtry means every feature is a
// split candidate at every node.
type treeParams struct {
	nodeSize int
	maxNodes int
	maxDepth int
	mtry     int
}

// growNode tracks an unfinished leaf during best-first growth: the rows it
// owns and, once scanned, its best available split.
type growNode struct {
	node  *ports.TreeNode
	rows  []int
	depth int
	order int

	hasSplit  bool
	feat      int
	threshold float64
	gain      float64
}

// growTree fits one regression tree by best-first SSE reduction. Growth
// stops at maxNodes leaves, maxDepth levels, or when no split leaves both
// children with at least nodeSize rows.
func growTree(cov *sample.Covariates, target []float64, rows []int, p treeParams, rng *rand.Rand) *ports.TreeNode {
	root := &growNode{
		node:  &ports.TreeNode{Prediction: meanAt(target, rows)},
		rows:  rows,
		depth: 0,
	}
	if len(rows) == 0 {
		return root.node
	}

	nextOrder := 1
	findBestSplit(root, cov, target, p, rng)

	open := []*growNode{root}
	leaves := 1
	for leaves < p.maxNodes {
		best := -1
		for i, g := range open {
			if !g.hasSplit {
				continue
			}
			if best == -1 || g.gain > open[best].gain {
				best = i
			}
		}
		if best == -1 {
			break
		}

		g := open[best]
		open = append(open[:best], open[best+1:]...)

		leftRows := make([]int, 0, len(g.rows))
		rightRows := make([]int, 0, len(g.rows))
		col := cov.Cols[g.feat]
		for _, r := range g.rows {
			if col[r] <= g.threshold {
				leftRows = append(leftRows, r)
			} else {
				rightRows = append(rightRows, r)
			}
		}

		g.node.Var = cov.Names[g.feat]
		g.node.Threshold = g.threshold
		g.node.Left = &ports.TreeNode{Prediction: meanAt(target, leftRows)}
		g.node.Right = &ports.TreeNode{Prediction: meanAt(target, rightRows)}
		leaves++

		for _, child := range []*growNode{
			{node: g.node.Left, rows: leftRows, depth: g.depth + 1, order: nextOrder},
			{node: g.node.Right, rows: rightRows, depth: g.depth + 1, order: nextOrder + 1},
		} {
			nextOrder++
			if child.depth >= p.maxDepth {
				continue
			}
			findBestSplit(child, cov, target, p, rng)
			if child.hasSplit {
				open = append(open, child)
			}
		}

		// Deterministic tie-break: earlier nodes win equal gains.
		sort.SliceStable(open, func(i, j int) bool { return open[i].order < open[j].order })
	}

	return root.node
}

// findBestSplit scans candidate features for the SSE-minimizing threshold.
// Thresholds sit at midpoints between adjacent distinct values so the split
// is invariant to within-node row order.
func findBestSplit(g *growNode, cov *sample.Covariates, target []float64, p treeParams, rng *rand.Rand) {
	n := len(g.rows)
	if n < 2*p.nodeSize {
		return
	}

	feats := sampleFeatures(cov.ColumnCount(), p.mtry, rng)

	nodeSum, nodeSumSq := 0.0, 0.0
	for _, r := range g.rows {
		nodeSum += target[r]
		nodeSumSq += target[r] * target[r]
	}
	sseNode := nodeSumSq - nodeSum*nodeSum/float64(n)

	sorted := make([]int, n)
	bestGain := 1e-12
	for _, feat := range feats {
		col := cov.Cols[feat]
		copy(sorted, g.rows)
		sort.Slice(sorted, func(i, j int) bool {
			if col[sorted[i]] != col[sorted[j]] {
				return col[sorted[i]] < col[sorted[j]]
			}
			return sorted[i] < sorted[j]
		})

		leftSum, leftSumSq := 0.0, 0.0
		for k := 1; k < n; k++ {
			y := target[sorted[k-1]]
			leftSum += y
			leftSumSq += y * y

			if col[sorted[k-1]] == col[sorted[k]] {
				continue
			}
			if k < p.nodeSize || n-k < p.nodeSize {
				continue
			}

			rightSum := nodeSum - leftSum
			rightSumSq := nodeSumSq - leftSumSq
			sseLeft := leftSumSq - leftSum*leftSum/float64(k)
			sseRight := rightSumSq - rightSum*rightSum/float64(n-k)
			gain := sseNode - sseLeft - sseRight
			if gain > bestGain {
				bestGain = gain
				g.hasSplit = true
				g.feat = feat
				g.threshold = (col[sorted[k-1]] + col[sorted[k]]) / 2
				g.gain = gain
			}
		}
	}
}

// sampleFeatures draws mtry distinct feature indices, returned ascending so
// equal-gain ties resolve the same way for a given draw.
func sampleFeatures(p, mtry int, rng *rand.Rand) []int {
	if mtry <= 0 || mtry >= p {
		feats := make([]int, p)
		for i := range feats {
			feats[i] = i
		}
		return feats
	}
	perm := rng.Perm(p)
	feats := append([]int(nil), perm[:mtry]...)
	sort.Ints(feats)
	return feats
}

// predictRow routes one covariate row through a fitted tree
func predictRow(node *ports.TreeNode, cov *sample.Covariates, colIndex map[string]int, row int) float64 {
	for !node.IsLeaf() {
		col := cov.Cols[colIndex[node.Var]]
		if col[row] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Prediction
}

func meanAt(target []float64, rows []int) float64 {
	if len(rows) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range rows {
		sum += target[r]
	}
	return sum / float64(len(rows))
}
