package forest

import "math/rand"

// node is one binary partition. Leaves have left == -1 and carry the count of
// records they still held when construction stopped, for the path-length
// correction.
type node struct {
	feature int
	split   float64
	left    int
	right   int
	size    int
}

type tree struct {
	nodes []node
}

// buildTree grows one isolation tree over the sampled row indices using an
// explicit work list instead of recursion. A node splits on a feature chosen
// uniformly among those with a non-degenerate range in its subset, at a value
// drawn uniformly within that range; rows < split go left, the rest right.
// Construction stops at one row, at maxDepth, or when no feature splits.
func buildTree(rng *rand.Rand, matrix [][]float64, sample []int, maxDepth int) tree {
	t := tree{nodes: make([]node, 1, 2*len(sample))}
	t.nodes[0] = node{left: -1, right: -1}

	type task struct {
		idx   int
		rows  []int
		depth int
	}
	stack := []task{{idx: 0, rows: sample, depth: 0}}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(cur.rows) <= 1 || cur.depth >= maxDepth {
			t.nodes[cur.idx].size = len(cur.rows)
			continue
		}

		feature, split, ok := chooseSplit(rng, matrix, cur.rows)
		if !ok {
			t.nodes[cur.idx].size = len(cur.rows)
			continue
		}

		left := make([]int, 0, len(cur.rows))
		right := make([]int, 0, len(cur.rows))
		for _, row := range cur.rows {
			if matrix[row][feature] < split {
				left = append(left, row)
			} else {
				right = append(right, row)
			}
		}
		if len(left) == 0 || len(right) == 0 {
			t.nodes[cur.idx].size = len(cur.rows)
			continue
		}

		leftIdx := len(t.nodes)
		t.nodes = append(t.nodes, node{left: -1, right: -1})
		rightIdx := len(t.nodes)
		t.nodes = append(t.nodes, node{left: -1, right: -1})

		t.nodes[cur.idx].feature = feature
		t.nodes[cur.idx].split = split
		t.nodes[cur.idx].left = leftIdx
		t.nodes[cur.idx].right = rightIdx

		stack = append(stack,
			task{idx: leftIdx, rows: left, depth: cur.depth + 1},
			task{idx: rightIdx, rows: right, depth: cur.depth + 1},
		)
	}

	return t
}

func chooseSplit(rng *rand.Rand, matrix [][]float64, rows []int) (int, float64, bool) {
	cols := len(matrix[rows[0]])
	candidates := make([]int, 0, cols)
	mins := make([]float64, cols)
	maxs := make([]float64, cols)

	for j := 0; j < cols; j++ {
		min, max := matrix[rows[0]][j], matrix[rows[0]][j]
		for _, row := range rows[1:] {
			v := matrix[row][j]
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		mins[j], maxs[j] = min, max
		if max > min {
			candidates = append(candidates, j)
		}
	}

	if len(candidates) == 0 {
		return 0, 0, false
	}

	feature := candidates[rng.Intn(len(candidates))]
	split := mins[feature] + rng.Float64()*(maxs[feature]-mins[feature])
	return feature, split, true
}

// pathLength walks a row from the root to its leaf, returning the number of
// edges traversed plus the correction for the records remaining in the leaf.
func (t *tree) pathLength(row []float64) float64 {
	idx := 0
	depth := 0
	for t.nodes[idx].left != -1 {
		if row[t.nodes[idx].feature] < t.nodes[idx].split {
			idx = t.nodes[idx].left
		} else {
			idx = t.nodes[idx].right
		}
		depth++
	}
	return float64(depth) + pathCorrection(t.nodes[idx].size)
}
