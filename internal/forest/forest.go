package forest

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

const (
	// DefaultTrees is the ensemble size when none is configured.
	DefaultTrees = 100
	// DefaultSubsample caps the per-tree training sample.
	DefaultSubsample = 256

	eulerMascheroni = 0.5772156649015329
)

// Options configures a Forest.
type Options struct {
	Trees     int
	Subsample int
	Seed      int64
	Workers   int
}

// Forest is an ensemble of randomized isolation trees. Outliers isolate in
// fewer random splits than inliers, so shorter average path lengths mean
// higher anomaly scores.
type Forest struct {
	opts      Options
	trees     []tree
	subsample int
	cNorm     float64
}

// TrainingError reports that the ensemble could not be fit.
type TrainingError struct {
	Reason string
}

func (e *TrainingError) Error() string {
	return "isolation forest training failed: " + e.Reason
}

// New constructs an unfitted Forest.
func New(opts Options) *Forest {
	if opts.Trees <= 0 {
		opts.Trees = DefaultTrees
	}
	if opts.Subsample <= 0 {
		opts.Subsample = DefaultSubsample
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Forest{opts: opts}
}

// Fit builds the ensemble over the feature matrix. Trees are independent, so
// they are built in parallel; each tree draws its subsample and splits from
// its own generator seeded from the base seed and the tree index, which keeps
// the fit deterministic regardless of scheduling.
func (f *Forest) Fit(matrix [][]float64) error {
	if len(matrix) == 0 {
		return &TrainingError{Reason: "empty feature matrix"}
	}
	if !hasSplittableFeature(matrix) {
		return &TrainingError{Reason: "all feature vectors identical"}
	}

	f.subsample = f.opts.Subsample
	if f.subsample > len(matrix) {
		f.subsample = len(matrix)
	}
	f.cNorm = pathCorrection(f.subsample)
	if f.cNorm <= 0 {
		f.cNorm = 1
	}
	maxDepth := int(math.Ceil(math.Log2(float64(f.subsample))))
	if maxDepth < 1 {
		maxDepth = 1
	}

	f.trees = make([]tree, f.opts.Trees)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < f.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rng := rand.New(rand.NewSource(f.opts.Seed + int64(i)*7919))
				sample := rng.Perm(len(matrix))[:f.subsample]
				f.trees[i] = buildTree(rng, matrix, sample, maxDepth)
			}
		}()
	}
	for i := 0; i < f.opts.Trees; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return nil
}

// PathLength returns the ensemble-average corrected path length for a row.
func (f *Forest) PathLength(row []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	total := 0.0
	for i := range f.trees {
		total += f.trees[i].pathLength(row)
	}
	return total / float64(len(f.trees))
}

// Score returns the anomaly score for a row: one minus the average path
// length normalized by the expected path length of the subsample, so shorter
// paths score higher.
func (f *Forest) Score(row []float64) float64 {
	return 1 - f.PathLength(row)/f.cNorm
}

// Scores evaluates every row, preserving order.
func (f *Forest) Scores(matrix [][]float64) []float64 {
	scores := make([]float64, len(matrix))
	for i, row := range matrix {
		scores[i] = f.Score(row)
	}
	return scores
}

// FlagTop marks the round(contamination*N) highest-scoring rows anomalous.
// Equal scores resolve in input order so the flag count is exact.
func FlagTop(scores []float64, contamination float64) []bool {
	flags := make([]bool, len(scores))
	if len(scores) == 0 || contamination <= 0 {
		return flags
	}

	k := int(math.Round(contamination * float64(len(scores))))
	if k <= 0 {
		return flags
	}
	if k > len(scores) {
		k = len(scores)
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		if scores[order[a]] != scores[order[b]] {
			return scores[order[a]] > scores[order[b]]
		}
		return order[a] < order[b]
	})
	for _, i := range order[:k] {
		flags[i] = true
	}
	return flags
}

func hasSplittableFeature(matrix [][]float64) bool {
	cols := len(matrix[0])
	for j := 0; j < cols; j++ {
		min, max := matrix[0][j], matrix[0][j]
		for _, row := range matrix {
			if row[j] < min {
				min = row[j]
			}
			if row[j] > max {
				max = row[j]
			}
		}
		if max > min {
			return true
		}
	}
	return false
}

// pathCorrection approximates the expected path length of n points in an
// unbuilt subtree: c(n) = 2H(n-1) - 2(n-1)/n, with the harmonic number
// approximated as H(m) = ln(m) + Euler-Mascheroni.
func pathCorrection(n int) float64 {
	if n <= 1 {
		return 0
	}
	m := float64(n - 1)
	return 2*(math.Log(m)+eulerMascheroni) - 2*m/float64(n)
}
