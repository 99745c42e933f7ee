package features

import (
	"math"
	"unicode/utf8"

	"github.com/obsstack/aiops-rca/internal/config"
	"github.com/obsstack/aiops-rca/internal/models"
)

const (
	epsHeap  = 1e-9
	epsRatio = 1e-6
)

// Columns returns the fixed feature column names in vector order.
func Columns() []string {
	return []string{
		"message_len",
		"service_encoded",
		"level_score",
		"cpu_usage",
		"error_rate",
		"hikaricp_active",
		"jvm_heap_used_bytes",
		"jvm_heap_max_bytes",
		"latency_p95_ms",
		"throughput_requests_per_second",
		"jvm_heap_usage_ratio",
		"latency_exceedance",
		"cpu_exceedance",
		"error_rate_exceedance",
		"heap_ratio_exceedance",
		"hikaricp_exceedance",
		"cpu_per_request",
		"latency_per_request",
		"heap_per_request",
	}
}

// Engineer derives the fixed numeric feature vector for enriched records.
// Vector is pure: the only state is the vocabulary and thresholds supplied at
// construction, so the same record always yields the same vector.
type Engineer struct {
	vocab      *Vocabulary
	thresholds config.Thresholds
}

// NewEngineer constructs an Engineer over an already-built vocabulary.
func NewEngineer(vocab *Vocabulary, thresholds config.Thresholds) *Engineer {
	return &Engineer{vocab: vocab, thresholds: thresholds}
}

// Vector computes the feature vector for one record, in Columns() order.
func (e *Engineer) Vector(rec models.EnrichedRecord) []float64 {
	m := rec.Metrics
	heapRatio := safeDiv(m.JVMHeapUsedBytes, m.JVMHeapMaxBytes+epsHeap)

	code := 0.0
	if c, ok := e.vocab.Code(rec.Service); ok {
		code = float64(c)
	}

	t := e.thresholds
	return []float64{
		float64(utf8.RuneCountInString(rec.Message)),
		code,
		levelScore(rec.Level),
		m.CPUUsage,
		m.ErrorRate,
		m.HikariCPActive,
		m.JVMHeapUsedBytes,
		m.JVMHeapMaxBytes,
		m.LatencyP95MS,
		m.ThroughputRPS,
		heapRatio,
		exceedance(m.LatencyP95MS, t.LatencyP95MS),
		exceedance(m.CPUUsage, t.CPUUsage),
		exceedance(m.ErrorRate, t.ErrorRate),
		exceedance(heapRatio, t.HeapUsageRatio),
		exceedance(m.HikariCPActive, t.HikariCPActive),
		safeDiv(m.CPUUsage, m.ThroughputRPS+epsRatio),
		safeDiv(m.LatencyP95MS, m.ThroughputRPS+epsRatio),
		safeDiv(m.JVMHeapUsedBytes, m.ThroughputRPS+epsRatio),
	}
}

// Matrix computes feature vectors for every record, preserving order.
func (e *Engineer) Matrix(records []models.EnrichedRecord) [][]float64 {
	matrix := make([][]float64, len(records))
	for i, rec := range records {
		matrix[i] = e.Vector(rec)
	}
	return matrix
}

// Standardize rescales every column to zero mean and unit variance over the
// given batch, returning a new matrix. Zero-variance columns collapse to all
// zeros. The fit is per batch and never reused across runs.
func Standardize(matrix [][]float64) [][]float64 {
	if len(matrix) == 0 {
		return nil
	}
	cols := len(matrix[0])
	n := float64(len(matrix))

	means := make([]float64, cols)
	for _, row := range matrix {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= n
	}

	stddevs := make([]float64, cols)
	for _, row := range matrix {
		for j, v := range row {
			d := v - means[j]
			stddevs[j] += d * d
		}
	}
	for j := range stddevs {
		stddevs[j] = math.Sqrt(stddevs[j] / n)
	}

	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		scaled := make([]float64, cols)
		for j, v := range row {
			if stddevs[j] > 0 {
				scaled[j] = (v - means[j]) / stddevs[j]
			}
		}
		out[i] = scaled
	}
	return out
}

// Exceedances reports the positive threshold excesses the suggestion rules
// look at, computed from the raw (unstandardized) metric snapshot.
type Exceedances struct {
	Latency   float64
	CPU       float64
	ErrorRate float64
	HeapRatio float64
	HikariCP  float64
}

// ExceedancesFor evaluates threshold excesses for one record.
func (e *Engineer) ExceedancesFor(rec models.EnrichedRecord) Exceedances {
	m := rec.Metrics
	t := e.thresholds
	heapRatio := safeDiv(m.JVMHeapUsedBytes, m.JVMHeapMaxBytes+epsHeap)
	return Exceedances{
		Latency:   exceedance(m.LatencyP95MS, t.LatencyP95MS),
		CPU:       exceedance(m.CPUUsage, t.CPUUsage),
		ErrorRate: exceedance(m.ErrorRate, t.ErrorRate),
		HeapRatio: exceedance(heapRatio, t.HeapUsageRatio),
		HikariCP:  exceedance(m.HikariCPActive, t.HikariCPActive),
	}
}

// HeapRatioFor exposes the heap usage ratio used by the OOM suggestion branch.
func (e *Engineer) HeapRatioFor(rec models.EnrichedRecord) float64 {
	m := rec.Metrics
	return safeDiv(m.JVMHeapUsedBytes, m.JVMHeapMaxBytes+epsHeap)
}

func levelScore(level models.Level) float64 {
	switch level {
	case models.LevelDebug:
		return 1
	case models.LevelInfo:
		return 2
	case models.LevelWarn, models.LevelWarning:
		return 3
	case models.LevelError:
		return 4
	case models.LevelCritical:
		return 5
	}
	return 0
}

func exceedance(value, threshold float64) float64 {
	if value > threshold {
		return value - threshold
	}
	return 0
}

func safeDiv(num, den float64) float64 {
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
