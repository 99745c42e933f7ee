package models

import "time"

// Level enumerates log severities emitted by the monitored services.
type Level string

const (
	LevelDebug    Level = "DEBUG"
	LevelInfo     Level = "INFO"
	LevelWarn     Level = "WARN"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// LogEvent is one parsed application log record. Multi-line continuations are
// merged into Message before the event is constructed; events are immutable
// once parsed.
type LogEvent struct {
	Timestamp time.Time
	Level     Level
	Service   string
	TraceID   string
	SpanID    string
	ClassName string
	Message   string
}

// MetricName enumerates the closed metric schema the pipeline understands.
type MetricName string

const (
	MetricErrorRate        MetricName = "error_rate"
	MetricLatencyP95MS     MetricName = "latency_p95_ms"
	MetricCPUUsage         MetricName = "cpu_usage"
	MetricJVMHeapUsedBytes MetricName = "jvm_heap_used_bytes"
	MetricJVMHeapMaxBytes  MetricName = "jvm_heap_max_bytes"
	MetricHikariCPActive   MetricName = "hikaricp_active"
	MetricThroughputRPS    MetricName = "throughput_requests_per_second"
)

// MetricNames lists the schema in canonical order.
func MetricNames() []MetricName {
	return []MetricName{
		MetricErrorRate,
		MetricLatencyP95MS,
		MetricCPUUsage,
		MetricJVMHeapUsedBytes,
		MetricJVMHeapMaxBytes,
		MetricHikariCPActive,
		MetricThroughputRPS,
	}
}

// MetricSample is a single (timestamp, service, metric, value) observation.
type MetricSample struct {
	Timestamp time.Time
	Service   string
	Name      MetricName
	Value     float64
}

// MetricSnapshot is the wide per-(timestamp, service) record produced by
// pivoting samples across metric names. Absent metrics stay zero so numeric
// code downstream never observes missing values.
type MetricSnapshot struct {
	Timestamp time.Time
	Service   string

	ErrorRate        float64
	LatencyP95MS     float64
	CPUUsage         float64
	JVMHeapUsedBytes float64
	JVMHeapMaxBytes  float64
	HikariCPActive   float64
	ThroughputRPS    float64
}

// Set assigns the value for a known metric name; unknown names are ignored.
func (s *MetricSnapshot) Set(name MetricName, value float64) {
	switch name {
	case MetricErrorRate:
		s.ErrorRate = value
	case MetricLatencyP95MS:
		s.LatencyP95MS = value
	case MetricCPUUsage:
		s.CPUUsage = value
	case MetricJVMHeapUsedBytes:
		s.JVMHeapUsedBytes = value
	case MetricJVMHeapMaxBytes:
		s.JVMHeapMaxBytes = value
	case MetricHikariCPActive:
		s.HikariCPActive = value
	case MetricThroughputRPS:
		s.ThroughputRPS = value
	}
}

// Value returns the stored value for a known metric name.
func (s MetricSnapshot) Value(name MetricName) float64 {
	switch name {
	case MetricErrorRate:
		return s.ErrorRate
	case MetricLatencyP95MS:
		return s.LatencyP95MS
	case MetricCPUUsage:
		return s.CPUUsage
	case MetricJVMHeapUsedBytes:
		return s.JVMHeapUsedBytes
	case MetricJVMHeapMaxBytes:
		return s.JVMHeapMaxBytes
	case MetricHikariCPActive:
		return s.HikariCPActive
	case MetricThroughputRPS:
		return s.ThroughputRPS
	}
	return 0
}

// Map renders the snapshot as metric_name -> value, in schema terms.
func (s MetricSnapshot) Map() map[string]float64 {
	out := make(map[string]float64, 7)
	for _, name := range MetricNames() {
		out[string(name)] = s.Value(name)
	}
	return out
}

// EnrichedRecord joins one LogEvent with the nearest-in-time metric snapshot
// for the same service. MetricsMatched reports whether a snapshot was found
// within the join tolerance.
type EnrichedRecord struct {
	LogEvent
	Metrics        MetricSnapshot
	MetricsMatched bool
}

// AnomalyResult carries the detector output for one enriched record.
type AnomalyResult struct {
	Score     float64
	IsAnomaly bool
}
