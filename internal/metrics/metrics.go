package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Signal labels for ingestion counters.
const (
	SignalLogs    = "logs"
	SignalMetrics = "metrics"
)

var (
	recordsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aiops_rca",
			Name:      "records_ingested_total",
			Help:      "Total records ingested, partitioned by signal type.",
		},
		[]string{"signal"},
	)

	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aiops_rca",
			Name:      "stage_seconds",
			Help:      "Pipeline stage latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	anomaliesDetectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aiops_rca",
			Name:      "anomalies_detected_total",
			Help:      "Total log records flagged anomalous across runs.",
		},
	)

	reportsWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aiops_rca",
			Name:      "reports_written_total",
			Help:      "Total reports written to the output sink.",
		},
	)
)

// Register attaches the pipeline collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		recordsIngestedTotal,
		stageDurationSeconds,
		anomaliesDetectedTotal,
		reportsWrittenTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// AddIngested records n ingested records for a signal type.
func AddIngested(signal string, n int) {
	if n < 0 {
		return
	}
	recordsIngestedTotal.WithLabelValues(signal).Add(float64(n))
}

// ObserveStage records the duration of one pipeline stage.
func ObserveStage(stage string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	stageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// AddAnomalies records flagged anomalies.
func AddAnomalies(n int) {
	if n < 0 {
		return
	}
	anomaliesDetectedTotal.Add(float64(n))
}

// ReportWritten records one persisted report.
func ReportWritten() {
	reportsWrittenTotal.Inc()
}

// Push sends the default registry's state to a Pushgateway, the batch-job
// counterpart of scraping a long-lived process.
func Push(gateway, job string) error {
	return push.New(gateway, job).
		Gatherer(prometheus.DefaultGatherer).
		Push()
}
