package models

import "time"

// RCARecord is the root-cause verdict for one distributed trace. Created once
// per trace that contains at least one anomaly; never mutated afterwards.
type RCARecord struct {
	TraceID          string             `json:"trace_id"`
	RootCauseService string             `json:"root_cause_service"`
	Timestamp        time.Time          `json:"timestamp"`
	Message          string             `json:"message"`
	AnomalyScore     float64            `json:"anomaly_score"`
	MetricSnapshot   map[string]float64 `json:"metric_snapshot"`
	Suggestions      []string           `json:"suggestions"`
	AffectedServices []string           `json:"affected_services"`
}

// TopError counts occurrences of one anomalous message text.
type TopError struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// ReportSummary aggregates headline numbers for a run.
type ReportSummary struct {
	AnomalyCount int        `json:"anomaly_count"`
	TopErrors    []TopError `json:"top_errors"`
}

// Report is the single output artifact of an analysis run.
type Report struct {
	RunID       string        `json:"run_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Summary     ReportSummary `json:"summary"`
	Anomalies   []RCARecord   `json:"anomalies"`
}
