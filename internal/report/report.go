package report

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/obsstack/aiops-rca/internal/models"
)

// topErrorLimit bounds the most-frequent-message table in the summary.
const topErrorLimit = 10

// Build assembles the report document: headline counts, the ranked
// top-errors table, and the per-trace RCA records in discovery order.
func Build(scored []models.EnrichedRecord, results []models.AnomalyResult, rcaRecords []models.RCARecord) models.Report {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	anomalyCount := 0

	for i, rec := range scored {
		if !results[i].IsAnomaly {
			continue
		}
		anomalyCount++
		if _, ok := counts[rec.Message]; !ok {
			firstSeen[rec.Message] = i
		}
		counts[rec.Message]++
	}

	messages := make([]string, 0, len(counts))
	for msg := range counts {
		messages = append(messages, msg)
	}
	sort.Slice(messages, func(i, j int) bool {
		if counts[messages[i]] != counts[messages[j]] {
			return counts[messages[i]] > counts[messages[j]]
		}
		return firstSeen[messages[i]] < firstSeen[messages[j]]
	})
	if len(messages) > topErrorLimit {
		messages = messages[:topErrorLimit]
	}

	topErrors := make([]models.TopError, 0, len(messages))
	for _, msg := range messages {
		topErrors = append(topErrors, models.TopError{Message: msg, Count: counts[msg]})
	}

	if rcaRecords == nil {
		rcaRecords = []models.RCARecord{}
	}

	return models.Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Summary: models.ReportSummary{
			AnomalyCount: anomalyCount,
			TopErrors:    topErrors,
		},
		Anomalies: rcaRecords,
	}
}

// Empty returns a valid zero-anomaly report, used when every record was
// informational or the caller chose the all-normal fallback.
func Empty() models.Report {
	return Build(nil, nil, nil)
}
