package engine

import (
	"sort"

	"github.com/obsstack/aiops-rca/internal/models"
)

// suggestFunc produces remediation hints for an elected root-cause record.
type suggestFunc func(models.EnrichedRecord) []string

// aggregateTraces groups anomalous records by trace and elects the single
// most anomalous one per trace as the root cause (earliest timestamp breaks
// score ties). affected_services is the blast radius: every service the trace
// touched anywhere in the full dataset, flagged or not. Traces with no
// anomalous member produce nothing. Output order is trace discovery order
// over the scored records.
func aggregateTraces(scored []models.EnrichedRecord, results []models.AnomalyResult, full []models.EnrichedRecord, suggest suggestFunc) []models.RCARecord {
	traceServices := make(map[string]map[string]struct{})
	for _, rec := range full {
		set, ok := traceServices[rec.TraceID]
		if !ok {
			set = make(map[string]struct{})
			traceServices[rec.TraceID] = set
		}
		set[rec.Service] = struct{}{}
	}

	type election struct {
		record models.EnrichedRecord
		score  float64
	}
	order := make([]string, 0)
	best := make(map[string]election)

	for i, rec := range scored {
		if !results[i].IsAnomaly {
			continue
		}
		cur, seen := best[rec.TraceID]
		if !seen {
			order = append(order, rec.TraceID)
		}
		if !seen || results[i].Score > cur.score ||
			(results[i].Score == cur.score && rec.Timestamp.Before(cur.record.Timestamp)) {
			best[rec.TraceID] = election{record: rec, score: results[i].Score}
		}
	}

	records := make([]models.RCARecord, 0, len(order))
	for _, traceID := range order {
		elected := best[traceID]
		affected := make([]string, 0, len(traceServices[traceID]))
		for svc := range traceServices[traceID] {
			affected = append(affected, svc)
		}
		sort.Strings(affected)

		records = append(records, models.RCARecord{
			TraceID:          traceID,
			RootCauseService: elected.record.Service,
			Timestamp:        elected.record.Timestamp,
			Message:          elected.record.Message,
			AnomalyScore:     elected.score,
			MetricSnapshot:   elected.record.Metrics.Map(),
			Suggestions:      suggest(elected.record),
			AffectedServices: affected,
		})
	}
	return records
}
