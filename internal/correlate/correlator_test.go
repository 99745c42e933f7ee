package correlate

import (
	"testing"
	"time"

	"github.com/obsstack/aiops-rca/internal/models"
)

func event(ts time.Time, service, trace string) models.LogEvent {
	return models.LogEvent{
		Timestamp: ts,
		Level:     models.LevelError,
		Service:   service,
		TraceID:   trace,
		Message:   "boom",
	}
}

func TestPivotCollapsesSamples(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	samples := []models.MetricSample{
		{Timestamp: ts, Service: "accounts-ms", Name: models.MetricCPUUsage, Value: 0.9},
		{Timestamp: ts, Service: "accounts-ms", Name: models.MetricLatencyP95MS, Value: 50},
		{Timestamp: ts.Add(time.Minute), Service: "accounts-ms", Name: models.MetricCPUUsage, Value: 0.2},
		{Timestamp: ts, Service: "loans-ms", Name: models.MetricCPUUsage, Value: 0.1},
	}

	snapshots := Pivot(samples)
	if len(snapshots) != 3 {
		t.Fatalf("expected 3 wide records, got %d", len(snapshots))
	}
	first := snapshots[0]
	if first.Service != "accounts-ms" && first.Service != "loans-ms" {
		t.Fatalf("unexpected service %q", first.Service)
	}
	for _, snap := range snapshots {
		if snap.Service == "accounts-ms" && snap.Timestamp.Equal(ts) {
			if snap.CPUUsage != 0.9 || snap.LatencyP95MS != 50 {
				t.Fatalf("pivot lost values: %+v", snap)
			}
		}
	}
}

func TestJoinNearestWithinTolerance(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []models.LogEvent{
		event(base.Add(10*time.Second), "accounts-ms", "T1"),
	}
	snapshots := []models.MetricSnapshot{
		{Timestamp: base, Service: "accounts-ms", CPUUsage: 0.5},
		{Timestamp: base.Add(12 * time.Second), Service: "accounts-ms", CPUUsage: 0.9},
		{Timestamp: base.Add(10 * time.Second), Service: "loans-ms", CPUUsage: 0.1},
	}

	enriched := NewCorrelator(15 * time.Second).Join(events, snapshots)
	if len(enriched) != 1 {
		t.Fatalf("expected 1 enriched record, got %d", len(enriched))
	}
	if !enriched[0].MetricsMatched {
		t.Fatalf("expected a metric match")
	}
	if enriched[0].Metrics.CPUUsage != 0.9 {
		t.Fatalf("joined wrong snapshot: cpu=%f", enriched[0].Metrics.CPUUsage)
	}
	if enriched[0].Metrics.Service != "accounts-ms" {
		t.Fatalf("joined snapshot from service %q", enriched[0].Metrics.Service)
	}
}

func TestJoinRejectsOutsideTolerance(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []models.LogEvent{event(base, "accounts-ms", "T1")}
	snapshots := []models.MetricSnapshot{
		{Timestamp: base.Add(16 * time.Second), Service: "accounts-ms", CPUUsage: 0.9},
	}

	enriched := NewCorrelator(15 * time.Second).Join(events, snapshots)
	if enriched[0].MetricsMatched {
		t.Fatalf("expected no match beyond tolerance")
	}
	if enriched[0].Metrics.CPUUsage != 0 {
		t.Fatalf("expected zero-filled metrics, got cpu=%f", enriched[0].Metrics.CPUUsage)
	}
}

func TestJoinNeverCrossesServices(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []models.LogEvent{event(base, "cards-ms", "T1")}
	snapshots := []models.MetricSnapshot{
		{Timestamp: base, Service: "accounts-ms", CPUUsage: 0.9},
	}

	enriched := NewCorrelator(15 * time.Second).Join(events, snapshots)
	if enriched[0].MetricsMatched {
		t.Fatalf("matched a snapshot from a different service")
	}
}

func TestJoinEmptyMetricStreamIsDegradedNotFatal(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []models.LogEvent{
		event(base, "accounts-ms", "T1"),
		event(base.Add(time.Second), "loans-ms", "T2"),
	}

	enriched := NewCorrelator(0).Join(events, nil)
	if len(enriched) != len(events) {
		t.Fatalf("expected one enriched record per event, got %d", len(enriched))
	}
	for i, rec := range enriched {
		if rec.MetricsMatched {
			t.Fatalf("record %d unexpectedly matched metrics", i)
		}
		if rec.Service != events[i].Service {
			t.Fatalf("join reordered events")
		}
	}
}

func TestJoinStableUnderSnapshotPermutation(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []models.LogEvent{event(base.Add(5*time.Second), "accounts-ms", "T1")}
	snapshots := []models.MetricSnapshot{
		{Timestamp: base.Add(4 * time.Second), Service: "accounts-ms", CPUUsage: 0.4},
		{Timestamp: base, Service: "accounts-ms", CPUUsage: 0.1},
		{Timestamp: base.Add(9 * time.Second), Service: "accounts-ms", CPUUsage: 0.9},
	}
	reversed := []models.MetricSnapshot{snapshots[2], snapshots[0], snapshots[1]}

	c := NewCorrelator(15 * time.Second)
	a := c.Join(events, snapshots)
	b := c.Join(events, reversed)
	if a[0].Metrics.CPUUsage != b[0].Metrics.CPUUsage {
		t.Fatalf("join not stable under input permutation: %f vs %f", a[0].Metrics.CPUUsage, b[0].Metrics.CPUUsage)
	}
	if a[0].Metrics.CPUUsage != 0.4 {
		t.Fatalf("expected nearest snapshot (gap 1s), got cpu=%f", a[0].Metrics.CPUUsage)
	}
}
