package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentile(t *testing.T) {
	tracker := NewLatencyTracker(16)
	if got := tracker.Percentile(95); got != 0 {
		t.Fatalf("empty tracker p95 = %v", got)
	}

	for i := 1; i <= 10; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}
	if got := tracker.Count(); got != 10 {
		t.Fatalf("count = %d", got)
	}
	if got := tracker.Percentile(0); got != time.Millisecond {
		t.Fatalf("p0 = %v", got)
	}
	if got := tracker.Percentile(100); got != 10*time.Millisecond {
		t.Fatalf("p100 = %v", got)
	}
	if got := tracker.Percentile(50); got != 5*time.Millisecond {
		t.Fatalf("p50 = %v", got)
	}
}

func TestLatencyTrackerEvictsOldest(t *testing.T) {
	tracker := NewLatencyTracker(4)
	for i := 1; i <= 6; i++ {
		tracker.Observe(time.Duration(i) * time.Second)
	}
	if got := tracker.Count(); got != 4 {
		t.Fatalf("count = %d, want capped at 4", got)
	}
	if got := tracker.Percentile(100); got != 6*time.Second {
		t.Fatalf("max after eviction = %v", got)
	}
	if got := tracker.Percentile(0); got != 3*time.Second {
		t.Fatalf("min after eviction = %v, oldest samples should be gone", got)
	}
}

func TestWindowEnding(t *testing.T) {
	end := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	start, got := WindowEnding(end, 15*time.Minute)
	if !got.Equal(end) {
		t.Fatalf("end = %v", got)
	}
	if !start.Equal(end.Add(-15 * time.Minute)) {
		t.Fatalf("start = %v", start)
	}
}

func TestAbsGap(t *testing.T) {
	a := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b := a.Add(10 * time.Second)
	if AbsGap(a, b) != 10*time.Second || AbsGap(b, a) != 10*time.Second {
		t.Fatal("gap should be symmetric")
	}
}
