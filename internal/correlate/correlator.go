package correlate

import (
	"sort"
	"time"

	"github.com/obsstack/aiops-rca/internal/models"
	"github.com/obsstack/aiops-rca/internal/utils"
)

// DefaultTolerance bounds how far apart a log event and a metric snapshot may
// be and still be considered simultaneous.
const DefaultTolerance = 15 * time.Second

// Pivot collapses flat metric samples into wide per-(timestamp, service)
// snapshots, sorted by timestamp. Samples outside the known metric schema are
// dropped by MetricSnapshot.Set.
func Pivot(samples []models.MetricSample) []models.MetricSnapshot {
	type key struct {
		ts      int64
		service string
	}

	index := make(map[key]int)
	snapshots := make([]models.MetricSnapshot, 0)
	for _, sample := range samples {
		k := key{ts: sample.Timestamp.UnixNano(), service: sample.Service}
		i, ok := index[k]
		if !ok {
			i = len(snapshots)
			index[k] = i
			snapshots = append(snapshots, models.MetricSnapshot{
				Timestamp: sample.Timestamp,
				Service:   sample.Service,
			})
		}
		snapshots[i].Set(sample.Name, sample.Value)
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].Timestamp.Before(snapshots[j].Timestamp)
	})
	return snapshots
}

// Correlator joins log events to their nearest metric snapshot per service.
type Correlator struct {
	tolerance time.Duration
}

// NewCorrelator constructs a Correlator with the given tolerance window.
func NewCorrelator(tolerance time.Duration) *Correlator {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Correlator{tolerance: tolerance}
}

// Join produces exactly one EnrichedRecord per input log event, in input
// order. A record gets the same-service snapshot with the smallest absolute
// timestamp gap; gaps beyond the tolerance, or services with no snapshots at
// all, leave the metric fields zeroed. An entirely empty metric stream is a
// degraded-but-valid mode, not an error.
func (c *Correlator) Join(events []models.LogEvent, snapshots []models.MetricSnapshot) []models.EnrichedRecord {
	byService := make(map[string][]models.MetricSnapshot)
	for _, snap := range snapshots {
		byService[snap.Service] = append(byService[snap.Service], snap)
	}
	for service := range byService {
		snaps := byService[service]
		sort.SliceStable(snaps, func(i, j int) bool {
			return snaps[i].Timestamp.Before(snaps[j].Timestamp)
		})
		byService[service] = snaps
	}

	enriched := make([]models.EnrichedRecord, 0, len(events))
	for _, event := range events {
		record := models.EnrichedRecord{LogEvent: event}
		if snap, ok := c.nearest(byService[event.Service], event.Timestamp); ok {
			record.Metrics = snap
			record.MetricsMatched = true
		}
		enriched = append(enriched, record)
	}
	return enriched
}

func (c *Correlator) nearest(snaps []models.MetricSnapshot, ts time.Time) (models.MetricSnapshot, bool) {
	if len(snaps) == 0 {
		return models.MetricSnapshot{}, false
	}

	// First snapshot at or after ts; the best match is it or its predecessor.
	i := sort.Search(len(snaps), func(j int) bool {
		return !snaps[j].Timestamp.Before(ts)
	})

	best := -1
	var bestGap time.Duration
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= len(snaps) {
			continue
		}
		gap := utils.AbsGap(snaps[j].Timestamp, ts)
		if best == -1 || gap < bestGap {
			best = j
			bestGap = gap
		}
	}

	if best == -1 || bestGap > c.tolerance {
		return models.MetricSnapshot{}, false
	}
	return snaps[best], true
}
