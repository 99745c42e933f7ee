package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/obsstack/aiops-rca/internal/config"
	"github.com/obsstack/aiops-rca/internal/correlate"
	"github.com/obsstack/aiops-rca/internal/features"
	"github.com/obsstack/aiops-rca/internal/forest"
	"github.com/obsstack/aiops-rca/internal/metrics"
	"github.com/obsstack/aiops-rca/internal/models"
	"github.com/obsstack/aiops-rca/internal/report"
)

// Pipeline runs the single-pass batch analysis: correlate, featurize, score,
// aggregate, report. It performs no I/O of its own; inputs and the finished
// report are handed over as data.
type Pipeline struct {
	logger     *slog.Logger
	cfg        config.AnalysisConfig
	correlator *correlate.Correlator
	suggester  *SuggestionEngine
}

// NewPipeline constructs the analysis pipeline.
func NewPipeline(logger *slog.Logger, cfg config.AnalysisConfig, correlator *correlate.Correlator, suggester *SuggestionEngine) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if correlator == nil {
		correlator = correlate.NewCorrelator(cfg.JoinTolerance)
	}
	if suggester == nil {
		suggester, _ = NewSuggestionEngine("", logger)
	}
	return &Pipeline{
		logger:     logger,
		cfg:        cfg,
		correlator: correlator,
		suggester:  suggester,
	}
}

// Analyze executes the full flow over one bounded window of signals.
func (p *Pipeline) Analyze(events []models.LogEvent, samples []models.MetricSample) (models.Report, error) {
	if len(events) == 0 {
		return models.Report{}, &EmptyInputError{}
	}
	for i, event := range events {
		if event.TraceID == "" {
			return models.Report{}, &MalformedRecordError{Index: i, Field: "trace_id"}
		}
		if event.Service == "" {
			return models.Report{}, &MalformedRecordError{Index: i, Field: "service"}
		}
	}

	start := time.Now()
	snapshots := correlate.Pivot(samples)
	enriched := p.correlator.Join(events, snapshots)
	metrics.ObserveStage("correlate", time.Since(start))
	if len(snapshots) == 0 {
		p.logger.Warn("metric stream empty, proceeding with zero-filled metrics")
	}

	scored := p.filter(enriched)
	if len(scored) == 0 {
		p.logger.Info("all log events informational, nothing suspicious found")
		return report.Empty(), nil
	}

	start = time.Now()
	vocab := features.BuildVocabulary(scored)
	engineer := features.NewEngineer(vocab, p.cfg.Thresholds)
	matrix := features.Standardize(engineer.Matrix(scored))
	metrics.ObserveStage("featurize", time.Since(start))

	start = time.Now()
	model := forest.New(forest.Options{
		Trees:     p.cfg.Trees,
		Subsample: p.cfg.Subsample,
		Seed:      p.cfg.Seed,
		Workers:   p.cfg.Workers,
	})
	if err := model.Fit(matrix); err != nil {
		var trainErr *forest.TrainingError
		if errors.As(err, &trainErr) && p.cfg.FallbackOnTrainingError {
			p.logger.Warn("model training failed, falling back to all-normal report", slog.Any("error", err))
			return report.Empty(), nil
		}
		return models.Report{}, fmt.Errorf("train model: %w", err)
	}

	scores := model.Scores(matrix)
	flags := forest.FlagTop(scores, p.cfg.Contamination)
	metrics.ObserveStage("detect", time.Since(start))

	results := make([]models.AnomalyResult, len(scored))
	anomalyCount := 0
	for i := range scored {
		results[i] = models.AnomalyResult{Score: scores[i], IsAnomaly: flags[i]}
		if flags[i] {
			anomalyCount++
		}
	}
	metrics.AddAnomalies(anomalyCount)
	p.logger.Info("anomaly detection complete",
		slog.Int("scored", len(scored)),
		slog.Int("anomalies", anomalyCount),
	)

	start = time.Now()
	rcaRecords := aggregateTraces(scored, results, enriched, func(rec models.EnrichedRecord) []string {
		return p.suggester.Suggest(rec, engineer.ExceedancesFor(rec), engineer.HeapRatioFor(rec))
	})
	rep := report.Build(scored, results, rcaRecords)
	metrics.ObserveStage("aggregate", time.Since(start))

	return rep, nil
}

// filter drops records excluded from scoring: INFO-level events and messages
// matching the benign startup ignore list.
func (p *Pipeline) filter(records []models.EnrichedRecord) []models.EnrichedRecord {
	ignore := p.cfg.IgnoreMessages
	if ignore == nil {
		ignore = config.DefaultIgnoreMessages()
	}

	kept := make([]models.EnrichedRecord, 0, len(records))
	for _, rec := range records {
		if rec.Level == models.LevelInfo {
			continue
		}
		if matchesAny(strings.ToLower(rec.Message), ignore) {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

func matchesAny(msg string, patterns []string) bool {
	for _, pat := range patterns {
		if pat != "" && strings.Contains(msg, strings.ToLower(pat)) {
			return true
		}
	}
	return false
}
