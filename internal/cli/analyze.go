package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/obsstack/aiops-rca/internal/config"
	"github.com/obsstack/aiops-rca/internal/correlate"
	"github.com/obsstack/aiops-rca/internal/engine"
	"github.com/obsstack/aiops-rca/internal/ingest"
	"github.com/obsstack/aiops-rca/internal/metrics"
	"github.com/obsstack/aiops-rca/internal/models"
	"github.com/obsstack/aiops-rca/internal/repo"
	"github.com/obsstack/aiops-rca/internal/report"
	"github.com/obsstack/aiops-rca/internal/utils"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Correlate fetched signals, score anomalies, and write the RCA report",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer finish(cfg, logger)
		return analyze(cmd.Context(), cfg, logger)
	},
}

func analyze(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	events, samples, err := loadSignals(cfg, logger)
	if err != nil {
		return err
	}
	metrics.AddIngested(metrics.SignalLogs, len(events))
	metrics.AddIngested(metrics.SignalMetrics, len(samples))

	suggester, err := engine.NewSuggestionEngine(cfg.Suggestions.RulesPath, logger)
	if err != nil {
		return utils.NewStageError("analyze", "load suggestion rules", err)
	}

	pipeline := engine.NewPipeline(
		logger,
		cfg.Analysis,
		correlate.NewCorrelator(cfg.Analysis.JoinTolerance),
		suggester,
	)

	rep, err := pipeline.Analyze(events, samples)
	if err != nil {
		return utils.NewStageError("analyze", "pipeline failed", err)
	}

	writer := report.NewWriter(cfg.Output.ReportPath, cfg.Output.Indent)
	if err := writer.Write(rep); err != nil {
		return utils.NewStageError("analyze", "write report", err)
	}
	metrics.ReportWritten()

	if cfg.Store.Enabled && cfg.Store.DSN != "" {
		store, err := repo.NewReportStore(ctx, cfg.Store.DSN, logger)
		if err != nil {
			logger.Warn("report store unavailable", slog.Any("error", err))
		} else {
			defer store.Close()
			if err := store.SaveReport(ctx, rep); err != nil {
				logger.Warn("failed to persist report", slog.Any("error", err))
			}
		}
	}

	logger.Info("report ready",
		slog.String("path", cfg.Output.ReportPath),
		slog.String("run_id", rep.RunID),
		slog.Int("anomalies", rep.Summary.AnomalyCount),
	)
	return nil
}

// loadSignals reads the per-service handoff files written by the fetch
// stages. A missing file for one service is tolerated; a window where a
// service produced nothing is normal.
func loadSignals(cfg *config.Config, logger *slog.Logger) ([]models.LogEvent, []models.MetricSample, error) {
	events := make([]models.LogEvent, 0)
	samples := make([]models.MetricSample, 0)

	for _, svc := range cfg.Services {
		logPath := filepath.Join(cfg.Loki.OutDir, svc+".txt")
		lines, err := ingest.ReadRawLogs(logPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("no log file for service", slog.String("service", svc), slog.String("path", logPath))
			} else {
				return nil, nil, utils.NewStageError("analyze", "read logs", err)
			}
		} else {
			events = append(events, ingest.ParseLogLines(lines)...)
		}

		metricPath := filepath.Join(cfg.Prometheus.OutDir, svc+".txt")
		svcSamples, err := ingest.ReadMetricSamples(metricPath, svc)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("no metric file for service", slog.String("service", svc), slog.String("path", metricPath))
			} else {
				return nil, nil, utils.NewStageError("analyze", "read metrics", err)
			}
		} else {
			samples = append(samples, svcSamples...)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, samples, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: fetch logs, fetch metrics, analyze",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer finish(cfg, logger)

		stages := []struct {
			name string
			fn   func(context.Context, *config.Config, *slog.Logger) error
		}{
			{"fetch-logs", fetchLogs},
			{"fetch-metrics", fetchMetrics},
			{"analyze", analyze},
		}

		for _, stage := range stages {
			began := time.Now()
			logger.Info("stage starting", slog.String("stage", stage.name))
			if err := stage.fn(cmd.Context(), cfg, logger); err != nil {
				return err
			}
			logger.Info("stage finished",
				slog.String("stage", stage.name),
				slog.Duration("elapsed", time.Since(began)),
			)
		}
		return nil
	},
}
