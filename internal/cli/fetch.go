package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/obsstack/aiops-rca/internal/config"
	"github.com/obsstack/aiops-rca/internal/ingest"
	"github.com/obsstack/aiops-rca/internal/metrics"
	"github.com/obsstack/aiops-rca/internal/utils"
)

var fetchLogsCmd = &cobra.Command{
	Use:   "fetch-logs",
	Short: "Fetch raw logs from Loki into per-service files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer finish(cfg, logger)
		return fetchLogs(cmd.Context(), cfg, logger)
	},
}

var fetchMetricsCmd = &cobra.Command{
	Use:   "fetch-metrics",
	Short: "Fetch service metrics from Prometheus into per-service files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer finish(cfg, logger)
		return fetchMetrics(cmd.Context(), cfg, logger)
	},
}

func fetchLogs(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	client := ingest.NewLokiClient(cfg.Loki, logger)
	start, end := utils.WindowEnding(time.Now().UTC(), cfg.Window)
	began := time.Now()

	total := 0
	for _, svc := range cfg.Services {
		selector := ingest.Selector(cfg.Loki.Label, svc, cfg.Loki.Filter)
		lines, err := client.FetchRange(ctx, selector, start, end)
		if err != nil {
			return utils.NewStageError("fetch-logs", fmt.Sprintf("service %s", svc), err)
		}

		path := filepath.Join(cfg.Loki.OutDir, svc+".txt")
		meta := []string{
			fmt.Sprintf("LOKI_BASE=%s TENANT=%s", cfg.Loki.BaseURL, cfg.Loki.TenantID),
			fmt.Sprintf("SELECTOR=%s", selector),
			fmt.Sprintf("RANGE=%s..%s UTC", start.Format(time.RFC3339), end.Format(time.RFC3339)),
		}
		if err := ingest.WriteRawLogs(path, meta, lines); err != nil {
			return utils.NewStageError("fetch-logs", fmt.Sprintf("write %s", path), err)
		}

		total += len(lines)
		logger.Info("logs fetched", slog.String("service", svc), slog.Int("lines", len(lines)))
	}

	metrics.AddIngested(metrics.SignalLogs, total)
	metrics.ObserveStage("fetch-logs", time.Since(began))
	logger.Info("log fetch complete", slog.Int("total_lines", total), slog.String("dir", cfg.Loki.OutDir))
	return nil
}

func fetchMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	client := ingest.NewPromClient(cfg.Prometheus, logger)
	start, end := utils.WindowEnding(time.Now().UTC(), cfg.Window)
	began := time.Now()

	total := 0
	for _, svc := range cfg.Services {
		samples, err := client.FetchRange(ctx, svc, start, end)
		if err != nil {
			return utils.NewStageError("fetch-metrics", fmt.Sprintf("service %s", svc), err)
		}

		path := filepath.Join(cfg.Prometheus.OutDir, svc+".txt")
		if err := ingest.WriteMetricSamples(path, svc, samples); err != nil {
			return utils.NewStageError("fetch-metrics", fmt.Sprintf("write %s", path), err)
		}

		total += len(samples)
		logger.Info("metrics fetched", slog.String("service", svc), slog.Int("samples", len(samples)))
	}

	metrics.AddIngested(metrics.SignalMetrics, total)
	metrics.ObserveStage("fetch-metrics", time.Since(began))
	logger.Info("metric fetch complete", slog.Int("total_samples", total), slog.String("dir", cfg.Prometheus.OutDir))
	return nil
}
