package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/obsstack/aiops-rca/internal/config"
	"github.com/obsstack/aiops-rca/internal/metrics"
	"github.com/obsstack/aiops-rca/internal/utils"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "aiops-rca",
	Short: "Root-cause analysis over correlated logs and metrics",
	Long: `aiops-rca collects application logs from Loki and service metrics from
Prometheus over a bounded time window, correlates them in time, scores each
log event with an isolation-forest ensemble, and emits a ranked root-cause
report with remediation hints.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree, reporting errors on stderr.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to configuration file")

	rootCmd.AddCommand(fetchLogsCmd)
	rootCmd.AddCommand(fetchMetricsCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads configuration, builds the logger, and registers collectors.
// Every subcommand starts here.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, nil, fmt.Errorf("register metrics: %w", err)
	}
	return cfg, logger, nil
}

// finish pushes run metrics to the configured gateway, if any.
func finish(cfg *config.Config, logger *slog.Logger) {
	if !cfg.Push.Enabled || cfg.Push.Gateway == "" {
		return
	}
	if err := metrics.Push(cfg.Push.Gateway, cfg.Push.Job); err != nil {
		logger.Warn("pushgateway push failed", slog.Any("error", err))
	}
}
