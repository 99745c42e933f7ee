package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to run the AIOps RCA pipeline.
type Config struct {
	Services    []string         `yaml:"services"`
	Window      time.Duration    `yaml:"window"`
	Loki        LokiConfig       `yaml:"loki"`
	Prometheus  PrometheusConfig `yaml:"prometheus"`
	Analysis    AnalysisConfig   `yaml:"analysis"`
	Suggestions SuggestionConfig `yaml:"suggestions"`
	Output      OutputConfig     `yaml:"output"`
	Store       StoreConfig      `yaml:"store"`
	Logging     LoggingConfig    `yaml:"logging"`
	Push        PushConfig       `yaml:"push"`
}

// LokiConfig configures paginated log collection.
type LokiConfig struct {
	BaseURL  string        `yaml:"baseURL"`
	TenantID string        `yaml:"tenantID"`
	Label    string        `yaml:"label"`
	Filter   string        `yaml:"filter"`
	Limit    int           `yaml:"limit"`
	Timeout  time.Duration `yaml:"timeout"`
	OutDir   string        `yaml:"outDir"`
}

// PrometheusConfig configures metric collection.
type PrometheusConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Label   string        `yaml:"label"`
	Step    time.Duration `yaml:"step"`
	Timeout time.Duration `yaml:"timeout"`
	OutDir  string        `yaml:"outDir"`
}

// Thresholds holds the per-metric alert levels used for exceedance features.
type Thresholds struct {
	LatencyP95MS   float64 `yaml:"latencyP95Ms"`
	CPUUsage       float64 `yaml:"cpuUsage"`
	ErrorRate      float64 `yaml:"errorRate"`
	HeapUsageRatio float64 `yaml:"heapUsageRatio"`
	HikariCPActive float64 `yaml:"hikaricpActive"`
}

// AnalysisConfig controls the correlation and anomaly-detection core.
type AnalysisConfig struct {
	Contamination           float64       `yaml:"contamination"`
	Trees                   int           `yaml:"trees"`
	Subsample               int           `yaml:"subsample"`
	Seed                    int64         `yaml:"seed"`
	Workers                 int           `yaml:"workers"`
	JoinTolerance           time.Duration `yaml:"joinTolerance"`
	Thresholds              Thresholds    `yaml:"thresholds"`
	IgnoreMessages          []string      `yaml:"ignoreMessages"`
	FallbackOnTrainingError bool          `yaml:"fallbackOnTrainingError"`
}

// SuggestionConfig controls optional keyword rule-pack loading.
type SuggestionConfig struct {
	RulesPath string `yaml:"rulesPath"`
}

// OutputConfig controls report writing.
type OutputConfig struct {
	ReportPath string `yaml:"reportPath"`
	Indent     bool   `yaml:"indent"`
}

// StoreConfig controls optional Postgres persistence of finished reports.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// PushConfig controls end-of-run metric pushes to a Prometheus Pushgateway.
type PushConfig struct {
	Enabled bool   `yaml:"enabled"`
	Gateway string `yaml:"gateway"`
	Job     string `yaml:"job"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("AIOPS_RCA_CONFIG")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// DefaultIgnoreMessages lists benign startup phrases excluded from scoring.
func DefaultIgnoreMessages() []string {
	return []string{
		"completed initialization",
		"application started",
		"service ready",
		"server started",
		"started successfully",
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Services: []string{"accounts-ms", "loans-ms", "cards-ms", "gatewayserver-ms", "eurekaserver-ms"},
		Window:   15 * time.Minute,
		Loki: LokiConfig{
			BaseURL:  "http://localhost:3100",
			TenantID: "tenant1",
			Label:    "container",
			Limit:    5000,
			Timeout:  30 * time.Second,
			OutDir:   "ops/logs",
		},
		Prometheus: PrometheusConfig{
			BaseURL: "http://localhost:9090",
			Label:   "service",
			Step:    time.Minute,
			Timeout: 30 * time.Second,
			OutDir:  "ops/metrics",
		},
		Analysis: AnalysisConfig{
			Contamination: 0.08,
			Trees:         100,
			Subsample:     256,
			Seed:          42,
			Workers:       4,
			JoinTolerance: 15 * time.Second,
			Thresholds: Thresholds{
				LatencyP95MS:   1000,
				CPUUsage:       0.85,
				ErrorRate:      0.10,
				HeapUsageRatio: 0.85,
				HikariCPActive: 9,
			},
			IgnoreMessages: DefaultIgnoreMessages(),
		},
		Output:  OutputConfig{ReportPath: "aiops_report.json", Indent: true},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Push:    PushConfig{Job: "aiops-rca"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AIOPS_RCA_SERVICES"); v != "" {
		parts := strings.Split(v, ",")
		services := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				services = append(services, p)
			}
		}
		if len(services) > 0 {
			cfg.Services = services
		}
	}
	if v := os.Getenv("AIOPS_RCA_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Window = d
		}
	}
	if v := os.Getenv("AIOPS_RCA_LOKI_URL"); v != "" {
		cfg.Loki.BaseURL = v
	}
	if v := os.Getenv("AIOPS_RCA_LOKI_TENANT"); v != "" {
		cfg.Loki.TenantID = v
	}
	if v := os.Getenv("AIOPS_RCA_PROM_URL"); v != "" {
		cfg.Prometheus.BaseURL = v
	}
	if v := os.Getenv("AIOPS_RCA_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Analysis.Seed = seed
		}
	}
	if v := os.Getenv("AIOPS_RCA_CONTAMINATION"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil && rate > 0 && rate < 1 {
			cfg.Analysis.Contamination = rate
		}
	}
	if v := os.Getenv("AIOPS_RCA_TREES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Analysis.Trees = n
		}
	}
	if v := os.Getenv("AIOPS_RCA_REPORT_PATH"); v != "" {
		cfg.Output.ReportPath = v
	}
	if v := os.Getenv("AIOPS_RCA_RULES_PATH"); v != "" {
		cfg.Suggestions.RulesPath = v
	}
	if v := os.Getenv("AIOPS_RCA_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
		cfg.Store.Enabled = true
	}
	if v := os.Getenv("AIOPS_RCA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AIOPS_RCA_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("AIOPS_RCA_PUSHGATEWAY"); v != "" {
		cfg.Push.Gateway = v
		cfg.Push.Enabled = true
	}
}
