package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/obsstack/aiops-rca/internal/config"
	"github.com/obsstack/aiops-rca/internal/models"
	"github.com/obsstack/aiops-rca/internal/utils"
)

const promQueryRangePath = "/api/v1/query_range"

// promQueries templates the PromQL per metric in the closed schema.
// __LABEL__ and __SVC__ are substituted per service.
var promQueries = map[models.MetricName]string{
	models.MetricErrorRate:        `sum(rate(http_server_requests_seconds_count{__LABEL__="__SVC__",status=~"5.."}[5m]))`,
	models.MetricLatencyP95MS:     `histogram_quantile(0.95, sum by (le)(rate(http_server_requests_seconds_bucket{__LABEL__="__SVC__"}[5m]))) * 1000`,
	models.MetricCPUUsage:         `process_cpu_usage{__LABEL__="__SVC__"}`,
	models.MetricJVMHeapUsedBytes: `sum(jvm_memory_used_bytes{__LABEL__="__SVC__",area="heap"})`,
	models.MetricJVMHeapMaxBytes:  `sum(jvm_memory_max_bytes{__LABEL__="__SVC__",area="heap"})`,
	models.MetricHikariCPActive:   `hikaricp_connections_active{__LABEL__="__SVC__"}`,
	models.MetricThroughputRPS:    `sum(rate(http_server_requests_seconds_count{__LABEL__="__SVC__"}[5m]))`,
}

// PromClient fetches the metric schema from a Prometheus query_range API.
type PromClient struct {
	baseURL    string
	label      string
	step       time.Duration
	httpClient *http.Client
	latencies  *utils.LatencyTracker
	logger     *slog.Logger
}

// NewPromClient constructs a client for the configured Prometheus instance.
func NewPromClient(cfg config.PrometheusConfig, logger *slog.Logger) *PromClient {
	if logger == nil {
		logger = slog.Default()
	}
	label := cfg.Label
	if label == "" {
		label = "service"
	}
	step := cfg.Step
	if step <= 0 {
		step = time.Minute
	}
	return &PromClient{
		baseURL:    trimRightSlash(cfg.BaseURL),
		label:      label,
		step:       step,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		latencies:  utils.NewLatencyTracker(256),
		logger:     logger,
	}
}

// FetchRange pulls every metric in the schema for one service over the
// window. A metric with no data contributes no samples and is not an error;
// the join layer treats it as absent.
func (c *PromClient) FetchRange(ctx context.Context, service string, start, end time.Time) ([]models.MetricSample, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("prometheus base URL not configured")
	}

	samples := make([]models.MetricSample, 0)
	for _, name := range models.MetricNames() {
		promql := c.render(promQueries[name], service)
		points, err := c.queryRange(ctx, promql, start, end)
		if err != nil {
			return nil, fmt.Errorf("query %s for %s: %w", name, service, err)
		}
		if len(points) == 0 {
			c.logger.Debug("no data for metric", slog.String("metric", string(name)), slog.String("service", service))
			continue
		}
		for _, pt := range points {
			samples = append(samples, models.MetricSample{
				Timestamp: pt.ts,
				Service:   service,
				Name:      name,
				Value:     pt.value,
			})
		}
	}

	if p95 := c.latencies.Percentile(95); p95 > 0 {
		c.logger.Debug("prometheus fetch complete",
			slog.String("service", service),
			slog.Int("samples", len(samples)),
			slog.Duration("p95", p95),
		)
	}
	return samples, nil
}

func (c *PromClient) render(template, service string) string {
	promql := strings.ReplaceAll(template, "__LABEL__", c.label)
	return strings.ReplaceAll(promql, "__SVC__", service)
}

type promPoint struct {
	ts    time.Time
	value float64
}

func (c *PromClient) queryRange(ctx context.Context, promql string, start, end time.Time) ([]promPoint, error) {
	params := url.Values{}
	params.Set("query", promql)
	params.Set("start", strconv.FormatInt(start.Unix(), 10))
	params.Set("end", strconv.FormatInt(end.Unix(), 10))
	params.Set("step", strconv.FormatInt(int64(c.step.Seconds()), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+promQueryRangePath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build prometheus request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	began := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prometheus request failed: %w", err)
	}
	defer resp.Body.Close()
	c.latencies.Observe(time.Since(began))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return nil, fmt.Errorf("prometheus returned %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Data struct {
			Result []struct {
				Values [][2]json.RawMessage `json:"values"`
			} `json:"result"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode prometheus response: %w", err)
	}

	points := make([]promPoint, 0)
	for _, series := range payload.Data.Result {
		for _, pair := range series.Values {
			var ts float64
			var raw string
			if err := json.Unmarshal(pair[0], &ts); err != nil {
				continue
			}
			if err := json.Unmarshal(pair[1], &raw); err != nil {
				continue
			}
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			points = append(points, promPoint{ts: time.Unix(int64(ts), 0).UTC(), value: value})
		}
	}
	return points, nil
}
