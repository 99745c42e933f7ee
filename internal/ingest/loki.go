package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/obsstack/aiops-rca/internal/config"
	"github.com/obsstack/aiops-rca/internal/utils"
)

const lokiQueryRangePath = "/loki/api/v1/query_range"

// RawLine is one raw log line with its ingestion timestamp.
type RawLine struct {
	Timestamp time.Time
	Line      string
}

// LokiClient pulls raw log lines from a Loki query_range API, paginating
// forward through the window until it is exhausted.
type LokiClient struct {
	baseURL    string
	tenantID   string
	limit      int
	httpClient *http.Client
	latencies  *utils.LatencyTracker
	logger     *slog.Logger
}

// NewLokiClient constructs a client for the configured Loki instance.
func NewLokiClient(cfg config.LokiConfig, logger *slog.Logger) *LokiClient {
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 5000
	}
	return &LokiClient{
		baseURL:    trimRightSlash(cfg.BaseURL),
		tenantID:   cfg.TenantID,
		limit:      limit,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		latencies:  utils.NewLatencyTracker(256),
		logger:     logger,
	}
}

// Selector renders a LogQL stream selector for one service, with an optional
// pipeline filter appended.
func Selector(label, service, filter string) string {
	selector := fmt.Sprintf(`{%s=%q}`, label, service)
	if filter != "" {
		selector += " " + filter
	}
	return selector
}

// FetchRange pages through query_range for a selector, resuming each batch
// from the nanosecond after the last seen entry. Batches arrive per stream,
// so lines are re-sorted by timestamp before returning.
func (c *LokiClient) FetchRange(ctx context.Context, selector string, start, end time.Time) ([]RawLine, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("loki base URL not configured")
	}

	all := make([]RawLine, 0)
	cursor := start.UnixNano()
	endNS := end.UnixNano()

	for {
		batch, lastTS, err := c.fetchBatch(ctx, selector, cursor, endNS)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)

		next := lastTS + 1
		if next <= cursor || next >= endNS {
			break
		}
		cursor = next
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})

	if p95 := c.latencies.Percentile(95); p95 > 0 {
		c.logger.Debug("loki fetch complete",
			slog.String("selector", selector),
			slog.Int("lines", len(all)),
			slog.Duration("p95", p95),
		)
	}
	return all, nil
}

func (c *LokiClient) fetchBatch(ctx context.Context, selector string, startNS, endNS int64) ([]RawLine, int64, error) {
	params := url.Values{}
	params.Set("query", selector)
	params.Set("start", strconv.FormatInt(startNS, 10))
	params.Set("end", strconv.FormatInt(endNS, 10))
	params.Set("limit", strconv.Itoa(c.limit))
	params.Set("direction", "forward")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+lokiQueryRangePath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build loki request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.tenantID != "" {
		req.Header.Set("X-Scope-OrgID", c.tenantID)
	}

	began := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("loki request failed: %w", err)
	}
	defer resp.Body.Close()
	c.latencies.Observe(time.Since(began))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return nil, 0, fmt.Errorf("loki returned %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Data struct {
			Result []struct {
				Values [][2]string `json:"values"`
			} `json:"result"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, 0, fmt.Errorf("decode loki response: %w", err)
	}

	lines := make([]RawLine, 0)
	var lastTS int64
	for _, stream := range payload.Data.Result {
		for _, pair := range stream.Values {
			ns, err := strconv.ParseInt(pair[0], 10, 64)
			if err != nil {
				continue
			}
			lines = append(lines, RawLine{Timestamp: time.Unix(0, ns).UTC(), Line: pair[1]})
			if ns > lastTS {
				lastTS = ns
			}
		}
	}
	return lines, lastTS, nil
}

func trimRightSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
