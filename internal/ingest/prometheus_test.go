package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/obsstack/aiops-rca/internal/config"
	"github.com/obsstack/aiops-rca/internal/models"
)

func TestFetchRangeDecodesSamples(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var queries []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/query_range" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query().Get("query")
		queries = append(queries, q)

		// Only the CPU query has data; everything else is an empty matrix.
		if !strings.Contains(q, "process_cpu_usage") {
			fmt.Fprint(w, `{"status":"success","data":{"resultType":"matrix","result":[]}}`)
			return
		}
		fmt.Fprintf(w, `{"status":"success","data":{"resultType":"matrix","result":[
			{"metric":{},"values":[[%d,"0.42"],[%d,"0.91"]]}
		]}}`, base.Unix(), base.Add(time.Minute).Unix())
	}))
	defer srv.Close()

	client := NewPromClient(config.PrometheusConfig{
		BaseURL: srv.URL,
		Label:   "application",
		Step:    time.Minute,
		Timeout: 5 * time.Second,
	}, nil)

	samples, err := client.FetchRange(context.Background(), "accounts-ms", base, base.Add(15*time.Minute))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(queries) != len(models.MetricNames()) {
		t.Fatalf("expected one query per metric, got %d", len(queries))
	}
	for _, q := range queries {
		if strings.Contains(q, "__LABEL__") || strings.Contains(q, "__SVC__") {
			t.Fatalf("unsubstituted template: %q", q)
		}
	}
	found := false
	for _, q := range queries {
		if strings.Contains(q, `application="accounts-ms"`) {
			found = true
		}
	}
	if !found {
		t.Fatalf("label substitution missing: %v", queries)
	}

	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %v", samples)
	}
	for _, s := range samples {
		if s.Name != models.MetricCPUUsage || s.Service != "accounts-ms" {
			t.Fatalf("sample = %+v", s)
		}
	}
	if samples[0].Value != 0.42 || samples[1].Value != 0.91 {
		t.Fatalf("values = %v, %v", samples[0].Value, samples[1].Value)
	}
	if !samples[0].Timestamp.Equal(base) {
		t.Fatalf("timestamp = %v", samples[0].Timestamp)
	}
}

func TestFetchRangeEmptyResultIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","data":{"resultType":"matrix","result":[]}}`)
	}))
	defer srv.Close()

	client := NewPromClient(config.PrometheusConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	samples, err := client.FetchRange(context.Background(), "loans-ms", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("empty series should not fail: %v", err)
	}
	if len(samples) != 0 {
		t.Fatalf("samples = %v", samples)
	}
}

func TestFetchRangeSurfacesQueryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":"error","error":"bad promql"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewPromClient(config.PrometheusConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	if _, err := client.FetchRange(context.Background(), "cards-ms", time.Now().Add(-time.Hour), time.Now()); err == nil {
		t.Fatal("expected an error")
	}
}
