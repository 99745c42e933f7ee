package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/obsstack/aiops-rca/internal/config"
)

type lokiBatch struct {
	values [][2]string
}

func lokiResponse(batches ...lokiBatch) http.HandlerFunc {
	call := 0
	return func(w http.ResponseWriter, r *http.Request) {
		var values [][2]string
		if call < len(batches) {
			values = batches[call].values
		}
		call++

		payload := map[string]any{
			"status": "success",
			"data": map[string]any{
				"resultType": "streams",
				"result": []map[string]any{
					{"stream": map[string]string{"service": "accounts-ms"}, "values": values},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	}
}

func TestSelector(t *testing.T) {
	got := Selector("service", "accounts-ms", `|= "ERROR"`)
	want := `{service="accounts-ms"} |= "ERROR"`
	if got != want {
		t.Fatalf("selector = %q, want %q", got, want)
	}

	got = Selector("app", "loans-ms", "")
	if got != `{app="loans-ms"}` {
		t.Fatalf("selector = %q", got)
	}
}

func TestFetchRangePaginates(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ns := func(offset time.Duration) string {
		return strconv.FormatInt(base.Add(offset).UnixNano(), 10)
	}

	var gotStarts []string
	handler := lokiResponse(
		lokiBatch{values: [][2]string{{ns(0), "line one"}, {ns(time.Second), "line two"}}},
		lokiBatch{values: [][2]string{{ns(2 * time.Second), "line three"}}},
		lokiBatch{},
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/query_range" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if tenant := r.Header.Get("X-Scope-OrgID"); tenant != "bank" {
			t.Errorf("tenant header = %q", tenant)
		}
		gotStarts = append(gotStarts, r.URL.Query().Get("start"))
		handler(w, r)
	}))
	defer srv.Close()

	client := NewLokiClient(config.LokiConfig{
		BaseURL:  srv.URL,
		TenantID: "bank",
		Limit:    2,
		Timeout:  5 * time.Second,
	}, nil)

	lines, err := client.FetchRange(context.Background(), `{service="accounts-ms"}`, base, base.Add(15*time.Minute))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %v", lines)
	}
	for i, want := range []string{"line one", "line two", "line three"} {
		if lines[i].Line != want {
			t.Fatalf("line %d = %q, want %q", i, lines[i].Line, want)
		}
	}
	if len(gotStarts) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(gotStarts))
	}
	wantSecond := strconv.FormatInt(base.Add(time.Second).UnixNano()+1, 10)
	if gotStarts[1] != wantSecond {
		t.Fatalf("second cursor = %s, want %s", gotStarts[1], wantSecond)
	}
}

func TestFetchRangeSortsAcrossStreams(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"status":"success","data":{"resultType":"streams","result":[
			{"stream":{},"values":[["%d","later"]]},
			{"stream":{},"values":[["%d","earlier"]]}
		]}}`, base.Add(10*time.Second).UnixNano(), base.UnixNano())
	}))
	defer srv.Close()

	client := NewLokiClient(config.LokiConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	lines, err := client.FetchRange(context.Background(), `{service="x"}`, base, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(lines) != 2 || lines[0].Line != "earlier" || lines[1].Line != "later" {
		t.Fatalf("lines = %v", lines)
	}
}

func TestFetchRangeSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "parse error in query", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewLokiClient(config.LokiConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	_, err := client.FetchRange(context.Background(), "{bad", time.Now().Add(-time.Minute), time.Now())
	if err == nil {
		t.Fatal("expected an error")
	}
}
