package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/obsstack/aiops-rca/internal/features"
	"github.com/obsstack/aiops-rca/internal/models"
)

func record(service, msg string) models.EnrichedRecord {
	return models.EnrichedRecord{
		LogEvent: models.LogEvent{Service: service, Message: msg},
	}
}

func TestSuggestOOMHeapExhausted(t *testing.T) {
	engine, err := NewSuggestionEngine("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := engine.Suggest(record("accounts-ms", "java.lang.OutOfMemoryError: Java heap space"), features.Exceedances{}, 0.93)
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %v", got)
	}
	if !strings.Contains(got[0], "heap dump") {
		t.Fatalf("expected heap-sizing hint, got %q", got[0])
	}
	if !strings.HasPrefix(got[0], "accounts-ms: ") {
		t.Fatalf("missing service prefix: %q", got[0])
	}
}

func TestSuggestOOMWithHeadroom(t *testing.T) {
	engine, _ := NewSuggestionEngine("", nil)

	got := engine.Suggest(record("loans-ms", "killed: out of memory"), features.Exceedances{}, 0.40)
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %v", got)
	}
	if !strings.Contains(got[0], "container memory limits") {
		t.Fatalf("expected native-memory hint, got %q", got[0])
	}
}

func TestSuggestHeapExceedanceSuppressedAfterOOM(t *testing.T) {
	engine, _ := NewSuggestionEngine("", nil)
	exc := features.Exceedances{HeapRatio: 0.07}

	got := engine.Suggest(record("accounts-ms", "OutOfMemoryError"), exc, 0.92)
	for _, s := range got {
		if strings.Contains(s, "GC logs") {
			t.Fatalf("heap exceedance hint should be suppressed by the OOM branch: %v", got)
		}
	}

	got = engine.Suggest(record("accounts-ms", "request failed with exception"), exc, 0.92)
	found := false
	for _, s := range got {
		if strings.Contains(s, "GC logs") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected heap exceedance hint without OOM, got %v", got)
	}
}

func TestSuggestExceedancesAccumulate(t *testing.T) {
	engine, _ := NewSuggestionEngine("", nil)
	exc := features.Exceedances{
		Latency:   250,
		CPU:       0.10,
		ErrorRate: 0.05,
		HikariCP:  2,
	}

	got := engine.Suggest(record("cards-ms", "too many requests"), exc, 0.1)
	if len(got) != 4 {
		t.Fatalf("expected 4 suggestions, got %v", got)
	}
}

func TestSuggestFallbackCascade(t *testing.T) {
	engine, _ := NewSuggestionEngine("", nil)

	cases := []struct {
		msg  string
		want string
	}{
		{"read timeout waiting for response", "Increase timeout"},
		{"Connection refused to db", "down or unreachable"},
		{"connection reset by peer", "connection stability"},
		{"JTA rollback triggered", "transaction boundaries"},
		{"NoMapping found for GET /foo", "routing config"},
		{"slow query detected", "slow queries"},
		{"NullPointerException at handler", "stack trace"},
		{"something odd happened", "deeper context"},
	}

	for _, tc := range cases {
		got := engine.Suggest(record("svc", tc.msg), features.Exceedances{}, 0)
		if len(got) != 1 {
			t.Fatalf("%q: fallback must return exactly one suggestion, got %v", tc.msg, got)
		}
		if !strings.Contains(got[0], tc.want) {
			t.Fatalf("%q: got %q, want substring %q", tc.msg, got[0], tc.want)
		}
	}
}

func TestSuggestRulePack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	pack := `rules:
  - id: circuit-breaker
    keywords: ["circuitbreaker", "circuit breaker"]
    suggestion: Circuit breaker open; check the downstream service and half-open settings
`
	if err := os.WriteFile(path, []byte(pack), 0o644); err != nil {
		t.Fatalf("write rule pack: %v", err)
	}

	engine, err := NewSuggestionEngine(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := engine.Suggest(record("gateway-ms", "CircuitBreaker 'loans' is OPEN"), features.Exceedances{}, 0)
	if len(got) != 1 || !strings.Contains(got[0], "Circuit breaker open") {
		t.Fatalf("expected rule pack match, got %v", got)
	}
}

func TestSuggestMissingRulePackTolerated(t *testing.T) {
	engine, err := NewSuggestionEngine(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if err != nil {
		t.Fatalf("missing rule pack should not fail: %v", err)
	}
	if engine == nil {
		t.Fatal("expected engine")
	}
}
