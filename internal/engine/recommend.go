package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/obsstack/aiops-rca/internal/features"
	"github.com/obsstack/aiops-rca/internal/models"
)

// heapPressureRatio splits the out-of-memory branch between heap-sizing and
// container/native-memory remediation.
const heapPressureRatio = 0.85

// KeywordRule is one operator-supplied message rule loaded from a YAML pack.
type KeywordRule struct {
	ID         string   `yaml:"id"`
	Keywords   []string `yaml:"keywords"`
	Suggestion string   `yaml:"suggestion"`
}

type rulePackFile struct {
	Rules []KeywordRule `yaml:"rules"`
}

// SuggestionEngine maps a root-cause record's message and metric exceedances
// to an ordered list of remediation hints. The built-in rules are fixed;
// operators may extend them with a keyword rule pack.
type SuggestionEngine struct {
	extra  []KeywordRule
	logger *slog.Logger
}

// NewSuggestionEngine loads the optional rule pack at path; an empty or
// missing path yields an engine with only the built-in rules.
func NewSuggestionEngine(path string, logger *slog.Logger) (*SuggestionEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	engine := &SuggestionEngine{logger: logger}
	if path == "" {
		return engine, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return engine, nil
		}
		return nil, fmt.Errorf("read rule pack: %w", err)
	}
	var pack rulePackFile
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parse rule pack: %w", err)
	}
	engine.extra = pack.Rules
	return engine, nil
}

// Suggest evaluates the ordered rule list against an immutable view of the
// record and accumulates every match. The out-of-memory branch runs first;
// exceedance rules append independently, except that the heap-exceedance hint
// is suppressed once the OOM branch has already spoken for the heap. If
// nothing matched, a keyword cascade over the message returns exactly one
// fallback suggestion.
func (e *SuggestionEngine) Suggest(rec models.EnrichedRecord, exc features.Exceedances, heapRatio float64) []string {
	msg := strings.ToLower(rec.Message)
	svc := rec.Service
	matched := make([]string, 0, 4)

	oomFired := false
	if strings.Contains(msg, "outofmemory") || strings.Contains(msg, "out of memory") {
		oomFired = true
		if heapRatio > heapPressureRatio {
			matched = append(matched, fmt.Sprintf("%s: JVM heap exhausted (%.0f%% used); capture a heap dump and look for leaks, or raise -Xmx", svc, heapRatio*100))
		} else {
			matched = append(matched, fmt.Sprintf("%s: OOM with headroom on the JVM heap; check container memory limits and native/off-heap allocations", svc))
		}
	}

	if exc.Latency > 0 {
		matched = append(matched, fmt.Sprintf("%s: p95 latency %.0fms over the alert threshold; profile slow endpoints and downstream calls", svc, exc.Latency))
	}
	if exc.CPU > 0 {
		matched = append(matched, fmt.Sprintf("%s: CPU usage %.0f%% above threshold; check for busy loops or undersized replicas", svc, exc.CPU*100))
	}
	if exc.HeapRatio > 0 && !oomFired {
		matched = append(matched, fmt.Sprintf("%s: JVM heap usage past %.0f%% of max; review allocation rate and GC logs", svc, heapPressureRatio*100))
	}
	if exc.ErrorRate > 0 {
		matched = append(matched, fmt.Sprintf("%s: elevated 5xx error rate; inspect recent deployments and dependency health", svc))
	}
	if exc.HikariCP > 0 {
		matched = append(matched, fmt.Sprintf("%s: connection pool near saturation; look for leaked or long-held connections and tune pool size", svc))
	}

	for _, rule := range e.extra {
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(msg, strings.ToLower(kw)) {
				matched = append(matched, fmt.Sprintf("%s: %s", svc, rule.Suggestion))
				break
			}
		}
	}

	if len(matched) > 0 {
		return dedupe(matched)
	}
	return []string{fallbackSuggestion(svc, msg)}
}

// fallbackSuggestion is the keyword cascade from the original triage playbook;
// first match wins.
func fallbackSuggestion(svc, msg string) string {
	switch {
	case strings.Contains(msg, "timeout"):
		return fmt.Sprintf("%s: Increase timeout or inspect slow dependencies", svc)
	case strings.Contains(msg, "connection refused"):
		return fmt.Sprintf("%s: Target service down or unreachable; verify it is running and the port is open", svc)
	case strings.Contains(msg, "connection"):
		return fmt.Sprintf("%s: Investigate DB or network connection stability", svc)
	case strings.Contains(msg, "jta"), strings.Contains(msg, "transaction"):
		return fmt.Sprintf("%s: Review transaction boundaries or DB locks", svc)
	case strings.Contains(msg, "nomapping"), strings.Contains(msg, "page not found"):
		return fmt.Sprintf("%s: Verify controller endpoint or routing config", svc)
	case strings.Contains(msg, "database"), strings.Contains(msg, "query"):
		return fmt.Sprintf("%s: Review DB performance or slow queries", svc)
	case strings.Contains(msg, "exception"):
		return fmt.Sprintf("%s: Check stack trace and root exception", svc)
	}
	return fmt.Sprintf("%s: Review correlated logs and metrics for deeper context", svc)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
