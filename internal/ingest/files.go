package ingest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/obsstack/aiops-rca/internal/models"
	"github.com/obsstack/aiops-rca/internal/utils"
)

// The fetch stages hand their output to the analyze stage through plain text
// files, one per service, so each stage can be run and inspected on its own.
// Log files carry `<iso ts>\t<raw line>` rows; metric files carry
// `## METRIC: <name>` section headers followed by `<iso ts>\t<value>` rows.

// WriteRawLogs persists fetched log lines for one service.
func WriteRawLogs(path string, meta []string, lines []RawLine) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, m := range meta {
		fmt.Fprintf(w, "# %s\n", m)
	}
	if len(meta) > 0 {
		fmt.Fprintln(w)
	}
	for _, line := range lines {
		fmt.Fprintf(w, "%s\t%s\n", line.Timestamp.Format(time.RFC3339Nano), line.Line)
	}
	return w.Flush()
}

// ReadRawLogs returns the raw log payload lines from a fetched file,
// stripping the ingestion-timestamp column and comment headers.
func ReadRawLogs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	lines := make([]string, 0)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if ts, rest, ok := strings.Cut(line, "\t"); ok {
			if _, err := utils.ParseRFC3339(ts); err == nil {
				lines = append(lines, rest)
				continue
			}
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log file: %w", err)
	}
	return lines, nil
}

// WriteMetricSamples persists one service's samples grouped by metric name.
func WriteMetricSamples(path, service string, samples []models.MetricSample) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metric dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metric file: %w", err)
	}
	defer f.Close()

	byName := make(map[models.MetricName][]models.MetricSample)
	for _, s := range samples {
		byName[s.Name] = append(byName[s.Name], s)
	}

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# SERVICE=%s\n\n", service)
	for _, name := range models.MetricNames() {
		group := byName[name]
		if len(group) == 0 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Timestamp.Before(group[j].Timestamp)
		})
		fmt.Fprintf(w, "## METRIC: %s\n", name)
		for _, s := range group {
			fmt.Fprintf(w, "%s\t%s\n", s.Timestamp.Format(time.RFC3339), strconv.FormatFloat(s.Value, 'g', -1, 64))
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

// ReadMetricSamples parses a metric handoff file back into flat samples.
func ReadMetricSamples(path, service string) ([]models.MetricSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metric file: %w", err)
	}
	defer f.Close()

	samples := make([]models.MetricSample, 0)
	var current models.MetricName

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "## METRIC:"):
			current = models.MetricName(strings.TrimSpace(strings.TrimPrefix(line, "## METRIC:")))
			continue
		case strings.HasPrefix(line, "#"):
			continue
		}
		if current == "" {
			continue
		}

		tsPart, valPart, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		ts, err := utils.ParseRFC3339(tsPart)
		if err != nil {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(valPart), 64)
		if err != nil {
			continue
		}
		samples = append(samples, models.MetricSample{
			Timestamp: ts.UTC(),
			Service:   service,
			Name:      current,
			Value:     value,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan metric file: %w", err)
	}
	return samples, nil
}
