package ingest

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/obsstack/aiops-rca/internal/models"
)

// linePattern matches the Spring-style log layout the monitored services
// emit: `<iso ts>Z LEVEL [service,trace,span] ... logger.Class : message`.
var linePattern = regexp.MustCompile(
	`(?P<timestamp>\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d+)Z\s+` +
		`(?P<level>[A-Z]+)\s+\[(?P<service>[^,\]]+),(?P<trace>[^,\]]*),(?P<span>[^\]]*)\]\s.*?` +
		`(?P<class>[a-zA-Z0-9_.$]+)\s*:\s(?P<message>.*)`,
)

// ParseLogLines converts raw log lines into LogEvents sorted by timestamp.
// Lines that do not match the layout are continuations (stack traces,
// wrapped messages) and get merged into the preceding record's message with
// a ` | ` joiner, so one multi-line log statement yields one event.
func ParseLogLines(lines []string) []models.LogEvent {
	events := make([]models.LogEvent, 0, len(lines))
	var current *models.LogEvent

	flush := func() {
		if current != nil {
			events = append(events, *current)
			current = nil
		}
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		match := linePattern.FindStringSubmatch(line)
		if match == nil {
			if current != nil {
				current.Message += " | " + line
			}
			continue
		}

		flush()
		fields := namedGroups(match)
		ts, err := time.Parse(time.RFC3339Nano, fields["timestamp"]+"Z")
		if err != nil {
			continue
		}
		current = &models.LogEvent{
			Timestamp: ts.UTC(),
			Level:     models.Level(fields["level"]),
			Service:   strings.TrimSpace(fields["service"]),
			TraceID:   strings.TrimSpace(fields["trace"]),
			SpanID:    strings.TrimSpace(fields["span"]),
			ClassName: fields["class"],
			Message:   fields["message"],
		}
	}
	flush()

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

func namedGroups(match []string) map[string]string {
	fields := make(map[string]string, len(match))
	for i, name := range linePattern.SubexpNames() {
		if name != "" && i < len(match) {
			fields[name] = match[i]
		}
	}
	return fields
}
