package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/obsstack/aiops-rca/internal/models"
)

// Writer serializes finished reports to a JSON file sink. The document is
// write-once: each Write replaces the file atomically via a rename.
type Writer struct {
	path   string
	indent bool
}

// NewWriter constructs a Writer targeting path.
func NewWriter(path string, indent bool) *Writer {
	return &Writer{path: path, indent: indent}
}

// Write marshals and persists the report.
func (w *Writer) Write(rep models.Report) error {
	data, err := Marshal(rep, w.indent)
	if err != nil {
		return err
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("finalize report: %w", err)
	}
	return nil
}

// Path returns the configured sink path.
func (w *Writer) Path() string {
	return w.path
}

// Marshal renders a report as JSON.
func Marshal(rep models.Report, indent bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(rep, "", "  ")
	} else {
		data, err = json.Marshal(rep)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// Parse decodes a serialized report back into its logical structure.
func Parse(data []byte) (models.Report, error) {
	var rep models.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return models.Report{}, fmt.Errorf("parse report: %w", err)
	}
	return rep, nil
}

// ReadFile loads and parses a report file.
func ReadFile(path string) (models.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Report{}, fmt.Errorf("read report: %w", err)
	}
	return Parse(data)
}
