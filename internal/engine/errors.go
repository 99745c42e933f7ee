package engine

import "fmt"

// EmptyInputError signals that no log events were supplied before filtering.
// It is distinct from the all-informational case, which is a valid
// zero-anomaly outcome.
type EmptyInputError struct{}

func (*EmptyInputError) Error() string {
	return "no log events supplied for analysis"
}

// MalformedRecordError reports a log event missing a required identity field.
// Such records are rejected rather than silently coerced.
type MalformedRecordError struct {
	Index int
	Field string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("log event %d: missing %s", e.Index, e.Field)
}
