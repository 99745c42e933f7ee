package utils

import (
	"fmt"
	"time"
)

// ParseRFC3339 returns a time from the provided string or an error.
func ParseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return t, nil
}

// AbsGap returns the absolute duration between two instants.
func AbsGap(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}

// WindowEnding returns the [start, end] pair for a window of the given length
// finishing at end.
func WindowEnding(end time.Time, length time.Duration) (time.Time, time.Time) {
	if length < 0 {
		length = -length
	}
	return end.Add(-length), end
}
