package utils

import "fmt"

// StageError wraps a pipeline stage, a human-facing message, and the
// underlying error. Stages never retry; errors stay local to the stage that
// produced them.
type StageError struct {
	Stage string
	Msg   string
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Msg, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError constructs a StageError.
func NewStageError(stage, msg string, err error) error {
	return &StageError{Stage: stage, Msg: msg, Err: err}
}
