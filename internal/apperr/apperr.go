// Package apperr defines the error taxonomy shared by the editing core, the
// export pipeline and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// ErrProcessingTimeout is matched by errors.Is for any TimeoutError.
var ErrProcessingTimeout = errors.New("processing timeout")

// ValidationError reports a rejected request. No state is mutated when one is
// returned.
type ValidationError struct {
	Op  string
	Msg string
}

func (e *ValidationError) Error() string {
	if e.Op == "" {
		return "validation: " + e.Msg
	}
	return e.Op + ": " + e.Msg
}

// Validation builds a ValidationError with a formatted message.
func Validation(op, format string, args ...any) error {
	return &ValidationError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a reference to an unknown entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// ProcessingError reports a failure of the external media engine. Step is the
// plan step index, or -1 when the operation was not part of a plan.
type ProcessingError struct {
	Op         string
	Step       int
	ExitCode   int
	StderrTail string
	Err        error
}

func (e *ProcessingError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Op)
	if e.Step >= 0 {
		msg = fmt.Sprintf("step %d: %s", e.Step, msg)
	}
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.StderrTail != "" {
		msg += ": " + e.StderrTail
	}
	return msg
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// TimeoutError reports a step that overran its execution bound.
type TimeoutError struct {
	Op      string
	Step    int
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("step %d: %s exceeded %s", e.Step, e.Op, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrProcessingTimeout }

// IOError reports an artifact read, write or cleanup failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsProcessing(err error) bool {
	var pe *ProcessingError
	var te *TimeoutError
	return errors.As(err, &pe) || errors.As(err, &te)
}
