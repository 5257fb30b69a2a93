package executor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExecutableNotFound = errors.New("EXECUTABLE_NOT_FOUND")
	ErrExecutionFailed    = errors.New("EXECUTION_FAILED")
)

// StartError reports that the executable could not be located or spawned.
// It matches both ErrExecutableNotFound and the underlying cause.
type StartError struct {
	Path string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("%v: cannot start %s: %v", ErrExecutableNotFound, e.Path, e.Err)
}

func (e *StartError) Unwrap() []error {
	return []error{ErrExecutableNotFound, e.Err}
}

// ExitError reports a process that ran and exited with an unexpected status.
type ExitError struct {
	Path     string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%v: %s exited with status %d", ErrExecutionFailed, e.Path, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return ErrExecutionFailed
}
