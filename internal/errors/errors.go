// Package errors provides structured error types for chunked encoding runs.
package errors

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrorKind represents the category of an error.
type ErrorKind int

const (
	// KindConfig represents configuration validation errors.
	KindConfig ErrorKind = iota
	// KindIO represents I/O errors.
	KindIO
	// KindSpawn means an external process could not be started.
	KindSpawn
	// KindCrash means an external process exited abnormally.
	KindCrash
	// KindInputWrite means feeding frames to the encoder stdin failed.
	KindInputWrite
	// KindOutputEmpty means the encoder exited cleanly but produced no output.
	KindOutputEmpty
	// KindUnmeasurable means every quality probe of a chunk failed to measure.
	KindUnmeasurable
	// KindConcat represents output concatenation errors.
	KindConcat
	// KindCancelled represents user-cancelled operations.
	KindCancelled
)

// String returns a string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "Configuration error"
	case KindIO:
		return "I/O error"
	case KindSpawn:
		return "Process spawn failed"
	case KindCrash:
		return "Process crashed"
	case KindInputWrite:
		return "Input write failed"
	case KindOutputEmpty:
		return "Output empty"
	case KindUnmeasurable:
		return "Quality search unmeasurable"
	case KindConcat:
		return "Concatenation error"
	case KindCancelled:
		return "Operation cancelled"
	default:
		return "Unknown error"
	}
}

// Retryable reports whether a failure of this kind is worth another encode
// attempt. Spawn failures, crashes, stdin write failures and empty outputs
// are transient; everything else is terminal for the chunk.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindSpawn, KindCrash, KindInputWrite, KindOutputEmpty:
		return true
	default:
		return false
	}
}

// CoreError is the main error type for pipeline operations.
type CoreError struct {
	Kind       ErrorKind
	Message    string
	Underlying error
}

func (e *CoreError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error {
	return e.Underlying
}

// Is reports whether target matches this error's kind.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string) *CoreError {
	return &CoreError{Kind: KindConfig, Message: message}
}

// NewIOError creates a new I/O error.
func NewIOError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindIO, Message: message, Underlying: underlying}
}

// NewSpawnError creates an error for when an external process fails to start.
func NewSpawnError(cmd string, underlying error) *CoreError {
	return &CoreError{
		Kind:       KindSpawn,
		Message:    fmt.Sprintf("failed to start %s", cmd),
		Underlying: underlying,
	}
}

// NewCrashError creates an error for an abnormal process exit.
// stderr is truncated to its final lines, which is where encoders put the
// actionable message.
func NewCrashError(cmd string, exitCode int, stderr string) *CoreError {
	msg := fmt.Sprintf("%s exited with code %d", cmd, exitCode)
	if tail := stderrTail(stderr, 4); tail != "" {
		msg = fmt.Sprintf("%s: %s", msg, tail)
	}
	return &CoreError{Kind: KindCrash, Message: msg}
}

// NewInputWriteError creates an error for a failed stdin frame feed.
func NewInputWriteError(cmd string, underlying error) *CoreError {
	return &CoreError{
		Kind:       KindInputWrite,
		Message:    fmt.Sprintf("failed to feed frames to %s", cmd),
		Underlying: underlying,
	}
}

// NewOutputEmptyError creates an error for a clean exit with no output bytes.
func NewOutputEmptyError(path string) *CoreError {
	return &CoreError{
		Kind:    KindOutputEmpty,
		Message: fmt.Sprintf("encoder produced no output at %s", path),
	}
}

// NewUnmeasurableError creates an error for a chunk whose every quality probe
// failed to produce a metric score.
func NewUnmeasurableError(chunkIdx, attempts int) *CoreError {
	return &CoreError{
		Kind:    KindUnmeasurable,
		Message: fmt.Sprintf("chunk %d: all %d metric measurements failed", chunkIdx, attempts),
	}
}

// NewConcatError creates a new concatenation error.
func NewConcatError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindConcat, Message: message, Underlying: underlying}
}

// NewCancelledError creates an error for user-cancelled operations.
func NewCancelledError() *CoreError {
	return &CoreError{Kind: KindCancelled, Message: "operation was cancelled by the user"}
}

// IsKind checks if the error has the specified kind.
func IsKind(err error, kind ErrorKind) bool {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Kind == kind
	}
	return false
}

// IsRetryable reports whether the chunk that produced err should be
// re-enqueued. Untyped errors are not retried.
func IsRetryable(err error) bool {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Kind.Retryable()
	}
	return false
}

// IsCancelled checks if the error is a cancellation error.
func IsCancelled(err error) bool {
	return IsKind(err, KindCancelled)
}

// WrapExecError maps an error from exec.Cmd.Wait into a typed error.
func WrapExecError(cmd string, err error, stderr string) *CoreError {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return NewCrashError(cmd, exitErr.ExitCode(), stderr)
	}
	return NewSpawnError(cmd, err)
}

// stderrTail returns the last n non-empty lines of s joined by "; ".
func stderrTail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			kept = append([]string{line}, kept...)
		}
	}
	return strings.Join(kept, "; ")
}
