package patch

import (
	"fmt"
	"strings"
)

// Error codes carried by *Error.
const (
	CodeOutOfRange  = "INDEX_OUT_OF_RANGE"
	CodeOverlap     = "OVERLAPPING_RANGES"
	CodeUnsupported = "UNSUPPORTED_OPERATION"
	CodeReadFailed  = "READ_FAILED"
	CodeWriteFailed = "WRITE_FAILED"
	CodeCanceled    = "CANCELED"
)

// Error represents a structured failure while applying a script. Operation is
// the 1-based position of the offending operation in the script, or zero when
// the failure is not tied to one.
type Error struct {
	Message   string
	Code      string
	Path      string
	Operation int
	Control   string
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return "patch error"
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func operationError(code string, number int, op Operation, format string, args ...any) *Error {
	return &Error{
		Message:   fmt.Sprintf(format, args...),
		Code:      code,
		Operation: number,
		Control:   op.Control,
	}
}

// FormatError renders Error values into a human readable message suitable for
// surfacing to end users.
func FormatError(err *Error) string {
	if err == nil {
		return "Unknown error occurred."
	}
	message := err.Message
	if message == "" {
		message = "Unknown error occurred."
	}
	parts := []string{message}
	if err.Path != "" {
		displayPath := err.Path
		if !strings.HasPrefix(displayPath, "/") && !strings.HasPrefix(displayPath, "./") {
			displayPath = "./" + displayPath
		}
		parts = append(parts, fmt.Sprintf("File: %s", displayPath))
	}
	if err.Operation > 0 {
		line := fmt.Sprintf("Operation %d", err.Operation)
		if err.Control != "" {
			line += fmt.Sprintf(" (%s)", err.Control)
		}
		parts = append(parts, line)
	}
	if err.Code != "" {
		parts = append(parts, fmt.Sprintf("Code: %s", err.Code))
	}
	return strings.Join(parts, "\n")
}
