package genai

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports a malformed request. It is raised before any work
// begins and is never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// TransientError marks a failure eligible for retry (network or service
// hiccups).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient service error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// FatalError marks a failure that retrying cannot fix (authentication,
// unknown model, content policy).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal service error: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// RetryError is the single aggregated failure surfaced by the retry
// executor. It carries the attempt count and the last underlying error.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("operation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// fatalPatterns are matched against error descriptions when the capability
// does not return typed errors.
var fatalPatterns = []string{
	"invalid api key",
	"authentication",
	"unauthorized",
	"api key not found",
	"invalid model",
	"model not found",
	"content policy",
	"safety",
}

// IsFatal classifies err. Typed errors win; otherwise the description is
// matched against the known non-retryable categories.
func IsFatal(err error) bool {
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return true
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range fatalPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
