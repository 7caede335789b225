package core

import (
	"errors"
	"fmt"
	"strings"
)

// FieldProblem describes why a single input field was rejected.
type FieldProblem struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports malformed input caught before the engine runs.
type ValidationError struct {
	Problems []FieldProblem
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Problems: []FieldProblem{{Field: field, Reason: reason}}}
}

func (e *ValidationError) Add(field, reason string) {
	e.Problems = append(e.Problems, FieldProblem{Field: field, Reason: reason})
}

// Err returns nil when no problem was recorded.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Problems) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+": "+p.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// InvalidRangeError is returned when an explicit range starts after it ends.
type InvalidRangeError struct {
	Start, End Date
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: start %s is after end %s", e.Start, e.End)
}

// InsufficientDataError marks a view that cannot be computed from its inputs.
type InsufficientDataError struct {
	View   string
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: %s", e.View, e.Reason)
}

// CryptoError wraps key, format and authentication failures of the crypto gate.
type CryptoError struct {
	Op     string
	Secret string
	Err    error
}

func (e *CryptoError) Error() string {
	if e.Secret != "" {
		return fmt.Sprintf("crypto %s (secret %q): %v", e.Op, e.Secret, e.Err)
	}
	return fmt.Sprintf("crypto %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// UpstreamUnavailableError means the transaction store or the bank
// aggregator could not be reached. Callers may retry with backoff.
type UpstreamUnavailableError struct {
	Service string
	Err     error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

// Retryable is always true; it exists so callers can test behaviour instead of type.
func (e *UpstreamUnavailableError) Retryable() bool { return true }

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsInsufficientData reports whether err is, or wraps, an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var ie *InsufficientDataError
	return errors.As(err, &ie)
}
