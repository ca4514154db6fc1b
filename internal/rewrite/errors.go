package rewrite

import (
	"errors"
	"fmt"

	"github.com/roach88/tppenforce/internal/ir"
)

// Error represents a failure of the driver or of a pattern.
//
// Error wraps the underlying cause, so IR predicates such as
// ir.IsShapeInvariantViolation see through it.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Pattern names the pattern involved, if any.
	Pattern string

	// Node is the root node of the failed attempt, or ir.NoNode.
	Node ir.NodeID

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes driver errors.
type ErrorCode string

const (
	// ErrCodePatternFailed indicates a pattern returned an error. The
	// function was rolled back to its state before the attempt.
	ErrCodePatternFailed ErrorCode = "PATTERN_FAILED"

	// ErrCodeDuplicatePattern indicates two registered patterns share a name.
	ErrCodeDuplicatePattern ErrorCode = "DUPLICATE_PATTERN"

	// ErrCodeInvalidPattern indicates a nil pattern, an empty name, or a
	// pattern that mutated the function and then reported no match.
	ErrCodeInvalidPattern ErrorCode = "INVALID_PATTERN"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Pattern != "" && e.Node != ir.NoNode {
		msg = fmt.Sprintf("%s (pattern=%s, node=%d)", msg, e.Pattern, e.Node)
	} else if e.Pattern != "" {
		msg = fmt.Sprintf("%s (pattern=%s)", msg, e.Pattern)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsPatternFailed returns true if err is a pattern failure.
func IsPatternFailed(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == ErrCodePatternFailed
	}
	return false
}

// IsRegistrationError returns true if err rejected a pattern registration.
func IsRegistrationError(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == ErrCodeDuplicatePattern || (re.Code == ErrCodeInvalidPattern && re.Node == ir.NoNode)
	}
	return false
}

func newPatternError(pattern string, node ir.NodeID, err error) *Error {
	return &Error{
		Code:    ErrCodePatternFailed,
		Message: "pattern failed",
		Pattern: pattern,
		Node:    node,
		Err:     err,
	}
}
