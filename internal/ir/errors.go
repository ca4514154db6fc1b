package ir

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes IR errors.
type ErrorCode string

const (
	// ErrCodeTypeMismatch indicates a shape/type query on a non-shaped value,
	// or a replacement whose type differs from the replaced value.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeUseError indicates an attempt to erase a node that still has uses.
	ErrCodeUseError ErrorCode = "USE_ERROR"

	// ErrCodeShapeInvariant indicates a structurally malformed node, e.g. a
	// contraction whose operands are not 2-D or whose dimensions disagree.
	ErrCodeShapeInvariant ErrorCode = "SHAPE_INVARIANT_VIOLATION"

	// ErrCodeInvalidIR indicates a malformed construction request: unknown
	// handle, wrong operand count, out-of-bounds slice, and so on.
	ErrCodeInvalidIR ErrorCode = "INVALID_IR"
)

// NoNode and NoValue mark an Error field as not applicable.
const (
	NoNode  NodeID  = -1
	NoValue ValueID = -1
)

// Error is the single error type returned by IR operations.
//
// Error includes the offending node and value handles when known so that
// callers can render diagnostics against the printed function.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Node is the offending node, or NoNode.
	Node NodeID

	// Value is the offending value, or NoValue.
	Value ValueID
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Node != NoNode && e.Value != NoValue:
		return fmt.Sprintf("%s: %s (node=%d, value=%d)", e.Code, e.Message, e.Node, e.Value)
	case e.Node != NoNode:
		return fmt.Sprintf("%s: %s (node=%d)", e.Code, e.Message, e.Node)
	case e.Value != NoValue:
		return fmt.Sprintf("%s: %s (value=%d)", e.Code, e.Message, e.Value)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func newError(code ErrorCode, node NodeID, value ValueID, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Node:    node,
		Value:   value,
	}
}

// NewShapeInvariantError creates an Error for a malformed node.
// Patterns use it to report inputs that no legalization decision can fix.
func NewShapeInvariantError(node NodeID, format string, args ...any) *Error {
	return newError(ErrCodeShapeInvariant, node, NoValue, format, args...)
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsTypeMismatch returns true if err wraps a TYPE_MISMATCH error.
func IsTypeMismatch(err error) bool {
	return CodeOf(err) == ErrCodeTypeMismatch
}

// IsUseError returns true if err wraps a USE_ERROR error.
func IsUseError(err error) bool {
	return CodeOf(err) == ErrCodeUseError
}

// IsShapeInvariantViolation returns true if err wraps a
// SHAPE_INVARIANT_VIOLATION error.
func IsShapeInvariantViolation(err error) bool {
	return CodeOf(err) == ErrCodeShapeInvariant
}

// IsInvalidIR returns true if err wraps an INVALID_IR error.
func IsInvalidIR(err error) bool {
	return CodeOf(err) == ErrCodeInvalidIR
}
