package rewrite

import (
	"errors"
	"fmt"
)

// IterationBudget tracks outer iterations of one Apply call and enforces
// the iteration cap.
//
// The cap bounds patterns that keep rewriting each other's output. Apply
// treats an exhausted budget as a stop signal, not a failure: the function
// is left in its last consistent state and Result.Converged is false.
type IterationBudget struct {
	maxIterations int
	current       int
}

// NewIterationBudget creates a budget allowing maxIterations iterations.
func NewIterationBudget(maxIterations int) *IterationBudget {
	return &IterationBudget{maxIterations: maxIterations}
}

// Check increments the iteration counter and validates it against the cap.
//
// Returns IterationsExceededError once the cap is exceeded.
func (b *IterationBudget) Check(function string) error {
	b.current++
	if b.current > b.maxIterations {
		return &IterationsExceededError{
			Function:   function,
			Iterations: b.current,
			Limit:      b.maxIterations,
		}
	}
	return nil
}

// Current returns the number of checks performed.
func (b *IterationBudget) Current() int {
	return b.current
}

// MaxIterations returns the cap.
func (b *IterationBudget) MaxIterations() int {
	return b.maxIterations
}

// IterationsExceededError reports that a function did not reach a fixed
// point within the iteration cap.
type IterationsExceededError struct {
	Function   string // Function being rewritten
	Iterations int    // Iteration that would have run
	Limit      int    // Maximum allowed iterations
}

// Error implements the error interface.
func (e *IterationsExceededError) Error() string {
	return fmt.Sprintf("function %s exceeded iteration cap: %d iterations > %d limit",
		e.Function, e.Iterations, e.Limit)
}

// IsIterationsExceeded returns true if err is an IterationsExceededError.
func IsIterationsExceeded(err error) bool {
	var ie *IterationsExceededError
	return errors.As(err, &ie)
}
