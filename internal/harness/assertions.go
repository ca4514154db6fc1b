package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tppenforce/internal/interp"
	"github.com/roach88/tppenforce/internal/ir"
	"github.com/roach88/tppenforce/internal/tpp"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	// Full trace for context
	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] iteration %d: %s on %s\n", event.Seq, event.Iteration, event.Pattern, event.RootKind)
	}

	return buf.String()
}

// AssertionContext provides the functions assertions compare.
type AssertionContext struct {
	// Before is an untouched copy of the input function.
	Before *ir.Function

	// After is the function once the pass returned.
	After *ir.Function

	// Config is the configuration the pass ran with.
	Config tpp.Config
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertRewriteCount:
			err = assertRewriteCount(result.Trace, assertion)
		case AssertConverged:
			err = assertConverged(result, assertion)
		case AssertNodeCount, AssertResultShape, AssertEquivalent, AssertUnchanged, AssertAligned:
			if actx == nil || actx.After == nil {
				err = fmt.Errorf("assertion[%d]: %s requires the rewritten function", i, assertion.Type)
				break
			}
			err = evaluateOnFunctions(result, assertion, actx)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func evaluateOnFunctions(result *Result, assertion Assertion, actx *AssertionContext) error {
	switch assertion.Type {
	case AssertNodeCount:
		return assertNodeCount(result.Trace, actx.After, assertion)
	case AssertResultShape:
		return assertResultShape(result.Trace, actx.After, assertion)
	case AssertEquivalent:
		return assertEquivalent(result.Trace, actx.Before, actx.After)
	case AssertUnchanged:
		return assertUnchanged(result.Trace, actx.Before, actx.After)
	default:
		return assertAligned(result.Trace, actx.After, actx.Config)
	}
}

// assertRewriteCount checks the number of rewrites by a pattern, or by
// every pattern when none is named.
func assertRewriteCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if assertion.Pattern == "" || event.Pattern == assertion.Pattern {
			count++
		}
	}

	if count != assertion.Count {
		what := "rewrites"
		if assertion.Pattern != "" {
			what = assertion.Pattern + " rewrites"
		}
		return &AssertionError{
			Type:     AssertRewriteCount,
			Expected: fmt.Sprintf("%d %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d %s", count, what),
			Trace:    trace,
		}
	}
	return nil
}

// assertConverged checks whether the driver reached a fixed point.
func assertConverged(result *Result, assertion Assertion) error {
	want := assertion.Value == nil || *assertion.Value
	if result.Converged != want {
		return &AssertionError{
			Type:     AssertConverged,
			Expected: fmt.Sprintf("converged = %t", want),
			Actual:   fmt.Sprintf("converged = %t after %d iteration(s)", result.Converged, result.Iterations),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertNodeCount checks the number of live nodes of a kind.
func assertNodeCount(trace []TraceEvent, fn *ir.Function, assertion Assertion) error {
	kind, err := ir.ParseKind(assertion.Kind)
	if err != nil {
		return fmt.Errorf("node_count: %w", err)
	}
	if got := fn.CountKind(kind); got != assertion.Count {
		return &AssertionError{
			Type:     AssertNodeCount,
			Expected: fmt.Sprintf("%d %s node(s)", assertion.Count, kind),
			Actual:   fmt.Sprintf("%d %s node(s)", got, kind),
			Trace:    trace,
		}
	}
	return nil
}

// assertResultShape checks the shape of a returned value.
func assertResultShape(trace []TraceEvent, fn *ir.Function, assertion Assertion) error {
	results := fn.ReturnValues()
	if assertion.Result >= len(results) {
		return &AssertionError{
			Type:     AssertResultShape,
			Expected: fmt.Sprintf("result %d with shape %v", assertion.Result, assertion.Shape),
			Actual:   fmt.Sprintf("function returns %d value(s)", len(results)),
			Trace:    trace,
		}
	}

	shape, err := fn.ShapeOf(results[assertion.Result])
	if err != nil {
		return fmt.Errorf("result_shape: %w", err)
	}
	if !slices.Equal(shape, assertion.Shape) {
		return &AssertionError{
			Type:     AssertResultShape,
			Expected: fmt.Sprintf("result %d shape %v", assertion.Result, assertion.Shape),
			Actual:   fmt.Sprintf("shape %v", shape),
			Trace:    trace,
		}
	}
	return nil
}

// assertEquivalent evaluates both functions on the same deterministic
// inputs and requires identical outputs.
func assertEquivalent(trace []TraceEvent, before, after *ir.Function) error {
	inputs := interp.DeterministicInputs(before)
	want, err := interp.Evaluate(before, inputs)
	if err != nil {
		return fmt.Errorf("equivalent: evaluate input function: %w", err)
	}
	got, err := interp.Evaluate(after, inputs)
	if err != nil {
		return fmt.Errorf("equivalent: evaluate rewritten function: %w", err)
	}

	if len(want) != len(got) {
		return &AssertionError{
			Type:     AssertEquivalent,
			Expected: fmt.Sprintf("%d result(s)", len(want)),
			Actual:   fmt.Sprintf("%d result(s)", len(got)),
			Trace:    trace,
		}
	}
	for i := range want {
		if !want[i].Equal(got[i]) {
			return &AssertionError{
				Type:     AssertEquivalent,
				Expected: fmt.Sprintf("result %d = %s", i, want[i]),
				Actual:   fmt.Sprintf("result %d = %s", i, got[i]),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertUnchanged compares content hashes of both functions.
func assertUnchanged(trace []TraceEvent, before, after *ir.Function) error {
	beforeHash, err := ir.FunctionHash(before)
	if err != nil {
		return fmt.Errorf("unchanged: %w", err)
	}
	afterHash, err := ir.FunctionHash(after)
	if err != nil {
		return fmt.Errorf("unchanged: %w", err)
	}
	if beforeHash != afterHash {
		return &AssertionError{
			Type:     AssertUnchanged,
			Expected: "function unchanged by the pass",
			Actual:   fmt.Sprintf("hash %s became %s", shortHash(beforeHash), shortHash(afterHash)),
			Trace:    trace,
		}
	}
	return nil
}

// assertAligned checks every contraction carrying the configured tag has
// an accumulator whose rows are a multiple of the block multiple and whose
// columns are a multiple of the lane multiple.
func assertAligned(trace []TraceEvent, fn *ir.Function, cfg tpp.Config) error {
	for _, n := range fn.NodesOfKind(ir.KindContraction) {
		attrs := fn.Attrs(n).(ir.ContractionAttrs)
		if attrs.Tag != cfg.Tag {
			continue
		}
		shape, err := fn.ShapeOf(fn.Operand(n, 2))
		if err != nil {
			return fmt.Errorf("aligned: %w", err)
		}
		if len(shape) != 2 || shape[0]%cfg.BlockMultiple != 0 || shape[1]%cfg.LaneMultiple != 0 {
			return &AssertionError{
				Type:     AssertAligned,
				Expected: fmt.Sprintf("accumulator rows %% %d == 0 and columns %% %d == 0", cfg.BlockMultiple, cfg.LaneMultiple),
				Actual:   fmt.Sprintf("contraction %q accumulator shape %v", attrs.Tag, shape),
				Trace:    trace,
			}
		}
	}
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
