package compiler

import (
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/roach88/tppenforce/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// Function errors (E101-E109)
	ErrFunctionNameInvalid = "E101" // name is not a valid symbol
	ErrNoResults           = "E102" // return yields nothing
	ErrStructural          = "E103" // structural invariant violated

	// Contraction errors (E110-E119)
	ErrContractionRank     = "E110" // operand is not 2-D
	ErrContractionDims     = "E111" // GEMM dimensions disagree
	ErrUnknownCombiner     = "E112" // combiner outside add/max/mul
	ErrUnknownContractBody = "E113" // body other than mul-add
)

var symbolPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.$-]*$`)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates a compiled function against schema rules.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch fn := v.(type) {
	case *ir.Function:
		if fn == nil {
			break
		}
		return validateFunction(fn)
	}
	return []ValidationError{{
		Field:   "type",
		Message: fmt.Sprintf("unsupported IR type: %T", v),
		Code:    ErrUnsupportedIRType,
	}}
}

func validateFunction(fn *ir.Function) []ValidationError {
	var errs []ValidationError

	// E101: the printed form is func @<name>
	if !symbolPattern.MatchString(fn.Name) {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("%q is not a valid function name", fn.Name),
			Code:    ErrFunctionNameInvalid,
		})
	}

	// E103: every structural violation, one entry each
	if err := fn.Verify(); err != nil {
		for _, e := range unjoin(err) {
			errs = append(errs, ValidationError{
				Field:   structuralField(e),
				Message: e.Error(),
				Code:    ErrStructural,
			})
		}
		// Later checks assume a well-formed body
		return errs
	}

	// E102
	if len(fn.ReturnValues()) == 0 {
		errs = append(errs, ValidationError{
			Field:   "return",
			Message: "function must return at least one value",
			Code:    ErrNoResults,
		})
	}

	for i, n := range fn.Body() {
		if fn.Kind(n) == ir.KindContraction {
			errs = append(errs, validateContraction(fn, fmt.Sprintf("body[%d]", i), n)...)
		}
	}

	return errs
}

// validateContraction reports contractions the enforce pass would reject.
func validateContraction(fn *ir.Function, field string, n ir.NodeID) []ValidationError {
	var errs []ValidationError
	attrs := fn.Attrs(n).(ir.ContractionAttrs)

	// E112
	if !slices.Contains([]string{ir.CombinerAdd, ir.CombinerMax, ir.CombinerMul}, attrs.Combiner) {
		errs = append(errs, ValidationError{
			Field:   field + ".combiner",
			Message: fmt.Sprintf("unknown combiner %q", attrs.Combiner),
			Code:    ErrUnknownCombiner,
		})
	}

	// E113
	if attrs.Body != "" && attrs.Body != ir.DefaultContractionBody {
		errs = append(errs, ValidationError{
			Field:   field + ".region",
			Message: fmt.Sprintf("unsupported body %q", attrs.Body),
			Code:    ErrUnknownContractBody,
		})
	}

	// E110
	shapes := make([][]int64, 3)
	for i, name := range []string{"A", "B", "C"} {
		t := fn.Type(fn.Operand(n, i))
		if t.Rank() != 2 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.operands[%d]", field, i),
				Message: fmt.Sprintf("operand %s of type %s is not 2-D", name, t),
				Code:    ErrContractionRank,
			})
			continue
		}
		shapes[i] = t.Shape
	}
	if shapes[0] == nil || shapes[1] == nil || shapes[2] == nil {
		return errs
	}

	// E111: A[m,k] x B[k,n] -> C[m,n]
	a, b, c := shapes[0], shapes[1], shapes[2]
	if a[0] != c[0] || b[1] != c[1] || a[1] != b[0] {
		errs = append(errs, ValidationError{
			Field:   field + ".operands",
			Message: fmt.Sprintf("shapes %v x %v -> %v do not form a GEMM", a, b, c),
			Code:    ErrContractionDims,
		})
	}

	return errs
}

// unjoin flattens an errors.Join tree.
func unjoin(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, unjoin(e)...)
		}
		return out
	}
	return []error{err}
}

func structuralField(err error) string {
	var irErr *ir.Error
	if errors.As(err, &irErr) && irErr.Node != ir.NoNode {
		return fmt.Sprintf("node[%d]", irErr.Node)
	}
	return "body"
}
