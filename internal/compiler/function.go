package compiler

import (
	"fmt"
	"math"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tppenforce/internal/ir"
)

// CompileFunction parses a CUE value into an ir.Function.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the function struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`function: gemm: { args: [...], body: [...], return: [...] }`)
//	fn, err := CompileFunction(v.LookupPath(cue.ParsePath("function.gemm")))
//
// Operands refer to argument names or to the result names of earlier body
// entries. Result types are inferred; the optional per-entry `type` field
// is only consulted by ops that have no operand to infer from (constant,
// empty) and is otherwise checked against the inferred type.
func CompileFunction(v cue.Value) (*ir.Function, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	// Function name comes from the struct label (the path selector)
	var name string
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		name = labels[len(labels)-1].String()
	}

	c := &funcCompiler{symbols: make(map[string]ir.ValueID)}

	argNames, argTypes, err := parseArgs(v)
	if err != nil {
		return nil, err
	}
	fn := ir.NewFunction(name, argTypes...)
	c.fn = fn
	for i, argName := range argNames {
		c.symbols[argName] = fn.Arg(i)
	}

	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if bodyVal.Exists() {
		iter, err := bodyVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			if err := c.compileNode(fmt.Sprintf("body[%d]", i), iter.Value()); err != nil {
				return nil, err
			}
		}
	}

	retVal := v.LookupPath(cue.ParsePath("return"))
	if !retVal.Exists() {
		return nil, &CompileError{
			Field:   "return",
			Message: "return is required",
			Pos:     v.Pos(),
		}
	}
	results, err := c.operands("return", retVal)
	if err != nil {
		return nil, err
	}
	if _, err := fn.Append(ir.KindReturn, results, ir.ReturnAttrs{}); err != nil {
		return nil, &CompileError{Field: "return", Message: err.Error(), Pos: retVal.Pos()}
	}

	return fn, nil
}

type funcCompiler struct {
	fn      *ir.Function
	symbols map[string]ir.ValueID
}

// parseArgs extracts the ordered argument list.
func parseArgs(v cue.Value) ([]string, []ir.Type, error) {
	argsVal := v.LookupPath(cue.ParsePath("args"))
	if !argsVal.Exists() {
		return nil, nil, nil // a function may take no arguments
	}

	iter, err := argsVal.List()
	if err != nil {
		return nil, nil, formatCUEError(err)
	}

	var names []string
	var types []ir.Type
	seen := make(map[string]bool)
	for i := 0; iter.Next(); i++ {
		field := fmt.Sprintf("args[%d]", i)
		argVal := iter.Value()

		argName, err := requiredString(argVal, field, "name")
		if err != nil {
			return nil, nil, err
		}
		if seen[argName] {
			return nil, nil, &CompileError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate name %q", argName),
				Pos:     argVal.Pos(),
			}
		}
		seen[argName] = true

		typeStr, err := requiredString(argVal, field, "type")
		if err != nil {
			return nil, nil, err
		}
		t, err := ir.ParseType(typeStr)
		if err != nil {
			return nil, nil, &CompileError{Field: field + ".type", Message: err.Error(), Pos: argVal.Pos()}
		}

		names = append(names, argName)
		types = append(types, t)
	}
	return names, types, nil
}

// compileNode appends one body entry.
func (c *funcCompiler) compileNode(field string, v cue.Value) error {
	opStr, err := requiredString(v, field, "op")
	if err != nil {
		return err
	}
	kind, err := ir.ParseKind(opStr)
	if err != nil || kind == ir.KindReturn {
		return &CompileError{
			Field:   field + ".op",
			Message: fmt.Sprintf("unknown op %q", opStr),
			Pos:     v.Pos(),
		}
	}

	var operands []ir.ValueID
	if opsVal := v.LookupPath(cue.ParsePath("operands")); opsVal.Exists() {
		operands, err = c.operands(field+".operands", opsVal)
		if err != nil {
			return err
		}
	}

	attrs, err := parseAttrs(field, kind, v)
	if err != nil {
		return err
	}

	n, err := c.fn.Append(kind, operands, attrs)
	if err != nil {
		return &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}

	// Explicit types on inferred ops must agree with inference
	if kind != ir.KindConstant && kind != ir.KindEmpty {
		if typeVal := v.LookupPath(cue.ParsePath("type")); typeVal.Exists() {
			declared, err := parseTypeField(field, typeVal)
			if err != nil {
				return err
			}
			if inferred := c.fn.Type(c.fn.Result(n)); !declared.Equal(inferred) {
				return &CompileError{
					Field:   field + ".type",
					Message: fmt.Sprintf("declared %s, inferred %s", declared, inferred),
					Pos:     typeVal.Pos(),
				}
			}
		}
	}

	resultVal := v.LookupPath(cue.ParsePath("result"))
	if !resultVal.Exists() {
		return nil // anonymous results cannot be referenced but are kept
	}
	result, err := resultVal.String()
	if err != nil {
		return formatCUEError(err)
	}
	if _, dup := c.symbols[result]; dup {
		return &CompileError{
			Field:   field + ".result",
			Message: fmt.Sprintf("duplicate name %q", result),
			Pos:     resultVal.Pos(),
		}
	}
	c.symbols[result] = c.fn.Result(n)
	return nil
}

// operands resolves a list of names against the symbol table.
func (c *funcCompiler) operands(field string, v cue.Value) ([]ir.ValueID, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var values []ir.ValueID
	for i := 0; iter.Next(); i++ {
		ref, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		id, ok := c.symbols[ref]
		if !ok {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: fmt.Sprintf("undefined value %q", ref),
				Pos:     iter.Value().Pos(),
			}
		}
		values = append(values, id)
	}
	return values, nil
}

// parseAttrs reads the kind-specific fields of a body entry.
func parseAttrs(field string, kind ir.Kind, v cue.Value) (ir.Attrs, error) {
	switch kind {
	case ir.KindConstant:
		t, err := requiredType(v, field)
		if err != nil {
			return nil, err
		}
		valueVal := v.LookupPath(cue.ParsePath("value"))
		if !valueVal.Exists() {
			return nil, &CompileError{Field: field + ".value", Message: "value is required", Pos: v.Pos()}
		}
		if !t.Elem.IsFloat() {
			return parseIntConstant(field, t, valueVal)
		}
		value, err := valueVal.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.ConstantAttrs{Type: t, Value: value}, nil

	case ir.KindContraction:
		tag, err := requiredString(v, field, "tag")
		if err != nil {
			return nil, err
		}
		attrs := ir.DefaultMatmulAttrs(tag)
		if attrs.Combiner, err = optionalString(v, "combiner", attrs.Combiner); err != nil {
			return nil, err
		}
		if attrs.Body, err = optionalString(v, "region", attrs.Body); err != nil {
			return nil, err
		}
		if maps, ok, err := optionalStrings(v, "indexing_maps"); err != nil {
			return nil, err
		} else if ok {
			attrs.IndexingMaps = maps
		}
		if iters, ok, err := optionalStrings(v, "iterator_types"); err != nil {
			return nil, err
		} else if ok {
			attrs.IteratorTypes = iters
		}
		return attrs, nil

	case ir.KindPad:
		low, err := requiredInts(v, field, "low")
		if err != nil {
			return nil, err
		}
		high, err := requiredInts(v, field, "high")
		if err != nil {
			return nil, err
		}
		attrs := ir.PadAttrs{Low: low, High: high}
		if nofoldVal := v.LookupPath(cue.ParsePath("nofold")); nofoldVal.Exists() {
			if attrs.NoFold, err = nofoldVal.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		return attrs, nil

	case ir.KindExtract:
		s, err := parseSlice(v, field)
		if err != nil {
			return nil, err
		}
		return ir.ExtractAttrs{SliceAttrs: s}, nil

	case ir.KindInsert:
		s, err := parseSlice(v, field)
		if err != nil {
			return nil, err
		}
		return ir.InsertAttrs{SliceAttrs: s}, nil

	case ir.KindEmpty:
		t, err := requiredType(v, field)
		if err != nil {
			return nil, err
		}
		return ir.EmptyAttrs{Type: t}, nil

	case ir.KindFill:
		return ir.FillAttrs{}, nil
	}

	return nil, &CompileError{Field: field + ".op", Message: fmt.Sprintf("unsupported op %q", kind), Pos: v.Pos()}
}

// parseIntConstant reads an integer literal exactly. Fractional values and
// values outside the element type's range are rejected.
func parseIntConstant(field string, t ir.Type, v cue.Value) (ir.Attrs, error) {
	if v.IncompleteKind() != cue.IntKind {
		return nil, &CompileError{
			Field:   field + ".value",
			Message: fmt.Sprintf("%s constant needs an integer value", t.Elem),
			Pos:     v.Pos(),
		}
	}
	n, err := v.Int64()
	if err != nil {
		return nil, &CompileError{
			Field:   field + ".value",
			Message: fmt.Sprintf("invalid %s constant: %v", t.Elem, err),
			Pos:     v.Pos(),
		}
	}
	if t.Elem == ir.I32 && (n < math.MinInt32 || n > math.MaxInt32) {
		return nil, &CompileError{
			Field:   field + ".value",
			Message: fmt.Sprintf("i32 constant out of range: %d", n),
			Pos:     v.Pos(),
		}
	}
	return ir.ConstantAttrs{Type: t, Int: n}, nil
}

// parseSlice reads offsets/sizes/strides. Strides default to all ones.
func parseSlice(v cue.Value, field string) (ir.SliceAttrs, error) {
	offsets, err := requiredInts(v, field, "offsets")
	if err != nil {
		return ir.SliceAttrs{}, err
	}
	sizes, err := requiredInts(v, field, "sizes")
	if err != nil {
		return ir.SliceAttrs{}, err
	}
	s := ir.ZeroOffsetSlice(sizes)
	s.Offsets = offsets
	if stridesVal := v.LookupPath(cue.ParsePath("strides")); stridesVal.Exists() {
		if s.Strides, err = parseInts(stridesVal); err != nil {
			return ir.SliceAttrs{}, err
		}
	}
	return s, nil
}

func requiredString(v cue.Value, field, name string) (string, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return "", &CompileError{
			Field:   field + "." + name,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, name, def string) (string, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return def, nil
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalStrings(v cue.Value, name string) ([]string, bool, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return nil, false, nil
	}
	iter, err := val.List()
	if err != nil {
		return nil, false, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, false, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, true, nil
}

func requiredInts(v cue.Value, field, name string) ([]int64, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return nil, &CompileError{
			Field:   field + "." + name,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	return parseInts(val)
}

func parseInts(v cue.Value) ([]int64, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := []int64{}
	for iter.Next() {
		x, err := iter.Value().Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, x)
	}
	return out, nil
}

func requiredType(v cue.Value, field string) (ir.Type, error) {
	val := v.LookupPath(cue.ParsePath("type"))
	if !val.Exists() {
		return ir.Type{}, &CompileError{Field: field + ".type", Message: "type is required", Pos: v.Pos()}
	}
	return parseTypeField(field, val)
}

func parseTypeField(field string, val cue.Value) (ir.Type, error) {
	s, err := val.String()
	if err != nil {
		return ir.Type{}, formatCUEError(err)
	}
	t, err := ir.ParseType(s)
	if err != nil {
		return ir.Type{}, &CompileError{Field: field + ".type", Message: err.Error(), Pos: val.Pos()}
	}
	return t, nil
}

// CompileError represents a compilation error with position info.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
