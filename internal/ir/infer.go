package ir

import (
	"slices"
)

// InferResultTypes computes the result types of a node from its operand
// types and attributes. It is the single source of truth for the
// "results are a pure function of operands and attributes" invariant:
// node creation and Verify both go through it.
//
// Contraction inference is deliberately shallow (three shaped operands of
// one element type, result = C). The 2-D/dimension agreement invariants
// belong to the patterns that consume contractions.
func InferResultTypes(kind Kind, operands []Type, attrs Attrs) ([]Type, error) {
	if attrs == nil || attrs.Kind() != kind {
		return nil, newError(ErrCodeInvalidIR, NoNode, NoValue, "%s: attribute bag does not match kind", kind)
	}

	switch a := attrs.(type) {
	case ConstantAttrs:
		if err := wantOperands(kind, operands, 0); err != nil {
			return nil, err
		}
		if a.Type.Shaped || a.Type.Elem == InvalidElement {
			return nil, invalid("constant: type must be a scalar, got %s", a.Type)
		}
		return []Type{cloneType(a.Type)}, nil

	case ContractionAttrs:
		if err := wantOperands(kind, operands, 3); err != nil {
			return nil, err
		}
		for i, t := range operands {
			if !t.Shaped {
				return nil, newError(ErrCodeTypeMismatch, NoNode, NoValue, "contraction: operand %d of type %s is not shaped", i, t)
			}
			if t.Elem != operands[2].Elem {
				return nil, newError(ErrCodeTypeMismatch, NoNode, NoValue, "contraction: operand %d element type %s differs from accumulator %s", i, t.Elem, operands[2].Elem)
			}
		}
		if a.Tag == "" {
			return nil, invalid("contraction: tag is required")
		}
		return []Type{cloneType(operands[2])}, nil

	case PadAttrs:
		if err := wantOperands(kind, operands, 2); err != nil {
			return nil, err
		}
		src, fill := operands[0], operands[1]
		if !src.Shaped {
			return nil, newError(ErrCodeTypeMismatch, NoNode, NoValue, "pad: source of type %s is not shaped", src)
		}
		if fill.Shaped || fill.Elem != src.Elem {
			return nil, newError(ErrCodeTypeMismatch, NoNode, NoValue, "pad: fill of type %s does not match source element %s", fill, src.Elem)
		}
		if len(a.Low) != src.Rank() || len(a.High) != src.Rank() {
			return nil, invalid("pad: expected %d low/high amounts, got %d/%d", src.Rank(), len(a.Low), len(a.High))
		}
		shape := make([]int64, src.Rank())
		for i, d := range src.Shape {
			if a.Low[i] < 0 || a.High[i] < 0 {
				return nil, invalid("pad: negative padding in dimension %d", i)
			}
			shape[i] = d + a.Low[i] + a.High[i]
		}
		return []Type{Tensor(src.Elem, shape...)}, nil

	case ExtractAttrs:
		if err := wantOperands(kind, operands, 1); err != nil {
			return nil, err
		}
		src := operands[0]
		if !src.Shaped {
			return nil, newError(ErrCodeTypeMismatch, NoNode, NoValue, "extract: source of type %s is not shaped", src)
		}
		if err := checkSlice("extract", a.SliceAttrs, src.Shape); err != nil {
			return nil, err
		}
		return []Type{Tensor(src.Elem, a.Sizes...)}, nil

	case InsertAttrs:
		if err := wantOperands(kind, operands, 2); err != nil {
			return nil, err
		}
		src, dest := operands[0], operands[1]
		if !src.Shaped || !dest.Shaped {
			return nil, newError(ErrCodeTypeMismatch, NoNode, NoValue, "insert: operands %s and %s must be shaped", src, dest)
		}
		if src.Elem != dest.Elem {
			return nil, newError(ErrCodeTypeMismatch, NoNode, NoValue, "insert: element types %s and %s differ", src.Elem, dest.Elem)
		}
		if err := checkSlice("insert", a.SliceAttrs, dest.Shape); err != nil {
			return nil, err
		}
		if !slices.Equal(src.Shape, a.Sizes) {
			return nil, invalid("insert: source shape %v does not match sizes %v", src.Shape, a.Sizes)
		}
		return []Type{cloneType(dest)}, nil

	case EmptyAttrs:
		if err := wantOperands(kind, operands, 0); err != nil {
			return nil, err
		}
		if !a.Type.Shaped {
			return nil, invalid("empty: type %s is not shaped", a.Type)
		}
		return []Type{cloneType(a.Type)}, nil

	case FillAttrs:
		if err := wantOperands(kind, operands, 2); err != nil {
			return nil, err
		}
		value, dest := operands[0], operands[1]
		if value.Shaped || !dest.Shaped || value.Elem != dest.Elem {
			return nil, newError(ErrCodeTypeMismatch, NoNode, NoValue, "fill: cannot fill %s with %s", dest, value)
		}
		return []Type{cloneType(dest)}, nil

	case ReturnAttrs:
		return nil, nil

	default:
		return nil, invalid("unsupported attribute bag %T", attrs)
	}
}

func wantOperands(kind Kind, operands []Type, n int) error {
	if len(operands) != n {
		return invalid("%s: expected %d operand(s), got %d", kind, n, len(operands))
	}
	return nil
}

func checkSlice(op string, s SliceAttrs, shape []int64) error {
	rank := len(shape)
	if len(s.Offsets) != rank || len(s.Sizes) != rank || len(s.Strides) != rank {
		return invalid("%s: expected %d offsets/sizes/strides, got %d/%d/%d",
			op, rank, len(s.Offsets), len(s.Sizes), len(s.Strides))
	}
	for i := range rank {
		if s.Offsets[i] < 0 || s.Sizes[i] < 0 || s.Strides[i] < 1 {
			return invalid("%s: invalid slice in dimension %d (offset=%d size=%d stride=%d)",
				op, i, s.Offsets[i], s.Sizes[i], s.Strides[i])
		}
		if s.Sizes[i] > 0 && s.Offsets[i]+(s.Sizes[i]-1)*s.Strides[i] >= shape[i] {
			return invalid("%s: slice out of bounds in dimension %d (extent %d)", op, i, shape[i])
		}
	}
	return nil
}

func invalid(format string, args ...any) *Error {
	return newError(ErrCodeInvalidIR, NoNode, NoValue, format, args...)
}
