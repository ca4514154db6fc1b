package ir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ElementType is the scalar element type of a value.
type ElementType int

const (
	// InvalidElement is the zero value and never appears in a valid function.
	InvalidElement ElementType = iota
	F32
	F64
	I32
	I64
)

var elementNames = map[ElementType]string{
	F32: "f32",
	F64: "f64",
	I32: "i32",
	I64: "i64",
}

// String returns the textual name of the element type ("f32", "i64", ...).
func (e ElementType) String() string {
	if name, ok := elementNames[e]; ok {
		return name
	}
	return fmt.Sprintf("ElementType(%d)", int(e))
}

// IsFloat reports whether e is a floating-point element type.
func (e ElementType) IsFloat() bool {
	return e == F32 || e == F64
}

// Zero returns the additive identity of the element type.
func (e ElementType) Zero() float64 {
	return 0
}

// ParseElementType parses "f32", "f64", "i32" or "i64".
func ParseElementType(s string) (ElementType, error) {
	switch s {
	case "f32":
		return F32, nil
	case "f64":
		return F64, nil
	case "i32":
		return I32, nil
	case "i64":
		return I64, nil
	default:
		return InvalidElement, fmt.Errorf("unknown element type %q", s)
	}
}

// Type is either a scalar of Elem or a statically shaped tensor of Elem.
//
// Shape is only meaningful when Shaped is true. A shaped type with an empty
// Shape is a rank-0 tensor, which is distinct from a scalar.
type Type struct {
	Elem   ElementType
	Shape  []int64
	Shaped bool
}

// Scalar returns the scalar type of elem.
func Scalar(elem ElementType) Type {
	return Type{Elem: elem}
}

// Tensor returns a statically shaped tensor type.
// The dims slice is copied.
func Tensor(elem ElementType, dims ...int64) Type {
	return Type{Elem: elem, Shape: slices.Clone(dims), Shaped: true}
}

// Rank returns the number of dimensions, or 0 for scalars.
func (t Type) Rank() int {
	return len(t.Shape)
}

// NumElements returns the product of all extents (1 for scalars and rank-0).
func (t Type) NumElements() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Equal reports whether two types are identical.
func (t Type) Equal(other Type) bool {
	return t.Elem == other.Elem && t.Shaped == other.Shaped && slices.Equal(t.Shape, other.Shape)
}

// WithShape returns a tensor type with the same element type and a new shape.
func (t Type) WithShape(dims ...int64) Type {
	return Tensor(t.Elem, dims...)
}

// String renders the type as "f32" or "tensor<3x16xf32>".
func (t Type) String() string {
	if !t.Shaped {
		return t.Elem.String()
	}
	var b strings.Builder
	b.WriteString("tensor<")
	for _, d := range t.Shape {
		b.WriteString(strconv.FormatInt(d, 10))
		b.WriteByte('x')
	}
	b.WriteString(t.Elem.String())
	b.WriteByte('>')
	return b.String()
}

// ParseType parses the textual form produced by Type.String.
//
// Examples: "f32", "tensor<f32>", "tensor<128x64xf32>".
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "tensor<") {
		elem, err := ParseElementType(s)
		if err != nil {
			return Type{}, err
		}
		return Scalar(elem), nil
	}
	if !strings.HasSuffix(s, ">") {
		return Type{}, fmt.Errorf("malformed tensor type %q: missing '>'", s)
	}
	body := s[len("tensor<") : len(s)-1]
	parts := strings.Split(body, "x")
	elem, err := ParseElementType(parts[len(parts)-1])
	if err != nil {
		return Type{}, fmt.Errorf("malformed tensor type %q: %w", s, err)
	}
	dims := make([]int64, 0, len(parts)-1)
	for _, p := range parts[:len(parts)-1] {
		d, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return Type{}, fmt.Errorf("malformed tensor type %q: extent %q is not static", s, p)
		}
		if d < 0 {
			return Type{}, fmt.Errorf("malformed tensor type %q: negative extent %d", s, d)
		}
		dims = append(dims, d)
	}
	return Tensor(elem, dims...), nil
}
