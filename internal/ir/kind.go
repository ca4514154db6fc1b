package ir

import (
	"fmt"
	"slices"
	"strconv"
)

// Kind identifies the operation a node performs.
type Kind int

const (
	// KindInvalid is the zero value; no node ever carries it.
	KindInvalid Kind = iota

	// KindConstant produces a scalar literal.
	KindConstant

	// KindContraction is a tagged matmul-shaped computation over (A, B, C).
	KindContraction

	// KindPad pads a source tensor with a scalar fill value.
	KindPad

	// KindExtract extracts a strided sub-view of a tensor.
	KindExtract

	// KindEmpty allocates an uninitialized tensor of a given type.
	KindEmpty

	// KindFill overwrites every element of a tensor with a scalar.
	KindFill

	// KindInsert writes a source tensor into a region of a destination tensor.
	KindInsert

	// KindReturn terminates the function body.
	KindReturn
)

var kindNames = [...]string{
	KindInvalid:     "invalid",
	KindConstant:    "constant",
	KindContraction: "contraction",
	KindPad:         "pad",
	KindExtract:     "extract",
	KindEmpty:       "empty",
	KindFill:        "fill",
	KindInsert:      "insert",
	KindReturn:      "return",
}

// String returns the op name used in the textual form.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind resolves an op name to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s && Kind(k) != KindInvalid {
			return Kind(k), nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown op %q", s)
}

// Attrs is a sealed interface for the kind-specific attribute bag of a node.
// Only the *Attrs types in this package implement it.
type Attrs interface {
	Kind() Kind
	clone() Attrs
}

// ConstantAttrs holds the literal of a constant node. Float constants keep
// their literal in Value and integer constants in Int, so i64 literals
// beyond 2^53 stay exact.
type ConstantAttrs struct {
	Type  Type
	Value float64
	Int   int64
}

// NewConstant returns the attributes of a scalar constant of elem. For
// integer element types value is truncated into Int.
func NewConstant(elem ElementType, value float64) ConstantAttrs {
	if elem.IsFloat() {
		return ConstantAttrs{Type: Scalar(elem), Value: value}
	}
	return ConstantAttrs{Type: Scalar(elem), Int: int64(value)}
}

// NewIntConstant returns the attributes of an integer constant of elem.
func NewIntConstant(elem ElementType, value int64) ConstantAttrs {
	return ConstantAttrs{Type: Scalar(elem), Int: value}
}

// Literal renders the literal: shortest exact float form for float types,
// decimal for integer types.
func (a ConstantAttrs) Literal() string {
	if a.Type.Elem.IsFloat() {
		return FormatScalar(a.Value)
	}
	return strconv.FormatInt(a.Int, 10)
}

// Float returns the literal as a float64. Integers beyond 2^53 round.
func (a ConstantAttrs) Float() float64 {
	if a.Type.Elem.IsFloat() {
		return a.Value
	}
	return float64(a.Int)
}

// SameLiteral reports whether a and b have the same type and literal,
// compared exactly for integer types.
func (a ConstantAttrs) SameLiteral(b ConstantAttrs) bool {
	if !a.Type.Equal(b.Type) {
		return false
	}
	if a.Type.Elem.IsFloat() {
		return a.Value == b.Value
	}
	return a.Int == b.Int
}

// Kind implements Attrs.
func (ConstantAttrs) Kind() Kind { return KindConstant }

func (a ConstantAttrs) clone() Attrs {
	a.Type = cloneType(a.Type)
	return a
}

// Contraction combiners. Only CombinerAdd has zero as its identity.
const (
	CombinerAdd = "add"
	CombinerMax = "max"
	CombinerMul = "mul"
)

// DefaultContractionBody names the multiply-accumulate body of a plain GEMM.
const DefaultContractionBody = "mul-add"

// ContractionAttrs describes a contraction node.
//
// IndexingMaps and IteratorTypes are opaque to the pass: they are carried
// verbatim whenever the contraction is rebuilt.
type ContractionAttrs struct {
	Tag           string
	IndexingMaps  []string
	IteratorTypes []string
	Combiner      string
	Body          string
}

// Kind implements Attrs.
func (ContractionAttrs) Kind() Kind { return KindContraction }

func (a ContractionAttrs) clone() Attrs {
	a.IndexingMaps = slices.Clone(a.IndexingMaps)
	a.IteratorTypes = slices.Clone(a.IteratorTypes)
	return a
}

// DefaultMatmulAttrs returns the attributes of a plain row-major GEMM
// contraction carrying tag.
func DefaultMatmulAttrs(tag string) ContractionAttrs {
	return ContractionAttrs{
		Tag: tag,
		IndexingMaps: []string{
			"(i, j, k) -> (i, k)",
			"(i, j, k) -> (k, j)",
			"(i, j, k) -> (i, j)",
		},
		IteratorTypes: []string{"parallel", "parallel", "reduction"},
		Combiner:      CombinerAdd,
		Body:          DefaultContractionBody,
	}
}

// PadAttrs holds the per-dimension padding amounts of a pad node.
type PadAttrs struct {
	Low    []int64
	High   []int64
	NoFold bool
}

// Kind implements Attrs.
func (PadAttrs) Kind() Kind { return KindPad }

func (a PadAttrs) clone() Attrs {
	a.Low = slices.Clone(a.Low)
	a.High = slices.Clone(a.High)
	return a
}

// HasZeroLowPad reports whether every low padding amount is zero.
func (a PadAttrs) HasZeroLowPad() bool {
	for _, l := range a.Low {
		if l != 0 {
			return false
		}
	}
	return true
}

// HasZeroHighPad reports whether every high padding amount is zero.
func (a PadAttrs) HasZeroHighPad() bool {
	for _, h := range a.High {
		if h != 0 {
			return false
		}
	}
	return true
}

// IsHighOnly reports whether the pad only appends elements: all low amounts
// are zero and at least one high amount is positive.
func (a PadAttrs) IsHighOnly() bool {
	return a.HasZeroLowPad() && !a.HasZeroHighPad()
}

// SliceAttrs holds offsets, sizes and strides; shared by extract and insert.
type SliceAttrs struct {
	Offsets []int64
	Sizes   []int64
	Strides []int64
}

func (a SliceAttrs) cloneSlice() SliceAttrs {
	return SliceAttrs{
		Offsets: slices.Clone(a.Offsets),
		Sizes:   slices.Clone(a.Sizes),
		Strides: slices.Clone(a.Strides),
	}
}

// ZeroOffsetSlice returns offsets 0...0, the given sizes and strides 1...1.
func ZeroOffsetSlice(sizes []int64) SliceAttrs {
	offsets := make([]int64, len(sizes))
	strides := make([]int64, len(sizes))
	for i := range strides {
		strides[i] = 1
	}
	return SliceAttrs{Offsets: offsets, Sizes: slices.Clone(sizes), Strides: strides}
}

// ExtractAttrs describes an extract node.
type ExtractAttrs struct {
	SliceAttrs
}

// Kind implements Attrs.
func (ExtractAttrs) Kind() Kind { return KindExtract }

func (a ExtractAttrs) clone() Attrs { return ExtractAttrs{a.cloneSlice()} }

// InsertAttrs describes an insert node.
type InsertAttrs struct {
	SliceAttrs
}

// Kind implements Attrs.
func (InsertAttrs) Kind() Kind { return KindInsert }

func (a InsertAttrs) clone() Attrs { return InsertAttrs{a.cloneSlice()} }

// EmptyAttrs holds the type of the tensor an empty node allocates.
type EmptyAttrs struct {
	Type Type
}

// Kind implements Attrs.
func (EmptyAttrs) Kind() Kind { return KindEmpty }

func (a EmptyAttrs) clone() Attrs {
	a.Type = cloneType(a.Type)
	return a
}

// FillAttrs is the (empty) attribute bag of a fill node.
type FillAttrs struct{}

// Kind implements Attrs.
func (FillAttrs) Kind() Kind { return KindFill }

func (a FillAttrs) clone() Attrs { return a }

// ReturnAttrs is the (empty) attribute bag of a return node.
type ReturnAttrs struct{}

// Kind implements Attrs.
func (ReturnAttrs) Kind() Kind { return KindReturn }

func (a ReturnAttrs) clone() Attrs { return a }

func cloneType(t Type) Type {
	t.Shape = slices.Clone(t.Shape)
	return t
}
