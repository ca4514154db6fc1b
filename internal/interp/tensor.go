// Package interp evaluates functions on concrete row-major buffers.
//
// It is the reference semantics used to check that rewrites preserve
// values: run a function before and after the pass on the same inputs and
// compare the outputs element for element. Every element type is evaluated
// in float64; tests keep inputs to small integers so sums stay exact.
package interp

import (
	"fmt"
	"slices"

	"github.com/roach88/tppenforce/internal/ir"
)

// Tensor is a dense row-major buffer. A scalar is a Tensor with a nil
// Shape and one element.
type Tensor struct {
	Shape []int64
	Data  []float64
}

// NewTensor allocates a zero-filled tensor of the given shape.
func NewTensor(shape ...int64) *Tensor {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return &Tensor{Shape: slices.Clone(shape), Data: make([]float64, n)}
}

// NewScalar returns a scalar holding v.
func NewScalar(v float64) *Tensor {
	return &Tensor{Data: []float64{v}}
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.Shape)
}

// Clone returns a deep copy of t.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{Shape: slices.Clone(t.Shape), Data: slices.Clone(t.Data)}
}

// Equal reports whether t and other have the same shape and elements.
func (t *Tensor) Equal(other *Tensor) bool {
	return slices.Equal(t.Shape, other.Shape) && slices.Equal(t.Data, other.Data)
}

// At returns the element at the given multi-index.
func (t *Tensor) At(index ...int64) float64 {
	return t.Data[t.offset(index)]
}

// Set stores v at the given multi-index.
func (t *Tensor) Set(v float64, index ...int64) {
	t.Data[t.offset(index)] = v
}

func (t *Tensor) offset(index []int64) int64 {
	off := int64(0)
	for i, x := range index {
		off = off*t.Shape[i] + x
	}
	return off
}

// forEachIndex calls fn with every multi-index of shape in row-major order.
// The index slice is reused between calls.
func forEachIndex(shape []int64, fn func(index []int64)) {
	for _, d := range shape {
		if d == 0 {
			return
		}
	}
	index := make([]int64, len(shape))
	for {
		fn(index)
		i := len(shape) - 1
		for ; i >= 0; i-- {
			index[i]++
			if index[i] < shape[i] {
				break
			}
			index[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

// Deterministic fills a tensor of type t with small integer values derived
// from seed. Equal seeds give equal tensors.
func Deterministic(t ir.Type, seed int64) *Tensor {
	if !t.Shaped {
		return NewScalar(float64(seed%7 - 3))
	}
	out := NewTensor(t.Shape...)
	for i := range out.Data {
		out.Data[i] = float64((int64(i)*7+seed*3)%11 - 5)
	}
	return out
}

// DeterministicInputs returns one Deterministic tensor per argument of f,
// seeded by argument position.
func DeterministicInputs(f *ir.Function) []*Tensor {
	args := f.Args()
	inputs := make([]*Tensor, len(args))
	for i, a := range args {
		inputs[i] = Deterministic(f.Type(a), int64(i+1))
	}
	return inputs
}

// String renders the shape and element count, for test failure messages.
func (t *Tensor) String() string {
	return fmt.Sprintf("tensor%v(%d elements)", t.Shape, len(t.Data))
}
