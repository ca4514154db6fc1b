package interp

import (
	"fmt"
	"math"
	"slices"

	"github.com/roach88/tppenforce/internal/ir"
)

// Evaluate runs f on inputs, one per argument, and returns the values
// passed to its return node.
func Evaluate(f *ir.Function, inputs []*Tensor) ([]*Tensor, error) {
	args := f.Args()
	if len(inputs) != len(args) {
		return nil, fmt.Errorf("evaluate @%s: expected %d input(s), got %d", f.Name, len(args), len(inputs))
	}

	env := make(map[ir.ValueID]*Tensor, len(args))
	for i, a := range args {
		t := f.Type(a)
		if t.Shaped && !slices.Equal(t.Shape, inputs[i].Shape) {
			return nil, fmt.Errorf("evaluate @%s: input %d has shape %v, want %s", f.Name, i, inputs[i].Shape, t)
		}
		env[a] = inputs[i]
	}

	for _, n := range f.Body() {
		operands := f.Operands(n)
		vals := make([]*Tensor, len(operands))
		for i, v := range operands {
			t, ok := env[v]
			if !ok {
				return nil, fmt.Errorf("evaluate @%s: node %d reads value %d before it is defined", f.Name, n, v)
			}
			vals[i] = t
		}

		if f.Kind(n) == ir.KindReturn {
			out := make([]*Tensor, len(vals))
			for i, v := range vals {
				out[i] = v.Clone()
			}
			return out, nil
		}

		result, err := evalNode(f, n, vals)
		if err != nil {
			return nil, fmt.Errorf("evaluate @%s: %s node %d: %w", f.Name, f.Kind(n), n, err)
		}
		env[f.Result(n)] = result
	}
	return nil, fmt.Errorf("evaluate @%s: no return node", f.Name)
}

func evalNode(f *ir.Function, n ir.NodeID, vals []*Tensor) (*Tensor, error) {
	switch a := f.Attrs(n).(type) {
	case ir.ConstantAttrs:
		return NewScalar(a.Float()), nil
	case ir.ContractionAttrs:
		return contract(n, a, vals[0], vals[1], vals[2])
	case ir.PadAttrs:
		return pad(vals[0], vals[1].Data[0], a), nil
	case ir.ExtractAttrs:
		return extract(vals[0], a.SliceAttrs), nil
	case ir.EmptyAttrs:
		return NewTensor(a.Type.Shape...), nil
	case ir.FillAttrs:
		out := NewTensor(vals[1].Shape...)
		for i := range out.Data {
			out.Data[i] = vals[0].Data[0]
		}
		return out, nil
	case ir.InsertAttrs:
		return insert(vals[0], vals[1], a.SliceAttrs), nil
	default:
		return nil, fmt.Errorf("unsupported attributes %T", a)
	}
}

// contract computes C[i][j] = C[i][j] <combiner> A[i][k]*B[k][j] over k,
// accumulating one outer product of column k of A and row k of B at a time.
func contract(n ir.NodeID, attrs ir.ContractionAttrs, a, b, c *Tensor) (*Tensor, error) {
	if a.Rank() != 2 || b.Rank() != 2 || c.Rank() != 2 {
		return nil, ir.NewShapeInvariantError(n, "contraction operands must be 2-D, got ranks %d, %d, %d", a.Rank(), b.Rank(), c.Rank())
	}
	m, k, nn := a.Shape[0], a.Shape[1], b.Shape[1]
	if b.Shape[0] != k || c.Shape[0] != m || c.Shape[1] != nn {
		return nil, ir.NewShapeInvariantError(n, "contraction shapes %v x %v -> %v disagree", a.Shape, b.Shape, c.Shape)
	}
	if attrs.Body != "" && attrs.Body != ir.DefaultContractionBody {
		return nil, fmt.Errorf("unsupported contraction body %q", attrs.Body)
	}

	combine, err := combiner(attrs.Combiner)
	if err != nil {
		return nil, err
	}

	out := c.Clone()
	for p := int64(0); p < k; p++ {
		for i := int64(0); i < m; i++ {
			aip := a.Data[i*k+p]
			row := out.Data[i*nn : (i+1)*nn]
			for j := range row {
				row[j] = combine(row[j], aip*b.Data[p*nn+int64(j)])
			}
		}
	}
	return out, nil
}

func combiner(name string) (func(acc, x float64) float64, error) {
	switch name {
	case "", ir.CombinerAdd:
		return func(acc, x float64) float64 { return acc + x }, nil
	case ir.CombinerMax:
		return math.Max, nil
	case ir.CombinerMul:
		return func(acc, x float64) float64 { return acc * x }, nil
	default:
		return nil, fmt.Errorf("unsupported combiner %q", name)
	}
}

func pad(src *Tensor, fill float64, attrs ir.PadAttrs) *Tensor {
	shape := make([]int64, src.Rank())
	for i, d := range src.Shape {
		shape[i] = d + attrs.Low[i] + attrs.High[i]
	}
	out := NewTensor(shape...)
	for i := range out.Data {
		out.Data[i] = fill
	}
	dst := make([]int64, src.Rank())
	forEachIndex(src.Shape, func(index []int64) {
		for i, x := range index {
			dst[i] = x + attrs.Low[i]
		}
		out.Set(src.At(index...), dst...)
	})
	return out
}

func extract(src *Tensor, s ir.SliceAttrs) *Tensor {
	out := NewTensor(s.Sizes...)
	at := make([]int64, src.Rank())
	forEachIndex(s.Sizes, func(index []int64) {
		for i, x := range index {
			at[i] = s.Offsets[i] + x*s.Strides[i]
		}
		out.Set(src.At(at...), index...)
	})
	return out
}

func insert(src, dest *Tensor, s ir.SliceAttrs) *Tensor {
	out := dest.Clone()
	at := make([]int64, dest.Rank())
	forEachIndex(s.Sizes, func(index []int64) {
		for i, x := range index {
			at[i] = s.Offsets[i] + x*s.Strides[i]
		}
		out.Set(src.At(index...), at...)
	})
	return out
}
