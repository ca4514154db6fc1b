package tpp

import (
	"fmt"

	"github.com/roach88/tppenforce/internal/ir"
	"github.com/roach88/tppenforce/internal/rewrite"
)

// AlignContraction pads the operands of a tagged GEMM contraction so that
// the lane dimension is a multiple of LaneMultiple and the block dimension
// a multiple of BlockMultiple.
//
// Example (lane = 13):
//
//	%r = contraction "tpp.matmul" ins(%A, %B) outs(%C) : tensor<6x13xf32>
//
// becomes
//
//	%z  = constant 0 : f32
//	%pB = pad %B, %z low[0, 0] high[0, 3] : tensor<4x13xf32> to tensor<4x16xf32>
//	%pC = pad %C, %z low[0, 0] high[0, 3] : tensor<6x13xf32> to tensor<6x16xf32>
//	%p  = contraction "tpp.matmul" ins(%A, %pB) outs(%pC) : tensor<6x16xf32>
//	%r  = extract %p[0, 0][6, 13][1, 1] : tensor<6x16xf32> to tensor<6x13xf32>
//
// Zero padding only leaves the extracted region unchanged when zero is the
// identity of the combiner, so only "add" contractions are rewritten.
type AlignContraction struct {
	LaneMultiple  int64
	BlockMultiple int64
	Tag           string
}

// gemmOperands tracks A, B and C as they are padded step by step.
type gemmOperands struct {
	A, B, C ir.ValueID
}

// Name implements rewrite.Pattern.
func (AlignContraction) Name() string { return PatternAlignContraction }

// Root implements rewrite.Pattern.
func (AlignContraction) Root() ir.Kind { return ir.KindContraction }

// MatchAndRewrite implements rewrite.Pattern.
func (p AlignContraction) MatchAndRewrite(rw *rewrite.Rewriter, n ir.NodeID) (bool, error) {
	if p.LaneMultiple < 1 || p.BlockMultiple < 1 {
		return false, fmt.Errorf("align contraction: multiples must be positive, got lane=%d block=%d", p.LaneMultiple, p.BlockMultiple)
	}
	f := rw.Function()
	attrs, ok := f.Attrs(n).(ir.ContractionAttrs)
	if !ok || attrs.Tag != p.Tag {
		return false, nil
	}

	ops := gemmOperands{A: f.Operand(n, 0), B: f.Operand(n, 1), C: f.Operand(n, 2)}
	shapeA, errA := f.ShapeOf(ops.A)
	shapeB, errB := f.ShapeOf(ops.B)
	shapeC, errC := f.ShapeOf(ops.C)
	if errA != nil || errB != nil || errC != nil {
		return false, nil
	}
	if err := checkGemmShapes(n, shapeA, shapeB, shapeC); err != nil {
		return false, err
	}
	if attrs.Combiner != ir.CombinerAdd {
		return false, nil
	}

	lane, block := shapeC[1], shapeC[0]
	if lane%p.LaneMultiple == 0 && block%p.BlockMultiple == 0 {
		return false, nil
	}

	if err := p.padLane(rw, &ops, lane); err != nil {
		return false, err
	}
	if err := p.padBlock(rw, &ops, block); err != nil {
		return false, err
	}

	padded, err := rw.CreateValue(ir.KindContraction, []ir.ValueID{ops.A, ops.B, ops.C}, attrs)
	if err != nil {
		return false, err
	}
	extracted, err := rw.CreateValue(ir.KindExtract, []ir.ValueID{padded}, ir.ExtractAttrs{SliceAttrs: ir.ZeroOffsetSlice(shapeC)})
	if err != nil {
		return false, err
	}
	if err := rw.ReplaceOp(n, extracted); err != nil {
		return false, err
	}
	return true, nil
}

// padLane pads the columns of B and C up to the next lane multiple.
func (p AlignContraction) padLane(rw *rewrite.Rewriter, ops *gemmOperands, lane int64) error {
	if lane%p.LaneMultiple == 0 {
		return nil
	}
	extra := roundUp(lane, p.LaneMultiple) - lane

	zero, err := createZero(rw, ops.C)
	if err != nil {
		return err
	}
	if ops.B, err = padHigh(rw, ops.B, zero, []int64{0, extra}); err != nil {
		return err
	}
	if ops.C, err = padHigh(rw, ops.C, zero, []int64{0, extra}); err != nil {
		return err
	}
	return nil
}

// padBlock pads the rows of A and C, where C may already be lane-padded,
// up to the next block multiple.
func (p AlignContraction) padBlock(rw *rewrite.Rewriter, ops *gemmOperands, block int64) error {
	if block%p.BlockMultiple == 0 {
		return nil
	}
	extra := roundUp(block, p.BlockMultiple) - block

	zero, err := createZero(rw, ops.C)
	if err != nil {
		return err
	}
	if ops.A, err = padHigh(rw, ops.A, zero, []int64{extra, 0}); err != nil {
		return err
	}
	if ops.C, err = padHigh(rw, ops.C, zero, []int64{extra, 0}); err != nil {
		return err
	}
	return nil
}

// checkGemmShapes enforces A[M,K] x B[K,N] -> C[M,N].
func checkGemmShapes(n ir.NodeID, a, b, c []int64) error {
	if len(a) != 2 || len(b) != 2 || len(c) != 2 {
		return ir.NewShapeInvariantError(n, "expect 2d gemm, got operand ranks %d, %d, %d", len(a), len(b), len(c))
	}
	if c[1] != b[1] {
		return ir.NewShapeInvariantError(n, "lane dimension of C (%d) differs from B (%d)", c[1], b[1])
	}
	if c[0] != a[0] {
		return ir.NewShapeInvariantError(n, "block dimension of C (%d) differs from A (%d)", c[0], a[0])
	}
	if a[1] != b[0] {
		return ir.NewShapeInvariantError(n, "reduction dimension of A (%d) differs from B (%d)", a[1], b[0])
	}
	return nil
}

// createZero creates the additive identity of like's element type.
func createZero(rw *rewrite.Rewriter, like ir.ValueID) (ir.ValueID, error) {
	elem, err := rw.Function().ElementTypeOf(like)
	if err != nil {
		return ir.NoValue, err
	}
	return rw.CreateValue(ir.KindConstant, nil, ir.NewConstant(elem, elem.Zero()))
}

// padHigh appends high[i] fill elements after dimension i of source.
func padHigh(rw *rewrite.Rewriter, source, fill ir.ValueID, high []int64) (ir.ValueID, error) {
	low := make([]int64, len(high))
	return rw.CreateValue(ir.KindPad, []ir.ValueID{source, fill}, ir.PadAttrs{Low: low, High: high})
}

func roundUp(x, multiple int64) int64 {
	return (x + multiple - 1) / multiple * multiple
}
