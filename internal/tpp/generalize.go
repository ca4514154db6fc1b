package tpp

import (
	"github.com/roach88/tppenforce/internal/ir"
	"github.com/roach88/tppenforce/internal/rewrite"
)

// FeasibilityFunc decides whether a high-only constant pad may be lowered
// to empty+fill+insert.
type FeasibilityFunc func(f *ir.Function, pad ir.NodeID) bool

// AlwaysInfeasible declines every pad. It is the default predicate of
// GeneralizePad: the lowering is kept as an extension point and must not
// fire until its profitability is re-verified.
func AlwaysInfeasible(*ir.Function, ir.NodeID) bool {
	return false
}

// GeneralizePad lowers a high-only pad with a constant fill into an
// explicit buffer:
//
//	%e = empty : tensor<132x256xf32>
//	%f = fill %cst, %e : tensor<132x256xf32>
//	%r = insert %src into %f[0, 0][128, 256][1, 1] : tensor<128x256xf32> into tensor<132x256xf32>
//
// The rewrite only happens when Feasible accepts the pad. A nil Feasible
// means AlwaysInfeasible.
type GeneralizePad struct {
	Feasible FeasibilityFunc
}

// Name implements rewrite.Pattern.
func (GeneralizePad) Name() string { return PatternGeneralizePad }

// Root implements rewrite.Pattern.
func (GeneralizePad) Root() ir.Kind { return ir.KindPad }

// MatchAndRewrite implements rewrite.Pattern.
func (p GeneralizePad) MatchAndRewrite(rw *rewrite.Rewriter, n ir.NodeID) (bool, error) {
	f := rw.Function()
	attrs, ok := f.Attrs(n).(ir.PadAttrs)
	if !ok || !attrs.IsHighOnly() {
		return false, nil
	}
	source, fill := f.Operand(n, 0), f.Operand(n, 1)
	if _, ok := constantValue(f, fill); !ok {
		return false, nil
	}
	sourceShape, err := f.ShapeOf(source)
	if err != nil {
		return false, nil
	}

	feasible := p.Feasible
	if feasible == nil {
		feasible = AlwaysInfeasible
	}
	if !feasible(f, n) {
		return false, nil
	}

	resultType := f.Type(f.Result(n))
	empty, err := rw.CreateValue(ir.KindEmpty, nil, ir.EmptyAttrs{Type: resultType})
	if err != nil {
		return false, err
	}
	filled, err := rw.CreateValue(ir.KindFill, []ir.ValueID{fill, empty}, ir.FillAttrs{})
	if err != nil {
		return false, err
	}
	inserted, err := rw.CreateValue(ir.KindInsert, []ir.ValueID{source, filled}, ir.InsertAttrs{SliceAttrs: ir.ZeroOffsetSlice(sourceShape)})
	if err != nil {
		return false, err
	}
	if err := rw.ReplaceOp(n, inserted); err != nil {
		return false, err
	}
	return true, nil
}
