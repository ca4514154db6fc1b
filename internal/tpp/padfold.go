package tpp

import (
	"github.com/roach88/tppenforce/internal/ir"
	"github.com/roach88/tppenforce/internal/rewrite"
)

// FoldPadChain merges a high-only pad of a high-only pad into one pad.
//
//	%0 = pad %src, %cst low[0, 0] high[0, 13] : tensor<3x3xf32> to tensor<3x16xf32>
//	%1 = pad %0, %cst low[0, 0] high[3, 0] : tensor<3x16xf32> to tensor<6x16xf32>
//
// into
//
//	%1 = pad %src, %cst low[0, 0] high[3, 13] : tensor<3x3xf32> to tensor<6x16xf32>
//
// Both pads must be foldable (high-only, constant fill, not nofold) and
// their fills identical: the same value, or two constants of equal type and
// value.
type FoldPadChain struct{}

// Name implements rewrite.Pattern.
func (FoldPadChain) Name() string { return PatternFoldPadChain }

// Root implements rewrite.Pattern.
func (FoldPadChain) Root() ir.Kind { return ir.KindPad }

// MatchAndRewrite implements rewrite.Pattern.
func (FoldPadChain) MatchAndRewrite(rw *rewrite.Rewriter, consumer ir.NodeID) (bool, error) {
	f := rw.Function()
	consumerAttrs, ok := foldablePad(f, consumer)
	if !ok {
		return false, nil
	}
	mid := f.Operand(consumer, 0)
	producer, ok := f.DefiningNode(mid)
	if !ok || f.Kind(producer) != ir.KindPad {
		return false, nil
	}
	producerAttrs, ok := foldablePad(f, producer)
	if !ok {
		return false, nil
	}
	fill := f.Operand(producer, 1)
	if !sameFill(f, fill, f.Operand(consumer, 1)) {
		return false, nil
	}

	high := make([]int64, len(producerAttrs.High))
	for i := range high {
		high[i] = producerAttrs.High[i] + consumerAttrs.High[i]
	}
	fused, err := padHigh(rw, f.Operand(producer, 0), fill, high)
	if err != nil {
		return false, err
	}
	if err := rw.ReplaceOp(consumer, fused); err != nil {
		return false, err
	}
	if !f.HasUses(mid) {
		if err := rw.Erase(producer); err != nil {
			return false, err
		}
	}
	return true, nil
}

// foldablePad returns the attributes of pad n if it is high-only, has a
// constant fill and is not marked nofold.
func foldablePad(f *ir.Function, n ir.NodeID) (ir.PadAttrs, bool) {
	attrs, ok := f.Attrs(n).(ir.PadAttrs)
	if !ok || attrs.NoFold || !attrs.IsHighOnly() {
		return ir.PadAttrs{}, false
	}
	if _, ok := constantValue(f, f.Operand(n, 1)); !ok {
		return ir.PadAttrs{}, false
	}
	return attrs, true
}

// constantValue returns the attributes of the constant defining v.
func constantValue(f *ir.Function, v ir.ValueID) (ir.ConstantAttrs, bool) {
	def, ok := f.DefiningNode(v)
	if !ok || f.Kind(def) != ir.KindConstant {
		return ir.ConstantAttrs{}, false
	}
	attrs, ok := f.Attrs(def).(ir.ConstantAttrs)
	return attrs, ok
}

func sameFill(f *ir.Function, a, b ir.ValueID) bool {
	if a == b {
		return true
	}
	ca, okA := constantValue(f, a)
	cb, okB := constantValue(f, b)
	return okA && okB && ca.SameLiteral(cb)
}
