package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyWellFormed(t *testing.T) {
	f := buildPadChain(t)
	assert.NoError(t, f.Verify())
}

func TestVerifyMissingReturn(t *testing.T) {
	f := NewFunction("f", Tensor(F32, 3, 3))
	b := NewBuilder(f)
	b.Constant(F32, 0)
	require.NoError(t, b.Err())

	err := f.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one return")
}

func TestVerifyReturnNotLast(t *testing.T) {
	f := NewFunction("f", Tensor(F32, 3, 3))
	b := NewBuilder(f)
	b.Return(f.Arg(0))
	b.Constant(F32, 0)
	require.NoError(t, b.Err())

	err := f.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "return is not the last node")
}

func TestVerifyUseBeforeDefinition(t *testing.T) {
	f := NewFunction("f", Tensor(F32, 3, 3), Tensor(F32, 3, 3))
	b := NewBuilder(f)
	b.Return(f.Arg(0))
	require.NoError(t, b.Err())
	ret := f.Body()[0]

	// A pad appended after the return is wired into it.
	zero, err := f.InsertBefore(ret, KindConstant, nil, ConstantAttrs{Type: Scalar(F32), Value: 0})
	require.NoError(t, err)
	pad, err := f.Append(KindPad, []ValueID{f.Arg(1), f.Result(zero)}, PadAttrs{Low: []int64{0, 0}, High: []int64{0, 0}})
	require.NoError(t, err)
	require.NoError(t, f.ReplaceAllUses(f.Arg(0), f.Result(pad)))

	err = f.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "used before definition")
}

func TestReplaceAllUsesRejectsSelfReference(t *testing.T) {
	f := NewFunction("f", Tensor(F32, 3, 3))
	b := NewBuilder(f)
	zero := b.Constant(F32, 0)
	p := b.Pad(f.Arg(0), zero, []int64{0, 0}, []int64{0, 0})
	b.Return(p)
	require.NoError(t, b.Err())

	err := f.ReplaceAllUses(f.Arg(0), p)
	assert.True(t, IsInvalidIR(err))
}

func TestDeadCodeEliminate(t *testing.T) {
	f := NewFunction("f", Tensor(F32, 3, 3))
	b := NewBuilder(f)
	zero := b.Constant(F32, 0)
	one := b.Constant(F32, 1)
	p := b.Pad(f.Arg(0), zero, []int64{0, 0}, []int64{0, 1})
	b.Extract(p, ZeroOffsetSlice([]int64{3, 3}))
	b.Return(f.Arg(0))
	require.NoError(t, b.Err())
	_ = one

	// extract, then pad, then both constants.
	assert.Equal(t, 4, f.DeadCodeEliminate())
	assert.Equal(t, 1, f.Len())
	assert.Equal(t, KindReturn, f.Kind(f.Body()[0]))
	assert.NoError(t, f.Verify())
	assert.Equal(t, 0, f.DeadCodeEliminate())
}
