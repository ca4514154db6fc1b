package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendInfersResultTypes(t *testing.T) {
	f := NewFunction("f", Tensor(F32, 3, 3))
	zero, err := f.Append(KindConstant, nil, ConstantAttrs{Type: Scalar(F32), Value: 0})
	require.NoError(t, err)
	pad, err := f.Append(KindPad, []ValueID{f.Arg(0), f.Result(zero)},
		PadAttrs{Low: []int64{0, 0}, High: []int64{3, 13}})
	require.NoError(t, err)

	assert.Equal(t, "tensor<6x16xf32>", f.Type(f.Result(pad)).String())
	assert.Equal(t, "f32", f.Type(f.Result(zero)).String())
	assert.Equal(t, []NodeID{zero, pad}, f.Body())
}

func TestAppendRejectsMalformedNodes(t *testing.T) {
	tests := []struct {
		name  string
		build func(f *Function) error
		code  ErrorCode
	}{
		{
			name: "pad fill element mismatch",
			build: func(f *Function) error {
				c, _ := f.Append(KindConstant, nil, ConstantAttrs{Type: Scalar(F64), Value: 0})
				_, err := f.Append(KindPad, []ValueID{f.Arg(0), f.Result(c)}, PadAttrs{Low: []int64{0, 0}, High: []int64{1, 1}})
				return err
			},
			code: ErrCodeTypeMismatch,
		},
		{
			name: "pad rank mismatch",
			build: func(f *Function) error {
				c, _ := f.Append(KindConstant, nil, ConstantAttrs{Type: Scalar(F32), Value: 0})
				_, err := f.Append(KindPad, []ValueID{f.Arg(0), f.Result(c)}, PadAttrs{Low: []int64{0}, High: []int64{1}})
				return err
			},
			code: ErrCodeInvalidIR,
		},
		{
			name: "extract out of bounds",
			build: func(f *Function) error {
				_, err := f.Append(KindExtract, []ValueID{f.Arg(0)}, ExtractAttrs{ZeroOffsetSlice([]int64{4, 3})})
				return err
			},
			code: ErrCodeInvalidIR,
		},
		{
			name: "contraction without tag",
			build: func(f *Function) error {
				_, err := f.Append(KindContraction, []ValueID{f.Arg(0), f.Arg(0), f.Arg(0)}, ContractionAttrs{})
				return err
			},
			code: ErrCodeInvalidIR,
		},
		{
			name: "attrs of wrong kind",
			build: func(f *Function) error {
				_, err := f.Append(KindPad, []ValueID{f.Arg(0)}, EmptyAttrs{Type: Tensor(F32, 1)})
				return err
			},
			code: ErrCodeInvalidIR,
		},
		{
			name: "unknown operand",
			build: func(f *Function) error {
				_, err := f.Append(KindExtract, []ValueID{ValueID(42)}, ExtractAttrs{ZeroOffsetSlice([]int64{1, 1})})
				return err
			},
			code: ErrCodeInvalidIR,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFunction("f", Tensor(F32, 3, 3))
			err := tt.build(f)
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err))
		})
	}
}

func TestShapeOfScalarIsTypeMismatch(t *testing.T) {
	f := NewFunction("f", Tensor(F32, 3, 3))
	b := NewBuilder(f)
	zero := b.Constant(F32, 0)
	require.NoError(t, b.Err())

	shape, err := f.ShapeOf(f.Arg(0))
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 3}, shape)

	_, err = f.ShapeOf(zero)
	assert.True(t, IsTypeMismatch(err))
	_, err = f.ElementTypeOf(zero)
	assert.True(t, IsTypeMismatch(err))

	elem, err := f.ElementTypeOf(f.Arg(0))
	require.NoError(t, err)
	assert.Equal(t, F32, elem)
}

func TestInsertBeforeKeepsDocumentOrder(t *testing.T) {
	f := NewFunction("f", Tensor(F32, 3, 3))
	b := NewBuilder(f)
	b.Return(f.Arg(0))
	require.NoError(t, b.Err())
	ret := f.Body()[0]

	c1, err := f.InsertBefore(ret, KindConstant, nil, ConstantAttrs{Type: Scalar(F32), Value: 1})
	require.NoError(t, err)
	c2, err := f.InsertBefore(ret, KindConstant, nil, ConstantAttrs{Type: Scalar(F32), Value: 2})
	require.NoError(t, err)

	assert.Equal(t, []NodeID{c1, c2, ret}, f.Body())
}

func TestInsertBeforeErasedAnchor(t *testing.T) {
	f := NewFunction("f", Tensor(F32, 3, 3))
	b := NewBuilder(f)
	b.Constant(F32, 0)
	b.Return(f.Arg(0))
	require.NoError(t, b.Err())

	c := f.Body()[0]
	require.NoError(t, f.Erase(c))

	_, err := f.InsertBefore(c, KindConstant, nil, ConstantAttrs{Type: Scalar(F32), Value: 1})
	assert.True(t, IsInvalidIR(err))
}

func TestUsesAreOrdered(t *testing.T) {
	f := NewFunction("f", Tensor(F32, 4, 4), Tensor(F32, 4, 4))
	b := NewBuilder(f)
	out := b.Matmul("tpp.matmul", f.Arg(0), f.Arg(0), f.Arg(1))
	b.Return(out)
	require.NoError(t, b.Err())

	body := f.Body()
	mm := body[0]
	assert.Equal(t, []Use{{Node: mm, Operand: 0}, {Node: mm, Operand: 1}}, f.Uses(f.Arg(0)))
	assert.Equal(t, []NodeID{mm}, f.Users(f.Arg(0)), "users are deduplicated")
	assert.Equal(t, []Use{{Node: body[1], Operand: 0}}, f.Uses(out))

	def, ok := f.DefiningNode(out)
	assert.True(t, ok)
	assert.Equal(t, mm, def)
	_, ok = f.DefiningNode(f.Arg(0))
	assert.False(t, ok)
	assert.True(t, f.IsArg(f.Arg(1)))
}

func TestReplaceAllUses(t *testing.T) {
	f := NewFunction("f", Tensor(F32, 3, 3), Tensor(F32, 3, 3))
	b := NewBuilder(f)
	b.Return(f.Arg(0))
	require.NoError(t, b.Err())

	require.NoError(t, f.ReplaceAllUses(f.Arg(0), f.Arg(1)))
	assert.False(t, f.HasUses(f.Arg(0)))
	assert.Equal(t, []ValueID{f.Arg(1)}, f.ReturnValues())
	require.NoError(t, f.Verify())
}

func TestReplaceAllUsesTypeMismatch(t *testing.T) {
	f := NewFunction("f", Tensor(F32, 3, 3), Tensor(F32, 3, 4))
	b := NewBuilder(f)
	b.Return(f.Arg(0))
	require.NoError(t, b.Err())

	err := f.ReplaceAllUses(f.Arg(0), f.Arg(1))
	require.Error(t, err)
	assert.True(t, IsTypeMismatch(err))
	assert.True(t, f.HasUses(f.Arg(0)), "failed replace leaves uses untouched")
}

func TestEraseWithUsesIsUseError(t *testing.T) {
	f := NewFunction("f", Tensor(F32, 3, 3))
	b := NewBuilder(f)
	zero := b.Constant(F32, 0)
	padded := b.Pad(f.Arg(0), zero, []int64{0, 0}, []int64{0, 1})
	b.Return(padded)
	require.NoError(t, b.Err())

	zeroNode, _ := f.DefiningNode(zero)
	err := f.Erase(zeroNode)
	require.Error(t, err)
	assert.True(t, IsUseError(err))
	assert.False(t, f.IsErased(zeroNode))
}

func TestEraseReleasesOperandUses(t *testing.T) {
	f := NewFunction("f", Tensor(F32, 3, 3))
	b := NewBuilder(f)
	zero := b.Constant(F32, 0)
	b.Pad(f.Arg(0), zero, []int64{0, 0}, []int64{0, 1})
	b.Return(f.Arg(0))
	require.NoError(t, b.Err())

	padNode := f.NodesOfKind(KindPad)[0]
	require.NoError(t, f.Erase(padNode))

	assert.True(t, f.IsErased(padNode))
	assert.False(t, f.HasUses(zero))
	assert.Equal(t, []Use{{Node: f.NodesOfKind(KindReturn)[0], Operand: 0}}, f.Uses(f.Arg(0)))
	assert.Equal(t, 0, f.CountKind(KindPad))
	assert.Equal(t, 3, f.NumNodes(), "arena keeps erased nodes")

	err := f.Erase(padNode)
	assert.True(t, IsInvalidIR(err), "double erase is rejected")
}

func TestCloneAndRestore(t *testing.T) {
	f := buildPadChain(t)
	before := Print(f)
	snapshot := f.Clone()

	ret := f.NodesOfKind(KindReturn)[0]
	_, err := f.InsertBefore(ret, KindConstant, nil, ConstantAttrs{Type: Scalar(F32), Value: 5})
	require.NoError(t, err)
	assert.NotEqual(t, before, Print(f))

	f.Restore(snapshot)
	assert.Equal(t, before, Print(f))
	require.NoError(t, f.Verify())
}

func TestCloneIsDeep(t *testing.T) {
	f := NewFunction("f", Tensor(F32, 3, 3), Tensor(F32, 3, 3))
	b := NewBuilder(f)
	b.Return(f.Arg(0))
	require.NoError(t, b.Err())
	c := f.Clone()

	require.NoError(t, f.ReplaceAllUses(f.Arg(0), f.Arg(1)))

	assert.True(t, c.HasUses(c.Arg(0)))
	assert.False(t, c.HasUses(c.Arg(1)))
}

func TestAttrsReturnsCopy(t *testing.T) {
	f := buildPadChain(t)
	pad := f.NodesOfKind(KindPad)[0]

	attrs := f.Attrs(pad).(PadAttrs)
	attrs.High[1] = 99

	assert.Equal(t, []int64{0, 13}, f.Attrs(pad).(PadAttrs).High)
}
