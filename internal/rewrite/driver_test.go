package rewrite

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tppenforce/internal/ir"
)

// decrementConstant replaces a positive constant with one less than it.
type decrementConstant struct{}

func (decrementConstant) Name() string  { return "decrement-constant" }
func (decrementConstant) Root() ir.Kind { return ir.KindConstant }

func (decrementConstant) MatchAndRewrite(rw *Rewriter, n ir.NodeID) (bool, error) {
	attrs := rw.Function().Attrs(n).(ir.ConstantAttrs)
	if attrs.Value <= 0 {
		return false, nil
	}
	next, err := rw.CreateValue(ir.KindConstant, nil, ir.ConstantAttrs{Type: attrs.Type, Value: attrs.Value - 1})
	if err != nil {
		return false, err
	}
	return true, rw.ReplaceOp(n, next)
}

// recordingPattern declines every node and records what it was offered.
type recordingPattern struct {
	name string
	root ir.Kind
	seen []ir.NodeID
}

func (p *recordingPattern) Name() string  { return p.name }
func (p *recordingPattern) Root() ir.Kind { return p.root }

func (p *recordingPattern) MatchAndRewrite(_ *Rewriter, n ir.NodeID) (bool, error) {
	p.seen = append(p.seen, n)
	return false, nil
}

// failingPattern creates a node, then fails with err.
type failingPattern struct {
	err error
}

func (failingPattern) Name() string  { return "failing" }
func (failingPattern) Root() ir.Kind { return ir.KindConstant }

func (p failingPattern) MatchAndRewrite(rw *Rewriter, n ir.NodeID) (bool, error) {
	if _, err := rw.Create(ir.KindConstant, nil, ir.ConstantAttrs{Type: ir.Scalar(ir.F32), Value: 9}); err != nil {
		return false, err
	}
	return false, p.err
}

// sneakyPattern mutates the function, then declines.
type sneakyPattern struct{}

func (sneakyPattern) Name() string  { return "sneaky" }
func (sneakyPattern) Root() ir.Kind { return ir.KindConstant }

func (sneakyPattern) MatchAndRewrite(rw *Rewriter, n ir.NodeID) (bool, error) {
	_, err := rw.Create(ir.KindConstant, nil, ir.ConstantAttrs{Type: ir.Scalar(ir.F32), Value: 9})
	return false, err
}

// alternatingPattern rebuilds a constant on every other call, so each outer
// iteration finds fresh work and the function never settles.
type alternatingPattern struct {
	calls int
}

func (*alternatingPattern) Name() string  { return "alternating" }
func (*alternatingPattern) Root() ir.Kind { return ir.KindConstant }

func (p *alternatingPattern) MatchAndRewrite(rw *Rewriter, n ir.NodeID) (bool, error) {
	p.calls++
	if p.calls%2 == 0 {
		return false, nil
	}
	attrs := rw.Function().Attrs(n).(ir.ConstantAttrs)
	next, err := rw.CreateValue(ir.KindConstant, nil, attrs)
	if err != nil {
		return false, err
	}
	return true, rw.ReplaceOp(n, next)
}

func constantFunction(t *testing.T, value float64) *ir.Function {
	t.Helper()
	f := ir.NewFunction("f")
	b := ir.NewBuilder(f)
	b.Return(b.Constant(ir.F32, value))
	require.NoError(t, b.Err())
	return f
}

func newTestDriver(t *testing.T, patterns []Pattern, opts ...Option) *Driver {
	t.Helper()
	d := NewDriver(opts...)
	require.NoError(t, d.RegisterPatterns(patterns))
	return d
}

func TestApply_ReachesFixedPoint(t *testing.T) {
	f := constantFunction(t, 3)
	d := newTestDriver(t, []Pattern{decrementConstant{}})

	res, err := d.Apply(f)
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, 2, res.Iterations, "created nodes are revisited in the same iteration")
	assert.Equal(t, 3, res.Count(""))
	assert.Equal(t, 3, res.Count("decrement-constant"))
	assert.Equal(t, 0, res.Count("other"))

	want := "func @f() {\n  %0 = constant 0 : f32\n  return %0 : f32\n}\n"
	assert.Equal(t, want, ir.Print(f))
	require.NoError(t, f.Verify())
}

func TestApply_EventsAreOrdered(t *testing.T) {
	f := constantFunction(t, 3)
	d := newTestDriver(t, []Pattern{decrementConstant{}})

	res, err := d.Apply(f)
	require.NoError(t, err)
	require.Len(t, res.Rewrites, 3)

	// Arena: constant 3 is node 0, return node 1, then one new constant per rewrite.
	for i, ev := range res.Rewrites {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Equal(t, 1, ev.Iteration)
		assert.Equal(t, "decrement-constant", ev.Pattern)
		assert.Equal(t, ir.KindConstant, ev.RootKind)
		assert.Equal(t, []ir.NodeID{ir.NodeID(i + 2)}, ev.Created)
	}
	assert.Equal(t, ir.NodeID(0), res.Rewrites[0].Root)
	assert.Equal(t, ir.NodeID(2), res.Rewrites[1].Root)
	assert.Equal(t, ir.NodeID(3), res.Rewrites[2].Root)
}

func TestApply_SharedClock(t *testing.T) {
	clock := NewClockAt(41)
	d := newTestDriver(t, []Pattern{decrementConstant{}}, WithClock(clock))

	res, err := d.Apply(constantFunction(t, 1))
	require.NoError(t, err)
	require.Len(t, res.Rewrites, 1)
	assert.Equal(t, int64(42), res.Rewrites[0].Seq)

	res, err = d.Apply(constantFunction(t, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(43), res.Rewrites[0].Seq)
}

func TestApply_IterationCapIsNotAnError(t *testing.T) {
	p := &alternatingPattern{}
	d := newTestDriver(t, []Pattern{p}, WithMaxIterations(3))

	f := constantFunction(t, 5)
	res, err := d.Apply(f)
	require.NoError(t, err)

	assert.False(t, res.Converged)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, 3, res.Count("alternating"))
	require.NoError(t, f.Verify(), "function is consistent after the cap")
}

func TestApply_DefaultIterationCap(t *testing.T) {
	d := newTestDriver(t, []Pattern{&alternatingPattern{}}, WithMaxIterations(0))

	res, err := d.Apply(constantFunction(t, 5))
	require.NoError(t, err)
	assert.False(t, res.Converged)
	assert.Equal(t, DefaultMaxIterations, res.Iterations)
}

func TestApply_NoPatterns(t *testing.T) {
	f := constantFunction(t, 3)
	before := ir.Print(f)

	res, err := NewDriver().Apply(f)
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.Empty(t, res.Rewrites)
	assert.Equal(t, before, ir.Print(f))
}

func TestApply_FirstMatchWins(t *testing.T) {
	rec := &recordingPattern{name: "recorder", root: ir.KindConstant}
	d := newTestDriver(t, []Pattern{decrementConstant{}, rec})

	f := constantFunction(t, 1)
	_, err := d.Apply(f)
	require.NoError(t, err)

	// The recorder only sees the constant once decrement declines it:
	// once at the end of iteration 1 and once in iteration 2.
	final := f.NodesOfKind(ir.KindConstant)[0]
	assert.Equal(t, []ir.NodeID{final, final}, rec.seen)
}

func TestApply_KindGuard(t *testing.T) {
	rec := &recordingPattern{name: "pads", root: ir.KindPad}
	d := newTestDriver(t, []Pattern{rec})

	_, err := d.Apply(constantFunction(t, 1))
	require.NoError(t, err)
	assert.Empty(t, rec.seen, "pad pattern is never offered a constant")
}

func TestApply_DocumentOrder(t *testing.T) {
	f := ir.NewFunction("f")
	b := ir.NewBuilder(f)
	x := b.Constant(ir.F32, 0)
	y := b.Constant(ir.F32, 0)
	b.Return(x, y)
	require.NoError(t, b.Err())

	rec := &recordingPattern{name: "recorder", root: ir.KindConstant}
	_, err := newTestDriver(t, []Pattern{rec}).Apply(f)
	require.NoError(t, err)

	body := f.Body()
	assert.Equal(t, []ir.NodeID{body[0], body[1]}, rec.seen)
}

func TestApply_PatternErrorRollsBack(t *testing.T) {
	boom := errors.New("boom")
	f := constantFunction(t, 1)
	before := ir.Print(f)
	nodes := f.NumNodes()

	d := newTestDriver(t, []Pattern{failingPattern{err: boom}})
	res, err := d.Apply(f)
	require.Error(t, err)
	require.NotNil(t, res)

	assert.True(t, IsPatternFailed(err))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "pattern=failing")
	assert.Equal(t, before, ir.Print(f))
	assert.Equal(t, nodes, f.NumNodes(), "created node is rolled back")
	require.NoError(t, f.Verify())
}

func TestApply_ShapeInvariantPropagates(t *testing.T) {
	f := constantFunction(t, 1)
	d := newTestDriver(t, []Pattern{failingPattern{err: ir.NewShapeInvariantError(0, "operand is not 2-D")}})

	_, err := d.Apply(f)
	require.Error(t, err)
	assert.True(t, ir.IsShapeInvariantViolation(err))
}

func TestApply_MutateThenDeclineIsRejected(t *testing.T) {
	f := constantFunction(t, 1)
	before := ir.Print(f)

	_, err := newTestDriver(t, []Pattern{sneakyPattern{}}).Apply(f)
	require.Error(t, err)

	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeInvalidPattern, re.Code)
	assert.False(t, IsRegistrationError(err))
	assert.Equal(t, before, ir.Print(f))
}

func TestApply_Deterministic(t *testing.T) {
	f1 := constantFunction(t, 4)
	f2 := constantFunction(t, 4)

	r1, err := newTestDriver(t, []Pattern{decrementConstant{}}).Apply(f1)
	require.NoError(t, err)
	r2, err := newTestDriver(t, []Pattern{decrementConstant{}}).Apply(f2)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, ir.MustFunctionHash(f1), ir.MustFunctionHash(f2))
}

func TestRegisterPatterns(t *testing.T) {
	t.Run("preserves order", func(t *testing.T) {
		d := NewDriver()
		require.NoError(t, d.RegisterPatterns([]Pattern{
			&recordingPattern{name: "b", root: ir.KindPad},
			&recordingPattern{name: "a", root: ir.KindPad},
		}))
		require.NoError(t, d.RegisterPatterns([]Pattern{&recordingPattern{name: "c", root: ir.KindPad}}))
		assert.Equal(t, []string{"b", "a", "c"}, d.Patterns())
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		d := NewDriver()
		require.NoError(t, d.RegisterPatterns([]Pattern{&recordingPattern{name: "a", root: ir.KindPad}}))

		err := d.RegisterPatterns([]Pattern{
			&recordingPattern{name: "b", root: ir.KindPad},
			&recordingPattern{name: "a", root: ir.KindPad},
		})
		require.Error(t, err)
		assert.True(t, IsRegistrationError(err))
		assert.Equal(t, []string{"a"}, d.Patterns(), "rejected call leaves the list unchanged")
	})

	t.Run("rejects duplicates within one call", func(t *testing.T) {
		err := NewDriver().RegisterPatterns([]Pattern{
			&recordingPattern{name: "a", root: ir.KindPad},
			&recordingPattern{name: "a", root: ir.KindConstant},
		})
		assert.True(t, IsRegistrationError(err))
	})

	t.Run("rejects nil and unnamed", func(t *testing.T) {
		assert.True(t, IsRegistrationError(NewDriver().RegisterPatterns([]Pattern{nil})))
		assert.True(t, IsRegistrationError(NewDriver().RegisterPatterns([]Pattern{&recordingPattern{root: ir.KindPad}})))
	})

	t.Run("nil clears", func(t *testing.T) {
		d := NewDriver()
		require.NoError(t, d.RegisterPatterns([]Pattern{&recordingPattern{name: "a", root: ir.KindPad}}))
		require.NoError(t, d.RegisterPatterns(nil))
		assert.Empty(t, d.Patterns())
	})
}

func TestRewriter_ReplaceOpArity(t *testing.T) {
	f := constantFunction(t, 1)
	rw := newRewriter(f, f.Body()[1])

	err := rw.ReplaceOp(f.Body()[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0 replacement value(s) for 1 result(s)")
	assert.False(t, rw.mutated())
}

func TestRewriter_CreateInsertsBeforeRoot(t *testing.T) {
	f := constantFunction(t, 1)
	ret := f.Body()[1]
	rw := newRewriter(f, ret)

	n, err := rw.Create(ir.KindConstant, nil, ir.ConstantAttrs{Type: ir.Scalar(ir.F32), Value: 2})
	require.NoError(t, err)
	assert.Equal(t, n, f.Body()[1])
	assert.Equal(t, ret, f.Body()[2])
	assert.Equal(t, []ir.NodeID{n}, rw.liveCreated())

	rw.rollback()
	assert.Equal(t, 2, f.Len())
}
