package tpp

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tppenforce/internal/interp"
	"github.com/roach88/tppenforce/internal/ir"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

// gemm builds C[m,n] = A[m,k] x B[k,n] + C with a single tagged contraction.
func gemm(t *testing.T, m, k, n int64) *ir.Function {
	t.Helper()
	f := ir.NewFunction("gemm", ir.Tensor(ir.F32, m, k), ir.Tensor(ir.F32, k, n), ir.Tensor(ir.F32, m, n))
	b := ir.NewBuilder(f)
	b.Return(b.Matmul(MatmulTag, f.Arg(0), f.Arg(1), f.Arg(2)))
	require.NoError(t, b.Err())
	return f
}

// padChain builds two stacked pads of a [3,3] source with the given fills.
func padChain(t *testing.T, fill1, fill2 float64, high1, high2 []int64) *ir.Function {
	t.Helper()
	f := ir.NewFunction("chain", ir.Tensor(ir.F32, 3, 3))
	b := ir.NewBuilder(f)
	c1 := b.Constant(ir.F32, fill1)
	c2 := c1
	if fill2 != fill1 {
		c2 = b.Constant(ir.F32, fill2)
	}
	mid := b.Pad(f.Arg(0), c1, []int64{0, 0}, high1)
	b.Return(b.Pad(mid, c2, []int64{0, 0}, high2))
	require.NoError(t, b.Err())
	return f
}

// requireSameValues evaluates before and after on the same deterministic
// inputs and requires identical outputs.
func requireSameValues(t *testing.T, before, after *ir.Function) {
	t.Helper()
	inputs := interp.DeterministicInputs(before)
	want, err := interp.Evaluate(before, inputs)
	require.NoError(t, err)
	got, err := interp.Evaluate(after, inputs)
	require.NoError(t, err)
	require.Equal(t, len(want), len(got))
	for i := range want {
		require.Equal(t, want[i].Shape, got[i].Shape, "result %d shape", i)
		require.Equal(t, want[i].Data, got[i].Data, "result %d values", i)
	}
}
