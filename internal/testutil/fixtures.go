package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/roach88/tppenforce/internal/ir"
)

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Gemm builds @gemm computing C[m,n] = A[m,k] x B[k,n] + C with one
// contraction tagged tag.
func Gemm(t testing.TB, tag string, m, k, n int64) *ir.Function {
	t.Helper()
	f := ir.NewFunction("gemm", ir.Tensor(ir.F32, m, k), ir.Tensor(ir.F32, k, n), ir.Tensor(ir.F32, m, n))
	b := ir.NewBuilder(f)
	b.Return(b.Matmul(tag, f.Arg(0), f.Arg(1), f.Arg(2)))
	if err := b.Err(); err != nil {
		t.Fatalf("build gemm: %v", err)
	}
	return f
}
