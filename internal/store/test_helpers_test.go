package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/tppenforce/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a test run with minimal required fields.
func createTestRun(id, function string, seq int64) Run {
	return Run{
		ID:          id,
		Function:    function,
		InputHash:   "in-hash",
		OutputHash:  "out-hash",
		InputIR:     "func @" + function + "() {\n}\n",
		OutputIR:    "func @" + function + "() {\n}\n",
		Converged:   true,
		Iterations:  1,
		Seq:         seq,
		IRVersion:   ir.IRVersion,
		PassVersion: ir.PassVersion,
	}
}

// createTestRewrite creates a test rewrite record.
func createTestRewrite(runID string, seq int64, pattern string) RewriteRecord {
	return RewriteRecord{
		RunID:     runID,
		Seq:       seq,
		Iteration: 1,
		Pattern:   pattern,
		RootNode:  seq,
		RootKind:  "pad",
		Created:   []int64{},
	}
}
