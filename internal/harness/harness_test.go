package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tppenforce/internal/tpp"
)

func graphsSpec(t *testing.T) string {
	t.Helper()
	path, err := filepath.Abs("testdata/specs/graphs.cue")
	require.NoError(t, err)
	return path
}

func TestRun_MisalignedGemm(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "gemm",
		Description: "misaligned",
		Spec:        graphsSpec(t),
		Function:    "gemm",
		Config:      tpp.DefaultConfig(),
		Assertions:  []Assertion{{Type: AssertEquivalent}},
	})
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "gemm", result.Function)
	assert.True(t, result.Converged)
	assert.Equal(t, 2, result.Iterations)
	assert.Empty(t, result.PassError)
	assert.NotEqual(t, result.Before, result.After)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, TraceEvent{Seq: 1, Iteration: 1, Pattern: tpp.PatternAlignContraction, RootKind: "contraction", Created: 8}, result.Trace[0])
	assert.Equal(t, int64(2), result.Trace[1].Seq)
	assert.Equal(t, tpp.PatternFoldPadChain, result.Trace[1].Pattern)
	assert.Equal(t, "pad", result.Trace[1].RootKind)
	assert.Equal(t, 1, result.Trace[1].Created)
}

func TestRun_Deterministic(t *testing.T) {
	scenario := &Scenario{
		Name:        "gemm",
		Description: "misaligned",
		Spec:        graphsSpec(t),
		Function:    "gemm",
		Config:      tpp.DefaultConfig(),
		Assertions:  []Assertion{{Type: AssertConverged}},
	}

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.After, second.After)
	assert.Equal(t, first.Trace, second.Trace)
}

func TestRun_ExpectedError(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "rank",
		Description: "rank 3",
		Spec:        graphsSpec(t),
		Function:    "rank3",
		Config:      tpp.DefaultConfig(),
		ExpectError: "SHAPE_INVARIANT_VIOLATION",
	})
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.PassError, "expect 2d gemm")
	assert.Equal(t, result.Before, result.After)
	assert.Empty(t, result.Trace)
}

func TestRun_UnexpectedError(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "rank",
		Description: "rank 3",
		Spec:        graphsSpec(t),
		Function:    "rank3",
		Config:      tpp.DefaultConfig(),
		Assertions:  []Assertion{{Type: AssertConverged}},
	})
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "unexpected pass error")
}

func TestRun_WrongExpectedError(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "rank",
		Description: "rank 3",
		Spec:        graphsSpec(t),
		Function:    "rank3",
		Config:      tpp.DefaultConfig(),
		ExpectError: "USE_ERROR",
	})
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected pass error USE_ERROR, got SHAPE_INVARIANT_VIOLATION")
}

func TestRun_MissingExpectedError(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "aligned",
		Description: "aligned",
		Spec:        graphsSpec(t),
		Function:    "aligned",
		Config:      tpp.DefaultConfig(),
		ExpectError: "SHAPE_INVARIANT_VIOLATION",
	})
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "pass succeeded")
}

func TestRun_FailedAssertion(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "aligned",
		Description: "aligned",
		Spec:        graphsSpec(t),
		Function:    "aligned",
		Config:      tpp.DefaultConfig(),
		Assertions:  []Assertion{{Type: AssertRewriteCount, Count: 1}},
	})
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: rewrite_count")
}

func TestRun_UnknownFunction(t *testing.T) {
	_, err := Run(&Scenario{
		Name:        "missing",
		Description: "missing",
		Spec:        graphsSpec(t),
		Function:    "nope",
		Config:      tpp.DefaultConfig(),
		Assertions:  []Assertion{{Type: AssertConverged}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `function "nope" not found`)
}

func TestRun_MissingSpec(t *testing.T) {
	_, err := Run(&Scenario{
		Name:        "missing",
		Description: "missing",
		Spec:        filepath.Join(t.TempDir(), "nope.cue"),
		Function:    "gemm",
		Config:      tpp.DefaultConfig(),
		Assertions:  []Assertion{{Type: AssertConverged}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load spec")
}

func TestRun_IterationCap(t *testing.T) {
	cfg := tpp.DefaultConfig()
	cfg.MaxIterations = 1

	result, err := Run(&Scenario{
		Name:        "capped",
		Description: "one iteration is not enough to observe the fixed point",
		Spec:        graphsSpec(t),
		Function:    "gemm",
		Config:      cfg,
		Assertions: []Assertion{
			{Type: AssertConverged, Value: boolPtr(false)},
			{Type: AssertAligned},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
