package rewrite

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIterationBudget_WithinLimit(t *testing.T) {
	b := NewIterationBudget(10)

	for i := 0; i < 10; i++ {
		assert.NoError(t, b.Check("gemm"), "iteration %d should be allowed", i+1)
	}

	assert.Equal(t, 10, b.Current())
	assert.Equal(t, 10, b.MaxIterations())
}

func TestIterationBudget_ExceedsLimit(t *testing.T) {
	b := NewIterationBudget(2)
	require.NoError(t, b.Check("gemm"))
	require.NoError(t, b.Check("gemm"))

	err := b.Check("gemm")
	require.Error(t, err)

	var ie *IterationsExceededError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "gemm", ie.Function)
	assert.Equal(t, 3, ie.Iterations)
	assert.Equal(t, 2, ie.Limit)
	assert.Contains(t, err.Error(), "exceeded iteration cap")
}

func TestIsIterationsExceeded(t *testing.T) {
	err := &IterationsExceededError{Function: "f", Iterations: 11, Limit: 10}
	assert.True(t, IsIterationsExceeded(err))
	assert.True(t, IsIterationsExceeded(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsIterationsExceeded(fmt.Errorf("other")))
	assert.False(t, IsIterationsExceeded(nil))
}
