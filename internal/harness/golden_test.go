package harness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssertGolden_Direct(t *testing.T) {
	result := NewResult()
	result.After = `func @chain(%arg0: tensor<3x3xf32>) {
  %0 = constant 0 : f32
  %1 = pad %arg0, %0 low[0, 0] high[3, 13] : tensor<3x3xf32> to tensor<6x16xf32>
  return %1 : tensor<6x16xf32>
}
`
	AssertGolden(t, "pad_chain_fold", result)
}

func TestRunWithGolden_ReturnsResult(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/pad_chain_fold.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 1)
}
