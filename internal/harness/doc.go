// Package harness provides scenario testing for the enforce-preconditions
// pass.
//
// A scenario names a function in a CUE graph spec, runs the pass on it
// with an optional configuration override, and checks assertions about the
// rewritten function and the rewrite trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: misaligned_gemm
//	description: "Pads a 128x13 GEMM to 132x16 and extracts the result"
//	spec: ../specs/gemm.cue
//	function: gemm
//	config:
//	  lane_multiple: 16
//	  block_multiple: 6
//	assertions:
//	  - type: rewrite_count
//	    pattern: align-contraction
//	    count: 1
//	  - type: result_shape
//	    shape: [128, 13]
//	  - type: equivalent
//
// Spec paths are relative to the scenario file. Fields missing from config
// keep their production defaults. A scenario that expects the pass to fail
// sets expect_error to an IR error code (e.g. SHAPE_INVARIANT_VIOLATION).
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - rewrite_count: Number of rewrites by pattern (all patterns if omitted)
//   - node_count: Number of live nodes of a kind after the pass
//   - result_shape: Shape of a returned value (result index, default 0)
//   - converged: Whether the driver reached a fixed point (value, default true)
//   - equivalent: Interpreter-checked equality of outputs before and after
//   - unchanged: The function hash is identical before and after
//   - aligned: Every tagged contraction meets the lane and block multiples
//
// # Golden Files
//
// RunWithGolden compares the printed function after the pass against
// testdata/golden/<name>.golden. To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// # Determinism
//
// Each scenario uses a fresh logical clock and discards logs, so the
// trace and printed output are byte-identical across runs.
package harness
