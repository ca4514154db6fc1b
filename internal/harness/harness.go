package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tppenforce/internal/compiler"
	"github.com/roach88/tppenforce/internal/ir"
	"github.com/roach88/tppenforce/internal/rewrite"
	"github.com/roach88/tppenforce/internal/store"
	"github.com/roach88/tppenforce/internal/testutil"
	"github.com/roach88/tppenforce/internal/tpp"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and run ids, journaling
// each run so the trace is read back from the store like a real one.
type Harness struct {
	store  *store.Store
	clock  *rewrite.Clock
	runIDs store.RunIDGenerator
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load the CUE spec and compile the named function
// 3. Run the pass and journal the run
// 4. Evaluate assertions against the before/after functions and the trace
//
// An error is returned only when the scenario cannot be executed at all
// (unreadable spec, unknown function); pass failures are reported in the
// Result.
func Run(scenario *Scenario) (*Result, error) {
	// Create fresh in-memory SQLite database
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		clock:  rewrite.NewClock(),
		runIDs: testutil.NewSequentialRunIDs(scenario.Name),
		logger: testutil.DiscardLogger(), // Suppress logs in tests
	}
	return h.run(context.Background(), scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	spec, err := compiler.LoadFile(scenario.Spec)
	if err != nil {
		return nil, fmt.Errorf("failed to load spec: %w", err)
	}
	fn, err := compiler.LookupFunction(spec, scenario.Function)
	if err != nil {
		return nil, fmt.Errorf("failed to compile function: %w", err)
	}

	result := NewResult()
	result.Function = fn.Name
	result.Before = ir.Print(fn)
	original := fn.Clone()
	beforeHash, err := ir.FunctionHash(fn)
	if err != nil {
		return nil, err
	}

	cfg := scenario.Config
	cfg.Logger = h.logger
	cfg.Clock = h.clock
	if scenario.GeneralizeFeasible {
		cfg.Feasible = func(*ir.Function, ir.NodeID) bool { return true }
	}

	res, passErr := tpp.Run(fn, cfg)
	h.checkPassError(scenario, passErr, result)
	if res == nil {
		res = &rewrite.Result{}
	}

	if scenario.DCE && passErr == nil {
		fn.DeadCodeEliminate()
	}
	result.After = ir.Print(fn)
	result.Converged = res.Converged
	result.Iterations = res.Iterations

	if err := h.journal(ctx, result, beforeHash, fn, res); err != nil {
		return nil, err
	}

	actx := &AssertionContext{
		Before: original,
		After:  fn,
		Config: cfg,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// checkPassError compares the pass outcome with scenario.ExpectError.
func (h *Harness) checkPassError(scenario *Scenario, passErr error, result *Result) {
	if passErr != nil {
		result.PassError = passErr.Error()
	}
	switch {
	case scenario.ExpectError == "" && passErr != nil:
		result.AddError(fmt.Sprintf("unexpected pass error: %v", passErr))
	case scenario.ExpectError != "" && passErr == nil:
		result.AddError(fmt.Sprintf("expected pass error %s, pass succeeded", scenario.ExpectError))
	case scenario.ExpectError != "" && string(ir.CodeOf(passErr)) != scenario.ExpectError:
		result.AddError(fmt.Sprintf("expected pass error %s, got %s: %v", scenario.ExpectError, ir.CodeOf(passErr), passErr))
	}
}

// journal records the run and reloads the trace from the store.
func (h *Harness) journal(ctx context.Context, result *Result, beforeHash string, fn *ir.Function, res *rewrite.Result) error {
	run, err := store.NewRun(h.runIDs.Generate(), result.Before, beforeHash, fn, res, h.clock.Next())
	if err != nil {
		return err
	}
	if _, err := h.store.WriteRun(ctx, run, store.NewRewriteRecords(run.ID, res.Rewrites)); err != nil {
		return fmt.Errorf("failed to journal run: %w", err)
	}

	records, err := h.store.ReadRewrites(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}
	for _, rec := range records {
		result.AddTrace(TraceEvent{
			Seq:       rec.Seq,
			Iteration: rec.Iteration,
			Pattern:   rec.Pattern,
			RootKind:  rec.RootKind,
			Created:   len(rec.Created),
		})
	}
	return nil
}
