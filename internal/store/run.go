package store

import (
	"fmt"

	"github.com/roach88/tppenforce/internal/ir"
	"github.com/roach88/tppenforce/internal/rewrite"
)

// Run records one application of the enforce pass to one function.
type Run struct {
	ID          string
	Function    string
	InputHash   string
	OutputHash  string
	InputIR     string
	OutputIR    string
	Converged   bool
	Iterations  int
	Seq         int64
	IRVersion   string
	PassVersion string
}

// RewriteRecord records one applied rewrite within a Run.
type RewriteRecord struct {
	RunID     string
	Seq       int64
	Iteration int
	Pattern   string
	RootNode  int64
	RootKind  string
	Created   []int64
}

// NewRun builds the Run row for a pass over a function. before is the
// printed input; after is the function once the pass returned. seq stamps
// the run itself and should come from the clock the driver used.
func NewRun(id, before, beforeHash string, after *ir.Function, res *rewrite.Result, seq int64) (Run, error) {
	afterHash, err := ir.FunctionHash(after)
	if err != nil {
		return Run{}, fmt.Errorf("new run: %w", err)
	}
	return Run{
		ID:          id,
		Function:    after.Name,
		InputHash:   beforeHash,
		OutputHash:  afterHash,
		InputIR:     before,
		OutputIR:    ir.Print(after),
		Converged:   res.Converged,
		Iterations:  res.Iterations,
		Seq:         seq,
		IRVersion:   ir.IRVersion,
		PassVersion: ir.PassVersion,
	}, nil
}

// NewRewriteRecords converts driver events to journal rows for runID.
func NewRewriteRecords(runID string, events []rewrite.Event) []RewriteRecord {
	records := make([]RewriteRecord, len(events))
	for i, ev := range events {
		created := make([]int64, len(ev.Created))
		for j, n := range ev.Created {
			created[j] = int64(n)
		}
		records[i] = RewriteRecord{
			RunID:     runID,
			Seq:       ev.Seq,
			Iteration: ev.Iteration,
			Pattern:   ev.Pattern,
			RootNode:  int64(ev.Root),
			RootKind:  ev.RootKind.String(),
			Created:   created,
		}
	}
	return records
}
