package store

import (
	"context"
	"fmt"
)

// WriteRun inserts a run and its rewrites in one transaction.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency: if a run with the same
// ID already exists, nothing is written and inserted is false. Either the
// run and every rewrite are stored, or none of them are.
func (s *Store) WriteRun(ctx context.Context, run Run, rewrites []RewriteRecord) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, function, input_hash, output_hash, input_ir, output_ir, converged, iterations, seq, ir_version, pass_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Function,
		run.InputHash,
		run.OutputHash,
		run.InputIR,
		run.OutputIR,
		run.Converged,
		run.Iterations,
		run.Seq,
		run.IRVersion,
		run.PassVersion,
	)
	if err != nil {
		return false, fmt.Errorf("write run: insert run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write run: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Conflict - run already journaled, nothing more to do
		return false, tx.Commit()
	}

	for _, rw := range rewrites {
		if rw.RunID != run.ID {
			return false, fmt.Errorf("write run: rewrite seq %d belongs to run %q, not %q", rw.Seq, rw.RunID, run.ID)
		}
		createdJSON, err := marshalCreated(rw.Created)
		if err != nil {
			return false, fmt.Errorf("write run: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rewrites
			(run_id, seq, iteration, pattern, root_node, root_kind, created)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			rw.RunID,
			rw.Seq,
			rw.Iteration,
			rw.Pattern,
			rw.RootNode,
			rw.RootKind,
			createdJSON,
		)
		if err != nil {
			return false, fmt.Errorf("write run: insert rewrite seq %d: %w", rw.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write run: commit: %w", err)
	}
	return true, nil
}
