package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const runColumns = `id, function, input_hash, output_hash, input_ir, output_ir, converged, iterations, seq, ir_version, pass_version`

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE id = ?
	`, id)

	var run Run
	if err := scanRun(row, &run); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs with deterministic ordering.
// Results ordered by seq ASC, id ASC.
//
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	return s.queryRuns(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// ListRunsForFunction returns the runs of one function, oldest first.
func (s *Store) ListRunsForFunction(ctx context.Context, function string) ([]Run, error) {
	return s.queryRuns(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE function = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, function)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := scanRun(rows, &run); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRewrites returns the rewrites of a run in the order they were applied.
// Results ordered by seq ASC.
//
// Returns an empty slice (not nil) if the run made no rewrite.
func (s *Store) ReadRewrites(ctx context.Context, runID string) ([]RewriteRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, iteration, pattern, root_node, root_kind, created
		FROM rewrites
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query rewrites: %w", err)
	}
	defer rows.Close()

	rewrites := []RewriteRecord{}
	for rows.Next() {
		var rw RewriteRecord
		var createdJSON string
		if err := rows.Scan(&rw.RunID, &rw.Seq, &rw.Iteration, &rw.Pattern, &rw.RootNode, &rw.RootKind, &createdJSON); err != nil {
			return nil, fmt.Errorf("scan rewrite: %w", err)
		}
		if rw.Created, err = unmarshalCreated(createdJSON); err != nil {
			return nil, err
		}
		rewrites = append(rewrites, rw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rewrites: %w", err)
	}
	return rewrites, nil
}

// PatternCount is the number of rewrites a pattern applied in a run.
type PatternCount struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

// CountRewritesByPattern summarizes a run per pattern, ordered by the seq
// of each pattern's first rewrite.
func (s *Store) CountRewritesByPattern(ctx context.Context, runID string) ([]PatternCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pattern, COUNT(*)
		FROM rewrites
		WHERE run_id = ?
		GROUP BY pattern
		ORDER BY MIN(seq) ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("count rewrites: %w", err)
	}
	defer rows.Close()

	counts := []PatternCount{}
	for rows.Next() {
		var pc PatternCount
		if err := rows.Scan(&pc.Pattern, &pc.Count); err != nil {
			return nil, fmt.Errorf("scan pattern count: %w", err)
		}
		counts = append(counts, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pattern counts: %w", err)
	}
	return counts, nil
}

// GetLastSeq returns the highest seq number used in the store.
// Used to resume the logical clock from the correct position.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var runSeq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM runs
	`).Scan(&runSeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq from runs: %w", err)
	}

	var rewriteSeq int64
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM rewrites
	`).Scan(&rewriteSeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq from rewrites: %w", err)
	}

	return max(runSeq, rewriteSeq), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner, run *Run) error {
	return row.Scan(
		&run.ID, &run.Function, &run.InputHash, &run.OutputHash, &run.InputIR, &run.OutputIR,
		&run.Converged, &run.Iterations, &run.Seq, &run.IRVersion, &run.PassVersion,
	)
}
