package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tppenforce/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Function string // optional - filter the run list to one function
	Pattern  string // optional - filter the timeline to one pattern
}

// TraceEvent represents a single rewrite in the trace timeline.
type TraceEvent struct {
	Seq       int64   `json:"seq"`
	Iteration int     `json:"iteration"`
	Pattern   string  `json:"pattern"`
	RootNode  int64   `json:"root_node"`
	RootKind  string  `json:"root_kind"`
	Created   []int64 `json:"created"`
}

// RunSummary is one row of the run list.
type RunSummary struct {
	ID         string `json:"id"`
	Function   string `json:"function"`
	Seq        int64  `json:"seq"`
	Converged  bool   `json:"converged"`
	Iterations int    `json:"iterations"`
	Changed    bool   `json:"changed"`
}

// TraceResult holds the complete trace output for one run.
type TraceResult struct {
	Run      RunSummary           `json:"run"`
	Timeline []TraceEvent         `json:"timeline"`
	Patterns []store.PatternCount `json:"patterns"`
	Stats    TraceStats           `json:"stats"`
	InputIR  string               `json:"input_ir"`
	OutputIR string               `json:"output_ir"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalRewrites int    `json:"total_rewrites"`
	InputHash     string `json:"input_hash"`
	OutputHash    string `json:"output_hash"`
	IRVersion     string `json:"ir_version"`
	PassVersion   string `json:"pass_version"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Inspect journaled runs",
		Long: `Inspect runs journaled by enforce --db.

Without a run id, lists every run oldest first. With a run id, shows the
rewrites the run applied in order, a per-pattern summary and the content
hashes of the function before and after. --verbose adds the printed IR.

Examples:
  tppenforce trace --db ./runs.db
  tppenforce trace --db ./runs.db --function gemm
  tppenforce trace --db ./runs.db 0190a6c2-... --pattern fold-pad-chain
  tppenforce trace --db ./runs.db 0190a6c2-... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runListRuns(opts, cmd)
			}
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Function, "function", "", "list only runs of this function")
	cmd.Flags().StringVar(&opts.Pattern, "pattern", "", "show only rewrites by this pattern")

	return cmd
}

func runListRuns(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var runs []store.Run
	if opts.Function != "" {
		runs, err = st.ListRunsForFunction(ctx, opts.Function)
	} else {
		runs, err = st.ListRuns(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	summaries := make([]RunSummary, len(runs))
	for i, run := range runs {
		summaries[i] = summarizeRun(run)
	}

	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if opts.Format == "json" {
		return formatter.Success(summaries)
	}

	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "[%d] %s %s: %s, %d iteration(s)%s\n",
			s.Seq, truncateID(s.ID), s.Function, changedStatus(s.Changed), s.Iterations, convergedSuffix(s.Converged))
	}
	return nil
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("run not found: %s", runID), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", runID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	rewrites, err := st.ReadRewrites(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read rewrites", err)
	}
	patterns, err := st.CountRewritesByPattern(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count rewrites", err)
	}

	result := TraceResult{
		Run:      summarizeRun(run),
		Timeline: buildTimeline(rewrites, opts.Pattern),
		Patterns: patterns,
		Stats: TraceStats{
			TotalRewrites: len(rewrites),
			InputHash:     run.InputHash,
			OutputHash:    run.OutputHash,
			IRVersion:     run.IRVersion,
			PassVersion:   run.PassVersion,
		},
		InputIR:  run.InputIR,
		OutputIR: run.OutputIR,
	}

	if opts.Format == "json" {
		return newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(result)
	}

	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

func summarizeRun(run store.Run) RunSummary {
	return RunSummary{
		ID:         run.ID,
		Function:   run.Function,
		Seq:        run.Seq,
		Converged:  run.Converged,
		Iterations: run.Iterations,
		Changed:    run.InputHash != run.OutputHash,
	}
}

// buildTimeline converts journal rows to timeline events.
// When patternFilter is set, only rewrites by that pattern are included.
func buildTimeline(rewrites []store.RewriteRecord, patternFilter string) []TraceEvent {
	timeline := []TraceEvent{}
	for _, rw := range rewrites {
		if patternFilter != "" && rw.Pattern != patternFilter {
			continue
		}
		timeline = append(timeline, TraceEvent{
			Seq:       rw.Seq,
			Iteration: rw.Iteration,
			Pattern:   rw.Pattern,
			RootNode:  rw.RootNode,
			RootKind:  rw.RootKind,
			Created:   rw.Created,
		})
	}
	return timeline
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for Run: %s\n", result.Run.ID)
	fmt.Fprintf(w, "Function: %s\n", result.Run.Function)
	fmt.Fprintf(w, "Status: %s, %d iteration(s)%s\n",
		changedStatus(result.Run.Changed), result.Run.Iterations, convergedSuffix(result.Run.Converged))
	fmt.Fprintln(w)

	// Timeline section
	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no rewrites)")
	}
	for _, event := range result.Timeline {
		fmt.Fprintf(w, "  [%d] iteration %d: %s on %s node %d\n",
			event.Seq, event.Iteration, event.Pattern, event.RootKind, event.RootNode)
		if verbose && len(event.Created) > 0 {
			fmt.Fprintf(w, "       created: %s\n", formatNodes(event.Created))
		}
	}
	fmt.Fprintln(w)

	// Patterns section
	fmt.Fprintln(w, "=== Patterns ===")
	if len(result.Patterns) == 0 {
		fmt.Fprintln(w, "  (none applied)")
	}
	for _, pc := range result.Patterns {
		fmt.Fprintf(w, "  %s: %d\n", pc.Pattern, pc.Count)
	}
	fmt.Fprintln(w)

	// Stats section
	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Rewrites: %d\n", result.Stats.TotalRewrites)
	fmt.Fprintf(w, "  Input Hash:     %s\n", truncateID(result.Stats.InputHash))
	fmt.Fprintf(w, "  Output Hash:    %s\n", truncateID(result.Stats.OutputHash))
	fmt.Fprintf(w, "  Versions:       ir %s, pass %s\n", result.Stats.IRVersion, result.Stats.PassVersion)

	if verbose {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Input ===")
		fmt.Fprint(w, result.InputIR)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Output ===")
		fmt.Fprint(w, result.OutputIR)
	}

	return nil
}

// formatNodes formats node ids for display.
func formatNodes(nodes []int64) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

func changedStatus(changed bool) string {
	if changed {
		return "Rewritten"
	}
	return "Unchanged"
}

func convergedSuffix(converged bool) string {
	if converged {
		return ""
	}
	return " (stopped at iteration cap)"
}
