package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tppenforce/internal/ir"
	"github.com/roach88/tppenforce/internal/rewrite"
	"github.com/roach88/tppenforce/internal/store"
	"github.com/roach88/tppenforce/internal/tpp"
)

// EnforceOptions holds flags for the enforce command.
type EnforceOptions struct {
	*RootOptions
	Function             string
	ConfigFile           string
	Database             string
	LaneMultiple         int64
	BlockMultiple        int64
	Tag                  string
	MaxIterations        int
	DCE                  bool
	EnableGeneralizedPad bool

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs store.RunIDGenerator
}

// FunctionOutcome is the result of the pass on one function.
type FunctionOutcome struct {
	Name       string               `json:"name"`
	RunID      string               `json:"run_id,omitempty"`
	Converged  bool                 `json:"converged"`
	Iterations int                  `json:"iterations"`
	Rewrites   int                  `json:"rewrites"`
	Patterns   []store.PatternCount `json:"patterns"`
	InputHash  string               `json:"input_hash"`
	OutputHash string               `json:"output_hash,omitempty"`
	IR         string               `json:"ir"`
	Error      string               `json:"error,omitempty"`
}

// EnforceResult holds the outcome for every function.
type EnforceResult struct {
	Config    tpp.Config        `json:"config"`
	Functions []FunctionOutcome `json:"functions"`
	Failed    int               `json:"failed"`
}

// NewEnforceCommand creates the enforce command.
func NewEnforceCommand(rootOpts *RootOptions) *cobra.Command {
	return newEnforceCommand(&EnforceOptions{RootOptions: rootOpts})
}

// newEnforceCommand binds the enforce flags to opts.
func newEnforceCommand(opts *EnforceOptions) *cobra.Command {
	defaults := tpp.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "enforce <specs-dir>",
		Short: "Run the enforce-preconditions pass",
		Long: `Run the enforce-preconditions pass on the CUE functions in a directory.

Every contraction tagged --tag has its operands padded so the accumulator
is a multiple of --block rows and --lane columns, and the original result
is extracted back out. Chained high-only pads are folded afterwards.

Settings come from the defaults, then --config (YAML), then explicit flags.
With --db every run and its rewrites are journaled to SQLite; inspect them
with the trace command.

Examples:
  tppenforce enforce ./specs
  tppenforce enforce ./specs --function gemm --dce
  tppenforce enforce ./specs --lane 32 --block 4 --db ./runs.db
  tppenforce enforce ./specs --config pass.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnforce(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Function, "function", "", "only run on this function")
	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "YAML file with pass settings")
	cmd.Flags().StringVar(&opts.Database, "db", "", "journal runs to this SQLite database")
	cmd.Flags().Int64Var(&opts.LaneMultiple, "lane", defaults.LaneMultiple, "required multiple of the accumulator columns")
	cmd.Flags().Int64Var(&opts.BlockMultiple, "block", defaults.BlockMultiple, "required multiple of the accumulator rows")
	cmd.Flags().StringVar(&opts.Tag, "tag", defaults.Tag, "contraction tag to legalize")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", defaults.MaxIterations, "cap on driver iterations")
	cmd.Flags().BoolVar(&opts.DCE, "dce", false, "erase dead nodes after the pass")
	cmd.Flags().BoolVar(&opts.EnableGeneralizedPad, "enable-generalized-pad", false, "let the generalized pad pattern consult its feasibility predicate")

	return cmd
}

func runEnforce(opts *EnforceOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := resolveConfig(opts, cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	cfg.Logger = logger

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		_ = formatter.Error(code, message, nil)
		return WrapExitError(ExitCommandError, "failed to compile specs", loadErrors[0])
	}

	functions := loadResult.Functions
	if opts.Function != "" {
		fn := loadResult.Function(opts.Function)
		if fn == nil {
			message := fmt.Sprintf("function %q not found in %s", opts.Function, specsDir)
			_ = formatter.Error(ErrCodeNotFound, message, nil)
			return NewExitError(ExitCommandError, message)
		}
		functions = []*ir.Function{fn}
	}

	journal, err := openJournal(ctx, opts, logger)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	if journal != nil {
		defer func() {
			if closeErr := journal.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		cfg.Clock = journal.clock
	} else {
		cfg.Clock = rewrite.NewClock()
	}

	result := EnforceResult{Config: cfg, Functions: make([]FunctionOutcome, 0, len(functions))}
	for _, fn := range functions {
		formatter.VerboseLog("Enforcing preconditions on %s", fn.Name)
		outcome, err := enforceFunction(ctx, fn, cfg, opts.DCE, journal)
		if err != nil {
			_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to journal run", err)
		}
		if outcome.Error != "" {
			result.Failed++
		}
		result.Functions = append(result.Functions, outcome)
	}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputEnforceText(formatter, result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("pass failed on %d function(s)", result.Failed))
	}
	return nil
}

// enforceFunction runs the pass on fn and journals the run when a journal
// is open. A pass error is reported in the outcome; only journal failures
// are returned.
func enforceFunction(ctx context.Context, fn *ir.Function, cfg tpp.Config, dce bool, j *journal) (FunctionOutcome, error) {
	before := ir.Print(fn)
	beforeHash, err := ir.FunctionHash(fn)
	if err != nil {
		return FunctionOutcome{}, err
	}
	outcome := FunctionOutcome{Name: fn.Name, InputHash: beforeHash, Patterns: []store.PatternCount{}}

	res, passErr := tpp.Run(fn, cfg)
	if passErr != nil {
		outcome.Error = passErr.Error()
		outcome.IR = ir.Print(fn)
		if res != nil {
			outcome.Rewrites = len(res.Rewrites)
		}
		return outcome, nil
	}
	if dce {
		fn.DeadCodeEliminate()
	}

	outcome.Converged = res.Converged
	outcome.Iterations = res.Iterations
	outcome.Rewrites = len(res.Rewrites)
	outcome.IR = ir.Print(fn)
	outcome.Patterns = patternCounts(res.Rewrites)

	if j == nil {
		outcome.OutputHash, err = ir.FunctionHash(fn)
		return outcome, err
	}
	run, err := j.write(ctx, before, beforeHash, fn, res)
	if err != nil {
		return FunctionOutcome{}, err
	}
	outcome.RunID = run.ID
	outcome.OutputHash = run.OutputHash
	return outcome, nil
}

// patternCounts tallies events per pattern in first-seen order.
func patternCounts(events []rewrite.Event) []store.PatternCount {
	counts := []store.PatternCount{}
	index := map[string]int{}
	for _, ev := range events {
		i, ok := index[ev.Pattern]
		if !ok {
			i = len(counts)
			index[ev.Pattern] = i
			counts = append(counts, store.PatternCount{Pattern: ev.Pattern})
		}
		counts[i].Count++
	}
	return counts
}

// resolveConfig layers defaults, the YAML config file and explicit flags.
func resolveConfig(opts *EnforceOptions, cmd *cobra.Command) (tpp.Config, error) {
	cfg := tpp.DefaultConfig()
	if opts.ConfigFile != "" {
		loaded, err := LoadConfigFile(opts.ConfigFile)
		if err != nil {
			return tpp.Config{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("lane") {
		cfg.LaneMultiple = opts.LaneMultiple
	}
	if flags.Changed("block") {
		cfg.BlockMultiple = opts.BlockMultiple
	}
	if flags.Changed("tag") {
		cfg.Tag = opts.Tag
	}
	if flags.Changed("max-iterations") {
		cfg.MaxIterations = opts.MaxIterations
	}
	if flags.Changed("enable-generalized-pad") {
		cfg.EnableGeneralizedPad = opts.EnableGeneralizedPad
	}

	if err := cfg.Validate(); err != nil {
		return tpp.Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile reads pass settings from YAML. Absent keys keep their
// defaults; unknown keys are rejected.
func LoadConfigFile(path string) (tpp.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tpp.Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := tpp.DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return tpp.Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// journal pairs an open store with the clock and id source of one command.
type journal struct {
	store  *store.Store
	clock  *rewrite.Clock
	runIDs store.RunIDGenerator
}

// openJournal opens the database named by --db, or returns nil when
// journaling is off. The clock resumes after the last journaled seq so
// runs from separate invocations stay ordered.
func openJournal(ctx context.Context, opts *EnforceOptions, logger *slog.Logger) (*journal, error) {
	if opts.Database == "" {
		return nil, nil
	}
	logger.Debug("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, err
	}
	last, err := st.GetLastSeq(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = store.UUIDv7Generator{}
	}
	return &journal{store: st, clock: rewrite.NewClockAt(last), runIDs: runIDs}, nil
}

func (j *journal) write(ctx context.Context, before, beforeHash string, fn *ir.Function, res *rewrite.Result) (store.Run, error) {
	run, err := store.NewRun(j.runIDs.Generate(), before, beforeHash, fn, res, j.clock.Next())
	if err != nil {
		return store.Run{}, err
	}
	if _, err := j.store.WriteRun(ctx, run, store.NewRewriteRecords(run.ID, res.Rewrites)); err != nil {
		return store.Run{}, err
	}
	return run, nil
}

func (j *journal) Close() error {
	return j.store.Close()
}

// outputEnforceText prints one block per function.
func outputEnforceText(formatter *OutputFormatter, result EnforceResult) {
	w := formatter.Writer
	for _, fn := range result.Functions {
		if fn.Error != "" {
			fmt.Fprintf(w, "✗ %s: %s\n", fn.Name, fn.Error)
			continue
		}

		status := "converged"
		if !fn.Converged {
			status = "stopped at iteration cap"
		}
		fmt.Fprintf(w, "✓ %s: %d rewrite(s) in %d iteration(s), %s\n", fn.Name, fn.Rewrites, fn.Iterations, status)
		for _, pc := range fn.Patterns {
			fmt.Fprintf(w, "  %s: %d\n", pc.Pattern, pc.Count)
		}
		if fn.RunID != "" {
			fmt.Fprintf(w, "  run: %s\n", fn.RunID)
		}
		fmt.Fprintln(w, fn.IR)
	}

	if result.Failed > 0 {
		fmt.Fprintf(w, "Pass failed on %d of %d function(s)\n", result.Failed, len(result.Functions))
	}
}
