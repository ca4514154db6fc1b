package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tppenforce/internal/compiler"
	"github.com/roach88/tppenforce/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// FunctionSummary describes one compiled function.
type FunctionSummary struct {
	Name         string   `json:"name"`
	Hash         string   `json:"hash"`
	Args         []string `json:"args"`
	Nodes        int      `json:"nodes"`
	Contractions int      `json:"contractions"`
	Pads         int      `json:"pads"`
	IR           string   `json:"ir"`
}

// CompilationResult holds the compiled functions.
type CompilationResult struct {
	IRVersion string            `json:"ir_version"`
	Functions []FunctionSummary `json:"functions"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile CUE function specs to IR",
		Long: `Compile the CUE functions in a directory to tensor IR.

Every function.<name> entry is compiled, type-inferred and printed. With
--output the functions are also written as canonical JSON, the same
encoding their content hashes are computed over.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// Use shared loader with collect-all mode
	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)
	for _, fn := range loadResult.Functions {
		formatter.VerboseLog("Compiled function: %s", fn.Name)
	}

	// Handle compilation errors
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	result, err := summarize(loadResult.Functions)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writeIRToFile(loadResult.Functions, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// summarize builds the per-function summaries.
func summarize(fns []*ir.Function) (*CompilationResult, error) {
	result := &CompilationResult{
		IRVersion: ir.IRVersion,
		Functions: make([]FunctionSummary, 0, len(fns)),
	}
	for _, fn := range fns {
		hash, err := ir.FunctionHash(fn)
		if err != nil {
			return nil, err
		}
		args := make([]string, len(fn.Args()))
		for i, a := range fn.Args() {
			args[i] = fn.Type(a).String()
		}
		result.Functions = append(result.Functions, FunctionSummary{
			Name:         fn.Name,
			Hash:         hash,
			Args:         args,
			Nodes:        fn.Len(),
			Contractions: fn.CountKind(ir.KindContraction),
			Pads:         fn.CountKind(ir.KindPad),
			IR:           ir.Print(fn),
		})
	}
	return result, nil
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d function(s)\n\n", len(result.Functions))

	for _, fn := range result.Functions {
		fmt.Fprintf(formatter.Writer, "%s: %d node(s), %d contraction(s), %d pad(s)\n",
			fn.Name, fn.Nodes, fn.Contractions, fn.Pads)
		if formatter.Verbose {
			fmt.Fprintf(formatter.Writer, "  hash: %s\n", fn.Hash)
		}
		fmt.Fprintln(formatter.Writer, fn.IR)
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote canonical IR to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{
				Code:    code,
				Message: message,
			}
		}

		if err := formatter.encode(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}); err != nil {
			return err
		}

		// Compilation errors are command-level errors (exit code 2)
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeIRToFile writes the functions as one canonical JSON document.
func writeIRToFile(fns []*ir.Function, filename string) error {
	docs := make([]any, len(fns))
	for i, fn := range fns {
		docs[i] = ir.CanonicalDoc(fn)
	}
	data, err := ir.MarshalCanonical(map[string]any{
		"ir_version": ir.IRVersion,
		"functions":  docs,
	})
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
