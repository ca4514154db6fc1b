package cli

import (
	"errors"
	"fmt"
	"io"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/tppenforce/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	Functions int                        `json:"functions"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate function specs without running the pass",
		Long: `Validate the CUE functions in a directory.

Compiles every function, then checks its structure and that every
contraction is a well-formed 2-D GEMM with a known combiner. All errors
are reported, not just the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// Collect every compile error; validation wants the full list
	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	validationErrors := validateAll(loadResult, formatter)

	// Add any compile errors as validation errors
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    getLineFromCuePos(loadErr.Pos),
			})
		}
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter, len(loadResult.Functions))
}

// validateAll runs compiler.Validate on every compiled function. Fields of
// the returned errors are prefixed with the function path.
func validateAll(loadResult *LoadResult, formatter *OutputFormatter) []compiler.ValidationError {
	var allErrors []compiler.ValidationError

	for _, fn := range loadResult.Functions {
		formatter.VerboseLog("Validating function: %s", fn.Name)

		line := getLineFromCuePos(functionPos(loadResult.CUEValue, fn.Name))
		for _, verr := range compiler.Validate(fn) {
			verr.Field = "function." + fn.Name + "." + verr.Field
			if verr.Line == 0 {
				verr.Line = line
			}
			allErrors = append(allErrors, verr)
		}
	}

	return allErrors
}

// functionPos returns the position of function.<name> in the spec.
func functionPos(v cue.Value, name string) token.Pos {
	return v.LookupPath(cue.MakePath(cue.Str("function"), cue.Str(name))).Pos()
}

// getLineFromCuePos extracts line number from a token.Pos.
func getLineFromCuePos(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, functions int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Functions: functions})
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d function(s) valid\n", functions)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Validation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				Errors: errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// ValidateSpecsDir validates all specs in a directory.
// This is a helper function for external callers.
func ValidateSpecsDir(specsDir string) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeFailFast)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	if len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}

	silentFormatter := &OutputFormatter{Format: "text", Verbose: false, Writer: io.Discard}
	return validateAll(loadResult, silentFormatter), nil
}
