package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlclause/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                       `json:"valid"`
	Statements int                        `json:"statements"`
	Errors     []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [specs-dir]",
		Short: "Check that every statement is ready to execute",
		Long: `Compile the statements in a specs directory and check each one is
ready to execute: every table it references is provided by one of its
clauses, and every mandatory clause is filled.

The specs directory defaults to specs_dir from the config file.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, specsDirArg(rootOpts, args), cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loaded, err := LoadSpecs(specsDir)
	if err != nil {
		return loadErrorResponse(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, specsDir)

	errs := validateAll(loaded.Specs, formatter)
	total := len(loaded.Specs.Statements) + len(loaded.Specs.Failed)
	if total == 0 {
		errs = append(errs, compiler.ValidationError{
			Field:   "statement",
			Message: "no statements found in specs",
			Code:    ErrCodeGeneric,
		})
	}

	if len(errs) > 0 {
		return outputValidationErrors(formatter, total, errs)
	}
	return outputValidateSuccess(formatter, total)
}

// validateAll reports compile failures first, then readiness problems of
// the statements that compiled, each group in name order.
func validateAll(specs *compiler.Specs, formatter *OutputFormatter) []compiler.ValidationError {
	var all []compiler.ValidationError
	for _, name := range specs.FailedNames() {
		formatter.VerboseLog("Statement %s did not compile", name)
		all = append(all, compiler.ErrorFor(name, specs.Failed[name]))
	}
	for _, def := range specs.Statements {
		formatter.VerboseLog("Validating statement: %s (%s)", def.Name, def.Statement.Kind())
		all = append(all, compiler.Validate(def)...)
	}
	return all
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, total int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Statements: total})
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d statement(s) valid\n", total)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, total int, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		cliErrs := make([]CLIError, len(errs))
		for i, e := range errs {
			cliErrs[i] = CLIError{Code: e.Code, Message: e.Message, Statement: e.Statement}
		}
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Statements: total, Errors: errs},
			Error:  &cliErrs[0],
		}
		if err := encodeJSON(formatter, response); err != nil {
			return err
		}
		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		switch {
		case err.Statement != "" && err.Line > 0:
			fmt.Fprintf(formatter.Writer, "%s (line %d)\n", err.Statement, err.Line)
		case err.Statement != "":
			fmt.Fprintln(formatter.Writer, err.Statement)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// ValidateSpecsDir validates all statements in a directory.
// This is a helper function for external callers.
func ValidateSpecsDir(specsDir string) ([]compiler.ValidationError, error) {
	loaded, err := LoadSpecs(specsDir)
	if err != nil {
		return nil, err
	}
	return validateAll(loaded.Specs, &OutputFormatter{Format: "text"}), nil
}
