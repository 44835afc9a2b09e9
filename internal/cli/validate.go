package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mirdump/internal/compiler"
	"github.com/roach88/mirdump/internal/ir"
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
		Short: "Validate body specs without writing IR",
		Long: `Validate CUE body specs without producing an IR document.

Compiles every function and runs the structural checks the analysis
relies on: duplicate names, unknown block targets, malformed statements
and terminators, place projections that do not fit their local's type,
and types that contain themselves by value. All errors are reported.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	validationErrors, functions, err := ValidateSpecsDir(specsDir, formatter)
	if err != nil {
		return loadFailure(formatter, err)
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter, functions)
}

// ValidateSpecsDir validates all specs in a directory. Compile failures are
// reported as validation errors; the returned error is set only when the
// directory cannot be loaded at all.
func ValidateSpecsDir(specsDir string, formatter *OutputFormatter) ([]compiler.ValidationError, int, error) {
	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, 0, loadErrors[0]
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	var allErrors []compiler.ValidationError
	for _, err := range loadErrors {
		allErrors = append(allErrors, loadToValidation(err))
	}
	allErrors = append(allErrors, validateDocument(loadResult.Document, formatter)...)
	return allErrors, len(loadResult.Document.Bodies), nil
}

// validateDocument runs compiler.Validate on every body, prefixing each
// error's field with the function it belongs to.
func validateDocument(doc *ir.Document, formatter *OutputFormatter) []compiler.ValidationError {
	var errs []compiler.ValidationError
	for i := range doc.Bodies {
		body := &doc.Bodies[i]
		formatter.VerboseLog("Validating function: %s", body.Name)
		for _, e := range compiler.Validate(body) {
			e.Field = "fn." + body.Name + "." + e.Field
			errs = append(errs, e)
		}
	}
	return errs
}

func loadToValidation(err error) compiler.ValidationError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		field := "specs"
		if loadErr.Pos.IsValid() {
			field = fmt.Sprintf("%s:%d", loadErr.Pos.Filename(), loadErr.Pos.Line())
		}
		return compiler.ValidationError{Field: field, Message: loadErr.Message, Code: loadErr.Code}
	}
	return compiler.ValidationError{Field: "specs", Message: err.Error(), Code: ErrCodeGeneric}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, functions int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Functions: functions})
	}

	fmt.Fprintf(formatter.Writer, "✓ All specs valid (%d function(s))\n", functions)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "%s\n", err.Field)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
