package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/mirdump/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	FunctionCount int
	TypeCount     int
	TotalLocals   int
	TotalBlocks   int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile CUE body specs to an IR document",
		Long: `Compile CUE body specs to an IR JSON document.

Every function under the top-level fn struct is compiled against the
shared types table. Place paths are resolved against each body's locals,
so a misspelled field is a compile error. The document can be fed to
analyze in place of the specs directory.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return loadFailure(formatter, loadErrors[0])
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)
	for _, body := range loadResult.Document.Bodies {
		formatter.VerboseLog("Compiled function: %s", body.Name)
	}

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	doc := loadResult.Document
	stats := calculateStats(doc)

	if opts.Output != "" {
		if err := writeIRToFile(doc, opts.Output); err != nil {
			return commandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileSuccess(formatter, doc, stats, opts.Output)
}

// calculateStats computes summary statistics for a compiled document.
func calculateStats(doc *ir.Document) CompilationStats {
	stats := CompilationStats{FunctionCount: len(doc.Bodies)}
	types := make(map[string]bool)
	for _, body := range doc.Bodies {
		stats.TotalLocals += len(body.Locals)
		stats.TotalBlocks += len(body.Blocks)
		for name := range body.Types {
			types[name] = true
		}
	}
	stats.TypeCount = len(types)
	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, doc *ir.Document, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(doc)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d function(s), %d type(s)\n\n",
		stats.FunctionCount, stats.TypeCount)

	if len(doc.Bodies) > 0 {
		fmt.Fprintln(formatter.Writer, "Functions:")
		for _, body := range doc.Bodies {
			args := 0
			for _, l := range body.Locals {
				if l.Arg {
					args++
				}
			}
			fmt.Fprintf(formatter.Writer, "  %s: %d local(s) (%d arg), %d block(s)\n",
				body.Name, len(body.Locals), args, len(body.Blocks))
		}
		fmt.Fprintln(formatter.Writer)
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote IR document to %s\n", outputFile)
	}

	return nil
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		if err := formatter.encode(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

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

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeIRToFile writes the document as indented JSON. Canonical JSON is
// only used for hashing.
func writeIRToFile(doc *ir.Document, filename string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
