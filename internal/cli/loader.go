package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/mirdump/internal/compiler"
	"github.com/roach88/mirdump/internal/ir"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading specs from a directory.
type LoadResult struct {
	Document  *ir.Document
	CUEValue  cue.Value // zero when loaded from an IR JSON file
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSpecs loads and compiles the CUE body specs in a directory.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, every function is compiled and all
// failures are returned; the Document then holds the bodies that compiled.
func LoadSpecs(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := compiler.FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	value, err := compiler.LoadDir(dir)
	if err != nil {
		code := ErrCodeLoadFailed
		if strings.HasPrefix(err.Error(), "building") {
			code = ErrCodeBuildFailed
		}
		return nil, []error{&LoadError{Code: code, Message: err.Error()}}
	}

	result := &LoadResult{
		Document:  &ir.Document{IRVersion: ir.IRVersion, Bodies: []ir.Body{}},
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	types, err := compiler.CompileTypes(value.LookupPath(cue.ParsePath("types")))
	if err != nil {
		// Every body shares the type table; nothing else can compile.
		return result, []error{convertCompileError(err, "types")}
	}

	var errs []error
	fns := value.LookupPath(cue.ParsePath("fn"))
	if fns.Exists() {
		iter, iterErr := fns.Fields()
		if iterErr != nil {
			return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating functions: %v", iterErr)}}
		}
		for iter.Next() {
			body, compileErr := compiler.CompileBody(iter.Value(), types)
			if compileErr != nil {
				errs = append(errs, convertCompileError(compileErr, "fn."+iter.Label()))
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}
			result.Document.Bodies = append(result.Document.Bodies, *body)
		}
	}

	if len(result.Document.Bodies) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoFunctions, Message: "no functions found in specs"})
	}

	return result, errs
}

// LoadDocument loads bodies from either a specs directory or a compiled IR
// JSON file (the output of `mirdump compile -o`). Returns the first error.
func LoadDocument(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("input not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing input: %v", err)}
	}
	if info.IsDir() {
		result, errs := LoadSpecs(path, LoadModeFailFast)
		if len(errs) > 0 {
			return nil, errs[0]
		}
		return result, nil
	}
	if filepath.Ext(path) != ".json" {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("input must be a specs directory or an IR .json file: %s", path)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading IR file: %v", err)}
	}
	var doc ir.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Code: ErrCodeDecodeFailed, Message: fmt.Sprintf("decoding IR file %s: %v", path, err)}
	}
	if err := ir.CheckCompatible(doc.IRVersion); err != nil {
		return nil, &LoadError{Code: ErrCodeIncompatible, Message: err.Error()}
	}
	if doc.Bodies == nil {
		doc.Bodies = []ir.Body{}
	}
	return &LoadResult{Document: &doc}, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	// Spec compilation errors
	ErrCodeCUE          = "E101" // CUE evaluation error
	ErrCodeTypeTable    = "E102" // Malformed type declaration
	ErrCodeLocals       = "E103" // Malformed local declaration
	ErrCodeBlocks       = "E104" // Missing or malformed block / terminator
	ErrCodeStatement    = "E105" // Malformed statement, operand or place path
	ErrCodeNoFunctions  = "E106" // Specs declare no functions
	ErrCodeDecodeFailed = "E107" // IR JSON could not be decoded
	ErrCodeIncompatible = "E108" // IR JSON version not readable

	// Command errors
	ErrCodeUnknownFunction = "E301" // --fn names a missing function
	ErrCodeBadPlace        = "E302" // place path does not parse
	ErrCodeNoDatabase      = "E303" // no --db and no MIRDUMP_DB
	ErrCodeStore           = "E304" // store open / read / write failed
	ErrCodeBadFilter       = "E305" // invalid --state or --at
	ErrCodeBadFacts        = "E306" // nll-facts relation missing or malformed
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeCUE
	case strings.HasPrefix(field, "types"):
		return ErrCodeTypeTable
	case strings.Contains(field, ".locals"):
		return ErrCodeLocals
	case strings.Contains(field, ".statements"):
		return ErrCodeStatement
	case strings.Contains(field, ".blocks"), strings.HasSuffix(field, ".terminator"):
		return ErrCodeBlocks
	default:
		return ErrCodeGeneric
	}
}
