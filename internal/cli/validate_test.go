package cli

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mirdump/internal/compiler"
)

const recursiveSpec = `
types: {
	List: enum: [{name: "Nil"}, {name: "Cons", fields: [{name: "0", type: "i32"}, {name: "1", type: "List"}]}]
}
fn: f: {
	locals: [{name: "y", type: "i32"}]
	blocks: [{terminator: {return: true}}]
}
`

func TestValidateValidSpecs(t *testing.T) {
	out, err := execute(t, NewValidateCommand, "text", demoSpecsDir(t))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All specs valid (1 function(s))")
}

func TestValidateValidSpecsJSON(t *testing.T) {
	out, err := execute(t, NewValidateCommand, "json", demoSpecsDir(t))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 1, resp.Data.Functions)
}

func TestValidateRecursiveType(t *testing.T) {
	dir := writeSpecs(t, map[string]string{"list.cue": recursiveSpec})

	out, err := execute(t, NewValidateCommand, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "fn.f.types.List")
	assert.Contains(t, out, compiler.ErrRecursiveType)
}

func TestValidateReportsCompileAndStructuralErrors(t *testing.T) {
	dir := writeSpecs(t, map[string]string{
		"list.cue": recursiveSpec,
		"bad.cue":  `fn: g: {locals: []}`,
	})

	out, err := execute(t, NewValidateCommand, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  CLIError         `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)

	var codes []string
	for _, e := range resp.Data.Errors {
		codes = append(codes, e.Code)
	}
	assert.Equal(t, []string{ErrCodeBlocks, compiler.ErrRecursiveType}, codes)
	assert.Equal(t, ErrCodeBlocks, resp.Error.Code)
}

func TestValidateNonExistentDir(t *testing.T) {
	out, err := execute(t, NewValidateCommand, "text", "/nonexistent/specs")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestValidateSpecsDir(t *testing.T) {
	silent := &OutputFormatter{Format: "text", Writer: io.Discard}

	errs, functions, err := ValidateSpecsDir(demoSpecsDir(t), silent)
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, 1, functions)

	_, _, err = ValidateSpecsDir(t.TempDir(), silent)
	require.Error(t, err)
	requireLoadError(t, err, ErrCodeNoFiles)
}
