package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const demoSpec = `
types: {
	S: struct: [{name: "f", type: "T"}, {name: "k", type: "i32"}]
	T: struct: [{name: "g", type: "i32"}, {name: "h", type: "i32"}]
	O: enum: [{name: "None"}, {name: "Some", fields: [{name: "0", type: "S"}]}]
}

fn: demo: {
	locals: [
		{name: "x", type: "S", arg: true},
		{name: "y", type: "i32"},
		{name: "o", type: "O"},
	]
	blocks: [{
		name: "bb0"
		statements: [
			{assign: "y", use: ["move x.f.g"]},
			{assign: "x.f.g", use: ["copy y"]},
		]
		terminator: {return: true}
	}]
}
`

const opaqueSpec = `
fn: opaque: {
	locals: [{name: "m", type: "Mystery", arg: true}, {name: "y", type: "i32"}]
	blocks: [{statements: [{assign: "y", use: ["move m.0"]}], terminator: {return: true}}]
}
`

// writeSpecs writes each file into a fresh temp directory.
func writeSpecs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	}
	return dir
}

func demoSpecsDir(t *testing.T) string {
	t.Helper()
	return writeSpecs(t, map[string]string{"demo.cue": demoSpec})
}

// execute runs a command built by newCmd with args and returns stdout.
func execute(t *testing.T, newCmd func(*RootOptions) *cobra.Command, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newCmd(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
