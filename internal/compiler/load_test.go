package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	}
	return dir
}

const typesOnly = `
types: S: struct: [{name: "f", type: "i32"}]
`

const fnOnly = `
fn: f: {
	locals: [{name: "x", type: "S", arg: true}]
	blocks: [{terminator: {return: true}}]
}
`

func TestLoadDir(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"no package clause", map[string]string{"types.cue": typesOnly, "fn.cue": fnOnly}},
		{"shared package", map[string]string{"types.cue": "package specs\n" + typesOnly, "fn.cue": "package specs\n" + fnOnly}},
		{"subdirectory", map[string]string{"types.cue": typesOnly, "fns/f.cue": fnOnly}},
		{"packages differ across directories", map[string]string{"types.cue": "package a\n" + typesOnly, "fns/f.cue": "package b\n" + fnOnly}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := LoadDir(writeFiles(t, tt.files))
			require.NoError(t, err)

			doc, err := CompileDocument(value)
			require.NoError(t, err)
			require.Len(t, doc.Bodies, 1)
			assert.Equal(t, "f", doc.Bodies[0].Name)
			assert.Contains(t, doc.Bodies[0].Types, "S")
		})
	}
}

func TestLoadDirErrors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := LoadDir(t.TempDir())
		assert.ErrorContains(t, err, "no CUE files")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
		assert.ErrorContains(t, err, "scanning")
	})

	t.Run("conflict across directories", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{"a.cue": "x: 1\n", "sub/b.cue": "x: 2\n"})
		_, err := LoadDir(dir)
		assert.ErrorContains(t, err, "building CUE value")
	})

	t.Run("mixed packages in one directory", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{"a.cue": "package a\nx: 1\n", "b.cue": "package b\ny: 2\n"})
		_, err := LoadDir(dir)
		assert.ErrorContains(t, err, "loading CUE files")
	})
}

func TestLoadFilesPackageless(t *testing.T) {
	dir := writeFiles(t, map[string]string{"one.cue": "a: 1\n", "two.cue": "b: 2\n"})

	value, err := LoadFiles(filepath.Join(dir, "one.cue"), filepath.Join(dir, "two.cue"))
	require.NoError(t, err)

	b, err := value.LookupPath(cue.ParsePath("b")).Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(2), b)

	_, err = LoadFiles()
	assert.Error(t, err)
}
