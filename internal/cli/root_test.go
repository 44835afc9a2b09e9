package cli

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "mirdump", cmd.Use)
	assert.Contains(t, cmd.Long, "place granularity")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"compile"}, {"validate"}, {"analyze"}, {"dump"}, {"test"},
		{"places", "expand"}, {"places", "collapse"}, {"places", "prefix"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	levelFlag := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, levelFlag)
	assert.Equal(t, "warn", levelFlag.DefValue)

	logFormatFlag := cmd.PersistentFlags().Lookup("log-format")
	require.NotNil(t, logFormatFlag)
	assert.Equal(t, "text", logFormatFlag.DefValue)
}

func TestCompileCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)

	outputFlag := compileCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestAnalyzeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	analyzeCmd, _, err := cmd.Find([]string{"analyze"})
	require.NoError(t, err)

	for _, name := range []string{"facts", "fn", "db", "strict", "watch", "max-visits", "concurrency"} {
		assert.NotNil(t, analyzeCmd.Flags().Lookup(name), "flag --%s", name)
	}
}

func TestDBFlagDefaultsFromEnvironment(t *testing.T) {
	t.Setenv(EnvDB, "/tmp/from-env.db")

	cmd := NewRootCommand()
	for _, name := range []string{"analyze", "dump"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		dbFlag := sub.Flags().Lookup("db")
		require.NotNil(t, dbFlag)
		assert.Equal(t, "/tmp/from-env.db", dbFlag.DefValue, name)
	}
}

func TestRootRejectsInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "xml", "validate", t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantErr   string
		wantDebug bool
	}{
		{"text warn", "warn", "text", "", false},
		{"json debug", "debug", "json", "", true},
		{"upper case format", "info", "JSON", "", false},
		{"bad level", "loud", "text", "invalid log level", false},
		{"bad format", "info", "xml", "invalid log format", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger, err := newLogger(&RootOptions{LogLevel: tt.level, LogFormat: tt.format}, buf)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDebug, logger.Enabled(context.Background(), slog.LevelDebug))
		})
	}
}

func TestNewLoggerJSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := newLogger(&RootOptions{LogLevel: "info", LogFormat: "json"}, buf)
	require.NoError(t, err)

	logger.Info("analyzed", "fn", "demo")
	assert.Contains(t, buf.String(), `"msg":"analyzed"`)
	assert.Contains(t, buf.String(), `"fn":"demo"`)
}
