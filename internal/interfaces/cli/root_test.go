package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/rxntd/internal/config"
	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxntd/pkg/errors"
)

const testConfigYAML = `
log:
  level: error
  format: console
pipeline:
  input_header: auto
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rxntd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o644))
	return path
}

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", writeTestConfig(t)}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "rxntd", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.True(t, cmd.SilenceUsage)

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"compute", "schema", "patterns", "check", "watch", "consume", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestNewRootCommand_GlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"config", "log-level", "output-format", "verbose", "timeout"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing flag %q", name)
	}
	assert.Equal(t, OutputTable, cmd.PersistentFlags().Lookup("output-format").DefValue)
	assert.Equal(t, "c", cmd.PersistentFlags().Lookup("config").Shorthand)
}

func TestRootCommand_RejectsUnknownOutputFormat(t *testing.T) {
	_, err := runCLI(t, "--output-format", "xml", "version")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestRootCommand_MissingConfigFile(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "version"})
	require.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestGetCLIContext_Missing(t *testing.T) {
	cmd := &cobra.Command{}
	_, err := GetCLIContext(cmd)
	require.Error(t, err)

	cmd.SetContext(context.Background())
	_, err = GetCLIContext(cmd)
	require.Error(t, err)
}

func TestFormatTable(t *testing.T) {
	got := FormatTable([]string{"A", "LONG"}, [][]string{{"xyz", "1"}, {"b"}})
	want := "A    LONG\n" +
		"---  ----\n" +
		"xyz  1\n" +
		"b    \n"
	assert.Equal(t, want, got)
	assert.Empty(t, FormatTable(nil, nil))
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab  ", padRight("ab", 4))
	assert.Equal(t, "abcdef", padRight("abcdef", 4))
}

func withFormat(t *testing.T, format string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cc := &CLIContext{Config: &config.Config{}, Logger: logging.NewNopLogger(), OutputFormat: format}
	cmd.SetContext(context.WithValue(context.Background(), cliContextKey{}, cc))
	return cmd, &buf
}

func TestPrintResult_Formats(t *testing.T) {
	info := BuildInfo{Version: "1.2.3", GitCommit: "abc", BuildDate: "today", GoVersion: "go", Platform: "linux/amd64"}

	cmd, buf := withFormat(t, OutputJSON)
	require.NoError(t, PrintResult(cmd, info))
	var fromJSON BuildInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, info, fromJSON)

	cmd, buf = withFormat(t, OutputYAML)
	require.NoError(t, PrintResult(cmd, info))
	var fromYAML BuildInfo
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, info, fromYAML)

	cmd, buf = withFormat(t, OutputTable)
	require.NoError(t, PrintResult(cmd, info))
	assert.Contains(t, buf.String(), "VERSION")
	assert.Contains(t, buf.String(), "1.2.3")
}

func TestPrintResult_NoTableProvider(t *testing.T) {
	cmd, buf := withFormat(t, OutputTable)
	require.NoError(t, PrintResult(cmd, struct{ N int }{N: 7}))
	assert.Equal(t, "{N:7}\n", buf.String())
}

func TestPrintError(t *testing.T) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetErr(&buf)
	PrintError(cmd, nil)
	assert.Empty(t, buf.String())
	PrintError(cmd, errors.New(errors.ErrCodeInternal, "boom"))
	assert.Contains(t, buf.String(), "Error: ")
	assert.Contains(t, buf.String(), "boom")
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := runCLI(t, "--output-format", "json", "version")
	require.NoError(t, err)
	var info BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}
