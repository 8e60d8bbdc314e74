package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var harnessTestdata = filepath.Join("..", "harness", "testdata")

func copyScenario(t *testing.T, dir, name string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(harnessTestdata, "scenarios", name))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestTestCommandMissingArgs(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentDir(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/scenarios"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario directory /nonexistent/scenarios not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "No scenarios found\n", buf.String())
}

func TestTestCommandPassingScenarios(t *testing.T) {
	out, err := execute(t, "test", harnessTestdata, "--filter", "scenarios/**")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ scenario_a_ownership\n")
	assert.Contains(t, out, "✓ scenario_b_support_chain\n")
	assert.Contains(t, out, "✓ scenario_c_endpoint_pair\n")
	assert.Contains(t, out, "✓ undo_redo_history (golden matched)\n")
	assert.Contains(t, out, "4 passed, 0 failed")
}

func TestTestCommandReportsInvalidScenario(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", harnessTestdata)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 5 scenarios failed")

	var resp struct {
		Status string      `json:"status"`
		Data   TestSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 4, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)

	var failed []ScenarioResult
	for _, s := range resp.Data.Scenarios {
		if !s.Pass {
			failed = append(failed, s)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, filepath.Join(harnessTestdata, "invalid", "unknown_field.yaml"), failed[0].Path)
	assert.NotEmpty(t, failed[0].Errors)
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, err := execute(t, "test", harnessTestdata, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestTestCommandUpdatesGolden(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "undo_redo_history.yaml")

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ undo_redo_history\n")

	out, err = execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "(golden updated)")

	written, err := os.ReadFile(filepath.Join(dir, "golden", "undo_redo_history.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(harnessTestdata, "golden", "undo_redo_history.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	out, err = execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "(golden matched)")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "undo_redo_history.yaml")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "undo_redo_history.golden"), []byte("{}"), 0o644))

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ undo_redo_history (golden mismatch)")
	assert.Contains(t, out, "trace does not match")
}
