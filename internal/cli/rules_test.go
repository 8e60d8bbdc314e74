package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eagraph/internal/model"
	"github.com/roach88/eagraph/internal/rules"
)

const customRules = `
relationship: {
	HOSTED_ON: {
		from: ["Application", "BusinessService"]
		to: ["Technology"]
	}
}
`

func writeRules(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "custom.cue")
	require.NoError(t, os.WriteFile(path, []byte(customRules), 0o644))
	return path
}

func TestRulesDefaultTable(t *testing.T) {
	out, err := execute(t, "rules")
	require.NoError(t, err)
	assert.Equal(t, rules.Default().String(), out)
	assert.Contains(t, out, "OWNS: Enterprise -> Enterprise,Capability,Application,Programme\n")
}

func TestRulesCustomTable(t *testing.T) {
	path := writeRules(t, t.TempDir())

	out, err := execute(t, "rules", "--rules", path)
	require.NoError(t, err)
	assert.Equal(t, "HOSTED_ON: Application,BusinessService -> Technology\n", out)
}

func TestRulesTableFromConfig(t *testing.T) {
	dir := t.TempDir()
	writeRules(t, dir)
	cfg := writeConfig(t, dir, "rules:\n  path: custom.cue\n")

	out, err := execute(t, "--config", cfg, "rules")
	require.NoError(t, err)
	assert.Equal(t, "HOSTED_ON: Application,BusinessService -> Technology\n", out)
}

func TestRulesJSON(t *testing.T) {
	path := writeRules(t, t.TempDir())

	out, err := execute(t, "--format", "json", "rules", "--rules", path)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   []RuleEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, model.HostedOn, resp.Data[0].Type)
	assert.Equal(t, []model.ElementType{model.Application, model.BusinessService}, resp.Data[0].From)
	assert.Equal(t, []model.ElementType{model.Technology}, resp.Data[0].To)
	assert.Empty(t, resp.Data[0].Pairs)
}

func TestRulesInvalidTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.cue")
	require.NoError(t, os.WriteFile(path, []byte("relationship: {"), 0o644))

	out, err := execute(t, "rules", "--rules", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]: failed to load rule table")
}
