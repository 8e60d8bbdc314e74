package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eagraph/internal/archive"
	"github.com/roach88/eagraph/internal/baseline"
	"github.com/roach88/eagraph/internal/model"
	"github.com/roach88/eagraph/internal/testutil"
)

func renamedLedger(t *testing.T) string {
	return writeSnapshot(t, t.TempDir(), "renamed.json",
		testutil.From(t, testutil.Compliant(t).Graph()).
			Set("app-1", model.AttrName, model.String("Ledger 2")).
			Graph())
}

func TestBaselineCreateListShow(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "baselines.db")
	snap := writeSnapshot(t, dir, "estate.json",
		testutil.From(t, testutil.Compliant(t).Graph()).Tombstone("tech-1").Graph())

	out, err := execute(t, "baseline", "create", snap,
		"--archive", db, "--id", "bl-1", "--name", "Q1", "--description", "quarter close", "--created-by", "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "created baseline bl-1 (Q1): 7 elements, 7 relationships\n")

	out, err = execute(t, "baseline", "list", "--archive", db)
	require.NoError(t, err)
	assert.Contains(t, out, "ID    NAME")
	assert.Contains(t, out, "bl-1  Q1")

	out, err = execute(t, "baseline", "show", "bl-1", "--archive", db)
	require.NoError(t, err)
	assert.Contains(t, out, "baseline bl-1\n")
	assert.Contains(t, out, "  name:          Q1\n")
	assert.Contains(t, out, "  description:   quarter close\n")
	assert.Contains(t, out, "  created by:    ops\n")
	assert.Contains(t, out, "  elements:      7\n")
	assert.Contains(t, out, "  relationships: 7\n")
}

func TestBaselineShowJSONIsVerified(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "baselines.db")
	snap := writeSnapshot(t, dir, "estate.json.zst", testutil.Compliant(t).Graph())

	_, err := execute(t, "baseline", "create", snap, "--archive", db, "--id", "bl-1", "--name", "Q1")
	require.NoError(t, err)

	out, err := execute(t, "--format", "json", "baseline", "show", "bl-1", "--archive", db)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   baseline.Baseline `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "bl-1", resp.Data.ID)
	assert.Len(t, resp.Data.Elements, 7)
	assert.NoError(t, resp.Data.Verify())
}

func TestBaselineDiff(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "baselines.db")
	before := writeSnapshot(t, dir, "before.json", testutil.Compliant(t).Graph())

	_, err := execute(t, "baseline", "create", before, "--archive", db, "--id", "bl-1", "--name", "before")
	require.NoError(t, err)
	_, err = execute(t, "baseline", "create", renamedLedger(t), "--archive", db, "--id", "bl-2", "--name", "after")
	require.NoError(t, err)

	out, err := execute(t, "baseline", "diff", "bl-1", "bl-2", "--archive", db)
	require.NoError(t, err)
	assert.Equal(t, "diff bl-1 -> bl-2\n~ element app-1\n", out)

	out, err = execute(t, "--format", "json", "baseline", "diff", "bl-1", "bl-2", "--archive", db)
	require.NoError(t, err)
	var resp struct {
		Data baseline.Diff `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"app-1"}, resp.Data.ChangedElements)
}

func TestBaselineCreateIsIdempotentPerContent(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "baselines.db")
	snap := writeSnapshot(t, dir, "estate.json", testutil.Compliant(t).Graph())

	_, err := execute(t, "baseline", "create", snap, "--archive", db, "--id", "bl-1", "--name", "Q1")
	require.NoError(t, err)
	_, err = execute(t, "baseline", "create", snap, "--archive", db, "--id", "bl-1", "--name", "Q1")
	require.NoError(t, err)

	out, err := execute(t, "baseline", "create", renamedLedger(t), "--archive", db, "--id", "bl-1", "--name", "Q1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, archive.ErrConflict)
	assert.Contains(t, out, "Error [E006]: failed to archive baseline")
}

func TestBaselineArchiveFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "archive:\n  path: baselines.db\n")
	snap := writeSnapshot(t, dir, "estate.json", testutil.Compliant(t).Graph())

	_, err := execute(t, "--config", cfg, "baseline", "create", snap, "--id", "bl-1", "--name", "Q1")
	require.NoError(t, err)

	a, err := archive.Open(filepath.Join(dir, "baselines.db"))
	require.NoError(t, err)
	defer a.Close()
	list, err := a.List(t.Context())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "bl-1", list[0].ID)
}

func TestBaselineErrors(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "baselines.db")
	snap := writeSnapshot(t, dir, "estate.json", testutil.Compliant(t).Graph())

	t.Run("no archive configured", func(t *testing.T) {
		out, err := execute(t, "baseline", "list")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "archive path is required")
	})

	t.Run("missing archive", func(t *testing.T) {
		out, err := execute(t, "baseline", "list", "--archive", filepath.Join(dir, "nope.db"))
		require.Error(t, err)
		assert.Contains(t, out, "Error [E005]")
	})

	t.Run("name required", func(t *testing.T) {
		_, err := execute(t, "baseline", "create", snap, "--archive", db)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `required flag(s) "name" not set`)
	})

	t.Run("unknown baseline", func(t *testing.T) {
		_, err := execute(t, "baseline", "create", snap, "--archive", db, "--id", "bl-1", "--name", "Q1")
		require.NoError(t, err)

		out, err := execute(t, "baseline", "show", "missing", "--archive", db)
		require.Error(t, err)
		assert.ErrorIs(t, err, archive.ErrNotFound)
		assert.Contains(t, out, "Error [E005]: baseline missing not found")
	})
}

func TestBaselineListEmptyJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "baselines.db")
	a, err := archive.Open(db)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	out, err := execute(t, "--format", "json", "baseline", "list", "--archive", db)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":[]}`, out)
}
