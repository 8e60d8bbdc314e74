package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eagraph/internal/governance"
	"github.com/roach88/eagraph/internal/repo"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, governance.DefaultPolicy(), cfg.Policy())
	assert.Equal(t, repo.DefaultHistoryLimit, cfg.History.Limit)
	assert.Equal(t, "eagraph", cfg.Metrics.Namespace)
	assert.Empty(t, cfg.Rules.Path)
	assert.Empty(t, cfg.Archive.Path)
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "advisory.yaml"))
	require.NoError(t, err)

	assert.Equal(t, governance.Policy{Mode: governance.Advisory, LifecycleCoverage: governance.CoverageBoth}, cfg.Policy())
	assert.Equal(t, "Advisory", cfg.Governance.Mode, "mode is canonicalised")
	assert.Equal(t, filepath.Join("testdata", "rules", "endpoints.cue"), cfg.Rules.Path)
	assert.Equal(t, "/var/lib/eagraph/baselines.db", cfg.Archive.Path)
	assert.Equal(t, 10, cfg.History.Limit)
	assert.Equal(t, "eagraph", cfg.Metrics.Namespace, "unset keys keep defaults")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown key",
			yaml: "governance:\n  mode: Strict\n  severity: high\n",
			want: "field severity not found",
		},
		{
			name: "bad mode",
			yaml: "governance:\n  mode: Lenient\n",
			want: "governance.mode must be one of: Strict Advisory",
		},
		{
			name: "bad coverage",
			yaml: "governance:\n  lifecycleCoverage: Sometimes\n",
			want: "governance.lifecycleCoverage must be one of: AsIs ToBe Both",
		},
		{
			name: "history limit",
			yaml: "history:\n  limit: 0\n",
			want: "history.limit must be at least 1",
		},
		{
			name: "namespace",
			yaml: "metrics:\n  namespace: my-app\n",
			want: "metrics.namespace must not contain",
		},
		{
			name: "empty namespace",
			yaml: "metrics:\n  namespace: \"\"\n",
			want: "metrics.namespace is required",
		},
		{
			name: "not yaml",
			yaml: "governance: [",
			want: "decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseAcceptsHyphenatedCoverage(t *testing.T) {
	cfg, err := Parse([]byte("governance:\n  lifecycleCoverage: to-be\n"))
	require.NoError(t, err)
	assert.Equal(t, governance.CoverageToBe, cfg.Policy().LifecycleCoverage)
}
