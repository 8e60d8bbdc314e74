package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/eagraph/internal/graph"
	"github.com/roach88/eagraph/internal/model"
	"github.com/roach88/eagraph/internal/snapshot"
	"github.com/roach88/eagraph/internal/testutil"
)

// writeSnapshot saves g under dir. A .zst name writes a compressed document.
func writeSnapshot(t *testing.T, dir, name string, g *graph.Graph) string {
	t.Helper()
	doc := snapshot.Encode(g, nil, testutil.Epoch)

	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(name, ".zst") {
		data, err = snapshot.Compress(doc)
	} else {
		data, err = snapshot.Marshal(doc)
	}
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// unnamedApplication is the compliant estate with app-1's name removed.
func unnamedApplication(t *testing.T) *graph.Graph {
	return testutil.From(t, testutil.Compliant(t).Graph()).
		Set("app-1", model.AttrName, nil).
		Graph()
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "eagraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
