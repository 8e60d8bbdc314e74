package cli

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/roach88/eagraph/internal/graph"
	"github.com/roach88/eagraph/internal/rules"
	"github.com/roach88/eagraph/internal/snapshot"
)

// Error codes for CLI output.
const (
	ErrCodeGeneric      = "E001"
	ErrCodeRejected     = "E002"
	ErrCodeScenario     = "E003"
	ErrCodeLoadFailed   = "E004"
	ErrCodeFileNotFound = "E005"
	ErrCodeArchive      = "E006"
)

// loadTable returns the rule table at path, or the built-in table when
// path is empty.
func loadTable(path string) (*rules.Table, error) {
	if path == "" {
		return rules.Default(), nil
	}
	return rules.Load(path)
}

// loadSnapshot reads a snapshot document and rebuilds a committed graph.
// Files ending in .zst are zstd-compressed JSON.
func loadSnapshot(path string, table *rules.Table) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc *snapshot.Document
	if strings.HasSuffix(path, ".zst") {
		doc, err = snapshot.Decompress(data)
	} else {
		doc, err = snapshot.Unmarshal(data)
	}
	if err != nil {
		return nil, err
	}

	g, err := snapshot.Decode(doc, table)
	if err != nil {
		return nil, err
	}
	g.Commit()
	return g, nil
}

// expandGlobs resolves each argument as a doublestar pattern. Arguments
// without glob metacharacters are kept as-is so a missing file surfaces as
// a load error rather than an empty match.
func expandGlobs(patterns []string) ([]string, error) {
	var out []string
	for _, pattern := range patterns {
		if !strings.ContainsAny(pattern, "*?[{") {
			out = append(out, pattern)
			continue
		}
		if !doublestar.ValidatePathPattern(pattern) {
			return nil, fmt.Errorf("invalid glob pattern %q", pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		slices.Sort(matches)
		out = append(out, matches...)
	}
	return slices.Compact(out), nil
}
