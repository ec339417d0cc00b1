package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finrag/internal/core/domain"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("revenue"), 0o600))
	}
}

func TestExpandPaths_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.txt", "notes.md", "sub/b.markdown", "image.png")

	paths, err := expandPaths([]string{dir}, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "notes.md"),
		filepath.Join(dir, "sub", "b.markdown"),
	}, paths)
}

func TestExpandPaths_IncludePattern(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.txt", "sub/b.txt", "sub/c.md")

	paths, err := expandPaths([]string{dir}, "sub/*.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "sub", "b.txt")}, paths)
}

func TestExpandPaths_GlobAndDedup(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.txt", "b.txt")
	a := filepath.Join(dir, "a.txt")

	paths, err := expandPaths([]string{a, filepath.Join(dir, "*.txt")}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{a, filepath.Join(dir, "b.txt")}, paths)
}

func TestExpandPaths_MissingAndExplicitFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "scan.pdf")
	missing := filepath.Join(dir, "missing.txt")
	pdf := filepath.Join(dir, "scan.pdf")

	paths, err := expandPaths([]string{missing, pdf}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{missing, pdf}, paths)
}

func TestExpandPaths_InvalidInclude(t *testing.T) {
	_, err := expandPaths([]string{"."}, "[")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestIngest_Report(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	dir := t.TempDir()
	writeFiles(t, dir, "a.txt", "b.txt")
	bad := filepath.Join(dir, "b.txt")
	ts.ingestion.fail = map[string]error{bad: domain.ErrValidation}

	out, err := execute(t, "ingest", dir)
	require.NoError(t, err)

	assert.Len(t, ts.ingestion.paths, 2)
	assert.Contains(t, out, "OK   "+filepath.Join(dir, "a.txt")+": 2 chunks")
	assert.Contains(t, out, "FAIL "+bad)
	assert.Contains(t, out, "Stored 2 chunks from 1 files (1 failed).")
}

func TestIngest_DryRunJSON(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	dir := t.TempDir()
	writeFiles(t, dir, "a.txt")

	out, err := execute(t, "ingest", "--dry-run", "--json", dir)
	require.NoError(t, err)
	assert.True(t, ts.ingestion.opts.DryRun)

	var got struct {
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
		Chunks    int `json:"chunks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 1, got.Succeeded)
	assert.Equal(t, 0, got.Failed)
	assert.Equal(t, 2, got.Chunks)
}

func TestIngest_NoMatches(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "ingest", t.TempDir())
	assert.EqualError(t, err, "no files matched")
}
