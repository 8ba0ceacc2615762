package connectors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/devflow/internal/docid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("content of "+f), 0600))
	}
}

func titles(entries []FileEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Title
	}
	return out
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.md", "b.go", "c.JSON", "sub/d.py", ".git/config.txt", "sub/deeper/e.txt")

	entries, err := ScanDirectory(root, true, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "c.JSON", "d.py", "e.txt"}, titles(entries))
	assert.Equal(t, ".json", entries[1].Ext)
	assert.Equal(t, docid.FileURL(filepath.Join(root, "a.md")), entries[0].URL)

	flat, err := ScanDirectory(root, false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "c.JSON"}, titles(flat))

	goOnly, err := ScanDirectory(root, true, []string{"go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.go"}, titles(goOnly))
}

func TestScanDirectory_missing(t *testing.T) {
	entries, err := ScanDirectory(filepath.Join(t.TempDir(), "nope"), true, nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScanDirectory_notADirectory(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "file.txt")
	_, err := ScanDirectory(filepath.Join(root, "file.txt"), true, nil)
	assert.Error(t, err)
}
