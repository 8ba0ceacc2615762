package connectors

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/devflow/internal/docid"
)

// DefaultExtensions are the file types ScanDirectory picks up when none are given.
var DefaultExtensions = []string{".txt", ".md", ".py", ".js", ".html", ".css", ".json"}

// FileEntry is a file found by ScanDirectory.
type FileEntry struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Path  string `json:"path"`
	Ext   string `json:"type"`
}

// ScanDirectory lists regular files under dir whose extension is in extensions (DefaultExtensions
// when empty). Hidden directories are skipped. A missing directory yields no entries and no error.
// Entries are sorted by path.
func ScanDirectory(dir string, recursive bool, extensions []string) ([]FileEntry, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed["."+strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "scan", Path: root, Err: errors.New("not a directory")}
	}

	var entries []FileEntry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !recursive || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if allowed[ext] {
			entries = append(entries, FileEntry{Title: d.Name(), URL: docid.FileURL(path), Path: path, Ext: ext})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}
