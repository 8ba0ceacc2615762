// Package connectors reads content from outside the index: browser bookmarks, local
// directories and the web.
package connectors

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// bookmarkRoots are the Chrome bookmark folders walked, in order.
var bookmarkRoots = []string{"bookmark_bar", "other", "synced"}

// Bookmark is one URL entry from a browser bookmarks file.
type Bookmark struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	DateAdded string `json:"date_added"`
}

type bookmarkNode struct {
	Type      string          `json:"type"`
	Name      string          `json:"name"`
	URL       string          `json:"url"`
	DateAdded string          `json:"date_added"`
	Children  []*bookmarkNode `json:"children"`
}

type bookmarkFile struct {
	Roots map[string]*bookmarkNode `json:"roots"`
}

// ParseChromeBookmarks decodes a Chrome "Bookmarks" JSON document and returns every URL entry
// under the bookmark bar, other and synced folders. Folders are walked depth first.
func ParseChromeBookmarks(r io.Reader) ([]Bookmark, error) {
	var file bookmarkFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("parse bookmarks: %w", err)
	}
	var out []Bookmark
	for _, name := range bookmarkRoots {
		if root := file.Roots[name]; root != nil {
			out = collectBookmarks(root, out)
		}
	}
	return out, nil
}

func collectBookmarks(node *bookmarkNode, out []Bookmark) []Bookmark {
	if node.Type == "url" {
		title := strings.TrimSpace(node.Name)
		if title == "" {
			title = "Untitled"
		}
		out = append(out, Bookmark{Title: title, URL: node.URL, DateAdded: node.DateAdded})
	}
	for _, child := range node.Children {
		if child != nil {
			out = collectBookmarks(child, out)
		}
	}
	return out
}

// LoadChromeBookmarks parses the bookmarks file at path.
func LoadChromeBookmarks(path string) ([]Bookmark, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bookmarks: %w", err)
	}
	defer f.Close()
	return ParseChromeBookmarks(f)
}

// Text is the indexed form of a bookmark.
func (b Bookmark) Text() string {
	return b.Title + "\n" + b.URL
}
