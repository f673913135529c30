// Package snippet extracts raw source line spans for symbols, with an LRU
// cache over file contents so repeated pulls do not re-read files.
package snippet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Extractor reads line spans out of files under one root.
type Extractor struct {
	root  string
	files *lru.Cache[string, []string]
}

// New creates an extractor caching up to maxFiles file contents.
func New(root string, maxFiles int) (*Extractor, error) {
	if maxFiles <= 0 {
		maxFiles = 64
	}
	files, err := lru.New[string, []string](maxFiles)
	if err != nil {
		return nil, fmt.Errorf("creating snippet cache: %w", err)
	}
	return &Extractor{root: root, files: files}, nil
}

// Lines returns the inclusive 1-based line span [start, end] of the file at
// the root-relative path.
func (e *Extractor) Lines(rel string, start, end int) (string, error) {
	lines, ok := e.files.Get(rel)
	if !ok {
		data, err := os.ReadFile(filepath.Join(e.root, filepath.FromSlash(rel)))
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", rel, err)
		}
		lines = strings.Split(string(data), "\n")
		e.files.Add(rel, lines)
	}

	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return "", fmt.Errorf("%s: empty span %d-%d", rel, start, end)
	}
	return strings.Join(lines[start-1:end], "\n"), nil
}
