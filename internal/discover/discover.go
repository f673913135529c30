// Package discover walks a source tree top-down through the exclusion
// filter, producing the filtered folder structure and the list of files to
// analyze.
package discover

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/kpblcaoo/structmap/internal/exclude"
	"github.com/kpblcaoo/structmap/internal/lang"
	"github.com/kpblcaoo/structmap/internal/model"
)

// FileEntry is one file selected for analysis.
type FileEntry struct {
	Path     string // relative to root, slash-separated
	Language string
	Size     int64
}

// Result is the outcome of one traversal.
type Result struct {
	// Folder is the filtered project tree, sorted lexicographically by
	// full path. Other components rely on this ordering for diffing.
	Folder []model.FolderEntry
	// Files are the analyzable files (known language, within the size
	// cap), sorted by path.
	Files []FileEntry
	// Oversized lists files skipped by the size cap; they still appear in
	// Folder.
	Oversized []string
}

// Walk traverses root through the filter. languages, when non-empty,
// restricts analysis to the named languages; files of other languages still
// appear in the folder structure. maxFileSize <= 0 means no cap.
func Walk(root string, filter *exclude.Filter, languages []string, maxFileSize int64) (*Result, error) {
	langSet := make(map[string]struct{}, len(languages))
	for _, l := range languages {
		langSet[l] = struct{}{}
	}

	res := &Result{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if !filter.Dir(rel) {
				return filepath.SkipDir
			}
			res.Folder = append(res.Folder, model.FolderEntry{Path: rel, Kind: model.KindDir})
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if !filter.File(rel) {
			return nil
		}

		entry := model.FolderEntry{Path: rel, Kind: model.KindFile}

		langName := lang.ForExtension(filepath.Ext(rel))
		if langName != "" {
			entry.Meta = map[string]string{"lang": langName}
		}
		res.Folder = append(res.Folder, entry)

		if langName == "" {
			return nil // non-source file, listed but not analyzed
		}
		if len(langSet) > 0 {
			if _, ok := langSet[langName]; !ok {
				return nil
			}
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if maxFileSize > 0 && info.Size() > maxFileSize {
			res.Oversized = append(res.Oversized, rel)
			return nil
		}

		res.Files = append(res.Files, FileEntry{Path: rel, Language: langName, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Slice(res.Folder, func(i, j int) bool { return res.Folder[i].Path < res.Folder[j].Path })
	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].Path < res.Files[j].Path })
	sort.Strings(res.Oversized)

	return res, nil
}
