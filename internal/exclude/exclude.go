// Package exclude decides which paths enter analysis. Three pattern sources
// apply, highest precedence first: caller-supplied globs, the project
// .gitignore, and a built-in security denylist. Exclusion from any source is
// a veto; include globs, when present, are an additional gate on files.
package exclude

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// ConfigError reports a malformed caller-supplied pattern. It is fatal at
// construction time; malformed patterns are never silently dropped.
type ConfigError struct {
	Pattern string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %s", e.Pattern, e.Reason)
}

// denyFiles are credential-like and backup/temp filenames that must never
// enter the index, regardless of include patterns.
var denyFiles = []string{
	"**/*.env",
	"**/.env",
	"**/.env.*",
	"**/*.key",
	"**/*.pem",
	"**/*_token*",
	"**/*secret*",
	"**/*.bak",
	"**/*~",
	"**/*.swp",
}

// denyDirs are directory names whose entire subtree is skipped: VCS
// metadata, build output, dependency and cache dirs.
var denyDirs = map[string]struct{}{
	".git":          {},
	".hg":           {},
	".svn":          {},
	"node_modules":  {},
	"__pycache__":   {},
	"venv":          {},
	".venv":         {},
	"build":         {},
	"dist":          {},
	"target":        {},
	"vendor":        {},
	".tox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
	".idea":         {},
	".vscode":       {},
}

// Filter is a pure predicate over root-relative paths. Construct once,
// query many times; it holds no mutable state.
type Filter struct {
	include []string
	exclude []string
	git     *ignore.GitIgnore
}

// New compiles a filter for the tree rooted at root. include and exclude are
// caller-supplied doublestar globs; a malformed glob is a *ConfigError.
// The project .gitignore, when present, is loaded as the middle pattern
// source.
func New(root string, include, exclude []string) (*Filter, error) {
	for _, p := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, &ConfigError{Pattern: p, Reason: "malformed glob"}
		}
	}

	f := &Filter{include: include, exclude: exclude}
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		f.git = gi
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading .gitignore: %w", err)
	}
	return f, nil
}

// File reports whether a file at the given root-relative path may enter
// analysis.
func (f *Filter) File(rel string) bool {
	rel = filepath.ToSlash(rel)

	for _, p := range f.exclude {
		if match(p, rel) {
			return false
		}
	}
	if f.git != nil && f.git.MatchesPath(rel) {
		return false
	}
	for _, p := range denyFiles {
		if match(p, rel) {
			return false
		}
	}
	// Any denylisted directory on the path vetoes the file even when it is
	// reached directly rather than through traversal.
	for _, seg := range strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/") {
		if _, deny := denyDirs[seg]; deny {
			return false
		}
	}
	if strings.HasPrefix(filepath.Base(rel), ".") {
		return false
	}

	if len(f.include) > 0 {
		for _, p := range f.include {
			if match(p, rel) {
				return true
			}
		}
		return false
	}
	return true
}

// Dir reports whether traversal may descend into the directory at the given
// root-relative path. A false return prunes the whole subtree.
func (f *Filter) Dir(rel string) bool {
	rel = filepath.ToSlash(rel)
	name := filepath.Base(rel)

	if _, deny := denyDirs[name]; deny {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	for _, p := range f.exclude {
		if matchDir(p, rel) {
			return false
		}
	}
	if f.git != nil && (f.git.MatchesPath(rel) || f.git.MatchesPath(rel+"/")) {
		return false
	}
	return true
}

// matchDir treats "dir/**" patterns as excluding the directory itself, so
// traversal never descends into an excluded subtree.
func matchDir(pattern, rel string) bool {
	if match(pattern, rel) || match(pattern, rel+"/") {
		return true
	}
	if p, ok := strings.CutSuffix(pattern, "/**"); ok {
		return match(p, rel)
	}
	return false
}

// Signature returns a stable digest input describing the active pattern
// configuration. Two filters with different patterns produce different
// signatures, so cached indexes are never reused across configurations.
func (f *Filter) Signature() string {
	inc := append([]string{}, f.include...)
	exc := append([]string{}, f.exclude...)
	sort.Strings(inc)
	sort.Strings(exc)
	var b strings.Builder
	b.WriteString("include=")
	b.WriteString(strings.Join(inc, ","))
	b.WriteString(";exclude=")
	b.WriteString(strings.Join(exc, ","))
	if f.git != nil {
		b.WriteString(";gitignore")
	}
	return b.String()
}

// match wraps doublestar.Match; patterns were validated at construction, so
// an error here means a pattern without leading "**/" should also match
// basenames, which Match handles by the fallback below.
func match(pattern, rel string) bool {
	if ok, _ := doublestar.Match(pattern, rel); ok {
		return true
	}
	// A bare pattern like "*.bak" matches by basename too.
	if !strings.Contains(pattern, "/") {
		if ok, _ := doublestar.Match(pattern, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}
