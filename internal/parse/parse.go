// Package parse turns one source file into a normalized module record using
// tree-sitter.
package parse

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kpblcaoo/structmap/internal/lang"
	"github.com/kpblcaoo/structmap/internal/model"
)

// Analyzer parses files of one language. It owns a tree-sitter parser, which
// is not safe for concurrent use: create one Analyzer per worker goroutine.
type Analyzer struct {
	lang   *lang.Language
	parser *sitter.Parser
}

// NewAnalyzer creates an analyzer for the given language.
func NewAnalyzer(l *lang.Language) *Analyzer {
	return &Analyzer{lang: l, parser: l.NewParser()}
}

// Analyze parses source into a module record. relPath is the root-relative
// path used for the module identity. A file that fails to parse returns a
// *model.AnalysisError and no module; the caller records the error and
// continues the build.
func (a *Analyzer) Analyze(relPath string, source []byte) (*model.Module, *model.AnalysisError) {
	tree, err := a.parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, &model.AnalysisError{Path: relPath, Message: fmt.Sprintf("parse: %v", err)}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &model.AnalysisError{
			Path:    relPath,
			Message: fmt.Sprintf("syntax error near line %d", errorLine(root)),
		}
	}

	m := &model.Module{
		ID:       model.ModuleID(relPath),
		Path:     model.ModuleID(relPath),
		Language: a.lang.Name,
		Hash:     ContentHash(source),
		Lines:    countLines(source),
	}
	a.lang.Extract(root, source, m)
	return m, nil
}

// ContentHash returns the hex content hash used for fingerprinting.
func ContentHash(source []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(source))
}

func countLines(source []byte) int {
	if len(source) == 0 {
		return 0
	}
	n := bytes.Count(source, []byte{'\n'})
	if source[len(source)-1] != '\n' {
		n++
	}
	return n
}

// errorLine finds the first ERROR or MISSING node for the failure message.
func errorLine(root *sitter.Node) int {
	var find func(n *sitter.Node) int
	find = func(n *sitter.Node) int {
		if n.IsError() || n.IsMissing() {
			return int(n.StartPoint().Row) + 1
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if line := find(n.Child(i)); line > 0 {
				return line
			}
		}
		return 0
	}
	if line := find(root); line > 0 {
		return line
	}
	return 1
}
