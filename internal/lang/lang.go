// Package lang provides the language registry mapping file extensions to
// tree-sitter grammars and per-language declaration extractors.
package lang

import (
	"regexp"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kpblcaoo/structmap/internal/model"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Language holds tree-sitter configuration for one supported language.
type Language struct {
	Name       string
	Extensions []string
	lang       *sitter.Language

	// Extract walks the parsed tree and populates the module's Functions,
	// Classes, Imports, Variables, and Doc. The module's identity fields
	// (ID, Path, Hash, Lines) are already set by the caller.
	Extract func(root *sitter.Node, source []byte, m *model.Module)
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[ext]
}

// Names returns the registered language names, for usage messages.
func Names() []string {
	names := make([]string, 0, len(Languages))
	for name := range Languages {
		names = append(names, name)
	}
	return names
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Line returns the 1-based start line of a node.
func Line(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}

// EndLine returns the 1-based end line of a node.
func EndLine(node *sitter.Node) int {
	return int(node.EndPoint().Row) + 1
}

// LeadingComment collects the contiguous block of comment siblings directly
// above a declaration, strips comment syntax, drops blank lines, and joins
// the rest with newlines. Returns "" when no comment is attached.
func LeadingComment(node *sitter.Node, source []byte) string {
	var comments []*sitter.Node
	expect := int(node.StartPoint().Row)
	for prev := node.PrevSibling(); prev != nil; prev = prev.PrevSibling() {
		if prev.Type() != "comment" {
			break
		}
		// Only comments immediately adjacent (no blank-line gap) attach.
		if int(prev.EndPoint().Row) < expect-1 {
			break
		}
		comments = append(comments, prev)
		expect = int(prev.StartPoint().Row)
	}
	if len(comments) == 0 {
		return ""
	}

	var lines []string
	for i := len(comments) - 1; i >= 0; i-- {
		lines = append(lines, strings.Split(NodeText(comments[i], source), "\n")...)
	}
	return joinCommentLines(lines)
}

// StripCommentSyntax removes the comment markers of all supported languages
// from one comment line.
func StripCommentSyntax(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimPrefix(s, "/**")
	s = strings.TrimPrefix(s, "/*")
	s = strings.TrimSuffix(s, "*/")
	s = strings.TrimPrefix(s, "//")
	s = strings.TrimPrefix(s, "#")
	s = strings.TrimSpace(s)
	// JSDoc-style continuation lines.
	if strings.HasPrefix(s, "* ") {
		s = s[2:]
	} else if s == "*" {
		s = ""
	}
	return strings.TrimSpace(s)
}

func joinCommentLines(lines []string) string {
	var kept []string
	for _, line := range lines {
		if s := StripCommentSyntax(line); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "\n")
}

// CollectCalls walks the subtree under body and appends the raw text of every
// call target it finds. callTypes and fieldName describe the grammar's call
// node ("call_expression"/"call") and its callee field ("function"/"method").
func CollectCalls(body *sitter.Node, source []byte, callType, calleeField string) []string {
	if body == nil {
		return nil
	}
	var calls []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == callType {
			if fn := n.ChildByFieldName(calleeField); fn != nil {
				if raw := CollapseWhitespace(NodeText(fn, source)); raw != "" {
					calls = append(calls, raw)
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
	return calls
}
