// Package render serializes index records as TOON (Token-Oriented Object
// Notation) text, the compact tabular form the context payload is built
// from and the token counter measures.
package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kpblcaoo/structmap/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Summary renders the essential project record: identity, aggregate stats,
// and the folder skeleton.
func Summary(ix *model.Index) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("repo: %s", encodeValue(ix.Repo)))
	parts = append(parts, fmt.Sprintf(
		"stats: {modules: %d, functions: %d, classes: %d, edges: %d, lines: %d}",
		ix.Stats.Modules, ix.Stats.Functions, ix.Stats.Classes, ix.Stats.Edges, ix.Stats.Lines))

	var rows [][]string
	for i := range ix.Folder {
		e := &ix.Folder[i]
		rows = append(rows, []string{e.Path, e.Kind})
	}
	parts = append(parts, formatTabular("tree", []string{"path", "kind"}, rows))
	return strings.Join(parts, "\n")
}

// ModuleStructure renders the structural listing for one module: what is
// defined where, without signatures or docs.
func ModuleStructure(m *model.Module) string {
	var rows [][]string
	for i := range m.Functions {
		s := &m.Functions[i]
		kind := "function"
		if s.Method {
			kind = "method"
		}
		rows = append(rows, []string{s.QualifiedName(), kind, fmt.Sprintf("%d", s.StartLine)})
	}
	for i := range m.Classes {
		c := &m.Classes[i]
		rows = append(rows, []string{c.Name, "class", fmt.Sprintf("%d", c.StartLine)})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "module: %s (%s, rank %.4f)\n", encodeValue(m.Path), m.Language, m.Rank)
	b.WriteString(formatTabular("symbols", []string{"name", "kind", "line"}, rows))
	return b.String()
}

// ModuleDetail renders the operational record for one module: signatures,
// doc text, imports, and top-level variables.
func ModuleDetail(m *model.Module) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("module: %s", encodeValue(m.Path)))
	if m.Doc != "" {
		parts = append(parts, fmt.Sprintf("doc: %s", encodeValue(firstLine(m.Doc))))
	}

	var fnRows [][]string
	for i := range m.Functions {
		s := &m.Functions[i]
		fnRows = append(fnRows, []string{s.QualifiedName(), Signature(s), firstLine(s.Doc)})
	}
	parts = append(parts, formatTabular("functions", []string{"name", "signature", "doc"}, fnRows))

	var clsRows [][]string
	for i := range m.Classes {
		c := &m.Classes[i]
		var fields []string
		for _, f := range c.Fields {
			fields = append(fields, strings.TrimSpace(f.Name+" "+f.Type))
		}
		clsRows = append(clsRows, []string{c.Name, strings.Join(fields, "; "), firstLine(c.Doc)})
	}
	if len(clsRows) > 0 {
		parts = append(parts, formatTabular("classes", []string{"name", "fields", "doc"}, clsRows))
	}

	var impRows [][]string
	for i := range m.Imports {
		imp := &m.Imports[i]
		impRows = append(impRows, []string{imp.Path, imp.Alias})
	}
	if len(impRows) > 0 {
		parts = append(parts, formatTabular("imports", []string{"path", "alias"}, impRows))
	}

	var varRows [][]string
	for i := range m.Variables {
		v := &m.Variables[i]
		kind := "var"
		if v.Const {
			kind = "const"
		}
		varRows = append(varRows, []string{v.Name, v.Type, kind})
	}
	if len(varRows) > 0 {
		parts = append(parts, formatTabular("variables", []string{"name", "type", "kind"}, varRows))
	}

	return strings.Join(parts, "\n")
}

// ModuleCalls renders the call edges originating in one module.
func ModuleCalls(m *model.Module, edges []model.CallEdge) string {
	prefix := m.ID + ":"
	var rows [][]string
	for i := range edges {
		e := &edges[i]
		if !strings.HasPrefix(e.Caller, prefix) {
			continue
		}
		callee := e.Callee
		if callee == "" {
			callee = e.Raw + " (unresolved)"
		}
		rows = append(rows, []string{e.Caller, callee})
	}
	var b strings.Builder
	fmt.Fprintf(&b, "module: %s\n", encodeValue(m.Path))
	b.WriteString(formatTabular("calls", []string{"caller", "callee"}, rows))
	return b.String()
}

// Signature renders a symbol's canonical signature text.
func Signature(s *model.Symbol) string {
	var params []string
	for _, p := range s.Params {
		params = append(params, strings.TrimSpace(p.Name+" "+p.Type))
	}
	sig := s.Name + "(" + strings.Join(params, ", ") + ")"
	switch len(s.Returns) {
	case 0:
	case 1:
		sig += " " + s.Returns[0]
	default:
		sig += " (" + strings.Join(s.Returns, ", ") + ")"
	}
	return sig
}

// Snippet renders a raw source snippet block for the payload.
func Snippet(path string, startLine int, text string) string {
	return fmt.Sprintf("snippet: %s:%d\n%s", encodeValue(path), startLine, text)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
