// Package model defines the structural index data model. The Index is the
// aggregate root; Modules, Symbols, and Classes carry stable string IDs and
// reference each other by ID, never by pointer, so the whole document
// serializes and round-trips cleanly.
package model

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Param is a name/type pair for a parameter or a struct/class field.
// Type is a canonical string rendering (e.g. "*Server", "[]byte",
// "map[string]int"); it is empty for untyped languages.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Symbol is one function or method.
type Symbol struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Module    string   `json:"module"`
	Receiver  string   `json:"receiver,omitempty"` // enclosing type name, methods only
	Params    []Param  `json:"params,omitempty"`
	Returns   []string `json:"returns,omitempty"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Doc       string   `json:"doc"`
	Exported  bool     `json:"exported"`
	Method    bool     `json:"method"`

	// Calls holds raw callee names collected from the symbol body. It is
	// input to call-graph assembly; resolution happens later, globally.
	Calls []string `json:"calls,omitempty"`
}

// Class is a struct, class, or interface declaration. Methods holds symbol
// names defined on this type; the symbols themselves live in the module's
// function table.
type Class struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Fields    []Param  `json:"fields,omitempty"`
	Methods   []string `json:"methods,omitempty"`
	Doc       string   `json:"doc"`
	Exported  bool     `json:"exported"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
}

// Import is one import/require statement.
type Import struct {
	Path  string `json:"path"`
	Alias string `json:"alias,omitempty"`
	Line  int    `json:"line"`
}

// Variable is a top-level variable or constant.
type Variable struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Exported bool   `json:"exported"`
	Const    bool   `json:"const"`
	Line     int    `json:"line"`
}

// Module is the normalized record for one analyzed source file.
type Module struct {
	ID        string     `json:"id"`
	Path      string     `json:"path"` // slash-separated, relative to root
	Language  string     `json:"language"`
	Hash      string     `json:"hash"` // content hash, hex
	Lines     int        `json:"lines"`
	Doc       string     `json:"doc"`
	Functions []Symbol   `json:"functions"`
	Classes   []Class    `json:"classes"`
	Imports   []Import   `json:"imports"`
	Variables []Variable `json:"variables"`
	Rank      float64    `json:"rank"`
}

// CallEdge is a directed, possibly-unresolved call. Caller is always a
// symbol ID present in the Index. Callee is the resolved symbol ID, or ""
// when resolution failed; Raw keeps the name as written for display either
// way. Edges are never dropped just because they did not resolve.
type CallEdge struct {
	Caller string `json:"caller"`
	Callee string `json:"callee,omitempty"`
	Raw    string `json:"raw"`
}

// Resolved reports whether the callee was matched to a symbol in the Index.
func (e CallEdge) Resolved() bool { return e.Callee != "" }

// FolderEntry is one node of the filtered project tree.
type FolderEntry struct {
	Path string            `json:"path"`
	Kind string            `json:"kind"` // "dir" or "file"
	Meta map[string]string `json:"meta,omitempty"`
}

const (
	KindDir  = "dir"
	KindFile = "file"
)

// Stats are aggregate counts over a completed Index.
type Stats struct {
	Modules   int `json:"modules"`
	Functions int `json:"functions"`
	Classes   int `json:"classes"`
	Edges     int `json:"edges"`
	Lines     int `json:"lines"`
}

// Index is the aggregate structural snapshot of one source tree.
type Index struct {
	Repo      string        `json:"repo"`
	Modules   []*Module     `json:"modules"`
	Folder    []FolderEntry `json:"folder_structure"`
	CallGraph []CallEdge    `json:"call_graph"`
	Stats     Stats         `json:"stats"`
}

// AnalysisError records one file that failed to parse. The build continues
// without it.
type AnalysisError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ModuleID derives the stable module identifier from a relative path.
func ModuleID(relPath string) string {
	return filepath.ToSlash(relPath)
}

// SymbolID derives the stable symbol identifier. For methods, name should
// be the qualified "Type.name" form.
func SymbolID(moduleID, name string) string {
	return moduleID + ":" + name
}

// Unqualified returns the last dot-separated component of a raw call name
// ("fmt.Println" → "Println", "foo" → "foo").
func Unqualified(raw string) string {
	if i := strings.LastIndex(raw, "."); i >= 0 {
		return raw[i+1:]
	}
	return raw
}

// QualifiedName returns "Receiver.Name" for methods, Name otherwise.
func (s *Symbol) QualifiedName() string {
	if s.Receiver != "" {
		return s.Receiver + "." + s.Name
	}
	return s.Name
}

// ComputeStats recounts Stats from the Index contents.
func (ix *Index) ComputeStats() {
	s := Stats{Modules: len(ix.Modules), Edges: len(ix.CallGraph)}
	for _, m := range ix.Modules {
		s.Functions += len(m.Functions)
		s.Classes += len(m.Classes)
		s.Lines += m.Lines
	}
	ix.Stats = s
}

// SortModules orders modules by path, the canonical build order.
func (ix *Index) SortModules() {
	sort.Slice(ix.Modules, func(i, j int) bool {
		return ix.Modules[i].Path < ix.Modules[j].Path
	})
}

// SymbolByID looks up a symbol anywhere in the Index. Linear over modules,
// intended for occasional resolution, not hot paths.
func (ix *Index) SymbolByID(id string) *Symbol {
	for _, m := range ix.Modules {
		for i := range m.Functions {
			if m.Functions[i].ID == id {
				return &m.Functions[i]
			}
		}
	}
	return nil
}

// ModuleByPath returns the module with the given slash path, or nil.
func (ix *Index) ModuleByPath(path string) *Module {
	for _, m := range ix.Modules {
		if m.Path == path {
			return m
		}
	}
	return nil
}

// Marshal serializes the Index. Slices keep build order and maps are not
// used in the document, so identical contents produce identical bytes.
func (ix *Index) Marshal() ([]byte, error) {
	return json.Marshal(ix)
}

// UnmarshalIndex deserializes an Index document.
func UnmarshalIndex(data []byte) (*Index, error) {
	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}
	return &ix, nil
}
