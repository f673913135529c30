package render

import (
	"strings"
	"testing"

	"github.com/kpblcaoo/structmap/internal/model"
)

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "hello", "hello"},
		{"leading space", " hello", `" hello"`},
		{"trailing space", "hello ", `"hello "`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"true keyword", "true", `"true"`},
		{"True keyword", "True", `"True"`},
		{"false keyword", "false", `"false"`},
		{"null keyword", "null", `"null"`},
		{"integer", "42", "42"},
		{"negative integer", "-1", "-1"},
		{"float", "3.14", "3.14"},
		{"zero", "0", "0"},
		{"leading zero invalid", "01", "01"},
		{"comma", "a,b", `"a,b"`},
		{"colon", "a:b", `"a:b"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"bracket", "a[b", `"a[b"`},
		{"brace", "a{b", `"a{b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"path", "src/main.py", "src/main.py"},
		{"dotted name", "Foo.__init__", "Foo.__init__"},
		{"signature no special", "run(self) -> None", "run(self) -> None"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := encodeValue(tt.in)
			if got != tt.want {
				t.Errorf("encodeValue(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSignature(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sym  model.Symbol
		want string
	}{
		{
			"no params no returns",
			model.Symbol{Name: "run"},
			"run()",
		},
		{
			"typed params one return",
			model.Symbol{
				Name:    "Dial",
				Params:  []model.Param{{Name: "addr", Type: "string"}, {Name: "timeout", Type: "time.Duration"}},
				Returns: []string{"error"},
			},
			"Dial(addr string, timeout time.Duration) error",
		},
		{
			"multiple returns",
			model.Symbol{
				Name:    "Load",
				Params:  []model.Param{{Name: "path", Type: "string"}},
				Returns: []string{"*Config", "error"},
			},
			"Load(path string) (*Config, error)",
		},
		{
			"untyped params",
			model.Symbol{
				Name:   "resize",
				Params: []model.Param{{Name: "self"}, {Name: "w"}, {Name: "h"}},
			},
			"resize(self, w, h)",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Signature(&tt.sym); got != tt.want {
				t.Errorf("Signature() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	ix := &model.Index{
		Repo: "myrepo",
		Modules: []*model.Module{
			{ID: "src/main.py", Path: "src/main.py", Lines: 40,
				Functions: []model.Symbol{{ID: "src/main.py:main", Name: "main"}}},
		},
		Folder: []model.FolderEntry{
			{Path: "src", Kind: model.KindDir},
			{Path: "src/main.py", Kind: model.KindFile},
		},
	}
	ix.ComputeStats()

	got := Summary(ix)
	lines := strings.Split(got, "\n")
	if lines[0] != "repo: myrepo" {
		t.Errorf("line 0: got %q", lines[0])
	}
	if lines[1] != "stats: {modules: 1, functions: 1, classes: 0, edges: 0, lines: 40}" {
		t.Errorf("line 1: got %q", lines[1])
	}
	if lines[2] != "tree[2]{path,kind}:" {
		t.Errorf("line 2: got %q", lines[2])
	}
	if lines[3] != "  src,dir" {
		t.Errorf("line 3: got %q", lines[3])
	}
	if lines[4] != "  src/main.py,file" {
		t.Errorf("line 4: got %q", lines[4])
	}
}

func TestModuleStructure(t *testing.T) {
	t.Parallel()

	m := &model.Module{
		ID: "src/app.py", Path: "src/app.py", Language: "python", Rank: 0.25,
		Functions: []model.Symbol{
			{Name: "main", StartLine: 3},
			{Name: "resize", Receiver: "Widget", Method: true, StartLine: 12},
		},
		Classes: []model.Class{{Name: "Widget", StartLine: 8}},
	}

	got := ModuleStructure(m)
	lines := strings.Split(got, "\n")
	if lines[0] != "module: src/app.py (python, rank 0.2500)" {
		t.Errorf("line 0: got %q", lines[0])
	}
	if lines[1] != "symbols[3]{name,kind,line}:" {
		t.Errorf("line 1: got %q", lines[1])
	}
	if lines[2] != "  main,function,3" {
		t.Errorf("line 2: got %q", lines[2])
	}
	if lines[3] != "  Widget.resize,method,12" {
		t.Errorf("line 3: got %q", lines[3])
	}
	if lines[4] != "  Widget,class,8" {
		t.Errorf("line 4: got %q", lines[4])
	}
}

func TestModuleDetail(t *testing.T) {
	t.Parallel()

	m := &model.Module{
		ID: "db.go", Path: "db.go", Language: "go",
		Doc: "Package db wraps the store.\nSecond line dropped.",
		Functions: []model.Symbol{
			{Name: "Open", Params: []model.Param{{Name: "dsn", Type: "string"}},
				Returns: []string{"*DB", "error"}, Doc: "Open connects.\nMore."},
		},
		Classes: []model.Class{
			{Name: "DB", Fields: []model.Param{{Name: "conn", Type: "*sql.DB"}, {Name: "tries", Type: "int"}}},
		},
		Imports:   []model.Import{{Path: "database/sql", Alias: "sql"}},
		Variables: []model.Variable{{Name: "MaxRetries", Type: "int", Const: true}},
	}

	got := ModuleDetail(m)
	for _, want := range []string{
		"module: db.go",
		"doc: Package db wraps the store.",
		"functions[1]{name,signature,doc}:",
		`  Open,"Open(dsn string) (*DB, error)",Open connects.`,
		"classes[1]{name,fields,doc}:",
		`  DB,conn *sql.DB; tries int,""`,
		"imports[1]{path,alias}:",
		"  database/sql,sql",
		"variables[1]{name,type,kind}:",
		"  MaxRetries,int,const",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Second line") || strings.Contains(got, "More.") {
		t.Errorf("doc not truncated to first line:\n%s", got)
	}
}

func TestModuleDetailOmitsEmptySections(t *testing.T) {
	t.Parallel()

	m := &model.Module{ID: "empty.py", Path: "empty.py", Language: "python"}
	got := ModuleDetail(m)
	if !strings.Contains(got, "functions[0]{name,signature,doc}:") {
		t.Errorf("expected empty functions section, got:\n%s", got)
	}
	for _, absent := range []string{"classes[", "imports[", "variables["} {
		if strings.Contains(got, absent) {
			t.Errorf("unexpected %q section in:\n%s", absent, got)
		}
	}
}

func TestModuleCalls(t *testing.T) {
	t.Parallel()

	m := &model.Module{ID: "a.py", Path: "a.py"}
	edges := []model.CallEdge{
		{Caller: "a.py:foo", Callee: "b.py:bar", Raw: "bar"},
		{Caller: "a.py:foo", Raw: "log.info"},
		{Caller: "b.py:bar", Callee: "a.py:foo", Raw: "foo"},
	}

	got := ModuleCalls(m, edges)
	lines := strings.Split(got, "\n")
	if lines[0] != "module: a.py" {
		t.Errorf("line 0: got %q", lines[0])
	}
	if lines[1] != "calls[2]{caller,callee}:" {
		t.Errorf("line 1: got %q", lines[1])
	}
	if lines[2] != `  "a.py:foo","b.py:bar"` {
		t.Errorf("line 2: got %q", lines[2])
	}
	if lines[3] != `  "a.py:foo",log.info (unresolved)` {
		t.Errorf("line 3: got %q", lines[3])
	}
	if strings.Contains(got, `"b.py:bar","a.py:foo"`) {
		t.Errorf("edge from another module leaked in:\n%s", got)
	}
}

func TestSnippet(t *testing.T) {
	t.Parallel()

	got := Snippet("src/a.py", 3, "def foo():\n    return 1")
	want := "snippet: src/a.py:3\ndef foo():\n    return 1"
	if got != want {
		t.Errorf("Snippet() = %q, want %q", got, want)
	}
}
