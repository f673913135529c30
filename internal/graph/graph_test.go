package graph

import (
	"reflect"
	"testing"

	"github.com/kpblcaoo/structmap/internal/model"
)

func mod(path string, imports []string, funcs ...model.Symbol) *model.Module {
	m := &model.Module{ID: path, Path: path, Language: "python"}
	for _, imp := range imports {
		m.Imports = append(m.Imports, model.Import{Path: imp})
	}
	for _, f := range funcs {
		f.Module = path
		f.ID = model.SymbolID(path, f.QualifiedName())
		m.Functions = append(m.Functions, f)
	}
	return m
}

func TestAssembleResolvesAcrossModules(t *testing.T) {
	t.Parallel()

	// a.py: foo() calls bar(); b.py defines bar().
	modules := []*model.Module{
		mod("a.py", []string{"b"}, model.Symbol{Name: "foo", Calls: []string{"bar"}}),
		mod("b.py", nil, model.Symbol{Name: "bar"}),
	}

	edges := Assemble(modules)
	if len(edges) != 1 {
		t.Fatalf("edges = %+v", edges)
	}
	e := edges[0]
	if e.Caller != "a.py:foo" || e.Callee != "b.py:bar" || e.Raw != "bar" {
		t.Errorf("edge = %+v", e)
	}
	if !e.Resolved() {
		t.Error("edge not resolved")
	}
}

func TestAssembleSameModuleWinsOverImport(t *testing.T) {
	t.Parallel()

	modules := []*model.Module{
		mod("a.py", []string{"b"},
			model.Symbol{Name: "helper"},
			model.Symbol{Name: "run", Calls: []string{"helper"}},
		),
		mod("b.py", nil, model.Symbol{Name: "helper"}),
	}

	edges := Assemble(modules)
	if len(edges) != 1 {
		t.Fatalf("edges = %+v", edges)
	}
	if edges[0].Callee != "a.py:helper" {
		t.Errorf("callee = %q, want same-module symbol", edges[0].Callee)
	}
}

func TestAssembleUnresolvedKept(t *testing.T) {
	t.Parallel()

	modules := []*model.Module{
		mod("a.py", nil, model.Symbol{Name: "foo", Calls: []string{"json.loads"}}),
	}

	edges := Assemble(modules)
	if len(edges) != 1 {
		t.Fatalf("edges = %+v", edges)
	}
	e := edges[0]
	if e.Resolved() {
		t.Errorf("external call resolved: %+v", e)
	}
	if e.Raw != "json.loads" {
		t.Errorf("raw = %q", e.Raw)
	}
}

func TestAssembleAmbiguousGlobalUnresolved(t *testing.T) {
	t.Parallel()

	// "helper" is defined in two modules and neither is imported: the
	// edge stays unresolved rather than guessing.
	modules := []*model.Module{
		mod("a.py", nil, model.Symbol{Name: "run", Calls: []string{"helper"}}),
		mod("b.py", nil, model.Symbol{Name: "helper"}),
		mod("c.py", nil, model.Symbol{Name: "helper"}),
	}

	edges := Assemble(modules)
	if len(edges) != 1 {
		t.Fatalf("edges = %+v", edges)
	}
	if edges[0].Resolved() {
		t.Errorf("ambiguous call resolved: %+v", edges[0])
	}
}

func TestAssembleDeduplicates(t *testing.T) {
	t.Parallel()

	modules := []*model.Module{
		mod("a.py", nil,
			model.Symbol{Name: "bar"},
			model.Symbol{Name: "foo", Calls: []string{"bar", "bar", "bar"}},
		),
	}

	edges := Assemble(modules)
	if len(edges) != 1 {
		t.Errorf("duplicate edges kept: %+v", edges)
	}
}

func TestAssembleDeterministic(t *testing.T) {
	t.Parallel()

	modules := func() []*model.Module {
		return []*model.Module{
			mod("a.py", []string{"b"}, model.Symbol{Name: "foo", Calls: []string{"bar", "baz", "ext.call"}}),
			mod("b.py", nil, model.Symbol{Name: "bar"}, model.Symbol{Name: "baz"}),
		}
	}

	first := Assemble(modules())
	for i := 0; i < 10; i++ {
		if again := Assemble(modules()); !reflect.DeepEqual(first, again) {
			t.Fatalf("nondeterministic edges:\n%+v\n%+v", first, again)
		}
	}
}

func TestRankDeterministicAndOrdered(t *testing.T) {
	t.Parallel()

	build := func() ([]*model.Module, []model.CallEdge) {
		modules := []*model.Module{
			mod("a.py", []string{"util"}, model.Symbol{Name: "main", Calls: []string{"helper"}}),
			mod("b.py", []string{"util"}, model.Symbol{Name: "side", Calls: []string{"helper"}}),
			mod("util.py", nil, model.Symbol{Name: "helper"}),
		}
		return modules, Assemble(modules)
	}

	modules, edges := build()
	Rank(modules, edges)

	// util.py is referenced by both others and must rank highest.
	ranked := ByRank(modules)
	if ranked[0].Path != "util.py" {
		t.Errorf("top module = %q, want util.py", ranked[0].Path)
	}

	again, againEdges := build()
	Rank(again, againEdges)
	for i := range modules {
		if modules[i].Rank != again[i].Rank {
			t.Errorf("rank %s unstable: %v vs %v", modules[i].Path, modules[i].Rank, again[i].Rank)
		}
	}
}

func TestRankEmptyAndUniform(t *testing.T) {
	t.Parallel()

	Rank(nil, nil) // must not panic

	modules := []*model.Module{mod("a.py", nil), mod("b.py", nil)}
	Rank(modules, nil)
	if modules[0].Rank != modules[1].Rank {
		t.Errorf("ranks without edges differ: %v vs %v", modules[0].Rank, modules[1].Rank)
	}
}

func TestByRankTieBreaksByPath(t *testing.T) {
	t.Parallel()

	modules := []*model.Module{
		{ID: "b.py", Path: "b.py", Rank: 0.5},
		{ID: "a.py", Path: "a.py", Rank: 0.5},
	}
	ranked := ByRank(modules)
	if ranked[0].Path != "a.py" {
		t.Errorf("tie-break order = %q first", ranked[0].Path)
	}
	// Input order untouched.
	if modules[0].Path != "b.py" {
		t.Error("ByRank reordered its input")
	}
}

func TestModuleAliases(t *testing.T) {
	t.Parallel()

	got := moduleAliases("lib/util.py")
	want := []string{"lib.util", "util", "lib"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("moduleAliases = %v, want %v", got, want)
	}
}
