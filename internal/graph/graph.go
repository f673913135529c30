// Package graph assembles the global call graph from per-module raw call
// lists and ranks modules by centrality.
package graph

import (
	"math"
	"sort"
	"strings"

	"github.com/kpblcaoo/structmap/internal/model"
)

// resolver holds the lookup tables for one resolution pass.
type resolver struct {
	// byModule maps module ID → unqualified symbol name → symbol ID
	// (first declaration wins).
	byModule map[string]map[string]string
	// moduleAlias maps dotted/short names a module can be imported as →
	// module ID. Ambiguous aliases resolve to the lexicographically first
	// module, which keeps the pass deterministic.
	moduleAlias map[string]string
	// global maps unqualified name → symbol IDs across the whole index,
	// in module build order. Used as a last resort when a name is defined
	// exactly once.
	global map[string][]string
}

func newResolver(modules []*model.Module) *resolver {
	r := &resolver{
		byModule:    make(map[string]map[string]string, len(modules)),
		moduleAlias: make(map[string]string),
		global:      make(map[string][]string),
	}
	for _, m := range modules {
		names := make(map[string]string)
		for i := range m.Functions {
			s := &m.Functions[i]
			if _, dup := names[s.Name]; !dup {
				names[s.Name] = s.ID
			}
			r.global[s.Name] = append(r.global[s.Name], s.ID)
		}
		r.byModule[m.ID] = names

		for _, alias := range moduleAliases(m.Path) {
			if prev, ok := r.moduleAlias[alias]; !ok || m.ID < prev {
				r.moduleAlias[alias] = m.ID
			}
		}
	}
	return r
}

// moduleAliases lists the names a module may appear under in import
// statements: its dotted path without extension, its bare stem, and its
// directory ("lib/util.py" → "lib.util", "util", "lib").
func moduleAliases(path string) []string {
	ext := ""
	if i := strings.LastIndex(path, "."); i > 0 {
		ext = path[i:]
	}
	stem := strings.TrimSuffix(path, ext)
	dotted := strings.ReplaceAll(stem, "/", ".")

	aliases := []string{dotted}
	if i := strings.LastIndex(dotted, "."); i >= 0 {
		aliases = append(aliases, dotted[i+1:], dotted[:i])
	}
	return aliases
}

// importedModules returns the IDs of modules reachable through m's import
// list, in import order, deduplicated.
func (r *resolver) importedModules(m *model.Module) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, imp := range m.Imports {
		p := strings.TrimPrefix(imp.Path, "./")
		p = strings.ReplaceAll(p, "/", ".")
		// Try the full dotted path, then progressively shorter prefixes:
		// "from models import User" arrives as "models.User".
		for cand := p; cand != ""; {
			if id, ok := r.moduleAlias[cand]; ok && id != m.ID {
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					ids = append(ids, id)
				}
				break
			}
			i := strings.LastIndex(cand, ".")
			if i < 0 {
				break
			}
			cand = cand[:i]
		}
	}
	return ids
}

// resolve finds the symbol ID for a raw call name seen in module m:
// same-module match first, then modules reachable via imports, then a
// unique index-wide definition. Ambiguous or unknown names stay unresolved;
// dynamic dispatch is not guessed at.
func (r *resolver) resolve(m *model.Module, raw string) string {
	name := model.Unqualified(raw)
	if id, ok := r.byModule[m.ID][name]; ok {
		return id
	}
	for _, modID := range r.importedModules(m) {
		if id, ok := r.byModule[modID][name]; ok {
			return id
		}
	}
	if ids := r.global[name]; len(ids) == 1 {
		return ids[0]
	}
	return ""
}

// Assemble builds the deduplicated, sorted call-edge set for an index. It is
// a strictly sequential pass over the completed, immutable module set; every
// raw call keeps an edge whether or not it resolves.
func Assemble(modules []*model.Module) []model.CallEdge {
	r := newResolver(modules)

	type edgeKey struct{ caller, target string }
	seen := make(map[edgeKey]struct{})
	var edges []model.CallEdge

	for _, m := range modules {
		for i := range m.Functions {
			sym := &m.Functions[i]
			for _, raw := range sym.Calls {
				callee := r.resolve(m, raw)
				target := callee
				if target == "" {
					target = raw
				}
				key := edgeKey{sym.ID, target}
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				edges = append(edges, model.CallEdge{Caller: sym.ID, Callee: callee, Raw: raw})
			}
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Caller != edges[j].Caller {
			return edges[i].Caller < edges[j].Caller
		}
		if edges[i].Callee != edges[j].Callee {
			return edges[i].Callee < edges[j].Callee
		}
		return edges[i].Raw < edges[j].Raw
	})
	return edges
}

// Rank computes PageRank over module-level dependencies (resolved
// cross-module call edges plus imports) and stores the score on each module.
// The iteration order is fully index-based, so repeated runs over the same
// input produce identical ranks.
func Rank(modules []*model.Module, edges []model.CallEdge) {
	n := len(modules)
	if n == 0 {
		return
	}

	pos := make(map[string]int, n) // module ID → index
	for i, m := range modules {
		pos[m.ID] = i
	}
	symToModule := make(map[string]int)
	for i, m := range modules {
		for j := range m.Functions {
			symToModule[m.Functions[j].ID] = i
		}
	}

	r := newResolver(modules)

	// out[i] lists target module indexes, with repeats for multi-edges.
	out := make([][]int, n)
	addEdge := func(src, tgt int) {
		if src != tgt {
			out[src] = append(out[src], tgt)
		}
	}
	for _, e := range edges {
		if !e.Resolved() {
			continue
		}
		src, ok := symToModule[e.Caller]
		if !ok {
			continue
		}
		if tgt, ok := symToModule[e.Callee]; ok {
			addEdge(src, tgt)
		}
	}
	for i, m := range modules {
		for _, impID := range r.importedModules(m) {
			addEdge(i, pos[impID])
		}
	}

	ranks := pageRank(out, n, 0.85, 100, 1e-6)
	for i, m := range modules {
		m.Rank = ranks[i]
	}
}

// ByRank returns the modules ordered by rank descending, path ascending for
// ties. The input slice is not reordered.
func ByRank(modules []*model.Module) []*model.Module {
	sorted := append([]*model.Module{}, modules...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Rank != sorted[j].Rank {
			return sorted[i].Rank > sorted[j].Rank
		}
		return sorted[i].Path < sorted[j].Path
	})
	return sorted
}

func pageRank(out [][]int, n int, alpha float64, maxIter int, tol float64) []float64 {
	rank := make([]float64, n)
	initial := 1.0 / float64(n)
	for i := range rank {
		rank[i] = initial
	}
	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		next := make([]float64, n)

		var danglingSum float64
		for i := range rank {
			if len(out[i]) == 0 {
				danglingSum += rank[i]
			}
		}
		base := teleport + alpha*danglingSum/float64(n)
		for i := range next {
			next[i] = base
		}

		for src, targets := range out {
			if len(targets) == 0 {
				continue
			}
			contrib := alpha * rank[src] / float64(len(targets))
			for _, tgt := range targets {
				next[tgt] += contrib
			}
		}

		var diff float64
		for i := range rank {
			diff += math.Abs(next[i] - rank[i])
		}
		rank = next
		if diff < tol {
			break
		}
	}
	return rank
}
