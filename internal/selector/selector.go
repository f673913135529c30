// Package selector extracts a token-budgeted subset of an index as the
// context payload for an LLM. Scenarios order inclusion tiers with strict
// per-tier token caps; modules enter a tier whole, in rank order, and an
// exhausted tier never borrows from another.
package selector

import (
	"fmt"
	"strings"

	"github.com/kpblcaoo/structmap/internal/graph"
	"github.com/kpblcaoo/structmap/internal/model"
	"github.com/kpblcaoo/structmap/internal/render"
	"github.com/kpblcaoo/structmap/internal/snippet"
)

// Tier names the inclusion tiers, highest priority first in every preset.
type Tier string

const (
	TierSummary   Tier = "summary"   // project stats + folder skeleton
	TierStructure Tier = "structure" // module/symbol listing
	TierDetail    Tier = "detail"    // signatures and doc text
	TierCallGraph Tier = "callgraph" // call-graph extras
)

// Share is one tier with its fraction of the total budget. Shares in a
// scenario should sum to at most 1.
type Share struct {
	Tier  Tier
	Share float64
}

// Scenario is a named ordered tier list. Callers may pass custom scenarios;
// Presets covers the common ones.
type Scenario struct {
	Name  string
	Tiers []Share
}

// Presets are the built-in scenarios.
var Presets = map[string]Scenario{
	"full-survey": {
		Name: "full-survey",
		Tiers: []Share{
			{TierSummary, 0.15},
			{TierStructure, 0.30},
			{TierDetail, 0.40},
			{TierCallGraph, 0.15},
		},
	},
	"focused-edit": {
		Name: "focused-edit",
		Tiers: []Share{
			{TierSummary, 0.10},
			{TierDetail, 0.60},
			{TierStructure, 0.30},
		},
	},
	"minimal-lookup": {
		Name: "minimal-lookup",
		Tiers: []Share{
			{TierSummary, 0.40},
			{TierStructure, 0.60},
		},
	},
}

// TokenCounter measures serialized text; supplied by the caller to match
// whatever model the payload feeds.
type TokenCounter func(text string) int

// BudgetError reports a budget too small for the essential tier.
type BudgetError struct {
	Budget   int
	Required int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("token budget %d too small: essential summary needs %d", e.Budget, e.Required)
}

// TierCoverage reports how one tier fared, so callers can detect degraded
// coverage.
type TierCoverage struct {
	Tier     Tier
	Tokens   int
	Cap      int
	Modules  int
	Complete bool
}

// Payload is the bounded selection result.
type Payload struct {
	Scenario string
	Text     string
	Tokens   int
	Tiers    []TierCoverage
}

// Options tune selection beyond the scenario.
type Options struct {
	// Snippets, when set, appends the raw source of each module's first
	// symbol to its detail record before the record is measured.
	Snippets *snippet.Extractor
}

// Select builds the payload for one scenario within budget tokens. Modules
// are taken whole, best-ranked first; a module that would overflow its
// tier's cap ends that tier. If even the essential summary exceeds its cap,
// the call fails with *BudgetError and leaves nothing behind.
func Select(ix *model.Index, scenario Scenario, budget int, count TokenCounter, opts Options) (*Payload, error) {
	if count == nil {
		count = func(s string) int { return (len(s) + 3) / 4 }
	}

	var shareSum float64
	for _, share := range scenario.Tiers {
		shareSum += share.Share
	}
	if shareSum > 1+1e-9 {
		return nil, fmt.Errorf("scenario %s: tier shares sum to %.2f, above 1", scenario.Name, shareSum)
	}

	ranked := graph.ByRank(ix.Modules)
	payload := &Payload{Scenario: scenario.Name}
	var sections []string

	for _, share := range scenario.Tiers {
		allot := int(share.Share * float64(budget))
		cov := TierCoverage{Tier: share.Tier, Cap: allot, Complete: true}

		// Separators are counted with what they precede, so Tokens never
		// undercounts the final joined text.
		sep := ""
		if len(sections) > 0 {
			sep = "\n\n"
		}
		header := fmt.Sprintf("== %s ==", share.Tier)
		spent := count(sep + header)
		parts := []string{header}

		if share.Tier == TierSummary {
			text := render.Summary(ix)
			need := spent + count("\n"+text)
			if need > allot {
				return nil, &BudgetError{Budget: budget, Required: need}
			}
			parts = append(parts, text)
			spent = need
		} else {
			for _, m := range ranked {
				record := renderRecord(share.Tier, m, ix, opts)
				if record == "" {
					continue
				}
				t := count("\n" + record)
				if spent+t > allot {
					cov.Complete = false
					break
				}
				parts = append(parts, record)
				spent += t
				cov.Modules++
			}
		}

		// Strict caps: whatever this tier left unspent is gone, it never
		// rolls over to a lower tier.
		if len(parts) > 1 {
			sections = append(sections, strings.Join(parts, "\n"))
			cov.Tokens = spent
			payload.Tokens += spent
		}
		payload.Tiers = append(payload.Tiers, cov)
	}

	payload.Text = strings.Join(sections, "\n\n")
	return payload, nil
}

func renderRecord(tier Tier, m *model.Module, ix *model.Index, opts Options) string {
	switch tier {
	case TierStructure:
		if len(m.Functions) == 0 && len(m.Classes) == 0 {
			return ""
		}
		return render.ModuleStructure(m)
	case TierDetail:
		text := render.ModuleDetail(m)
		if opts.Snippets != nil && len(m.Functions) > 0 {
			s := &m.Functions[0]
			if raw, err := opts.Snippets.Lines(m.Path, s.StartLine, s.EndLine); err == nil {
				text += "\n" + render.Snippet(m.Path, s.StartLine, raw)
			}
		}
		return text
	case TierCallGraph:
		hasEdge := false
		prefix := m.ID + ":"
		for i := range ix.CallGraph {
			if strings.HasPrefix(ix.CallGraph[i].Caller, prefix) {
				hasEdge = true
				break
			}
		}
		if !hasEdge {
			return ""
		}
		return render.ModuleCalls(m, ix.CallGraph)
	}
	return ""
}
