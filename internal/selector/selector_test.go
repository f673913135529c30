package selector

import (
	"errors"
	"strings"
	"testing"

	"github.com/kpblcaoo/structmap/internal/model"
)

// countTokens is the test counter: one token per whitespace-separated word.
func countTokens(s string) int {
	return len(strings.Fields(s))
}

func testIndex() *model.Index {
	ix := &model.Index{
		Repo: "demo",
		Modules: []*model.Module{
			{
				ID: "core.py", Path: "core.py", Language: "python", Rank: 0.5,
				Doc: "Core logic.",
				Functions: []model.Symbol{
					{ID: "core.py:run", Name: "run", Module: "core.py", StartLine: 1, EndLine: 4, Doc: "Runs it.", Exported: true, Calls: []string{"helper"}},
				},
			},
			{
				ID: "util.py", Path: "util.py", Language: "python", Rank: 0.3,
				Functions: []model.Symbol{
					{ID: "util.py:helper", Name: "helper", Module: "util.py", StartLine: 1, EndLine: 2, Exported: true},
				},
				Classes: []model.Class{
					{ID: "util.py:Box", Name: "Box", Exported: true, StartLine: 4, EndLine: 8},
				},
			},
			{
				ID: "extra.py", Path: "extra.py", Language: "python", Rank: 0.2,
				Functions: []model.Symbol{
					{ID: "extra.py:spare", Name: "spare", Module: "extra.py", StartLine: 1, EndLine: 2},
				},
			},
		},
		Folder: []model.FolderEntry{
			{Path: "core.py", Kind: model.KindFile},
			{Path: "extra.py", Kind: model.KindFile},
			{Path: "util.py", Kind: model.KindFile},
		},
		CallGraph: []model.CallEdge{
			{Caller: "core.py:run", Callee: "util.py:helper", Raw: "helper"},
		},
	}
	ix.ComputeStats()
	return ix
}

func TestSelectWithinBudget(t *testing.T) {
	t.Parallel()

	ix := testIndex()
	for _, name := range []string{"full-survey", "focused-edit", "minimal-lookup"} {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			for _, budget := range []int{300, 500, 2000} {
				p, err := Select(ix, Presets[name], budget, countTokens, Options{})
				if err != nil {
					t.Fatalf("Select(budget %d): %v", budget, err)
				}
				if p.Tokens > budget {
					t.Errorf("budget %d: payload tokens %d exceed budget", budget, p.Tokens)
				}
				if got := countTokens(p.Text); got > budget {
					t.Errorf("budget %d: recounted tokens %d exceed budget", budget, got)
				}
			}
		})
	}
}

func TestSelectBudgetTooSmall(t *testing.T) {
	t.Parallel()

	_, err := Select(testIndex(), Presets["full-survey"], 10, countTokens, Options{})
	if err == nil {
		t.Fatal("expected budget error")
	}
	var budgetErr *BudgetError
	if !errors.As(err, &budgetErr) {
		t.Fatalf("err = %T, want *BudgetError", err)
	}
	if budgetErr.Budget != 10 || budgetErr.Required <= 0 {
		t.Errorf("budget error = %+v", budgetErr)
	}
}

func TestSelectRejectsOversubscribedScenario(t *testing.T) {
	t.Parallel()

	scenario := Scenario{
		Name: "greedy",
		Tiers: []Share{
			{TierSummary, 0.9},
			{TierStructure, 0.9},
			{TierDetail, 0.9},
		},
	}
	if _, err := Select(testIndex(), scenario, 40, countTokens, Options{}); err == nil {
		t.Fatal("expected error for tier shares summing above 1")
	}
}

func TestSelectCountsSeparators(t *testing.T) {
	t.Parallel()

	// With a character-based counter the joiners between records and
	// sections carry weight too; recounting the final text must never land
	// above what Select reported.
	charCount := func(s string) int { return (len(s) + 3) / 4 }
	for _, budget := range []int{400, 1000, 4000} {
		p, err := Select(testIndex(), Presets["full-survey"], budget, charCount, Options{})
		if err != nil {
			t.Fatalf("Select(budget %d): %v", budget, err)
		}
		if got := charCount(p.Text); got > p.Tokens {
			t.Errorf("budget %d: recounted %d tokens, reported %d", budget, got, p.Tokens)
		}
		if p.Tokens > budget {
			t.Errorf("budget %d: reported tokens %d exceed budget", budget, p.Tokens)
		}
	}
}

func TestSelectTierOrderAndCoverage(t *testing.T) {
	t.Parallel()

	p, err := Select(testIndex(), Presets["full-survey"], 2000, countTokens, Options{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	wantTiers := []Tier{TierSummary, TierStructure, TierDetail, TierCallGraph}
	if len(p.Tiers) != len(wantTiers) {
		t.Fatalf("tiers = %+v", p.Tiers)
	}
	for i, want := range wantTiers {
		if p.Tiers[i].Tier != want {
			t.Errorf("tier %d = %q, want %q", i, p.Tiers[i].Tier, want)
		}
	}
	for _, tier := range p.Tiers {
		if !tier.Complete {
			t.Errorf("tier %s incomplete under a generous budget: %+v", tier.Tier, tier)
		}
	}

	// Modules enter in rank order: core.py before util.py in the text.
	iCore := strings.Index(p.Text, "core.py")
	iUtil := strings.Index(p.Text, "util.py")
	if iCore < 0 || iUtil < 0 || iCore > iUtil {
		t.Errorf("rank order not respected: core at %d, util at %d", iCore, iUtil)
	}
}

func TestSelectStrictTierCaps(t *testing.T) {
	t.Parallel()

	// A tight budget: the structure tier cannot take every module, and
	// its unused allotment must not spill into detail.
	scenario := Scenario{
		Name: "tight",
		Tiers: []Share{
			{TierSummary, 0.5},
			{TierStructure, 0.25},
			{TierDetail, 0.25},
		},
	}
	budget := 60
	p, err := Select(testIndex(), scenario, budget, countTokens, Options{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	for _, tier := range p.Tiers {
		if tier.Tokens > tier.Cap {
			t.Errorf("tier %s spent %d over cap %d", tier.Tier, tier.Tokens, tier.Cap)
		}
	}
	if p.Tokens > budget {
		t.Errorf("total %d over budget %d", p.Tokens, budget)
	}

	var truncated bool
	for _, tier := range p.Tiers {
		if !tier.Complete {
			truncated = true
		}
	}
	if !truncated {
		t.Error("expected at least one truncated tier under a tight budget")
	}
}

func TestSelectWholeModulesOnly(t *testing.T) {
	t.Parallel()

	p, err := Select(testIndex(), Presets["minimal-lookup"], 80, countTokens, Options{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	// Any module that appears in the structure tier appears with its full
	// symbol table; a module is never split mid-record.
	if strings.Contains(p.Text, "module: util.py") && !strings.Contains(p.Text, "Box") {
		t.Error("util.py record was split")
	}
}

func TestSelectDefaultCounter(t *testing.T) {
	t.Parallel()

	p, err := Select(testIndex(), Presets["minimal-lookup"], 4000, nil, Options{})
	if err != nil {
		t.Fatalf("Select with default counter: %v", err)
	}
	if p.Tokens <= 0 {
		t.Errorf("tokens = %d", p.Tokens)
	}
}
