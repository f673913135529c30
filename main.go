// structmap builds a normalized structural index of a source tree and emits
// a token-budgeted context payload for LLM consumption.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/kpblcaoo/structmap/internal/cache"
	"github.com/kpblcaoo/structmap/internal/exclude"
	"github.com/kpblcaoo/structmap/internal/index"
	"github.com/kpblcaoo/structmap/internal/lang"
	"github.com/kpblcaoo/structmap/internal/model"
	"github.com/kpblcaoo/structmap/internal/selector"
	"github.com/kpblcaoo/structmap/internal/snippet"
)

var version = "dev"

const defaultMaxFileSize = 1_000_000 // 1 MB

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "init" {
		return runInit(args[1:], stdout, stderr)
	}

	fs := flag.NewFlagSet("structmap", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		langs       string
		includes    string
		excludes    string
		cachePath   string
		maxFileSize int
		workers     int
		budget      int
		scenarioArg string
		searchTerm  string
		searchKind  string
		withSnips   bool
		invalidate  bool
		asJSON      bool
		showVersion bool
	)

	fs.StringVar(&langs, "l", "", "comma-separated languages to include")
	fs.StringVar(&langs, "langs", "", "comma-separated languages to include")
	fs.StringVar(&includes, "include", "", "comma-separated include globs (gate on files)")
	fs.StringVar(&excludes, "exclude", "", "comma-separated exclude globs")
	fs.StringVar(&cachePath, "cache", "", "cache file path")
	fs.IntVar(&maxFileSize, "max-file-size", defaultMaxFileSize, "skip files larger than this many bytes")
	fs.IntVar(&workers, "workers", 0, "analysis worker count (0 = number of CPUs)")
	fs.IntVar(&budget, "budget", 8000, "token budget for the context payload")
	fs.StringVar(&scenarioArg, "scenario", "full-survey", "selection scenario (full-survey, focused-edit, minimal-lookup)")
	fs.StringVar(&searchTerm, "search", "", "search the cached index instead of emitting a payload")
	fs.StringVar(&searchKind, "kind", "", "restrict -search to a kind (module, function, class)")
	fs.BoolVar(&withSnips, "snippets", false, "attach raw source snippets to detail records")
	fs.BoolVar(&invalidate, "invalidate", false, "drop the cache record before running")
	fs.BoolVar(&asJSON, "json", false, "emit the full index as JSON instead of a payload")
	fs.BoolVar(&showVersion, "V", false, "show version and exit")
	fs.BoolVar(&showVersion, "version", false, "show version and exit")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	if showVersion {
		_, _ = fmt.Fprintf(stdout, "structmap %s\n", version)
		return nil
	}

	root := "."
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", root)
	}

	var langFilter []string
	if langs != "" {
		for _, name := range strings.Split(langs, ",") {
			name = strings.TrimSpace(name)
			if _, ok := lang.Languages[name]; !ok {
				return fmt.Errorf("unsupported language %q (supported: %s)", name, strings.Join(lang.Names(), ", "))
			}
			langFilter = append(langFilter, name)
		}
	}

	filter, err := exclude.New(root, splitList(includes), splitList(excludes))
	if err != nil {
		return err
	}

	builder := &index.Builder{
		Root:        root,
		Filter:      filter,
		Workers:     workers,
		Languages:   langFilter,
		MaxFileSize: int64(maxFileSize),
		Warnf: func(format string, a ...any) {
			_, _ = fmt.Fprintf(stderr, format+"\n", a...)
		},
	}

	var (
		ix        *model.Index
		buildErrs []model.AnalysisError
	)
	if cachePath != "" {
		c := cache.New(root, cachePath, filter, builder)
		c.Logf = builder.Warnf
		c.Salt = fmt.Sprintf("langs=%s;max=%d", strings.Join(langFilter, ","), maxFileSize)
		if invalidate {
			c.Invalidate()
		}
		ix, buildErrs, err = c.GetOrBuild(ctx)
		if err != nil {
			return err
		}
		if searchTerm != "" {
			return printSearch(c, searchTerm, searchKind, stdout)
		}
	} else {
		if searchTerm != "" {
			return fmt.Errorf("-search requires -cache")
		}
		ix, buildErrs, err = builder.Build(ctx)
		if err != nil {
			return err
		}
	}

	// The build report: per-file failures alongside the usable index.
	for i := range buildErrs {
		_, _ = fmt.Fprintf(stderr, "Warning: failed to analyze %s: %s\n", buildErrs[i].Path, buildErrs[i].Message)
	}

	if asJSON {
		data, err := ix.Marshal()
		if err != nil {
			return err
		}
		_, _ = stdout.Write(append(data, '\n'))
		return nil
	}

	scenario, err := parseScenario(scenarioArg)
	if err != nil {
		return err
	}

	var opts selector.Options
	if withSnips {
		opts.Snippets, err = snippet.New(root, 128)
		if err != nil {
			return err
		}
	}

	payload, err := selector.Select(ix, scenario, budget, nil, opts)
	if err != nil {
		return err
	}
	for _, tier := range payload.Tiers {
		if !tier.Complete {
			_, _ = fmt.Fprintf(stderr, "Warning: tier %s truncated (%d of %d modules, %d/%d tokens)\n",
				tier.Tier, tier.Modules, ix.Stats.Modules, tier.Tokens, tier.Cap)
		}
	}

	_, _ = fmt.Fprintln(stdout, payload.Text)
	return nil
}

// parseScenario resolves a preset name, or parses a custom
// "tier:share,tier:share" definition.
func parseScenario(arg string) (selector.Scenario, error) {
	if s, ok := selector.Presets[arg]; ok {
		return s, nil
	}
	if !strings.Contains(arg, ":") {
		names := make([]string, 0, len(selector.Presets))
		for name := range selector.Presets {
			names = append(names, name)
		}
		return selector.Scenario{}, fmt.Errorf("unknown scenario %q (presets: %s)", arg, strings.Join(names, ", "))
	}

	s := selector.Scenario{Name: "custom"}
	for _, part := range strings.Split(arg, ",") {
		tier, shareStr, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return selector.Scenario{}, fmt.Errorf("bad scenario element %q: want tier:share", part)
		}
		var share float64
		if _, err := fmt.Sscanf(shareStr, "%f", &share); err != nil || share <= 0 || share > 1 {
			return selector.Scenario{}, fmt.Errorf("bad share %q in scenario element %q", shareStr, part)
		}
		s.Tiers = append(s.Tiers, selector.Share{Tier: selector.Tier(tier), Share: share})
	}
	return s, nil
}

func printSearch(c *cache.Cache, term, kind string, stdout io.Writer) error {
	results, err := c.Search(term, kind)
	if err != nil {
		if errors.Is(err, cache.ErrNoRecord) {
			return fmt.Errorf("no cache record yet; run a build first")
		}
		return err
	}
	enc := json.NewEncoder(stdout)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-l": true, "--l": true,
	"-langs": true, "--langs": true,
	"-include": true, "--include": true,
	"-exclude": true, "--exclude": true,
	"-cache": true, "--cache": true,
	"-max-file-size": true, "--max-file-size": true,
	"-workers": true, "--workers": true,
	"-budget": true, "--budget": true,
	"-scenario": true, "--scenario": true,
	"-search": true, "--search": true,
	"-kind": true, "--kind": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag package
// can parse them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
