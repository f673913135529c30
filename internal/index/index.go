// Package index builds the project-wide structural index: filtered
// traversal, parallel per-file analysis, then sequential aggregation.
package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kpblcaoo/structmap/internal/discover"
	"github.com/kpblcaoo/structmap/internal/exclude"
	"github.com/kpblcaoo/structmap/internal/graph"
	"github.com/kpblcaoo/structmap/internal/lang"
	"github.com/kpblcaoo/structmap/internal/model"
	"github.com/kpblcaoo/structmap/internal/parse"
)

// Builder builds one Index per call. The zero value is not usable; Root and
// Filter are required.
type Builder struct {
	Root   string
	Filter *exclude.Filter

	// Workers bounds the analysis pool; <= 0 means GOMAXPROCS.
	Workers int
	// Languages restricts analysis to the named languages when non-empty.
	Languages []string
	// MaxFileSize skips larger files from analysis; <= 0 means no cap.
	MaxFileSize int64
	// Warnf receives one line per recoverable event. Optional.
	Warnf func(format string, args ...any)
}

func (b *Builder) warnf(format string, args ...any) {
	if b.Warnf != nil {
		b.Warnf(format, args...)
	}
}

// Build traverses the filtered tree, analyzes every matched file, and
// aggregates the results. Per-file failures never abort the build; they come
// back in the error list alongside the Index. The returned error is non-nil
// only for traversal failure or cancellation.
func (b *Builder) Build(ctx context.Context) (*model.Index, []model.AnalysisError, error) {
	res, err := discover.Walk(b.Root, b.Filter, b.Languages, b.MaxFileSize)
	if err != nil {
		return nil, nil, err
	}
	for _, path := range res.Oversized {
		b.warnf("Warning: %s: skipped (>%d bytes)", path, b.MaxFileSize)
	}

	modules, errs, err := b.analyze(ctx, res.Files)
	if err != nil {
		return nil, nil, err
	}

	// Aggregation is a strictly sequential pass over the immutable module
	// set.
	ix := &model.Index{
		Repo:    filepath.Base(b.Root),
		Modules: modules,
		Folder:  res.Folder,
	}
	ix.SortModules()
	ix.CallGraph = graph.Assemble(ix.Modules)
	graph.Rank(ix.Modules, ix.CallGraph)
	ix.ComputeStats()

	sort.Slice(errs, func(i, j int) bool { return errs[i].Path < errs[j].Path })
	return ix, errs, nil
}

// analyze runs file analysis on a bounded worker pool. Each worker owns its
// analyzers because tree-sitter parsers are not safe for concurrent use.
// Cancellation is checked between file units.
func (b *Builder) analyze(ctx context.Context, files []discover.FileEntry) ([]*model.Module, []model.AnalysisError, error) {
	workers := b.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(files) {
		workers = len(files)
	}

	// Slot per file; each written by exactly one worker.
	modules := make([]*model.Module, len(files))
	analysisErrs := make([]*model.AnalysisError, len(files))

	work := make(chan int)
	g, ctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			analyzers := make(map[string]*parse.Analyzer)
			for idx := range work {
				if err := ctx.Err(); err != nil {
					return err
				}
				f := files[idx]

				a, ok := analyzers[f.Language]
				if !ok {
					a = parse.NewAnalyzer(lang.Languages[f.Language])
					analyzers[f.Language] = a
				}

				source, err := os.ReadFile(filepath.Join(b.Root, filepath.FromSlash(f.Path)))
				if err != nil {
					analysisErrs[idx] = &model.AnalysisError{Path: f.Path, Message: fmt.Sprintf("read: %v", err)}
					continue
				}

				m, aerr := a.Analyze(f.Path, source)
				if aerr != nil {
					analysisErrs[idx] = aerr
					continue
				}
				modules[idx] = m
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(work)
		for i := range files {
			select {
			case work <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("analysis cancelled: %w", err)
	}

	var kept []*model.Module
	var errs []model.AnalysisError
	for i := range files {
		if modules[i] != nil {
			kept = append(kept, modules[i])
		}
		if analysisErrs[i] != nil {
			errs = append(errs, *analysisErrs[i])
		}
	}
	return kept, errs, nil
}
