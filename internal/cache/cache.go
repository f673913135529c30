// Package cache persists a built index and its source fingerprint so an
// unchanged tree never re-parses. One Cache serves one root/filter pair;
// multiple caches coexist in a process.
package cache

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hbollon/go-edlib"
	"golang.org/x/sync/singleflight"

	"github.com/kpblcaoo/structmap/internal/discover"
	"github.com/kpblcaoo/structmap/internal/exclude"
	"github.com/kpblcaoo/structmap/internal/model"
)

// ErrNoRecord is returned by read-only operations before any build has
// produced a record.
var ErrNoRecord = errors.New("cache: no record")

// Builder produces a fresh index; satisfied by *index.Builder.
type Builder interface {
	Build(ctx context.Context) (*model.Index, []model.AnalysisError, error)
}

// Header is the small on-disk preamble stored as the first line of the
// record, so fingerprint checks, Stats, and the build report never parse the
// full document.
type Header struct {
	Fingerprint string                `json:"fingerprint"`
	BuiltAt     time.Time             `json:"built_at"`
	Stats       model.Stats           `json:"stats"`
	Errors      []model.AnalysisError `json:"errors,omitempty"`
}

// record is one immutable last-good cache state. A rebuild swaps the whole
// record; nothing is patched in place.
type record struct {
	header Header
	index  *model.Index
	names  []nameEntry
}

// Cache is the explicit cache object: construct with a root and filter,
// call methods, drop it.
type Cache struct {
	root    string
	path    string
	filter  *exclude.Filter
	builder Builder

	// Logf receives one line per recoverable event (corrupt record)
	Logf func(format string, args ...any)

	// Salt is folded into the fingerprint. Callers set it to any build
	// configuration (language filter, size cap) that changes index contents
	// without changing file contents.
	Salt string

	mu    sync.RWMutex
	rec   *record
	group singleflight.Group
}

// New creates a cache persisting to path for the tree at root.
func New(root, path string, filter *exclude.Filter, builder Builder) *Cache {
	return &Cache{root: root, path: path, filter: filter, builder: builder}
}

func (c *Cache) logf(format string, args ...any) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}

// Fingerprint hashes the filter configuration plus the sorted (path,
// content hash) pairs of every file the filter admits. Any content change,
// added/removed file, or filter change produces a different value.
func (c *Cache) Fingerprint() (string, error) {
	res, err := discover.Walk(c.root, c.filter, nil, 0)
	if err != nil {
		return "", fmt.Errorf("fingerprinting %s: %w", c.root, err)
	}

	h := xxhash.New()
	_, _ = h.WriteString(c.filter.Signature())
	_, _ = h.WriteString("\x00" + c.Salt + "\x00")
	for _, entry := range res.Folder {
		if entry.Kind != model.KindFile {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.root, filepath.FromSlash(entry.Path)))
		if err != nil {
			// Vanished between walk and read: fold the path in alone so
			// the fingerprint still changes against a tree that has it.
			_, _ = h.WriteString(entry.Path + "=gone\n")
			continue
		}
		fmt.Fprintf(h, "%s=%016x\n", entry.Path, xxhash.Sum64(data))
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// GetOrBuild returns the current index, reusing the persisted record when
// its fingerprint matches the live tree and rebuilding otherwise. Concurrent
// calls during a rebuild collapse to one build; read-only callers of Stats
// and Search keep getting the last-good record meanwhile.
func (c *Cache) GetOrBuild(ctx context.Context) (*model.Index, []model.AnalysisError, error) {
	fp, err := c.Fingerprint()
	if err != nil {
		return nil, nil, err
	}

	c.mu.RLock()
	rec := c.rec
	c.mu.RUnlock()
	if rec != nil && rec.header.Fingerprint == fp {
		return rec.index, rec.header.Errors, nil
	}

	if rec := c.loadDisk(fp); rec != nil {
		c.swap(rec)
		return rec.index, rec.header.Errors, nil
	}

	v, err, _ := c.group.Do(fp, func() (any, error) {
		ix, buildErrs, err := c.builder.Build(ctx)
		if err != nil {
			return nil, err
		}
		rec := &record{
			header: Header{Fingerprint: fp, BuiltAt: time.Now().UTC(), Stats: ix.Stats, Errors: buildErrs},
			index:  ix,
			names:  buildNameIndex(ix),
		}
		if err := c.persist(rec); err != nil {
			return nil, err
		}
		c.swap(rec)
		return rec, nil
	})
	if err != nil {
		return nil, nil, err
	}
	rec = v.(*record)
	return rec.index, rec.header.Errors, nil
}

// Invalidate drops the in-memory and persisted record so the next call
// rebuilds.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.rec = nil
	c.mu.Unlock()
	_ = os.Remove(c.path)
}

// Stats returns the last-good aggregate counts without deserializing the
// full index: from memory when loaded, else from the on-disk header line.
func (c *Cache) Stats() (model.Stats, error) {
	c.mu.RLock()
	rec := c.rec
	c.mu.RUnlock()
	if rec != nil {
		return rec.header.Stats, nil
	}

	h, err := c.readHeader()
	if err != nil {
		return model.Stats{}, err
	}
	return h.Stats, nil
}

// swap publishes a new record. Only this step takes the exclusive section;
// the rebuild itself runs outside it.
func (c *Cache) swap(rec *record) {
	c.mu.Lock()
	c.rec = rec
	c.mu.Unlock()
}

// persist writes header line + index document to a temp file, then renames
// it over the record path so concurrent readers never see a partial record.
func (c *Cache) persist(rec *record) error {
	headerLine, err := json.Marshal(rec.header)
	if err != nil {
		return fmt.Errorf("encoding cache header: %w", err)
	}
	body, err := rec.index.Marshal()
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, ".structmap-cache-*")
	if err != nil {
		return fmt.Errorf("creating temp record: %w", err)
	}
	defer os.Remove(tmp.Name())

	var buf bytes.Buffer
	buf.Write(headerLine)
	buf.WriteByte('\n')
	buf.Write(body)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replacing record: %w", err)
	}
	return nil
}

// loadDisk reads the persisted record when its fingerprint matches fp.
// Any corruption is a logged cache miss, never an error.
func (c *Cache) loadDisk(fp string) *record {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil
	}
	nl := bytes.IndexByte(data, '\n')
	if nl < 0 {
		c.logf("Warning: corrupt cache record %s: missing header", c.path)
		return nil
	}

	var h Header
	if err := json.Unmarshal(data[:nl], &h); err != nil {
		c.logf("Warning: corrupt cache record %s: %v", c.path, err)
		return nil
	}
	if h.Fingerprint != fp {
		return nil
	}

	ix, err := model.UnmarshalIndex(data[nl+1:])
	if err != nil {
		c.logf("Warning: corrupt cache record %s: %v", c.path, err)
		return nil
	}
	return &record{header: h, index: ix, names: buildNameIndex(ix)}
}

func (c *Cache) readHeader() (Header, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Header{}, ErrNoRecord
		}
		return Header{}, err
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil {
		return Header{}, ErrNoRecord
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		c.logf("Warning: corrupt cache record %s: %v", c.path, err)
		return Header{}, ErrNoRecord
	}
	return h, nil
}

// Search kinds.
const (
	KindAny      = ""
	KindModule   = "module"
	KindFunction = "function"
	KindClass    = "class"
)

// SearchResult is one name-index hit.
type SearchResult struct {
	Name   string
	Kind   string
	ID     string
	Module string
}

type nameEntry struct {
	lower  string
	result SearchResult
}

// fuzzyThreshold is the minimum Levenshtein similarity for the near-miss
// fallback when a term has no substring match.
const fuzzyThreshold = 0.7

// Search does case-insensitive substring matching over module, function,
// and class names, optionally restricted by kind. The name index is built
// once at record load; results keep insertion (module build) order. When
// nothing matches, near-miss names within the fuzzy threshold are returned
// instead, so a typo still lands.
func (c *Cache) Search(term, kind string) ([]SearchResult, error) {
	c.mu.RLock()
	rec := c.rec
	c.mu.RUnlock()
	if rec == nil {
		return nil, ErrNoRecord
	}

	lower := strings.ToLower(term)
	var out []SearchResult
	for i := range rec.names {
		e := &rec.names[i]
		if kind != KindAny && e.result.Kind != kind {
			continue
		}
		if strings.Contains(e.lower, lower) {
			out = append(out, e.result)
		}
	}
	if len(out) > 0 {
		return out, nil
	}

	type scored struct {
		result SearchResult
		score  float64
		order  int
	}
	var near []scored
	for i := range rec.names {
		e := &rec.names[i]
		if kind != KindAny && e.result.Kind != kind {
			continue
		}
		if s := similarity(lower, e.lower); s >= fuzzyThreshold {
			near = append(near, scored{e.result, s, i})
		}
	}
	sort.Slice(near, func(i, j int) bool {
		if near[i].score != near[j].score {
			return near[i].score > near[j].score
		}
		return near[i].order < near[j].order
	})
	for _, s := range near {
		out = append(out, s.result)
	}
	return out, nil
}

// similarity is Levenshtein similarity in [0,1]; errors from the library
// count as no match.
func similarity(a, b string) float64 {
	s, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		return 0
	}
	return float64(s)
}

// buildNameIndex flattens searchable names in module build order.
func buildNameIndex(ix *model.Index) []nameEntry {
	var names []nameEntry
	add := func(name, kind, id, module string) {
		names = append(names, nameEntry{
			lower:  strings.ToLower(name),
			result: SearchResult{Name: name, Kind: kind, ID: id, Module: module},
		})
	}
	for _, m := range ix.Modules {
		add(m.Path, KindModule, m.ID, m.ID)
		for i := range m.Functions {
			s := &m.Functions[i]
			add(s.QualifiedName(), KindFunction, s.ID, m.ID)
		}
		for i := range m.Classes {
			cl := &m.Classes[i]
			add(cl.Name, KindClass, cl.ID, m.ID)
		}
	}
	return names
}
