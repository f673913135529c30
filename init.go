package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	sentinelStart = "<!-- structmap:start -->"
	sentinelEnd   = "<!-- structmap:end -->"
)

// runInit implements the `structmap init` subcommand, which writes (or
// updates) a structmap usage section in a CLAUDE.md file.
func runInit(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("structmap init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var dryRun bool
	fs.BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: structmap init [flags] [path-to-CLAUDE.md]

Write a structmap usage section to a CLAUDE.md file. The section is wrapped in
sentinel comments so it can be updated in place on subsequent runs without
touching surrounding content. Creates the file if it does not exist.

path-to-CLAUDE.md defaults to ./CLAUDE.md.

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	section := generateSection()

	// --dry-run with no path: just print the section itself.
	if dryRun && fs.NArg() == 0 {
		_, _ = fmt.Fprintln(stdout, section)
		return nil
	}

	path := "CLAUDE.md"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	existing, _ := os.ReadFile(path)
	updated := applySection(string(existing), section)

	if dryRun {
		_, _ = fmt.Fprint(stdout, updated)
		return nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote structmap section to %s\n", path)
	return nil
}

// generateSection returns the full sentinel-wrapped structmap documentation block.
func generateSection() string {
	body := `## structmap — Structural Codebase Index

Run ` + "`structmap`" + ` via the Bash tool at the start of any task on an unfamiliar
codebase. It emits a tiered, token-budgeted index of modules, symbols, and
call relationships that replaces broad initial exploration.

**Availability:** Check with ` + "`structmap --version`" + ` first; skip gracefully if
not found.

**Run it:**
` + "```" + `bash
structmap                                    # current directory, full-survey
structmap /path/to/repo                      # explicit path
structmap -scenario minimal-lookup           # cheapest overview
structmap -budget 4000                       # tighter token budget
structmap -l go,python                       # restrict languages
structmap --cache .structmap-cache           # cache the index (fast repeats)
structmap --cache .structmap-cache -search Foo -kind class
` + "```" + `

**Caching:** Use ` + "`--cache <file>`" + ` to avoid re-parsing on every call — the
record is reused until any included file changes. Add the cache file to
` + "`.gitignore`" + `. A conventional path is ` + "`.structmap-cache`" + `.

**All flags:** ` + "`structmap --help`" + `

**How to use the output — follow these rules:**

1. **Start from the summary tier.** It holds the stats and the filtered
   folder tree; read it before listing directories yourself.

2. **Use the structure and detail tiers instead of Grep to find
   definitions.** Every function, class, and method is listed with file,
   line, and signature, best-ranked modules first.

3. **Use the callgraph tier to trace call chains.** Before reading a file to
   understand what it calls, check its resolved call edges there.

4. **Use ` + "`-search`" + ` for point lookups.** With a warm cache it answers name
   queries without re-parsing anything.`

	return sentinelStart + "\n" + body + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	// Append, ensuring a blank line separator.
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
