package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestApplySection(t *testing.T) {
	t.Parallel()

	section := sentinelStart + "\nnew content\n" + sentinelEnd

	t.Run("empty content", func(t *testing.T) {
		t.Parallel()
		got := applySection("", section)
		if !strings.Contains(got, sentinelStart) || !strings.Contains(got, sentinelEnd) {
			t.Errorf("missing sentinels:\n%s", got)
		}
		if !strings.Contains(got, "new content") {
			t.Error("missing body")
		}
	})

	t.Run("append after existing", func(t *testing.T) {
		t.Parallel()
		existing := "# My Project\n\nSome existing content.\n"
		got := applySection(existing, section)
		if !strings.HasPrefix(got, existing) {
			t.Errorf("existing content should be preserved at start:\n%s", got)
		}
		if !strings.Contains(got, "new content") {
			t.Error("new content missing")
		}
	})

	t.Run("replace sentinel block", func(t *testing.T) {
		t.Parallel()
		before := "# Project\n\n"
		after := "\n\n## Other Section\n"
		old := before + sentinelStart + "\nold content\n" + sentinelEnd + after

		got := applySection(old, section)
		if !strings.HasPrefix(got, before) {
			t.Errorf("content before sentinel should be preserved:\n%s", got)
		}
		if !strings.HasSuffix(got, after) {
			t.Errorf("content after sentinel should be preserved:\n%s", got)
		}
		if strings.Contains(got, "old content") {
			t.Error("old content should be replaced")
		}
	})
}

func TestInitCreatesFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "CLAUDE.md")

	var stdout, stderr bytes.Buffer
	if err := runInit([]string{path}, &stdout, &stderr); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("file not created: %v", err)
	}
	if !strings.Contains(string(data), sentinelStart) || !strings.Contains(string(data), sentinelEnd) {
		t.Errorf("created file missing sentinels:\n%s", data)
	}
}

func TestInitDryRun(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "CLAUDE.md")

	existing := "# My Project\n\nSome existing content.\n"
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := runInit([]string{"--dry-run", path}, &stdout, &stderr); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "# My Project") {
		t.Error("dry-run output missing existing file content")
	}
	if !strings.Contains(out, sentinelStart) {
		t.Error("dry-run output missing sentinel start")
	}
	data, _ := os.ReadFile(path)
	if string(data) != existing {
		t.Error("--dry-run must not modify the file")
	}
}

func TestInitDryRunNoPath(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if err := runInit([]string{"--dry-run"}, &stdout, &stderr); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	out := stdout.String()
	if !strings.HasPrefix(out, sentinelStart) {
		t.Errorf("expected just the section, got:\n%s", out)
	}
}

func TestInitIdempotent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "CLAUDE.md")

	var buf bytes.Buffer
	if err := runInit([]string{path}, &buf, &buf); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, _ := os.ReadFile(path)

	if err := runInit([]string{path}, &buf, &buf); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, _ := os.ReadFile(path)

	if string(first) != string(second) {
		t.Errorf("init is not idempotent:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestInitSectionContent(t *testing.T) {
	t.Parallel()
	section := generateSection()

	for _, want := range []string{
		"structmap",
		"--help",
		"-scenario",
		"--cache",
		".structmap-cache",
		"-search",
	} {
		if !strings.Contains(section, want) {
			t.Errorf("generated section missing %q", want)
		}
	}
}
