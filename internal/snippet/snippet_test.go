package snippet

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "src/a.py", "def foo():\n    return 1\n\ndef bar():\n    return 2\n")

	e, err := New(dir, 4)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		start, end int
		want       string
	}{
		{"single line", 1, 1, "def foo():"},
		{"span", 1, 2, "def foo():\n    return 1"},
		{"clamp start", 0, 1, "def foo():"},
		{"clamp end", 4, 99, "def bar():\n    return 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Lines("src/a.py", tt.start, tt.end)
			if err != nil {
				t.Fatalf("Lines(%d, %d): %v", tt.start, tt.end, err)
			}
			if got != tt.want {
				t.Errorf("Lines(%d, %d) = %q, want %q", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestLinesEmptySpan(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.py", "one\n")

	e, err := New(dir, 4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Lines("a.py", 5, 9); err == nil {
		t.Error("expected error for span past end of file")
	}
}

func TestLinesMissingFile(t *testing.T) {
	t.Parallel()

	e, err := New(t.TempDir(), 4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Lines("nope.py", 1, 1); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLinesCachesContents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.py", "old\n")

	e, err := New(dir, 4)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := e.Lines("a.py", 1, 1); got != "old" {
		t.Fatalf("first read = %q", got)
	}

	// The cached contents win over a rewrite until eviction.
	writeFile(t, dir, "a.py", "new\n")
	if got, _ := e.Lines("a.py", 1, 1); got != "old" {
		t.Errorf("cached read = %q, want %q", got, "old")
	}
}

func TestLinesEviction(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.py", "old\n")
	writeFile(t, dir, "b.py", "b\n")
	writeFile(t, dir, "c.py", "c\n")

	e, err := New(dir, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Lines("a.py", 1, 1); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "a.py", "new\n")

	// Two newer entries push a.py out of a size-2 cache.
	if _, err := e.Lines("b.py", 1, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Lines("c.py", 1, 1); err != nil {
		t.Fatal(err)
	}
	if got, _ := e.Lines("a.py", 1, 1); got != "new" {
		t.Errorf("post-eviction read = %q, want %q", got, "new")
	}
}
