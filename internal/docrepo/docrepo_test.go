package docrepo

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeDoc(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestFSResolveFallsBackToDocsDir(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "docs/guide.md", "# Guide\n")
	writeDoc(t, root, "top.md", "# Top\n")
	repo := NewFS(root, "docs")

	for _, name := range []string{"docs/guide.md", "guide.md", "top.md"} {
		if _, err := repo.Resolve(name); err != nil {
			t.Fatalf("Resolve(%q) error = %v", name, err)
		}
	}

	_, err := repo.Resolve("missing.md")
	if !errors.Is(err, ErrDocumentMissing) || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Resolve(missing) error = %v", err)
	}
}

func TestFSWriteReplacesExistingOnly(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "docs/a.md", "old\r\n")
	repo := NewFS(root, "docs")

	if err := repo.Write("a.md", "new\r\n"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := repo.Read("docs/a.md")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != "new\r\n" {
		t.Fatalf("Read() = %q", got)
	}

	if err := repo.Write("b.md", "x"); !errors.Is(err, ErrDocumentMissing) {
		t.Fatalf("Write(missing) error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "b.md")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("Write must not create documents")
	}
}

func TestGitWriteCommitsAndHistory(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "docs/a.md", "# A\n")
	writeDoc(t, root, "docs/b.md", "# B\n")
	repo := NewGit(root, "docs", "Avery Writer")
	if err := repo.EnsureRepo(); err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}
	if err := repo.EnsureRepo(); err != nil {
		t.Fatalf("second EnsureRepo() error = %v", err)
	}

	if err := repo.Write("a.md", "# A\n\n![x](./picture/x.png)\n"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	commit, err := repo.WriteAndCommit("b.md", "# B\n\nmore\n", "Edit b")
	if err != nil {
		t.Fatalf("WriteAndCommit() error = %v", err)
	}
	if len(commit.Hash) != 7 || commit.Author != "Avery Writer" {
		t.Fatalf("unexpected commit: %+v", commit)
	}

	history, err := repo.History("a.md", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("History() len = %d, want 1", len(history))
	}
	if !strings.Contains(history[0].Message, "a.md") {
		t.Fatalf("unexpected message %q", history[0].Message)
	}

	got, err := repo.Read("a.md")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !strings.Contains(got, "![x](./picture/x.png)") {
		t.Fatalf("Read() = %q", got)
	}
}

func TestSanitizeEmail(t *testing.T) {
	if got := sanitizeEmail("Avery Writer"); got != "Avery.Writer" {
		t.Fatalf("sanitizeEmail() = %q", got)
	}
	if got := sanitizeEmail("!!"); got != "user" {
		t.Fatalf("sanitizeEmail() = %q", got)
	}
}
