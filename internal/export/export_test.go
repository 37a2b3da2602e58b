package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/komiyamma/imageplan/internal/ledger"
)

func TestPromptFileName(t *testing.T) {
	tests := map[string]string{
		"cnt_diagram.png":   "cnt_diagram.txt",
		"photo.JPG":         "photo.txt",
		"noext":             "noext.txt",
		"./picture/fig.png": "fig.txt",
	}
	for in, want := range tests {
		if got := PromptFileName(in); got != want {
			t.Fatalf("PromptFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGeneratePrompts(t *testing.T) {
	dir := t.TempDir()
	sink := NewFSSink(dir)
	if err := os.WriteFile(filepath.Join(dir, "old.txt"), []byte("keep"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	entries := []ledger.Entry{
		{ID: 1, ImageName: "new.png", PayloadText: "line one\nline | two"},
		{ID: 2, ImageName: "old.png", PayloadText: "ignored"},
		{ID: 3, ImageName: "empty.png"},
	}
	report, err := GeneratePrompts(context.Background(), entries, "Style: flat\n{{INSERT}}\nEnd\n", sink)
	if err != nil {
		t.Fatalf("GeneratePrompts() error = %v", err)
	}
	want := Report{Written: []string{"new.txt"}, Skipped: []string{"old.txt"}}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Fatalf("GeneratePrompts() mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(filepath.Join(dir, "new.txt"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "Style: flat\nline one\nline | two\nEnd\n" {
		t.Fatalf("prompt = %q", data)
	}
	if kept, _ := os.ReadFile(filepath.Join(dir, "old.txt")); string(kept) != "keep" {
		t.Fatal("existing prompt was overwritten")
	}
}

func TestPublishSplit(t *testing.T) {
	text := ledger.HeaderLine + "\n" + ledger.SeparatorLine + "\n" +
		"| 1 | intro_cs_a.md | a.png | ./picture/a.png | p | x |\n" +
		"| 2 | misc.md | b.png | ./picture/b.png | p | x |\n" +
		"| 3 | intro_cs_b.md | c.png | ./picture/c.png | p | x |\n"
	dir := t.TempDir()
	report, err := PublishSplit(context.Background(), ledger.Parse(text), ledger.DefaultFamilyPattern, NewFSSink(dir))
	if err != nil {
		t.Fatalf("PublishSplit() error = %v", err)
	}
	if diff := cmp.Diff([]string{"image_generation_plan.intro_cs.md"}, report.Written); diff != "" {
		t.Fatalf("Written mismatch (-want +got):\n%s", diff)
	}
	data, err := os.ReadFile(filepath.Join(dir, "image_generation_plan.intro_cs.md"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := ledger.HeaderLine + "\n" + ledger.SeparatorLine + "\n" +
		"| 1 | intro_cs_a.md | a.png | ./picture/a.png | p | x |\n" +
		"| 3 | intro_cs_b.md | c.png | ./picture/c.png | p | x |\n"
	if string(data) != want {
		t.Fatalf("sub-ledger = %q", data)
	}
}

func TestFSSinkExists(t *testing.T) {
	sink := NewFSSink(t.TempDir())
	ctx := context.Background()
	if ok, err := sink.Exists(ctx, "a/b.txt"); err != nil || ok {
		t.Fatalf("Exists() = %v, %v", ok, err)
	}
	if err := sink.Put(ctx, "a/b.txt", []byte("x")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if ok, err := sink.Exists(ctx, "a/b.txt"); err != nil || !ok {
		t.Fatalf("Exists() after Put = %v, %v", ok, err)
	}
}
