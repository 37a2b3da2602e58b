package ledger

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleLedger = "| ID | File Name | Proposed Image Filename | Relative Link Path | Prompt | Insertion Point |\n" +
	"|---|---|---|---|---|---|\n" +
	"| 1 | doc_a.md | doc_a_fig1.png | ./picture/doc_a_fig1.png | line one<br>line two | ## Intro |\n" +
	"|2|doc_b.md|doc_b_fig1.png|./picture/doc_b_fig1.png|a \\| b|## Setup|\n" +
	"\n" +
	"note: hand-written comment\n" +
	"| x | broken | row |\n" +
	"| 3 | doc_a.md | doc_a_fig2.png | ./picture/doc_a_fig2.png | p | anchor |\n"

func TestEscapeRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"plain text",
		"a | b",
		"multi\nline\ntext",
		"windows\r\nline",
		`back\slash`,
		`already \| escaped`,
		"literal <br> marker",
		`escaped \<br> marker`,
		"trailing backslash \\",
		"日本語 | テキスト\n二行目",
		"  indented ",
		"\tleading tab",
		"no-break\u00a0",
		"   ",
		" \\s literal",
		"x\\ ",
		"\n line break edge \n",
	}
	for _, input := range cases {
		escaped := Escape(input)
		if strings.ContainsAny(escaped, "\n\r") {
			t.Fatalf("Escape(%q) = %q contains a line break", input, escaped)
		}
		if got := Unescape(escaped); got != input {
			t.Fatalf("Unescape(Escape(%q)) = %q", input, got)
		}
		cells := splitCells("| " + escaped + " |")
		if len(cells) != 1 {
			t.Fatalf("escaped %q splits into %d cells", input, len(cells))
		}
		if got := Unescape(cells[0]); got != input {
			t.Fatalf("cell round trip of %q = %q", input, got)
		}
	}
}

func TestEscapeSpellsOutEdgeWhitespace(t *testing.T) {
	if got := Escape("  indented "); got != `\s\sindented\s` {
		t.Fatalf("Escape() = %q", got)
	}
	if got := Escape("inner  spaces"); got != "inner  spaces" {
		t.Fatalf("Escape() = %q", got)
	}
	// Hand-written backslash sequences inside a cell are not whitespace escapes.
	if got := Unescape(`C:\scripts\temp`); got != `C:\scripts\temp` {
		t.Fatalf("Unescape() = %q", got)
	}
}

func TestUnescapeKeepsUnknownSequences(t *testing.T) {
	if got := Unescape(`C:\docs\picture`); got != `C:\docs\picture` {
		t.Fatalf("Unescape() = %q", got)
	}
	if got := Unescape("one<br>two"); got != "one\ntwo" {
		t.Fatalf("Unescape() = %q", got)
	}
}

func TestParseSerializeRoundTrip(t *testing.T) {
	inputs := map[string]string{
		"sample":       sampleLedger,
		"crlf":         strings.ReplaceAll(sampleLedger, "\n", "\r\n"),
		"no final eol": strings.TrimSuffix(sampleLedger, "\n"),
		"header only":  HeaderLine + "\n" + SeparatorLine + "\n",
		"empty":        "",
		"single line":  HeaderLine,
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			if got := Parse(input).Serialize(); got != input {
				t.Fatalf("round trip mismatch (-want +got):\n%s", cmp.Diff(input, got))
			}
		})
	}
}

func TestParseEntries(t *testing.T) {
	l := Parse(sampleLedger)
	want := []Entry{
		{ID: 1, SourceDocument: "doc_a.md", ImageName: "doc_a_fig1.png", RelativeLink: "./picture/doc_a_fig1.png", PayloadText: "line one\nline two", Anchor: "## Intro"},
		{ID: 2, SourceDocument: "doc_b.md", ImageName: "doc_b_fig1.png", RelativeLink: "./picture/doc_b_fig1.png", PayloadText: "a | b", Anchor: "## Setup"},
		{ID: 3, SourceDocument: "doc_a.md", ImageName: "doc_a_fig2.png", RelativeLink: "./picture/doc_a_fig2.png", PayloadText: "p", Anchor: "anchor"},
	}
	if diff := cmp.Diff(want, l.Entries()); diff != "" {
		t.Fatalf("Entries() mismatch (-want +got):\n%s", diff)
	}
	if len(l.Header) != 2 {
		t.Fatalf("header lines = %d", len(l.Header))
	}
	if len(l.Rows) != 6 {
		t.Fatalf("rows = %d, want 6 (3 data + 3 decoration)", len(l.Rows))
	}
}

func TestParseTreatsMalformedRowsAsDecoration(t *testing.T) {
	text := HeaderLine + "\n" + SeparatorLine + "\n" +
		"| ID | again | x | y | z | w |\n" +
		"|---|---|---|---|---|---|\n" +
		"| abc | doc.md | a.png | ./a.png | p | anchor |\n" +
		"| 4 | doc.md | a.png | ./a.png | p |\n" +
		"| 5 | doc.md | b.png | ./b.png | p | anchor | extra |\n"
	l := Parse(text)
	if n := l.Len(); n != 0 {
		t.Fatalf("Len() = %d, want 0", n)
	}
	if got := l.Serialize(); got != text {
		t.Fatalf("decoration not preserved:\n%s", cmp.Diff(text, got))
	}
}

func TestNextID(t *testing.T) {
	if got := NextID(nil); got != 1 {
		t.Fatalf("NextID(nil) = %d, want 1", got)
	}
	entries := []Entry{{ID: 7}, {ID: 1}, {ID: 3}, {ID: 2}}
	if got := NextID(entries); got != 8 {
		t.Fatalf("NextID() = %d, want 8", got)
	}
}

func TestFileAppendCreatesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "picture", "plan.md")
	f := NewFile(path)
	entry := Entry{ID: 1, SourceDocument: "doc.md", ImageName: "a.png", RelativeLink: "./picture/a.png", PayloadText: "x|y\nz", Anchor: "## A"}
	if err := f.Append(entry); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	want := HeaderLine + "\n" + SeparatorLine + "\n" + `| 1 | doc.md | a.png | ./picture/a.png | x\|y<br>z | ## A |` + "\n"
	if string(data) != want {
		t.Fatalf("ledger mismatch (-want +got):\n%s", cmp.Diff(want, string(data)))
	}

	l, err := f.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff([]Entry{entry}, l.Entries()); diff != "" {
		t.Fatalf("Entries() mismatch:\n%s", diff)
	}
}

func TestFileAppendPreservesExistingBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.md")
	existing := strings.TrimSuffix(sampleLedger, "\n")
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := NewFile(path)
	entry := Entry{ID: 4, SourceDocument: "doc_c.md", ImageName: "c.png", RelativeLink: "./picture/c.png", PayloadText: "p", Anchor: "a"}
	if err := f.Append(entry); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), existing) {
		t.Fatal("existing content was modified")
	}
	if want := existing + "\n" + FormatRow(entry) + "\n"; string(data) != want {
		t.Fatalf("ledger mismatch:\n%s", cmp.Diff(want, string(data)))
	}
}

func TestFileAppendRejectsInvalidEntry(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "plan.md"))
	if err := f.Append(Entry{ID: 1, ImageName: "a.png"}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestFileLoadMissing(t *testing.T) {
	l, err := NewFile(filepath.Join(t.TempDir(), "missing.md")).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if l.Len() != 0 || len(l.Header) != 2 {
		t.Fatalf("unexpected ledger: %+v", l)
	}
}

func TestFileLoadUnreadable(t *testing.T) {
	dir := t.TempDir()
	_, err := NewFile(dir).Load()
	if err == nil {
		t.Fatal("expected error loading a directory")
	}
}

func resolverFor(docs map[string]string) Resolver {
	return func(doc string) (string, error) {
		content, ok := docs[doc]
		if !ok {
			return "", fmt.Errorf("document %s: %w", doc, fs.ErrNotExist)
		}
		return content, nil
	}
}

func TestCompactDropsEmbeddedAndRenumbers(t *testing.T) {
	entries := []Entry{
		{ID: 1, ImageName: "a.png", SourceDocument: "D"},
		{ID: 2, ImageName: "b.png", SourceDocument: "D"},
	}
	resolve := resolverFor(map[string]string{"D": "# D\n\n![a](./picture/a.png)\n"})
	got, report, err := Compact(entries, resolve)
	if err != nil {
		t.Fatalf("Compact() error = %v", err)
	}
	want := []Entry{{ID: 1, ImageName: "b.png", SourceDocument: "D"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Compact() mismatch (-want +got):\n%s", diff)
	}
	if report.Before != 2 || report.After != 1 || len(report.Removed) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestCompactKeepsEntriesForMissingDocuments(t *testing.T) {
	entries := []Entry{{ID: 5, ImageName: "a.png", SourceDocument: "gone.md"}}
	got, report, err := Compact(entries, resolverFor(nil))
	if err != nil {
		t.Fatalf("Compact() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("Compact() = %+v", got)
	}
	if diff := cmp.Diff([]string{"gone.md"}, report.Missing); diff != "" {
		t.Fatalf("Missing mismatch:\n%s", diff)
	}
}

func TestLedgerCompactRewritesOnlyIDs(t *testing.T) {
	l := Parse(sampleLedger)
	resolve := resolverFor(map[string]string{
		"doc_a.md": "![fig](./picture/doc_a_fig1.png)\n",
		"doc_b.md": "nothing here\n",
	})
	report, err := l.Compact(resolve)
	if err != nil {
		t.Fatalf("Compact() error = %v", err)
	}
	if len(report.Removed) != 1 || report.Removed[0].ImageName != "doc_a_fig1.png" {
		t.Fatalf("unexpected removed: %+v", report.Removed)
	}
	want := HeaderLine + "\n" + SeparatorLine + "\n" +
		"| 1 |doc_b.md|doc_b_fig1.png|./picture/doc_b_fig1.png|a \\| b|## Setup|\n" +
		"\n" +
		"note: hand-written comment\n" +
		"| x | broken | row |\n" +
		"| 2 | doc_a.md | doc_a_fig2.png | ./picture/doc_a_fig2.png | p | anchor |\n"
	if got := l.Serialize(); got != want {
		t.Fatalf("Serialize() mismatch (-want +got):\n%s", cmp.Diff(want, got))
	}
}

func TestSplitGroupsByFamily(t *testing.T) {
	text := HeaderLine + "\n" + SeparatorLine + "\n" +
		"| 1 | docs/cap_ts_study_001.md | a.png | ./picture/a.png | p | x |\n" +
		"| 2 | docs/cap_cs_study_001.md | b.png | ./picture/b.png | p | x |\n" +
		"| 3 | docs/cap_ts_study_002.md | c.png | ./picture/c.png | p | x |\n" +
		"| 4 | docs/readme.md | d.png | ./picture/d.png | p | x |\n"
	groups := Split(Parse(text), nil)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].Key != "cap_cs" || groups[1].Key != "cap_ts" {
		t.Fatalf("keys = %q, %q", groups[0].Key, groups[1].Key)
	}
	if groups[1].FileName() != "image_generation_plan.cap_ts.md" {
		t.Fatalf("FileName() = %q", groups[1].FileName())
	}
	want := HeaderLine + "\n" + SeparatorLine + "\n" +
		"| 1 | docs/cap_ts_study_001.md | a.png | ./picture/a.png | p | x |\n" +
		"| 3 | docs/cap_ts_study_002.md | c.png | ./picture/c.png | p | x |\n"
	if got := groups[1].Render(nil); got != want {
		t.Fatalf("Render() mismatch:\n%s", cmp.Diff(want, got))
	}
}

func TestMaintenancePasses(t *testing.T) {
	text := HeaderLine + "\n" + SeparatorLine + "\n" +
		"| 3 | a.md | x.png | ./picture/x.png | p | h |\n" +
		HeaderLine + "\n" +
		SeparatorLine + "\n" +
		"| 1 | docs/b.md | y.png | ./picture/y.png | p | h |\n" +
		"| 2 | test_c.md | x.png | ./picture/x.png | p | h |\n"

	l := Parse(text)
	if r := l.RepairHeaders(); r.Removed != 2 {
		t.Fatalf("RepairHeaders() removed %d, want 2", r.Removed)
	}
	if r := l.SortByID(); r.Changed == 0 {
		t.Fatal("SortByID() reported no change")
	}
	var ids []int
	for _, e := range l.Entries() {
		ids = append(ids, e.ID)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, ids); diff != "" {
		t.Fatalf("sorted ids mismatch:\n%s", diff)
	}

	if r := l.Dedupe(); r.Removed != 1 || r.After != 2 {
		t.Fatalf("Dedupe() = %+v", r)
	}
	if r := l.FixPaths("docs/"); r.Changed != 0 {
		t.Fatalf("FixPaths() changed %d, want 0 (prefixed and test_ rows)", r.Changed)
	}

	l.Add(Entry{ID: 9, SourceDocument: "plain.md", ImageName: "z.png", RelativeLink: "./picture/z.png", Anchor: "h"})
	if r := l.FixPaths("docs/"); r.Changed != 1 {
		t.Fatalf("FixPaths() changed %d, want 1", r.Changed)
	}
	want := HeaderLine + "\n" + SeparatorLine + "\n" +
		"| 1 | docs/b.md | y.png | ./picture/y.png | p | h |\n" +
		"| 2 | test_c.md | x.png | ./picture/x.png | p | h |\n" +
		"| 9 | docs/plain.md | z.png | ./picture/z.png |  | h |\n"
	if got := l.Serialize(); got != want {
		t.Fatalf("Serialize() mismatch (-want +got):\n%s", cmp.Diff(want, got))
	}
}

func TestFindUsesNameKey(t *testing.T) {
	l := New()
	l.Add(Entry{ID: 1, SourceDocument: "d.md", ImageName: "caf\u00e9.png", RelativeLink: "./picture/caf\u00e9.png", Anchor: "a"})
	if _, ok := l.Find("cafe\u0301.png"); !ok {
		t.Fatal("expected NFC-equivalent name to match")
	}
	if _, ok := l.Find("other.png"); ok {
		t.Fatal("unexpected match")
	}
}

func TestSortByIDKeepsDecorationInPlace(t *testing.T) {
	text := HeaderLine + "\n" + SeparatorLine + "\n" +
		"| 2 | b.md | b.png | ./picture/b.png | p | h |\n" +
		"\n" +
		"| 1 | a.md | a.png | ./picture/a.png | p | h |\n" +
		"| 3 | c.md | c.png | ./picture/c.png | p | h |\n" +
		"note: trailing comment\n"

	l := Parse(text)
	r := l.SortByID()
	if r.Changed != 2 {
		t.Fatalf("SortByID() changed %d, want 2", r.Changed)
	}
	want := HeaderLine + "\n" + SeparatorLine + "\n" +
		"| 1 | a.md | a.png | ./picture/a.png | p | h |\n" +
		"\n" +
		"| 2 | b.md | b.png | ./picture/b.png | p | h |\n" +
		"| 3 | c.md | c.png | ./picture/c.png | p | h |\n" +
		"note: trailing comment\n"
	if got := l.Serialize(); got != want {
		t.Fatalf("Serialize() mismatch (-want +got):\n%s", cmp.Diff(want, got))
	}

	if r := l.SortByID(); r.Changed != 0 {
		t.Fatalf("second SortByID() changed %d, want 0", r.Changed)
	}
}
