package refscan

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScan(t *testing.T) {
	content := "# Title\n\n" +
		"Intro ![chart](./picture/chart.png) text.\n\n" +
		"<div align=\"center\">\n<img src='./picture/flow.png' width=\"400\">\n</div>\n\n" +
		"Inline <img alt=\"x\" src=\"../img/inline%20name.png?v=2\"> here.\n\n" +
		"```md\n![ignored](./picture/fenced.png)\n```\n\n" +
		"Code `![ignored](./picture/span.png)` span.\n"

	got := Scan(content)
	want := []Reference{
		{Kind: KindLink, Target: "./picture/chart.png", Name: "chart.png"},
		{Kind: KindEmbed, Target: "./picture/flow.png", Name: "flow.png"},
		{Kind: KindEmbed, Target: "../img/inline%20name.png?v=2", Name: "inline name.png"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Scan() mismatch (-want +got):\n%s", diff)
	}
}

func TestScanEmpty(t *testing.T) {
	if refs := Scan(""); refs != nil {
		t.Fatalf("Scan(\"\") = %v", refs)
	}
	if refs := Scan("plain text only\n"); len(refs) != 0 {
		t.Fatalf("Scan() = %v", refs)
	}
}

func TestBasename(t *testing.T) {
	tests := []struct {
		target, want string
	}{
		{"./picture/fig.png", "fig.png"},
		{"<./picture/a b.png>", "a b.png"},
		{`..\img\win.png`, "win.png"},
		{"https://cdn.example.com/x.png#f", "x.png"},
		{"fig.png", "fig.png"},
		{"./picture/", "picture"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Basename(tt.target); got != tt.want {
			t.Fatalf("Basename(%q) = %q, want %q", tt.target, got, tt.want)
		}
	}
}

func TestEmbedded(t *testing.T) {
	content := "![a](./picture/cafe\u0301.png)\n"
	if !Embedded(content, "café.png") {
		t.Fatal("expected NFC-equivalent name to be embedded")
	}
	if !Embedded(content, "./other/café.png") {
		t.Fatal("expected name with directory to be embedded")
	}
	if Embedded(content, "cafe.png") {
		t.Fatal("unexpected match")
	}
}
