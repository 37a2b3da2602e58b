package inject

import (
	"errors"
	"testing"
)

const figure = "![x](./picture/x.png)"

func TestInject(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		anchor   string
		position Position
		want     string
		line     int
	}{
		{
			name:     "after heading",
			content:  "## Intro\nhello\n",
			anchor:   "## Intro",
			position: After,
			want:     "## Intro\n\n" + figure + "\n\nhello\n",
			line:     3,
		},
		{
			name:     "after last line without terminator",
			content:  "# T\n## Intro",
			anchor:   "## Intro",
			position: After,
			want:     "# T\n## Intro\n\n" + figure + "\n",
			line:     4,
		},
		{
			name:     "after anchor in middle of line",
			content:  "a\nsee the chart below\nb\n",
			anchor:   "chart",
			position: After,
			want:     "a\nsee the chart below\n\n" + figure + "\n\nb\n",
			line:     4,
		},
		{
			name:     "before first line",
			content:  "## Intro\nhello\n",
			anchor:   "## Intro",
			position: Before,
			want:     figure + "\n\n## Intro\nhello\n",
			line:     1,
		},
		{
			name:     "before later line",
			content:  "# T\n## Intro\n",
			anchor:   "## Intro",
			position: Before,
			want:     "# T\n\n" + figure + "\n\n## Intro\n",
			line:     3,
		},
		{
			name:     "crlf preserved",
			content:  "## Intro\r\nhello\r\n",
			anchor:   "## Intro",
			position: After,
			want:     "## Intro\r\n\r\n" + figure + "\r\n\r\nhello\r\n",
			line:     3,
		},
		{
			name:     "multi-line anchor inserts after its last line",
			content:  "intro\nfirst line\nsecond line\noutro\n",
			anchor:   "first line\nsecond",
			position: After,
			want:     "intro\nfirst line\nsecond line\n\n" + figure + "\n\noutro\n",
			line:     5,
		},
		{
			name:     "anchor ending in newline",
			content:  "## Intro\nhello\n",
			anchor:   "## Intro\n",
			position: After,
			want:     "## Intro\n\n" + figure + "\n\nhello\n",
			line:     3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Inject(tt.content, tt.anchor, figure, tt.position, Strict)
			if err != nil {
				t.Fatalf("Inject() error = %v", err)
			}
			if got.Content != tt.want {
				t.Fatalf("Inject() = %q, want %q", got.Content, tt.want)
			}
			if got.Line != tt.line {
				t.Fatalf("Line = %d, want %d", got.Line, tt.line)
			}
			if got.Ambiguous() {
				t.Fatal("expected unambiguous result")
			}
		})
	}
}

func TestInjectAnchorErrors(t *testing.T) {
	if _, err := Inject("hello\n", "## Missing", figure, After, Strict); !errors.Is(err, ErrAnchorNotFound) {
		t.Fatalf("missing anchor error = %v", err)
	}
	if _, err := Inject("## A\n## A\n", "## A", figure, After, Strict); !errors.Is(err, ErrAnchorAmbiguous) {
		t.Fatalf("ambiguous anchor error = %v", err)
	}
	if _, err := Inject("aaa\n", "aa", figure, After, Strict); !errors.Is(err, ErrAnchorAmbiguous) {
		t.Fatalf("overlapping anchor error = %v", err)
	}
	if got, err := Inject("## A ## A\n", "## A ## A", figure, After, Strict); err != nil || got.Occurrences != 1 {
		t.Fatalf("single anchor = %+v, %v", got, err)
	}
	if _, err := Inject("x", "", figure, After, Strict); !errors.Is(err, ErrEmptyAnchor) {
		t.Fatalf("empty anchor error = %v", err)
	}
}

func TestInjectLenientUsesFirstOccurrence(t *testing.T) {
	got, err := Inject("## A\none\n## A\ntwo\n", "## A", figure, After, Lenient)
	if err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	want := "## A\n\n" + figure + "\n\none\n## A\ntwo\n"
	if got.Content != want {
		t.Fatalf("Inject() = %q, want %q", got.Content, want)
	}
	if !got.Ambiguous() || got.Occurrences != 2 {
		t.Fatalf("Occurrences = %d", got.Occurrences)
	}
}

func TestParsePositionAndMode(t *testing.T) {
	if p, err := ParsePosition("BEFORE"); err != nil || p != Before {
		t.Fatalf("ParsePosition() = %v, %v", p, err)
	}
	if p, _ := ParsePosition(""); p != After {
		t.Fatalf("default position = %v", p)
	}
	if _, err := ParsePosition("inside"); err == nil {
		t.Fatal("expected error")
	}
	if m, err := ParseMode("lenient"); err != nil || m != Lenient {
		t.Fatalf("ParseMode() = %v, %v", m, err)
	}
	if m, _ := ParseMode(""); m != Strict {
		t.Fatalf("default mode = %v", m)
	}
}

func TestMarkup(t *testing.T) {
	if got := Markup("", "chart", "./picture/c.png"); got != "![chart](./picture/c.png)" {
		t.Fatalf("Markup() = %q", got)
	}
	if got := Markup("", "my fig", "./picture/my fig (v2).png"); got != "![my fig](./picture/my%20fig%20%28v2%29.png)" {
		t.Fatalf("Markup() = %q", got)
	}
	got := Markup(`<img src="{link}" alt="{description}">`, "chart", "./picture/c.png")
	if got != `<img src="./picture/c.png" alt="chart">` {
		t.Fatalf("Markup() = %q", got)
	}
}
