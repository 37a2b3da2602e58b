// Package inject places reference markup next to an anchor in a document.
// It is a plain text transform: it does not check whether the reference is
// already present.
package inject

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAnchorNotFound  = errors.New("anchor not found")
	ErrAnchorAmbiguous = errors.New("anchor ambiguous")
	ErrEmptyAnchor     = errors.New("anchor is empty")
)

type Position string

const (
	After  Position = "after"
	Before Position = "before"
)

func ParsePosition(s string) (Position, error) {
	switch Position(strings.ToLower(strings.TrimSpace(s))) {
	case After, "":
		return After, nil
	case Before:
		return Before, nil
	}
	return "", fmt.Errorf("unknown position %q", s)
}

// Mode controls how an anchor that occurs more than once is handled.
type Mode string

const (
	// Strict fails with ErrAnchorAmbiguous.
	Strict Mode = "strict"
	// Lenient uses the first occurrence and reports Ambiguous in the result.
	Lenient Mode = "lenient"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Strict, "":
		return Strict, nil
	case Lenient:
		return Lenient, nil
	}
	return "", fmt.Errorf("unknown anchor mode %q", s)
}

// Result describes a successful injection.
type Result struct {
	Content string
	// Occurrences is how many times the anchor appeared.
	Occurrences int
	// Line is the 1-based line the markup was written to.
	Line int
}

// Ambiguous reports whether the first of several occurrences was used.
func (r Result) Ambiguous() bool {
	return r.Occurrences > 1
}

// Inject inserts markup as its own paragraph next to the lines holding
// anchor: after the anchor's last line or before its first line. Everything
// outside the insertion point, line endings included, is preserved; the
// inserted lines use the line ending of the anchor's line.
func Inject(content, anchor, markup string, position Position, mode Mode) (Result, error) {
	if anchor == "" {
		return Result{}, ErrEmptyAnchor
	}
	count := occurrences(content, anchor)
	switch {
	case count == 0:
		return Result{}, fmt.Errorf("%w: %q", ErrAnchorNotFound, anchor)
	case count > 1 && mode != Lenient:
		return Result{}, fmt.Errorf("%w: %q occurs %d times", ErrAnchorAmbiguous, anchor, count)
	}

	start := strings.Index(content, anchor)
	end := start + len(anchor)

	var at int
	var insertion string
	// lead is how many line breaks precede the markup in insertion.
	lead := 1
	switch position {
	case Before:
		at = strings.LastIndex(content[:start], "\n") + 1
		eol := lineEndingAt(content, start)
		if at == 0 {
			insertion = markup + eol + eol
			lead = 0
		} else {
			insertion = eol + markup + eol + eol
		}
	default:
		// The anchor may itself end with a line break; the insertion then
		// goes right after it.
		last := end
		if strings.HasSuffix(anchor, "\n") {
			last = end - 1
		}
		eol := lineEndingAt(content, last)
		newline := strings.Index(content[last:], "\n")
		if newline < 0 {
			at = len(content)
			insertion = eol + eol + markup + eol
			lead = 2
		} else {
			at = last + newline + 1
			insertion = eol + markup + eol + eol
		}
	}

	return Result{
		Content:     content[:at] + insertion + content[at:],
		Occurrences: count,
		Line:        strings.Count(content[:at], "\n") + 1 + lead,
	}, nil
}

// occurrences counts matches of anchor in content, overlapping ones included.
func occurrences(content, anchor string) int {
	count := 0
	for from := 0; from <= len(content)-len(anchor); {
		i := strings.Index(content[from:], anchor)
		if i < 0 {
			break
		}
		count++
		from += i + 1
	}
	return count
}

// lineEndingAt returns the terminator of the line containing offset, falling
// back to the first terminator in content and then to "\n".
func lineEndingAt(content string, offset int) string {
	if offset > len(content) {
		offset = len(content)
	}
	if i := strings.Index(content[offset:], "\n"); i >= 0 {
		if j := offset + i; j > 0 && content[j-1] == '\r' {
			return "\r\n"
		}
		return "\n"
	}
	if strings.Contains(content, "\r\n") {
		return "\r\n"
	}
	return "\n"
}
