package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// Delimiter separates table cells.
	Delimiter = '|'
	// NewlineMarker stands in for a line break inside a single table cell.
	NewlineMarker = "<br>"
)

// Escape makes text safe for a single table cell. Backslash is the escape
// character: the delimiter, the backslash itself, carriage returns and literal
// occurrences of NewlineMarker are backslash-escaped, and line feeds become
// NewlineMarker. Whitespace at either end of text is spelled out (\s, \t,
// \u{XX}) because cells are trimmed on parse. Escape must be applied exactly
// once per logical field.
func Escape(text string) string {
	if !needsEscape(text) {
		return text
	}
	lead, trail := edgeSpan(text)
	var b strings.Builder
	b.Grow(len(text) + 8)
	writeEdge(&b, text[:lead])
	body := text[lead : len(text)-trail]
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\':
			b.WriteString(`\\`)
		case c == Delimiter:
			b.WriteString(`\|`)
		case c == '\n':
			b.WriteString(NewlineMarker)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '<' && strings.HasPrefix(body[i:], NewlineMarker):
			b.WriteByte('\\')
			b.WriteString(NewlineMarker)
			i += len(NewlineMarker) - 1
		default:
			b.WriteByte(c)
		}
	}
	writeEdge(&b, text[len(text)-trail:])
	return b.String()
}

// Unescape reverses Escape. Unknown backslash sequences are kept verbatim so
// hand-edited cells survive.
func Unescape(cell string) string {
	if !strings.ContainsAny(cell, `\<`) {
		return cell
	}
	var lead []rune
	for {
		r, n, ok := edgeEscapePrefix(cell)
		if !ok {
			break
		}
		lead = append(lead, r)
		cell = cell[n:]
	}
	var trail []rune
	for {
		r, n, ok := edgeEscapeSuffix(cell)
		if !ok {
			break
		}
		trail = append([]rune{r}, trail...)
		cell = cell[:len(cell)-n]
	}

	var b strings.Builder
	b.Grow(len(cell) + len(lead) + len(trail))
	b.WriteString(string(lead))
	for i := 0; i < len(cell); i++ {
		c := cell[i]
		if c == '\\' && i+1 < len(cell) {
			next := cell[i+1]
			switch {
			case next == '\\' || next == Delimiter:
				b.WriteByte(next)
				i++
				continue
			case next == 'r':
				b.WriteByte('\r')
				i++
				continue
			case strings.HasPrefix(cell[i+1:], NewlineMarker):
				b.WriteString(NewlineMarker)
				i += len(NewlineMarker)
				continue
			}
			b.WriteByte(c)
			continue
		}
		if c == '<' && strings.HasPrefix(cell[i:], NewlineMarker) {
			b.WriteByte('\n')
			i += len(NewlineMarker) - 1
			continue
		}
		b.WriteByte(c)
	}
	b.WriteString(string(trail))
	return b.String()
}

func needsEscape(text string) bool {
	if strings.ContainsAny(text, "\\|\n\r") || strings.Contains(text, NewlineMarker) {
		return true
	}
	lead, trail := edgeSpan(text)
	return lead > 0 || trail > 0
}

// isEdgeSpace reports whether r would be lost to cell trimming. Line breaks
// have escapes of their own.
func isEdgeSpace(r rune) bool {
	return unicode.IsSpace(r) && r != '\n' && r != '\r'
}

// edgeSpan returns the byte lengths of the leading and trailing runs of edge
// whitespace. The runs never overlap.
func edgeSpan(text string) (lead, trail int) {
	for lead < len(text) {
		r, n := utf8.DecodeRuneInString(text[lead:])
		if !isEdgeSpace(r) {
			break
		}
		lead += n
	}
	for trail < len(text)-lead {
		r, n := utf8.DecodeLastRuneInString(text[:len(text)-trail])
		if !isEdgeSpace(r) {
			break
		}
		trail += n
	}
	return lead, trail
}

func writeEdge(b *strings.Builder, run string) {
	for _, r := range run {
		switch r {
		case ' ':
			b.WriteString(`\s`)
		case '\t':
			b.WriteString(`\t`)
		default:
			fmt.Fprintf(b, `\u{%X}`, r)
		}
	}
}

func edgeEscapePrefix(cell string) (rune, int, bool) {
	switch {
	case strings.HasPrefix(cell, `\s`):
		return ' ', 2, true
	case strings.HasPrefix(cell, `\t`):
		return '\t', 2, true
	case strings.HasPrefix(cell, `\u{`):
		end := strings.IndexByte(cell, '}')
		if end < 0 {
			return 0, 0, false
		}
		if r, ok := edgeRune(cell[3:end]); ok {
			return r, end + 1, true
		}
	}
	return 0, 0, false
}

func edgeEscapeSuffix(cell string) (rune, int, bool) {
	var r rune
	n := 0
	switch {
	case strings.HasSuffix(cell, `\s`):
		r, n = ' ', 2
	case strings.HasSuffix(cell, `\t`):
		r, n = '\t', 2
	case strings.HasSuffix(cell, "}"):
		start := strings.LastIndex(cell, `\u{`)
		if start < 0 {
			return 0, 0, false
		}
		decoded, ok := edgeRune(cell[start+3 : len(cell)-1])
		if !ok {
			return 0, 0, false
		}
		r, n = decoded, len(cell)-start
	default:
		return 0, 0, false
	}
	// The backslash must start an escape, not end an escaped backslash.
	slashes := 0
	for i := len(cell) - n - 1; i >= 0 && cell[i] == '\\'; i-- {
		slashes++
	}
	if slashes%2 == 1 {
		return 0, 0, false
	}
	return r, n, true
}

func edgeRune(hex string) (rune, bool) {
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || !isEdgeSpace(rune(v)) {
		return 0, false
	}
	return rune(v), true
}
