package ledger

import (
	"strconv"
	"strings"
)

// headerLines is the fixed size of the header block.
const headerLines = 2

// Parse splits text into the header block and rows. Parsing never fails:
// anything that is not a well-formed data row is kept as decoration.
func Parse(text string) *Ledger {
	lines := splitLines(text)
	l := &Ledger{}
	n := headerLines
	if len(lines) < n {
		n = len(lines)
	}
	l.Header = append(l.Header, lines[:n]...)
	for _, line := range lines[n:] {
		row := Row{Raw: line}
		if entry, ok := parseRow(line); ok {
			row.Entry = &entry
			row.orig = entry
		}
		l.Rows = append(l.Rows, row)
	}
	return l
}

// Serialize renders the ledger. Rows that were parsed and not modified are
// written back byte-for-byte; modified rows only have their changed cells
// rewritten.
func (l *Ledger) Serialize() string {
	var b strings.Builder
	write := func(s string) {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
		b.WriteString(s)
	}
	for _, line := range l.Header {
		write(line)
	}
	for _, row := range l.Rows {
		write(row.render())
	}
	return b.String()
}

// Format renders a fresh ledger from a header block and entries.
func Format(header []string, entries []Entry) string {
	l := &Ledger{Header: header}
	for _, e := range entries {
		l.Add(e)
	}
	return l.Serialize()
}

func (r Row) render() string {
	if r.Entry == nil {
		return r.Raw
	}
	if r.Raw == "" {
		return FormatRow(*r.Entry) + "\n"
	}
	if *r.Entry == r.orig {
		return r.Raw
	}
	changed := map[int]string{}
	current, original := r.Entry.cells(), r.orig.cells()
	for i := range current {
		if current[i] != original[i] {
			changed[i] = current[i]
		}
	}
	if rewritten, ok := rewriteCells(r.Raw, changed); ok {
		return rewritten
	}
	return FormatRow(*r.Entry) + lineEnding(r.Raw)
}

func parseRow(line string) (Entry, bool) {
	body := strings.TrimSpace(line)
	if !strings.HasPrefix(body, string(Delimiter)) {
		return Entry{}, false
	}
	cells := splitCells(body)
	if len(cells) != Columns {
		return Entry{}, false
	}
	first := cells[0]
	if strings.EqualFold(first, "ID") || isSeparator(cells) {
		return Entry{}, false
	}
	if !isDigits(first) {
		return Entry{}, false
	}
	id, err := strconv.Atoi(first)
	if err != nil {
		return Entry{}, false
	}
	return Entry{
		ID:             id,
		SourceDocument: Unescape(cells[1]),
		ImageName:      Unescape(cells[2]),
		RelativeLink:   Unescape(cells[3]),
		PayloadText:    Unescape(cells[4]),
		Anchor:         Unescape(cells[5]),
	}, true
}

// splitCells splits a row body on unescaped delimiters and trims each cell.
// Cells keep their escaped form.
func splitCells(body string) []string {
	bounds := delimiterOffsets(body)
	if len(bounds) == 0 {
		return nil
	}
	var cells []string
	for i := 0; i < len(bounds); i++ {
		start := bounds[i] + 1
		end := len(body)
		if i+1 < len(bounds) {
			end = bounds[i+1]
		}
		cell := strings.TrimSpace(body[start:end])
		if i+1 == len(bounds) && cell == "" {
			break
		}
		cells = append(cells, cell)
	}
	return cells
}

func delimiterOffsets(s string) []int {
	var offsets []int
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case Delimiter:
			offsets = append(offsets, i)
		}
	}
	return offsets
}

// rewriteCells replaces the given cells of raw, leaving the rest of the line
// untouched.
func rewriteCells(raw string, changed map[int]string) (string, bool) {
	eol := lineEnding(raw)
	body := strings.TrimSuffix(raw, eol)
	bounds := delimiterOffsets(body)
	if len(bounds) < Columns {
		return "", false
	}
	var b strings.Builder
	last := 0
	for col := 0; col < Columns; col++ {
		value, ok := changed[col]
		if !ok {
			continue
		}
		start := bounds[col] + 1
		end := len(body)
		if col+1 < len(bounds) {
			end = bounds[col+1]
		}
		b.WriteString(body[last:start])
		b.WriteString(" " + value + " ")
		last = end
	}
	b.WriteString(body[last:])
	b.WriteString(eol)
	return b.String(), true
}

func isSeparator(cells []string) bool {
	for _, cell := range cells {
		if strings.Trim(cell, "-: ") != "" {
			return false
		}
	}
	return strings.Contains(cells[0], "---")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// splitLines splits text after every '\n', keeping terminators. A trailing
// fragment without a terminator is its own line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func lineEnding(line string) string {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return "\r\n"
	case strings.HasSuffix(line, "\n"):
		return "\n"
	}
	return ""
}
