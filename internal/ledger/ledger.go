// Package ledger reads and writes the image insertion ledger: a pipe-delimited
// markdown table of pending image requests, one row per request.
package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/komiyamma/imageplan/internal/refscan"
)

const (
	HeaderLine    = "| ID | File Name | Proposed Image Filename | Relative Link Path | Prompt | Insertion Point |"
	SeparatorLine = "|---|---|---|---|---|---|"

	// Columns is the number of cells in a data row.
	Columns = 6
)

var (
	ErrLedgerUnreadable = errors.New("ledger unreadable")
	ErrInvalidEntry     = errors.New("invalid ledger entry")
)

// CanonicalHeader is the header block written when a ledger is created.
func CanonicalHeader() []string {
	return []string{HeaderLine + "\n", SeparatorLine + "\n"}
}

// Entry is one logical ledger row. Fields hold unescaped text.
type Entry struct {
	ID             int    `json:"id"`
	SourceDocument string `json:"source_document"`
	ImageName      string `json:"image_name"`
	RelativeLink   string `json:"relative_link"`
	PayloadText    string `json:"payload_text"`
	Anchor         string `json:"anchor"`
}

// Validate checks the fields every committed entry needs.
func (e Entry) Validate() error {
	switch {
	case strings.TrimSpace(e.SourceDocument) == "":
		return fmt.Errorf("%w: source document is required", ErrInvalidEntry)
	case strings.TrimSpace(e.ImageName) == "":
		return fmt.Errorf("%w: image name is required", ErrInvalidEntry)
	case strings.TrimSpace(e.RelativeLink) == "":
		return fmt.Errorf("%w: relative link is required", ErrInvalidEntry)
	case strings.TrimSpace(e.Anchor) == "":
		return fmt.Errorf("%w: anchor is required", ErrInvalidEntry)
	}
	return nil
}

func (e Entry) cells() [Columns]string {
	return [Columns]string{
		strconv.Itoa(e.ID),
		Escape(e.SourceDocument),
		Escape(e.ImageName),
		Escape(e.RelativeLink),
		Escape(e.PayloadText),
		Escape(e.Anchor),
	}
}

// FormatRow renders e as a table row without a line terminator.
func FormatRow(e Entry) string {
	cells := e.cells()
	return "| " + strings.Join(cells[:], " | ") + " |"
}

// NameKey is the comparison key for image names: trimmed and NFC-normalised,
// so escaped-then-parsed and freshly typed names compare equal.
func NameKey(name string) string {
	return refscan.Key(name)
}

// Row is one line after the header block. Decoration rows (blank lines,
// notes, malformed or repeated header rows) have a nil Entry and are kept
// verbatim.
type Row struct {
	Raw   string
	Entry *Entry

	orig Entry
}

// IsData reports whether the row carries an entry.
func (r Row) IsData() bool {
	return r.Entry != nil
}

// Ledger is a parsed ledger file.
type Ledger struct {
	Header []string
	Rows   []Row
}

// New returns an empty ledger with the canonical header.
func New() *Ledger {
	return &Ledger{Header: CanonicalHeader()}
}

// Entries returns copies of all data entries in ledger order.
func (l *Ledger) Entries() []Entry {
	entries := make([]Entry, 0, len(l.Rows))
	for _, row := range l.Rows {
		if row.Entry != nil {
			entries = append(entries, *row.Entry)
		}
	}
	return entries
}

// Len is the number of data rows.
func (l *Ledger) Len() int {
	count := 0
	for _, row := range l.Rows {
		if row.Entry != nil {
			count++
		}
	}
	return count
}

// Add appends e as a new data row. The row is rendered on serialization.
func (l *Ledger) Add(e Entry) {
	if len(l.Header) == 0 {
		l.Header = CanonicalHeader()
	}
	entry := e
	l.Rows = append(l.Rows, Row{Entry: &entry})
}

// Retain keeps data rows for which keep returns true and returns the dropped
// entries. Decoration rows are untouched.
func (l *Ledger) Retain(keep func(Entry) bool) []Entry {
	var dropped []Entry
	rows := l.Rows[:0]
	for _, row := range l.Rows {
		if row.Entry != nil && !keep(*row.Entry) {
			dropped = append(dropped, *row.Entry)
			continue
		}
		rows = append(rows, row)
	}
	l.Rows = rows
	return dropped
}

// Renumber assigns contiguous IDs starting at 1 in row order.
func (l *Ledger) Renumber() {
	next := 1
	for i := range l.Rows {
		if l.Rows[i].Entry == nil {
			continue
		}
		l.Rows[i].Entry.ID = next
		next++
	}
}

// Find returns the first entry whose image name matches name.
func (l *Ledger) Find(name string) (Entry, bool) {
	key := NameKey(name)
	for _, row := range l.Rows {
		if row.Entry != nil && NameKey(row.Entry.ImageName) == key {
			return *row.Entry, true
		}
	}
	return Entry{}, false
}
