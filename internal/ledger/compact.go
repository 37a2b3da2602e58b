package ledger

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/komiyamma/imageplan/internal/refscan"
)

// Resolver returns the content of a source document. A missing document is
// reported with an error wrapping fs.ErrNotExist.
type Resolver func(document string) (string, error)

// CompactReport summarises a compaction pass.
type CompactReport struct {
	Before  int      `json:"before"`
	After   int      `json:"after"`
	Removed []Entry  `json:"removed"`
	Missing []string `json:"missing"`
}

// Compact drops entries whose image is already embedded in their source
// document and renumbers the survivors from 1, keeping their relative order.
// Entries whose document cannot be found are kept and listed in Missing.
func Compact(entries []Entry, resolve Resolver) ([]Entry, CompactReport, error) {
	check := newEmbedCheck(resolve)
	report := CompactReport{Before: len(entries)}
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		embedded, err := check.embedded(e)
		if err != nil {
			return nil, CompactReport{}, err
		}
		if embedded {
			report.Removed = append(report.Removed, e)
			continue
		}
		kept = append(kept, e)
	}
	for i := range kept {
		kept[i].ID = i + 1
	}
	report.After = len(kept)
	report.Missing = check.missingDocuments()
	return kept, report, nil
}

// Compact applies the compaction pass to the ledger in place. Decoration rows
// stay where they are; rows whose only change is the ID keep the rest of
// their original text.
func (l *Ledger) Compact(resolve Resolver) (CompactReport, error) {
	check := newEmbedCheck(resolve)
	report := CompactReport{Before: l.Len()}
	var failure error
	removed := l.Retain(func(e Entry) bool {
		if failure != nil {
			return true
		}
		embedded, err := check.embedded(e)
		if err != nil {
			failure = err
			return true
		}
		return !embedded
	})
	if failure != nil {
		return CompactReport{}, failure
	}
	l.Renumber()
	report.Removed = removed
	report.After = l.Len()
	report.Missing = check.missingDocuments()
	return report, nil
}

type embedCheck struct {
	resolve Resolver
	names   map[string]map[string]struct{}
	missing map[string]bool
	order   []string
}

func newEmbedCheck(resolve Resolver) *embedCheck {
	return &embedCheck{
		resolve: resolve,
		names:   make(map[string]map[string]struct{}),
		missing: make(map[string]bool),
	}
}

func (c *embedCheck) embedded(e Entry) (bool, error) {
	doc := e.SourceDocument
	if c.missing[doc] {
		return false, nil
	}
	names, ok := c.names[doc]
	if !ok {
		content, err := c.resolve(doc)
		if errors.Is(err, fs.ErrNotExist) {
			c.missing[doc] = true
			c.order = append(c.order, doc)
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("resolve %s: %w", doc, err)
		}
		names = refscan.Basenames(content)
		c.names[doc] = names
	}
	_, found := names[NameKey(refscan.Basename(e.ImageName))]
	return found, nil
}

func (c *embedCheck) missingDocuments() []string {
	return c.order
}
