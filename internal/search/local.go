package search

import (
	"strings"

	"github.com/komiyamma/imageplan/internal/ledger"
)

// SearchEntries is the in-process fallback: a case-insensitive substring
// match of every whitespace-separated term over the entry's fields.
func SearchEntries(entries []ledger.Entry, q Query) ([]Result, int) {
	terms := strings.Fields(strings.ToLower(q.Text))
	if len(terms) == 0 {
		return nil, 0
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	var results []Result
	total := 0
	for _, e := range entries {
		if q.Document != "" && e.SourceDocument != q.Document {
			continue
		}
		haystack := strings.ToLower(strings.Join([]string{e.ImageName, e.SourceDocument, e.PayloadText, e.Anchor}, "\n"))
		matched := true
		for _, term := range terms {
			if !strings.Contains(haystack, term) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		total++
		if len(results) < limit {
			results = append(results, Result{
				EntryID:        e.ID,
				SourceDocument: e.SourceDocument,
				ImageName:      e.ImageName,
				RelativeLink:   e.RelativeLink,
				Snippet:        snippet(e.PayloadText, 120),
			})
		}
	}
	return results, total
}

func snippet(text string, max int) string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "…"
}
