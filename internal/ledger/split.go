package ledger

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultFamilyPattern groups documents named like "<series>_cs_..." or
// "<series>_ts_...".
var DefaultFamilyPattern = regexp.MustCompile(`([A-Za-z0-9]+_(?:cs|ts))_`)

// Group is the set of rows sharing one family key.
type Group struct {
	Key  string
	Rows []Row
}

// Split partitions data rows by the family key found in their source
// document. The key is the first capture group of pattern, or the whole match
// when the pattern has none. Rows without a match are left out. Groups are
// sorted by key.
func Split(l *Ledger, pattern *regexp.Regexp) []Group {
	if pattern == nil {
		pattern = DefaultFamilyPattern
	}
	byKey := make(map[string]*Group)
	for _, row := range l.Rows {
		if row.Entry == nil {
			continue
		}
		match := pattern.FindStringSubmatch(row.Entry.SourceDocument)
		if match == nil {
			continue
		}
		key := match[0]
		if len(match) > 1 {
			key = match[1]
		}
		group, ok := byKey[key]
		if !ok {
			group = &Group{Key: key}
			byKey[key] = group
		}
		group.Rows = append(group.Rows, row)
	}

	groups := make([]Group, 0, len(byKey))
	for _, group := range byKey {
		groups = append(groups, *group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

// FileName is the conventional name of the group's sub-ledger.
func (g Group) FileName() string {
	return "image_generation_plan." + g.Key + ".md"
}

// Render builds the sub-ledger text: header lines, then the group's rows,
// each newline-terminated.
func (g Group) Render(header []string) string {
	if len(header) == 0 {
		header = CanonicalHeader()
	}
	lines := make([]string, 0, len(header)+len(g.Rows))
	for _, line := range header {
		lines = append(lines, trimEOL(line))
	}
	for _, row := range g.Rows {
		lines = append(lines, trimEOL(row.render()))
	}
	return strings.Join(lines, "\n") + "\n"
}

func trimEOL(line string) string {
	return strings.TrimSuffix(line, lineEnding(line))
}
