package ledger

import (
	"sort"
	"strings"
)

// MaintenanceReport counts the data rows touched by a maintenance pass.
type MaintenanceReport struct {
	Before  int `json:"before"`
	Removed int `json:"removed"`
	Changed int `json:"changed"`
	After   int `json:"after"`
}

// RepairHeaders removes header and separator lines repeated after the header
// block, typically left behind by concatenating ledgers.
func (l *Ledger) RepairHeaders() MaintenanceReport {
	report := MaintenanceReport{Before: l.Len()}
	repeated := map[string]bool{
		strings.TrimSpace(HeaderLine):    true,
		strings.TrimSpace(SeparatorLine): true,
	}
	for _, line := range l.Header {
		repeated[strings.TrimSpace(line)] = true
	}
	rows := l.Rows[:0]
	for _, row := range l.Rows {
		if row.Entry == nil && repeated[strings.TrimSpace(row.Raw)] && strings.TrimSpace(row.Raw) != "" {
			report.Removed++
			continue
		}
		rows = append(rows, row)
	}
	l.Rows = rows
	report.After = l.Len()
	return report
}

// SortByID orders data rows by ID. Decoration rows keep their positions;
// only the data rows are permuted among the slots they occupy. Rows with
// equal IDs keep their relative order.
func (l *Ledger) SortByID() MaintenanceReport {
	report := MaintenanceReport{Before: l.Len()}
	var slots []int
	var data []Row
	for i, row := range l.Rows {
		if row.Entry != nil {
			slots = append(slots, i)
			data = append(data, row)
		}
	}
	sort.SliceStable(data, func(i, j int) bool { return data[i].Entry.ID < data[j].Entry.ID })
	for k, i := range slots {
		if l.Rows[i].Entry != data[k].Entry {
			report.Changed++
		}
		l.Rows[i] = data[k]
	}
	report.After = l.Len()
	return report
}

// Dedupe keeps the first row for each image name and renumbers the
// survivors contiguously.
func (l *Ledger) Dedupe() MaintenanceReport {
	report := MaintenanceReport{Before: l.Len()}
	seen := make(map[string]bool)
	removed := l.Retain(func(e Entry) bool {
		key := NameKey(e.ImageName)
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	})
	report.Removed = len(removed)
	if report.Removed > 0 {
		l.Renumber()
	}
	report.After = l.Len()
	return report
}

// FixPaths prefixes each source document with prefix unless it already has it
// or names a test fixture ("test_..."). Only the document cell is rewritten.
func (l *Ledger) FixPaths(prefix string) MaintenanceReport {
	report := MaintenanceReport{Before: l.Len()}
	if prefix == "" {
		report.After = report.Before
		return report
	}
	for i := range l.Rows {
		e := l.Rows[i].Entry
		if e == nil {
			continue
		}
		doc := e.SourceDocument
		if doc == "" || strings.HasPrefix(doc, prefix) || strings.HasPrefix(doc, "test_") {
			continue
		}
		e.SourceDocument = prefix + doc
		report.Changed++
	}
	report.After = l.Len()
	return report
}
