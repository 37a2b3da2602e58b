package app

import (
	"github.com/komiyamma/imageplan/internal/ledger"
	"github.com/komiyamma/imageplan/internal/oracle"
)

type Status string

const (
	StatusAdded   Status = "added"
	StatusRenamed Status = "renamed"
	StatusSkipped Status = "skipped"
	// StatusResumed means a planned entry whose reference was missing from
	// its document was injected without a new ledger row.
	StatusResumed Status = "resumed"
	StatusFailed  Status = "failed"
)

// Result is the outcome of one request. Entry holds the committed values
// (renamed, with its ID) when the request changed anything.
type Result struct {
	Status   Status          `json:"status"`
	Reason   string          `json:"reason,omitempty"`
	Entry    ledger.Entry    `json:"entry"`
	Decision oracle.Decision `json:"decision"`
	Warnings []string        `json:"warnings,omitempty"`
	Err      *DomainError    `json:"error,omitempty"`
}

// Changed reports whether the request mutated a document.
func (r Result) Changed() bool {
	switch r.Status {
	case StatusAdded, StatusRenamed, StatusResumed:
		return true
	}
	return false
}

type BatchReport struct {
	RunID   string   `json:"run_id"`
	Results []Result `json:"results"`
}

// Counts tallies results by status.
func (b BatchReport) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, r := range b.Results {
		counts[r.Status]++
	}
	return counts
}

// Failed reports whether any request failed.
func (b BatchReport) Failed() bool {
	return b.Counts()[StatusFailed] > 0
}
