// Package export publishes artifacts derived from the ledger: per-image
// prompt files and per-family sub-ledgers.
package export

import "context"

// Sink stores named artifacts. Names are slash-separated and relative to
// the sink's root.
type Sink interface {
	Exists(ctx context.Context, name string) (bool, error)
	Put(ctx context.Context, name string, data []byte) error
	Location(name string) string
}

// Report lists what a publishing pass wrote and what it left alone.
type Report struct {
	Written []string `json:"written"`
	Skipped []string `json:"skipped,omitempty"`
}
