package store

import "time"

// Outcome is one audited request result.
type Outcome struct {
	ID             int64
	RunID          string
	Status         string
	Reason         string
	ErrorCode      string
	SourceDocument string
	ImageName      string
	EntryID        *int
	CreatedAt      time.Time
}
