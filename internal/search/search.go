// Package search answers free-text queries over ledger entries.
package search

import (
	"github.com/google/uuid"

	"github.com/komiyamma/imageplan/internal/ledger"
)

// Backend names the engine that produced a response.
type Backend string

const (
	BackendMeili Backend = "meilisearch"
	BackendPG    Backend = "postgres"
	BackendLocal Backend = "local"
)

// Result is a single search hit.
type Result struct {
	EntryID        int    `json:"entryId"`
	SourceDocument string `json:"sourceDocument"`
	ImageName      string `json:"imageName"`
	RelativeLink   string `json:"relativeLink"`
	Snippet        string `json:"snippet"`
}

type Query struct {
	Text string
	// Document restricts hits to one source document when set.
	Document string
	Limit    int
}

type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend Backend  `json:"backend"`
}

// EntryRecord is the indexed form of a ledger entry. Key is derived from the
// image name so it survives renumbering.
type EntryRecord struct {
	Key            string `json:"key"`
	EntryID        int    `json:"entryId"`
	SourceDocument string `json:"sourceDocument"`
	ImageName      string `json:"imageName"`
	RelativeLink   string `json:"relativeLink"`
	PayloadText    string `json:"payloadText"`
	Anchor         string `json:"anchor"`
}

var recordNamespace = uuid.MustParse("5b0f0c7e-4f5a-4d43-9a43-3c1f6f0c2a10")

// RecordKey is the stable index key of an image name.
func RecordKey(imageName string) string {
	return uuid.NewSHA1(recordNamespace, []byte(ledger.NameKey(imageName))).String()
}

func NewRecord(e ledger.Entry) EntryRecord {
	return EntryRecord{
		Key:            RecordKey(e.ImageName),
		EntryID:        e.ID,
		SourceDocument: e.SourceDocument,
		ImageName:      e.ImageName,
		RelativeLink:   e.RelativeLink,
		PayloadText:    e.PayloadText,
		Anchor:         e.Anchor,
	}
}
