package search

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	meili "github.com/meilisearch/meilisearch-go"

	"github.com/komiyamma/imageplan/internal/ledger"
)

var sampleEntries = []ledger.Entry{
	{ID: 1, SourceDocument: "a.md", ImageName: "a_light.png", RelativeLink: "./picture/a_light.png", PayloadText: "A lighthouse at dusk", Anchor: "## Coast"},
	{ID: 2, SourceDocument: "b.md", ImageName: "b_forest.png", RelativeLink: "./picture/b_forest.png", PayloadText: "Forest path with a lighthouse glow", Anchor: "## Woods"},
	{ID: 3, SourceDocument: "b.md", ImageName: "b_river.png", RelativeLink: "./picture/b_river.png", PayloadText: "River", Anchor: "## Water"},
}

func TestSearchEntries(t *testing.T) {
	results, total := SearchEntries(sampleEntries, Query{Text: "LIGHTHOUSE"})
	if total != 2 || len(results) != 2 {
		t.Fatalf("SearchEntries() total = %d, len = %d", total, len(results))
	}

	results, total = SearchEntries(sampleEntries, Query{Text: "lighthouse", Document: "b.md"})
	if total != 1 || results[0].ImageName != "b_forest.png" {
		t.Fatalf("document filter = %+v", results)
	}

	results, total = SearchEntries(sampleEntries, Query{Text: "lighthouse", Limit: 1})
	if total != 2 || len(results) != 1 {
		t.Fatalf("limit: total = %d, len = %d", total, len(results))
	}

	if _, total := SearchEntries(sampleEntries, Query{Text: "  "}); total != 0 {
		t.Fatalf("blank query total = %d", total)
	}
}

func TestServiceFallsBackToLocal(t *testing.T) {
	svc := NewService(nil, nil, func(context.Context) ([]ledger.Entry, error) {
		return sampleEntries, nil
	}, nil)

	resp, err := svc.Search(context.Background(), Query{Text: "river"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Backend != BackendLocal || resp.Total != 1 || resp.Results[0].EntryID != 3 {
		t.Fatalf("Search() = %+v", resp)
	}

	if err := svc.IndexEntries(context.Background(), sampleEntries); err != nil {
		t.Fatalf("IndexEntries() without meilisearch error = %v", err)
	}
}

func TestServiceLocalError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(nil, nil, func(context.Context) ([]ledger.Entry, error) { return nil, boom }, nil)
	if _, err := svc.Search(context.Background(), Query{Text: "x"}); !errors.Is(err, boom) {
		t.Fatalf("Search() error = %v", err)
	}
}

func TestRecordKeyStableAcrossRenumbering(t *testing.T) {
	a := NewRecord(ledger.Entry{ID: 1, ImageName: "fig.png"})
	b := NewRecord(ledger.Entry{ID: 9, ImageName: " fig.png "})
	if a.Key != b.Key {
		t.Fatalf("keys differ: %s vs %s", a.Key, b.Key)
	}
	if a.Key == RecordKey("other.png") {
		t.Fatal("distinct names share a key")
	}
}

func TestHitToResultReportsBadEntryID(t *testing.T) {
	hit := meili.Hit{
		"entryId":     json.RawMessage(`"seven"`),
		"imageName":   json.RawMessage(`"a_light.png"`),
		"payloadText": json.RawMessage(`"A lighthouse"`),
	}
	r, err := hitToResult(hit)
	if err == nil {
		t.Fatal("hitToResult() error = nil, want decode error")
	}
	if r.EntryID != 0 || r.ImageName != "a_light.png" || r.Snippet != "A lighthouse" {
		t.Fatalf("result = %+v", r)
	}

	hit["entryId"] = json.RawMessage(`7`)
	r, err = hitToResult(hit)
	if err != nil || r.EntryID != 7 {
		t.Fatalf("hitToResult() = %+v, %v", r, err)
	}
}
