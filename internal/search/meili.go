package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

// Meili indexes and searches ledger entries in Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	index   string
	logger  *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the entry index. An
// unreachable server is not an error: the client starts unhealthy and a
// background loop keeps probing.
func NewMeili(url, apiKey, index string, logger *zap.Logger) *Meili {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		index:  index,
		logger: logger,
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		logger.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        m.index,
		PrimaryKey: "key",
	}); err != nil {
		m.logger.Debug("create index (may already exist)", zap.String("index", m.index), zap.Error(err))
	}

	index := m.client.Index(m.index)
	filterable := []interface{}{"sourceDocument", "imageName"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("update filterable attributes", zap.String("index", m.index), zap.Error(err))
	}
	searchable := []string{"imageName", "payloadText", "anchor", "sourceDocument"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("update searchable attributes", zap.String("index", m.index), zap.Error(err))
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}
	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 20
	}
	request := &meili.SearchRequest{
		IndexUID:              m.index,
		Query:                 q.Text,
		Limit:                 limit,
		AttributesToHighlight: []string{"payloadText"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	}
	if q.Document != "" {
		request.Filter = []string{fmt.Sprintf("sourceDocument = %q", q.Document)}
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{request},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		for _, hit := range sr.Hits {
			r, err := hitToResult(hit)
			if err != nil {
				m.logger.Debug("decode entryId", zap.String("index", m.index), zap.Error(err))
			}
			results = append(results, r)
		}
	}
	return results, total, nil
}

// hitToResult keeps the text fields of a hit even when its entryId does not
// decode; the error is returned alongside.
func hitToResult(hit meili.Hit) (Result, error) {
	r := Result{
		SourceDocument: decodeString(hit, "sourceDocument"),
		ImageName:      decodeString(hit, "imageName"),
		RelativeLink:   decodeString(hit, "relativeLink"),
	}
	r.Snippet = firstNonBlank(decodeFormattedString(hit, "payloadText"), decodeString(hit, "payloadText"))
	if raw, ok := hit["entryId"]; ok {
		if err := json.Unmarshal(raw, &r.EntryID); err != nil {
			r.EntryID = 0
			return r, fmt.Errorf("decode entryId %s: %w", raw, err)
		}
	}
	return r, nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]any
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	value, _ := formatted[key].(string)
	return strings.TrimSpace(value)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexRecords adds or replaces records.
func (m *Meili) IndexRecords(records []EntryRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(m.index).AddDocuments(records, nil)
	return err
}

// DeleteRecord removes one record by key.
func (m *Meili) DeleteRecord(key string) error {
	_, err := m.client.Index(m.index).DeleteDocument(key, nil)
	return err
}
