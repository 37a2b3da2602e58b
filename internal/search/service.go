package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/komiyamma/imageplan/internal/ledger"
)

// EntrySource loads the current ledger entries for the local fallback.
type EntrySource func(ctx context.Context) ([]ledger.Entry, error)

// Service tries Meilisearch first, then the PostgreSQL mirror, then a scan
// of the local ledger. Either remote backend may be nil.
type Service struct {
	meili  *Meili
	pgfts  *PgFTS
	local  EntrySource
	logger *zap.Logger
}

func NewService(meili *Meili, pgfts *PgFTS, local EntrySource, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{meili: meili, pgfts: pgfts, local: local, logger: logger}
}

func (s *Service) Search(ctx context.Context, q Query) (Response, error) {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: BackendMeili}, nil
		}
		s.logger.Warn("meilisearch error, falling back", zap.Error(err))
	}

	if s.pgfts != nil {
		results, total, err := s.pgfts.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: BackendPG}, nil
		}
		s.logger.Warn("pgfts error, falling back", zap.Error(err))
	}

	if s.local == nil {
		return Response{Results: []Result{}, Query: q.Text, Backend: BackendLocal}, nil
	}
	entries, err := s.local(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("load ledger for search: %w", err)
	}
	results, total := SearchEntries(entries, q)
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: BackendLocal}, nil
}

// IndexEntries pushes every entry to Meilisearch. It is a no-op without a
// healthy Meilisearch.
func (s *Service) IndexEntries(_ context.Context, entries []ledger.Entry) error {
	if s.meili == nil || !s.meili.Healthy() {
		return nil
	}
	records := make([]EntryRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, NewRecord(e))
	}
	if err := s.meili.IndexRecords(records); err != nil {
		return fmt.Errorf("index ledger entries: %w", err)
	}
	s.logger.Debug("ledger indexed", zap.Int("entries", len(records)))
	return nil
}

// RemoveEntries drops entries that left the ledger, e.g. after compaction.
func (s *Service) RemoveEntries(_ context.Context, entries []ledger.Entry) error {
	if s.meili == nil || !s.meili.Healthy() {
		return nil
	}
	for _, e := range entries {
		if err := s.meili.DeleteRecord(RecordKey(e.ImageName)); err != nil {
			return fmt.Errorf("remove %s from index: %w", e.ImageName, err)
		}
	}
	return nil
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
