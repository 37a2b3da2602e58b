package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/komiyamma/imageplan/internal/corpus"
	"github.com/komiyamma/imageplan/internal/docrepo"
	"github.com/komiyamma/imageplan/internal/ledger"
)

// Ledger loads the current ledger.
func (s *Service) Ledger() (*ledger.Ledger, error) {
	l, err := s.ledger.Load()
	if err != nil {
		return nil, asDomainError(err, CodeLedgerUnreadable)
	}
	return l, nil
}

// Entries is the search.EntrySource view of the ledger.
func (s *Service) Entries(_ context.Context) ([]ledger.Entry, error) {
	l, err := s.Ledger()
	if err != nil {
		return nil, err
	}
	return l.Entries(), nil
}

// Compact removes entries already embedded in their documents and renumbers
// the rest. The file is rewritten only when its text changes.
func (s *Service) Compact(ctx context.Context) (ledger.CompactReport, error) {
	l, err := s.Ledger()
	if err != nil {
		return ledger.CompactReport{}, err
	}
	before := l.Serialize()
	report, err := l.Compact(docrepo.ReadResolver(s.docs))
	if err != nil {
		return ledger.CompactReport{}, asDomainError(err, CodeDocumentMissing)
	}
	if err := s.save(l, before); err != nil {
		return ledger.CompactReport{}, err
	}
	for _, missing := range report.Missing {
		s.logger.Warn("source document missing; entries kept", zap.String("document", missing))
	}
	s.logger.Info("ledger compacted",
		zap.Int("before", report.Before),
		zap.Int("after", report.After),
		zap.Int("removed", len(report.Removed)),
	)
	if len(report.Removed) > 0 || report.Before != report.After {
		s.mirror(ctx, l.Entries(), report.Removed)
	}
	return report, nil
}

// Repair drops header lines repeated inside the table.
func (s *Service) Repair(ctx context.Context) (ledger.MaintenanceReport, error) {
	return s.maintain(ctx, "repair", func(l *ledger.Ledger) ledger.MaintenanceReport {
		return l.RepairHeaders()
	})
}

// Sort orders rows by ID.
func (s *Service) Sort(ctx context.Context) (ledger.MaintenanceReport, error) {
	return s.maintain(ctx, "sort", func(l *ledger.Ledger) ledger.MaintenanceReport {
		return l.SortByID()
	})
}

// Dedupe keeps the first row of every image name.
func (s *Service) Dedupe(ctx context.Context) (ledger.MaintenanceReport, error) {
	return s.maintain(ctx, "dedupe", func(l *ledger.Ledger) ledger.MaintenanceReport {
		return l.Dedupe()
	})
}

// FixPaths prefixes bare source document names with prefix, defaulting to
// the configured path prefix.
func (s *Service) FixPaths(ctx context.Context, prefix string) (ledger.MaintenanceReport, error) {
	if prefix == "" {
		prefix = s.cfg.PathPrefix
	}
	return s.maintain(ctx, "fix-paths", func(l *ledger.Ledger) ledger.MaintenanceReport {
		return l.FixPaths(prefix)
	})
}

func (s *Service) maintain(ctx context.Context, pass string, apply func(*ledger.Ledger) ledger.MaintenanceReport) (ledger.MaintenanceReport, error) {
	l, err := s.Ledger()
	if err != nil {
		return ledger.MaintenanceReport{}, err
	}
	before := l.Serialize()
	previous := l.Entries()
	report := apply(l)
	if err := s.save(l, before); err != nil {
		return ledger.MaintenanceReport{}, err
	}
	s.logger.Info("ledger maintained",
		zap.String("pass", pass),
		zap.Int("before", report.Before),
		zap.Int("removed", report.Removed),
		zap.Int("changed", report.Changed),
		zap.Int("after", report.After),
	)
	if report.Removed > 0 || report.Changed > 0 {
		s.mirror(ctx, l.Entries(), dropped(previous, l.Entries()))
	}
	return report, nil
}

func (s *Service) save(l *ledger.Ledger, before string) error {
	if l.Serialize() == before {
		return nil
	}
	if err := s.ledger.Save(l); err != nil {
		return domainError(CodeWriteFailed, err.Error(), s.ledger.Path(), err)
	}
	return nil
}

// dropped lists the entries of previous whose image name no longer appears.
func dropped(previous, current []ledger.Entry) []ledger.Entry {
	kept := make(map[string]struct{}, len(current))
	for _, e := range current {
		kept[ledger.NameKey(e.ImageName)] = struct{}{}
	}
	var out []ledger.Entry
	for _, e := range previous {
		if _, ok := kept[ledger.NameKey(e.ImageName)]; !ok {
			out = append(out, e)
		}
	}
	return out
}

// Validate scans the docs directory and reports duplicate references along
// with duplicate ledger image names.
func (s *Service) Validate(ctx context.Context) (corpus.Report, error) {
	l, err := s.Ledger()
	if err != nil {
		return corpus.Report{}, err
	}
	ix, err := s.scannerOrDefault().Build(ctx, s.corpusDir, s.ledger.Path())
	if err != nil {
		return corpus.Report{}, fmt.Errorf("scan corpus: %w", err)
	}
	report := corpus.Validate(ix, l.Entries())
	s.logger.Info("corpus validated",
		zap.Int("documents", report.Documents),
		zap.Int("local_duplicates", len(report.Local)),
		zap.Int("global_duplicates", len(report.Global)),
		zap.Int("ledger_duplicates", len(report.Ledger)),
	)
	return report, nil
}

// Sync pushes the whole ledger to the database mirror and the search index.
// Unlike the best-effort mirroring after a run, failures are returned.
func (s *Service) Sync(ctx context.Context) (int, error) {
	l, err := s.Ledger()
	if err != nil {
		return 0, err
	}
	entries := l.Entries()
	if s.recorder != nil {
		if err := s.recorder.ReplaceEntries(ctx, entries); err != nil {
			return 0, fmt.Errorf("mirror ledger: %w", err)
		}
	}
	if s.indexer != nil {
		if err := s.indexer.IndexEntries(ctx, entries); err != nil {
			return 0, fmt.Errorf("index entries: %w", err)
		}
	}
	s.logger.Info("ledger synced", zap.Int("entries", len(entries)))
	return len(entries), nil
}
