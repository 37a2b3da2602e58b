package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/komiyamma/imageplan/internal/config"
	"github.com/komiyamma/imageplan/internal/corpus"
	"github.com/komiyamma/imageplan/internal/docrepo"
	"github.com/komiyamma/imageplan/internal/inject"
	"github.com/komiyamma/imageplan/internal/ledger"
	"github.com/komiyamma/imageplan/internal/oracle"
	"github.com/komiyamma/imageplan/internal/refscan"
	"github.com/komiyamma/imageplan/internal/store"
	"github.com/komiyamma/imageplan/internal/util"
)

type corpusScanner interface {
	Build(ctx context.Context, dir string, exclude ...string) (*corpus.Index, error)
}

type outcomeRecorder interface {
	RecordOutcome(ctx context.Context, outcome store.Outcome) error
	ReplaceEntries(ctx context.Context, entries []ledger.Entry) error
}

type entryIndexer interface {
	IndexEntries(ctx context.Context, entries []ledger.Entry) error
	RemoveEntries(ctx context.Context, entries []ledger.Entry) error
}

// Options are the parsed insertion settings.
type Options struct {
	Policy   oracle.Policy
	Mode     inject.Mode
	Position inject.Position
	Template string
	// Global checks names against every document under the docs dir.
	Global bool
	// Resume injects a planned entry whose reference is missing from its own
	// document instead of skipping it.
	Resume bool
}

func OptionsFromConfig(cfg config.Config) (Options, error) {
	policy, err := oracle.ParsePolicy(cfg.DuplicatePolicy)
	if err != nil {
		return Options{}, err
	}
	mode, err := inject.ParseMode(cfg.AnchorMode)
	if err != nil {
		return Options{}, err
	}
	position, err := inject.ParsePosition(cfg.Position)
	if err != nil {
		return Options{}, err
	}
	template := cfg.MarkupTemplate
	if strings.TrimSpace(template) == "" {
		template = inject.DefaultTemplate
	}
	return Options{
		Policy:   policy,
		Mode:     mode,
		Position: position,
		Template: template,
		Global:   cfg.GlobalScope,
		Resume:   cfg.ResumePlanned,
	}, nil
}

// Service applies insertion requests: it decides with the oracle, writes
// the document and only then appends the ledger row.
type Service struct {
	cfg       config.Config
	opts      Options
	ledger    *ledger.File
	docs      docrepo.Repository
	corpusDir string
	scanner   corpusScanner
	recorder  outcomeRecorder
	indexer   entryIndexer
	logger    *zap.Logger
}

func New(cfg config.Config, ledgerFile *ledger.File, docs docrepo.Repository, logger *zap.Logger) (*Service, error) {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, domainError(CodeInvalidRequest, err.Error(), nil, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		opts:      opts,
		ledger:    ledgerFile,
		docs:      docs,
		corpusDir: filepath.Join(cfg.DocRoot, cfg.DocsDir),
		logger:    logger,
	}, nil
}

// UseCorpus sets the scanner used for the global scope and validation.
func (s *Service) UseCorpus(scanner corpusScanner) {
	s.scanner = scanner
}

// UseRecorder enables the outcome audit and ledger mirror.
func (s *Service) UseRecorder(recorder outcomeRecorder) {
	s.recorder = recorder
}

// UseIndexer enables search indexing of committed entries.
func (s *Service) UseIndexer(indexer entryIndexer) {
	s.indexer = indexer
}

func (s *Service) Options() Options {
	return s.opts
}

// run is the state of one Add or Batch call.
type run struct {
	id     string
	ledger *ledger.Ledger
	acc    *oracle.Accumulator
	corpus *corpus.Index
	// contents is keyed by resolved path so that different spellings of the
	// same document share one view.
	contents map[string]string
	added    []ledger.Entry
}

func (s *Service) newRun(ctx context.Context) (*run, error) {
	l, err := s.ledger.Load()
	if err != nil {
		return nil, asDomainError(err, CodeLedgerUnreadable)
	}
	r := &run{
		id:       util.NewID("run"),
		ledger:   l,
		acc:      oracle.NewAccumulator(),
		contents: make(map[string]string),
	}
	if s.opts.Global {
		ix, err := s.scannerOrDefault().Build(ctx, s.corpusDir, s.ledger.Path())
		if err != nil {
			return nil, fmt.Errorf("scan corpus: %w", err)
		}
		r.corpus = ix
	}
	return r, nil
}

func (s *Service) scannerOrDefault() corpusScanner {
	if s.scanner != nil {
		return s.scanner
	}
	return corpus.NewScanner(nil, s.logger)
}

// Add applies a single request.
func (s *Service) Add(ctx context.Context, req Request) (Result, error) {
	report, err := s.Batch(ctx, []Request{req})
	if err != nil {
		return Result{}, err
	}
	return report.Results[0], nil
}

// Batch applies requests in order. A failed request does not stop the batch;
// the returned error is reserved for failures that affect every request.
func (s *Service) Batch(ctx context.Context, reqs []Request) (BatchReport, error) {
	r, err := s.newRun(ctx)
	if err != nil {
		return BatchReport{}, err
	}
	report := BatchReport{RunID: r.id, Results: make([]Result, 0, len(reqs))}
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := s.process(ctx, r, req)
		s.logOutcome(r.id, result)
		s.record(ctx, r.id, result)
		report.Results = append(report.Results, result)
	}
	if len(r.added) > 0 {
		s.mirror(ctx, r.ledger.Entries(), nil)
	}
	counts := report.Counts()
	s.logger.Info("batch finished",
		zap.String("run_id", r.id),
		zap.Int("requests", len(reqs)),
		zap.Int("added", counts[StatusAdded]),
		zap.Int("renamed", counts[StatusRenamed]),
		zap.Int("resumed", counts[StatusResumed]),
		zap.Int("skipped", counts[StatusSkipped]),
		zap.Int("failed", counts[StatusFailed]),
	)
	return report, nil
}

func (s *Service) process(ctx context.Context, r *run, req Request) Result {
	entry := req.Entry()
	result := Result{Status: StatusFailed, Entry: entry}
	if err := entry.Validate(); err != nil {
		return failed(result, asDomainError(err, CodeInvalidRequest))
	}
	position := s.opts.Position
	if strings.TrimSpace(req.Position) != "" {
		p, err := inject.ParsePosition(req.Position)
		if err != nil {
			return failed(result, domainError(CodeInvalidRequest, err.Error(), nil, err))
		}
		position = p
	}

	path, err := s.docs.Resolve(entry.SourceDocument)
	if err != nil {
		return failed(result, asDomainError(err, CodeDocumentMissing))
	}
	content, err := r.content(s.docs, path)
	if err != nil {
		return failed(result, asDomainError(err, CodeDocumentMissing))
	}

	candidate := entry
	candidate.SourceDocument = path
	opts := oracle.Options{Policy: s.opts.Policy, Batch: r.acc}
	if r.corpus != nil {
		opts.Corpus = r.corpus
	}
	decision := oracle.Classify(candidate, content, r.ledger.Entries(), opts)
	result.Decision = decision

	if twin, ok := s.resumable(decision, path); ok {
		return s.resume(r, result, req, twin, path, content, position)
	}

	switch decision.Kind {
	case oracle.SkipAlreadyEmbedded:
		result.Status = StatusSkipped
		result.Reason = fmt.Sprintf("%s is already referenced in %s", decision.ImageName, entry.SourceDocument)
		return result
	case oracle.SkipDuplicatePlanned:
		result.Status = StatusSkipped
		result.Reason = fmt.Sprintf("%s is already used (%s)", decision.ImageName, decision.Scope)
		return result
	}

	entry.ImageName = decision.ImageName
	entry.RelativeLink = decision.RelativeLink
	result.Entry = entry

	injected, derr := s.inject(r, path, content, entry, req.description(entry.ImageName), position)
	if derr != nil {
		return failed(result, derr)
	}
	result.Warnings = ambiguityWarnings(injected)

	entry.ID = ledger.NextID(r.ledger.Entries())
	if err := s.ledger.Append(entry); err != nil {
		// The document already holds the reference, so a rerun skips it as
		// embedded.
		return failed(result, domainError(CodeWriteFailed, "document updated but ledger append failed", entry.SourceDocument, err))
	}
	r.ledger.Add(entry)
	r.added = append(r.added, entry)
	result.Entry = entry

	result.Status = StatusAdded
	if decision.Kind == oracle.RenameAndProceed {
		result.Status = StatusRenamed
		result.Reason = fmt.Sprintf("renamed from %s (%s)", req.Entry().ImageName, decision.Scope)
	}
	return result
}

// resumable reports whether decision found a ledger entry for the same image
// in the same document whose reference never made it into the document.
func (s *Service) resumable(decision oracle.Decision, path string) (ledger.Entry, bool) {
	if !s.opts.Resume || decision.Conflict == nil || decision.Scope != oracle.ScopeLedger {
		return ledger.Entry{}, false
	}
	if decision.Kind != oracle.SkipDuplicatePlanned {
		return ledger.Entry{}, false
	}
	twin := *decision.Conflict
	twinPath, err := s.docs.Resolve(twin.SourceDocument)
	if err != nil || twinPath != path {
		return ledger.Entry{}, false
	}
	return twin, true
}

func (s *Service) resume(r *run, result Result, req Request, twin ledger.Entry, path, content string, position inject.Position) Result {
	result.Entry = twin
	injected, derr := s.inject(r, path, content, twin, req.description(twin.ImageName), position)
	if derr != nil {
		return failed(result, derr)
	}
	result.Warnings = ambiguityWarnings(injected)
	result.Status = StatusResumed
	result.Reason = fmt.Sprintf("planned entry %d had no reference in its document", twin.ID)
	return result
}

func (s *Service) inject(r *run, path, content string, entry ledger.Entry, description string, position inject.Position) (inject.Result, *DomainError) {
	markup := inject.Markup(s.opts.Template, description, entry.RelativeLink)
	injected, err := inject.Inject(content, entry.Anchor, markup, position, s.opts.Mode)
	if err != nil {
		return inject.Result{}, asDomainError(err, CodeInvalidRequest)
	}
	if injected.Ambiguous() {
		s.logger.Warn("anchor is ambiguous; used first occurrence",
			zap.String("document", entry.SourceDocument),
			zap.String("image", entry.ImageName),
			zap.Int("occurrences", injected.Occurrences),
		)
	}
	// The next run decides idempotence by scanning, so the insertion has to
	// scan back as an embedded reference.
	if !refscan.Embedded(injected.Content, entry.ImageName) {
		return inject.Result{}, domainError(CodeInvalidRequest,
			"inserted markup does not scan as an image reference (anchor inside code, or template without a link)",
			entry.SourceDocument, nil)
	}
	if err := s.docs.Write(entry.SourceDocument, injected.Content); err != nil {
		return inject.Result{}, asDomainError(err, CodeWriteFailed)
	}
	r.contents[path] = injected.Content
	r.acc.Commit(path, entry.ImageName)
	return injected, nil
}

func (r *run) content(docs docrepo.Repository, path string) (string, error) {
	if content, ok := r.contents[path]; ok {
		return content, nil
	}
	content, err := docs.Read(path)
	if err != nil {
		return "", err
	}
	r.contents[path] = content
	return content, nil
}

func failed(result Result, err *DomainError) Result {
	result.Status = StatusFailed
	result.Err = err
	result.Reason = err.Message
	return result
}

func ambiguityWarnings(injected inject.Result) []string {
	if !injected.Ambiguous() {
		return nil
	}
	return []string{fmt.Sprintf("anchor occurs %d times; first occurrence used (line %d)", injected.Occurrences, injected.Line)}
}

func (s *Service) logOutcome(runID string, result Result) {
	fields := []zap.Field{
		zap.String("run_id", runID),
		zap.String("image", result.Entry.ImageName),
		zap.String("document", result.Entry.SourceDocument),
		zap.String("status", string(result.Status)),
	}
	if result.Reason != "" {
		fields = append(fields, zap.String("reason", result.Reason))
	}
	if result.Err != nil {
		fields = append(fields, zap.String("code", result.Err.Code))
		s.logger.Warn("request failed", fields...)
		return
	}
	s.logger.Info("request processed", fields...)
}

func (s *Service) record(ctx context.Context, runID string, result Result) {
	if s.recorder == nil {
		return
	}
	outcome := store.Outcome{
		RunID:          runID,
		Status:         string(result.Status),
		Reason:         result.Reason,
		SourceDocument: result.Entry.SourceDocument,
		ImageName:      result.Entry.ImageName,
	}
	if result.Err != nil {
		outcome.ErrorCode = result.Err.Code
	}
	if result.Changed() && result.Entry.ID > 0 {
		id := result.Entry.ID
		outcome.EntryID = &id
	}
	if err := s.recorder.RecordOutcome(ctx, outcome); err != nil {
		s.logger.Warn("record outcome failed", zap.String("run_id", runID), zap.Error(err))
	}
}

// mirror pushes entries to the database mirror and the search index, and
// drops removed entries from the index. Failures are logged only: the
// markdown ledger stays authoritative.
func (s *Service) mirror(ctx context.Context, entries, removed []ledger.Entry) {
	if s.recorder != nil {
		if err := s.recorder.ReplaceEntries(ctx, entries); err != nil {
			s.logger.Warn("mirror ledger failed", zap.Error(err))
		}
	}
	if s.indexer != nil {
		if len(removed) > 0 {
			if err := s.indexer.RemoveEntries(ctx, removed); err != nil {
				s.logger.Warn("remove search records failed", zap.Error(err))
			}
		}
		if err := s.indexer.IndexEntries(ctx, entries); err != nil {
			s.logger.Warn("index entries failed", zap.Error(err))
		}
	}
}
