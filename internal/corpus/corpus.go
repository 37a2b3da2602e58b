// Package corpus indexes the image references of every markdown document
// under a directory. The index backs the global uniqueness scope and the
// validation report.
package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/komiyamma/imageplan/internal/refscan"
)

// Document is one scanned file and its references in document order.
type Document struct {
	Name string              `json:"name"`
	Refs []refscan.Reference `json:"refs"`
}

// Index maps referenced file names to the documents that reference them.
type Index struct {
	documents []Document
	byName    map[string][]string
}

func newIndex(documents []Document) *Index {
	sort.Slice(documents, func(i, j int) bool { return documents[i].Name < documents[j].Name })
	ix := &Index{documents: documents, byName: make(map[string][]string)}
	for _, doc := range documents {
		seen := make(map[string]bool)
		for _, ref := range doc.Refs {
			key := refscan.Key(ref.Name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			ix.byName[key] = append(ix.byName[key], doc.Name)
		}
	}
	return ix
}

// FromContents indexes in-memory documents keyed by name.
func FromContents(contents map[string]string) *Index {
	documents := make([]Document, 0, len(contents))
	for name, content := range contents {
		documents = append(documents, Document{Name: name, Refs: refscan.Scan(content)})
	}
	return newIndex(documents)
}

// Contains reports whether any document references a file named like name.
func (ix *Index) Contains(name string) bool {
	if ix == nil {
		return false
	}
	_, ok := ix.byName[refscan.Key(refscan.Basename(name))]
	return ok
}

// Names returns every referenced file name.
func (ix *Index) Names() map[string]struct{} {
	out := make(map[string]struct{}, len(ix.byName))
	for name := range ix.byName {
		out[name] = struct{}{}
	}
	return out
}

// DocumentsFor lists the documents referencing name.
func (ix *Index) DocumentsFor(name string) []string {
	return ix.byName[refscan.Key(refscan.Basename(name))]
}

func (ix *Index) Documents() []Document {
	return ix.documents
}

// Scanner builds an Index from disk. Extracted references are memoised in
// Cache by content digest when one is configured.
type Scanner struct {
	cache  Cache
	logger *zap.Logger
}

func NewScanner(cache Cache, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{cache: cache, logger: logger}
}

// Build scans every *.md file under dir. Paths in exclude (typically the
// ledger itself) are skipped. Document names are slash-separated and
// relative to dir.
func (s *Scanner) Build(ctx context.Context, dir string, exclude ...string) (*Index, error) {
	skip := make(map[string]bool, len(exclude))
	for _, path := range exclude {
		if abs, err := filepath.Abs(path); err == nil {
			skip[abs] = true
		}
	}

	var documents []Document
	hits := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil && skip[abs] {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		refs, cached := s.scan(ctx, string(data))
		if cached {
			hits++
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		documents = append(documents, Document{Name: filepath.ToSlash(rel), Refs: refs})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan corpus %s: %w", dir, err)
	}
	s.logger.Debug("corpus scanned",
		zap.String("dir", dir),
		zap.Int("documents", len(documents)),
		zap.Int("cache_hits", hits),
	)
	return newIndex(documents), nil
}

func (s *Scanner) scan(ctx context.Context, content string) ([]refscan.Reference, bool) {
	if s.cache == nil {
		return refscan.Scan(content), false
	}
	digest := Digest(content)
	refs, ok, err := s.cache.Get(ctx, digest)
	if err != nil {
		s.logger.Warn("corpus cache read failed", zap.Error(err))
	}
	if ok {
		return refs, true
	}
	refs = refscan.Scan(content)
	if err := s.cache.Put(ctx, digest, refs); err != nil {
		s.logger.Warn("corpus cache write failed", zap.Error(err))
	}
	return refs, false
}
