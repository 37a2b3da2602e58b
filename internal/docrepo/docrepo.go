// Package docrepo reads and writes the markdown documents images are
// injected into.
package docrepo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/komiyamma/imageplan/internal/util"
)

// ErrDocumentMissing wraps fs.ErrNotExist so callers may test for either.
var ErrDocumentMissing = fmt.Errorf("source document missing: %w", fs.ErrNotExist)

// Repository is the document store used by the insertion pipeline.
type Repository interface {
	Read(document string) (string, error)
	Write(document, content string) error
	Resolve(document string) (string, error)
}

// FS resolves documents relative to a root directory. A document that is not
// found there is looked up again under the docs directory, so ledger rows may
// name "docs/a.md" or just "a.md".
type FS struct {
	root    string
	docsDir string

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewFS(root, docsDir string) *FS {
	return &FS{
		root:    root,
		docsDir: docsDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (f *FS) Root() string { return f.root }

// Resolve returns the on-disk path of document.
func (f *FS) Resolve(document string) (string, error) {
	document = strings.TrimSpace(document)
	if document == "" {
		return "", fmt.Errorf("%w: empty document name", ErrDocumentMissing)
	}
	for _, candidate := range f.candidates(document) {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrDocumentMissing, document)
}

func (f *FS) candidates(document string) []string {
	native := filepath.FromSlash(document)
	if filepath.IsAbs(native) {
		return []string{native}
	}
	out := []string{filepath.Join(f.root, native)}
	if f.docsDir == "" {
		return out
	}
	prefix := filepath.ToSlash(filepath.Clean(f.docsDir)) + "/"
	if !strings.HasPrefix(filepath.ToSlash(document), prefix) {
		out = append(out, filepath.Join(f.root, f.docsDir, native))
	}
	return out
}

func (f *FS) Read(document string) (string, error) {
	path, err := f.Resolve(document)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", document, err)
	}
	return string(data), nil
}

// Write replaces an existing document. It never creates one.
func (f *FS) Write(document, content string) error {
	_, err := f.write(document, content)
	return err
}

func (f *FS) write(document, content string) (string, error) {
	path, err := f.Resolve(document)
	if err != nil {
		return "", err
	}
	lock := f.lock(path)
	lock.Lock()
	defer lock.Unlock()
	if err := util.WriteFileAtomic(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", document, err)
	}
	return path, nil
}

func (f *FS) lock(path string) *sync.Mutex {
	f.lockMu.Lock()
	defer f.lockMu.Unlock()
	lock, ok := f.locks[path]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	f.locks[path] = lock
	return lock
}

// ReadResolver adapts a Repository to the func(document) (content, error)
// shape used by the ledger compactor.
func ReadResolver(repo Repository) func(string) (string, error) {
	return repo.Read
}
