package oracle

import (
	"github.com/komiyamma/imageplan/internal/ledger"
	"github.com/komiyamma/imageplan/internal/refscan"
)

// Accumulator threads batch state through successive Classify calls: names
// committed so far and the referenced names of every document already seen,
// so one document is scanned once per batch. A nil Accumulator is valid and
// remembers nothing.
type Accumulator struct {
	names     map[string]struct{}
	documents map[string]map[string]struct{}
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		names:     make(map[string]struct{}),
		documents: make(map[string]map[string]struct{}),
	}
}

// Commit records that name was injected into document.
func (a *Accumulator) Commit(document, name string) {
	if a == nil {
		return
	}
	a.names[ledger.NameKey(name)] = struct{}{}
	if names, ok := a.documents[document]; ok {
		names[ledger.NameKey(refscan.Basename(name))] = struct{}{}
	}
}

// Forget drops the cached scan of document, e.g. after an external edit.
func (a *Accumulator) Forget(document string) {
	if a == nil {
		return
	}
	delete(a.documents, document)
}

// Committed is the number of names committed in this batch.
func (a *Accumulator) Committed() int {
	return a.size()
}

func (a *Accumulator) contains(key string) bool {
	if a == nil {
		return false
	}
	_, ok := a.names[key]
	return ok
}

func (a *Accumulator) size() int {
	if a == nil {
		return 0
	}
	return len(a.names)
}

func (a *Accumulator) documentNames(document, content string) map[string]struct{} {
	if a == nil {
		return refscan.Basenames(content)
	}
	if names, ok := a.documents[document]; ok {
		return names
	}
	names := refscan.Basenames(content)
	a.documents[document] = names
	return names
}
