// Package oracle decides whether a candidate image name is free to commit.
// A name is checked against the target document, the ledger, an optional
// corpus-wide index and the names already committed earlier in the same
// batch.
package oracle

import (
	"fmt"
	"path"
	"strings"

	"github.com/komiyamma/imageplan/internal/ledger"
	"github.com/komiyamma/imageplan/internal/refscan"
)

type Kind string

const (
	Proceed              Kind = "proceed"
	SkipAlreadyEmbedded  Kind = "skip_already_embedded"
	SkipDuplicatePlanned Kind = "skip_duplicate_planned"
	RenameAndProceed     Kind = "rename_and_proceed"
)

// Policy selects what happens when a name is already taken elsewhere.
type Policy string

const (
	PolicySkip   Policy = "skip"
	PolicyRename Policy = "rename"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicySkip, "":
		return PolicySkip, nil
	case PolicyRename:
		return PolicyRename, nil
	}
	return "", fmt.Errorf("unknown duplicate policy %q", s)
}

// Scope names where a colliding name was found.
type Scope string

const (
	ScopeNone     Scope = ""
	ScopeDocument Scope = "document"
	ScopeLedger   Scope = "ledger"
	ScopeCorpus   Scope = "corpus"
	ScopeBatch    Scope = "batch"
)

// CorpusIndex answers whether any scanned document references a file name.
type CorpusIndex interface {
	Contains(name string) bool
}

// Decision is the outcome of Classify. ImageName and RelativeLink are the
// values to commit; they differ from the candidate only on rename.
type Decision struct {
	Kind         Kind          `json:"kind"`
	ImageName    string        `json:"image_name"`
	RelativeLink string        `json:"relative_link"`
	Scope        Scope         `json:"scope,omitempty"`
	Conflict     *ledger.Entry `json:"conflict,omitempty"`
}

// Commits reports whether the decision allows mutating document and ledger.
func (d Decision) Commits() bool {
	return d.Kind == Proceed || d.Kind == RenameAndProceed
}

type Options struct {
	Policy Policy
	// Corpus enables the global scope when non-nil.
	Corpus CorpusIndex
	// Batch carries names committed earlier in the same run.
	Batch *Accumulator
}

// Classify decides what to do with candidate. content is the current text of
// candidate.SourceDocument and entries the ledger rows.
func Classify(candidate ledger.Entry, content string, entries []ledger.Entry, opts Options) Decision {
	name := strings.TrimSpace(candidate.ImageName)
	decision := Decision{Kind: Proceed, ImageName: name, RelativeLink: candidate.RelativeLink}

	embedded := opts.Batch.documentNames(candidate.SourceDocument, content)
	if _, ok := embedded[ledger.NameKey(refscan.Basename(name))]; ok {
		decision.Kind = SkipAlreadyEmbedded
		decision.Scope = ScopeDocument
		return decision
	}

	planned := make(map[string]ledger.Entry, len(entries))
	for _, e := range entries {
		key := ledger.NameKey(e.ImageName)
		if _, dup := planned[key]; !dup {
			planned[key] = e
		}
	}
	taken := func(candidateName string) Scope {
		key := ledger.NameKey(candidateName)
		if _, ok := embedded[ledger.NameKey(refscan.Basename(candidateName))]; ok {
			return ScopeDocument
		}
		if _, ok := planned[key]; ok {
			return ScopeLedger
		}
		if opts.Corpus != nil && opts.Corpus.Contains(candidateName) {
			return ScopeCorpus
		}
		if opts.Batch.contains(key) {
			return ScopeBatch
		}
		return ScopeNone
	}

	scope := taken(name)
	if scope == ScopeNone {
		return decision
	}
	decision.Scope = scope
	if twin, ok := planned[ledger.NameKey(name)]; ok {
		decision.Conflict = &twin
	}
	if opts.Policy != PolicyRename {
		decision.Kind = SkipDuplicatePlanned
		return decision
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	limit := len(planned) + len(embedded) + opts.Batch.size() + 1
	if opts.Corpus != nil {
		// The corpus can hold arbitrarily many suffixed names.
		limit += 1 << 16
	}
	for n := 1; n <= limit; n++ {
		renamed := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if taken(renamed) != ScopeNone {
			continue
		}
		decision.Kind = RenameAndProceed
		decision.ImageName = renamed
		decision.RelativeLink = RenameLink(candidate.RelativeLink, name, renamed)
		return decision
	}
	decision.Kind = SkipDuplicatePlanned
	return decision
}

// RenameLink swaps the file name at the end of link for renamed.
func RenameLink(link, original, renamed string) string {
	if strings.HasSuffix(link, original) {
		return strings.TrimSuffix(link, original) + renamed
	}
	if base := refscan.Basename(link); base != "" && strings.HasSuffix(link, base) {
		return strings.TrimSuffix(link, base) + renamed
	}
	if link == "" {
		return renamed
	}
	return strings.TrimSuffix(link, "/") + "/" + renamed
}
