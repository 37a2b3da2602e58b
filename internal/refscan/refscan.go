// Package refscan finds image references in markdown documents. Two forms
// are recognised: bracket links (![alt](target)) and embedded HTML markup
// carrying a src attribute (<img src="target">). References inside code
// spans and fenced blocks are not references.
package refscan

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/unicode/norm"
)

type Kind string

const (
	KindLink  Kind = "link"
	KindEmbed Kind = "embed"
)

// Reference is one image reference found in a document.
type Reference struct {
	Kind   Kind   `json:"kind"`
	Target string `json:"target"`
	Name   string `json:"name"`
}

var srcAttr = regexp.MustCompile(`(?is)<img\b[^>]*?\bsrc\s*=\s*["']([^"']+)["']`)

var (
	parserOnce     sync.Once
	parserInstance goldmark.Markdown
)

func markdown() goldmark.Markdown {
	parserOnce.Do(func() {
		parserInstance = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return parserInstance
}

// Scan returns every reference in content, in document order.
func Scan(content string) []Reference {
	if content == "" {
		return nil
	}
	source := []byte(content)
	document := markdown().Parser().Parse(text.NewReader(source))

	var refs []Reference
	_ = ast.Walk(document, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Image:
			refs = append(refs, newReference(KindLink, string(n.Destination)))
		case *ast.HTMLBlock:
			var block strings.Builder
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				segment := lines.At(i)
				block.Write(segment.Value(source))
			}
			if n.HasClosure() {
				block.Write(n.ClosureLine.Value(source))
			}
			refs = append(refs, scanHTML(block.String())...)
		case *ast.RawHTML:
			var inline strings.Builder
			for i := 0; i < n.Segments.Len(); i++ {
				segment := n.Segments.At(i)
				inline.Write(segment.Value(source))
			}
			refs = append(refs, scanHTML(inline.String())...)
		}
		return ast.WalkContinue, nil
	})
	return refs
}

func scanHTML(fragment string) []Reference {
	var refs []Reference
	for _, match := range srcAttr.FindAllStringSubmatch(fragment, -1) {
		refs = append(refs, newReference(KindEmbed, match[1]))
	}
	return refs
}

func newReference(kind Kind, target string) Reference {
	return Reference{Kind: kind, Target: target, Name: Basename(target)}
}

// Basenames returns the set of referenced file names, keyed by Key.
func Basenames(content string) map[string]struct{} {
	names := make(map[string]struct{})
	for _, ref := range Scan(content) {
		if ref.Name != "" {
			names[Key(ref.Name)] = struct{}{}
		}
	}
	return names
}

// Embedded reports whether content references a file named like name.
func Embedded(content, name string) bool {
	_, ok := Basenames(content)[Key(Basename(name))]
	return ok
}

// Basename extracts the file name from a link target, ignoring query,
// fragment and percent-encoding.
func Basename(target string) string {
	target = strings.TrimSpace(target)
	target = strings.Trim(target, "<>")
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	target = strings.ReplaceAll(target, `\`, "/")
	if decoded, err := url.PathUnescape(target); err == nil {
		target = decoded
	}
	target = strings.TrimRight(target, "/")
	if target == "" {
		return ""
	}
	return path.Base(target)
}

// Key is the comparison form of a file name.
func Key(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
