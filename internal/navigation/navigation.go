// Package navigation rebuilds the declared document order as a linkable
// tree. Entries whose backing file never made it through the pipeline are
// pruned; declared sibling order is never changed.
package navigation

import (
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/docmodel"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

// Assembler builds navigation trees from a project's document configuration
// and the processed documents of one run.
type Assembler struct {
	urlPrefix       string
	headingMaxLevel int
}

// Option adjusts assembler behavior.
type Option func(*Assembler)

// WithURLPrefix prepends a site prefix to every generated URL.
func WithURLPrefix(prefix string) Option {
	return func(a *Assembler) { a.urlPrefix = prefix }
}

// WithHeadingChildren adds in-page heading entries (levels 2 through
// maxLevel) as children of each document node.
func WithHeadingChildren(maxLevel int) Option {
	return func(a *Assembler) { a.headingMaxLevel = maxLevel }
}

// NewAssembler returns an Assembler. Without options, URLs are rooted at "/"
// and no heading children are generated.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Build assembles the navigation tree. The returned root is synthetic; its
// children are the top-level entries in declared order.
//
// A node whose path has no processed document is dropped together with its
// subtree, with a warning. A node without a path survives only while it
// still has children after pruning.
func (a *Assembler) Build(roots []config.DocumentNode, processed map[string]docmodel.ProcessedDocument) *docmodel.NavNode {
	rootNode := &docmodel.NavNode{Title: "root"}
	for i := range roots {
		if child := a.buildNode(&roots[i], processed); child != nil {
			rootNode.Children = append(rootNode.Children, child)
		}
	}
	return rootNode
}

func (a *Assembler) buildNode(node *config.DocumentNode, processed map[string]docmodel.ProcessedDocument) *docmodel.NavNode {
	nav := &docmodel.NavNode{Title: node.Title}

	if node.HasPath() {
		doc, ok := processed[node.Path]
		if !ok {
			slog.Warn("dropping navigation entry, backing file was not processed",
				logfields.Path(node.Path))
			return nil
		}
		nav.URL = a.urlFor(node.Path)
		a.appendHeadingChildren(nav, doc)
	}

	for i := range node.Children {
		if child := a.buildNode(&node.Children[i], processed); child != nil {
			nav.Children = append(nav.Children, child)
		}
	}

	// Neither document-backed nor structural any more.
	if nav.URL == "" && len(nav.Children) == 0 {
		return nil
	}
	return nav
}

func (a *Assembler) appendHeadingChildren(nav *docmodel.NavNode, doc docmodel.ProcessedDocument) {
	if a.headingMaxLevel < 2 {
		return
	}
	for _, h := range doc.Headings {
		if h.Level >= 2 && h.Level <= a.headingMaxLevel {
			nav.Children = append(nav.Children, &docmodel.NavNode{
				Title: h.Text,
				URL:   nav.URL + "#" + h.Anchor,
			})
		}
	}
}

func (a *Assembler) urlFor(path string) string {
	return URLFor(a.urlPrefix, path)
}

// URLFor maps a repository-relative markdown path to a site URL: the
// extension is stripped, "dir/index.md" becomes "dir/", repeated slashes
// collapse, and exactly one leading slash remains.
func URLFor(prefix, path string) string {
	base := strings.TrimSuffix(path, ".md")
	if base == "index" {
		base = ""
	} else if strings.HasSuffix(base, "/index") {
		base = strings.TrimSuffix(base, "index")
	}

	url := prefix + "/" + base
	for strings.Contains(url, "//") {
		url = strings.ReplaceAll(url, "//", "/")
	}
	if !strings.HasPrefix(url, "/") {
		url = "/" + url
	}
	return url
}
