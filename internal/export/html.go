package export

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"

	"git.home.luguber.info/inful/docpipe/internal/docmodel"
	"git.home.luguber.info/inful/docpipe/internal/navigation"
	"git.home.luguber.info/inful/docpipe/internal/pathutil"
)

// markdownEngine renders document bodies. Goldmark instances are safe for
// concurrent use once built. Raw HTML passes through; exported pages show
// repository content as its authors wrote it.
var markdownEngine = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{if .Canonical}}<link rel="canonical" href="{{.Canonical}}">
{{end}}</head>
<body>
{{.Nav}}<main class="docs-content">
{{.Body}}
</main>
</body>
</html>
`))

type pageData struct {
	Title     string
	Canonical string
	Nav       template.HTML
	Body      template.HTML
}

// writeHTML renders one page per document plus a standalone navigation block.
func (e *Exporter) writeHTML(docs []docmodel.ProcessedDocument, nav *docmodel.NavNode) error {
	navHTML := ""
	if nav != nil && len(nav.Children) > 0 {
		navHTML = navigation.RenderHTML(nav)
		navPath := filepath.Join(e.cfg.Directory, navigationHTMLFile)
		if err := os.WriteFile(navPath, []byte(navHTML), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", navPath, err)
		}
	}

	for _, doc := range docs {
		page, err := e.renderPage(doc, navHTML)
		if err != nil {
			return fmt.Errorf("failed to render page for %s: %w", doc.FilePath, err)
		}
		pagePath := filepath.Join(e.cfg.Directory, htmlFileName(doc.FilePath))
		if err := os.WriteFile(pagePath, page, 0o600); err != nil {
			return fmt.Errorf("failed to write page %s: %w", pagePath, err)
		}
	}

	slog.Debug("html pages written", slog.Int("count", len(docs)))
	return nil
}

func (e *Exporter) renderPage(doc docmodel.ProcessedDocument, navHTML string) ([]byte, error) {
	var body bytes.Buffer
	if err := markdownEngine.Convert([]byte(doc.Body), &body); err != nil {
		return nil, fmt.Errorf("markdown conversion failed: %w", err)
	}

	rewritten, err := rewriteMarkdownHrefs(body.Bytes(), doc.FilePath)
	if err != nil {
		return nil, fmt.Errorf("link rewrite failed: %w", err)
	}

	canonical := ""
	if e.cfg.BaseURL != "" {
		canonical = strings.TrimSuffix(e.cfg.BaseURL, "/") + navigation.URLFor("", doc.FilePath)
	}

	var page bytes.Buffer
	err = pageTemplate.Execute(&page, pageData{
		Title:     doc.Title,
		Canonical: canonical,
		Nav:       template.HTML(navHTML),
		Body:      template.HTML(rewritten),
	})
	if err != nil {
		return nil, err
	}
	return page.Bytes(), nil
}

// htmlFileName maps a repository path onto its exported page name:
// "docs/guide.md" becomes "docs_guide.html".
func htmlFileName(filePath string) string {
	return flattenPath(strings.TrimSuffix(filePath, ".md")) + ".html"
}

// rewriteMarkdownHrefs retargets relative markdown links at their exported
// page names so the export directory browses standalone. Absolute URLs,
// site-rooted paths, and pure anchors pass through untouched.
func rewriteMarkdownHrefs(fragment []byte, sourcePath string) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(fragment))
	if err != nil {
		return nil, err
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for i := range n.Attr {
				if n.Attr[i].Key == "href" {
					n.Attr[i].Val = rewriteHref(n.Attr[i].Val, sourcePath)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	// html.Parse wraps the fragment in a full document; only the body's
	// children are ours to emit.
	body := findElement(doc, "body")
	if body == nil {
		return fragment, nil
	}
	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

// rewriteHref resolves href against the linking document's directory. If it
// lands on a markdown file inside the repository, the exported page name is
// swapped in, keeping any anchor. Anything else comes back unchanged,
// including links that resolve above the repository root.
func rewriteHref(href, sourcePath string) string {
	// A colon anywhere covers schemes: https://, mailto:, tel:.
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "/") ||
		strings.Contains(href, ":") {
		return href
	}

	target, anchor, _ := strings.Cut(href, "#")
	if !strings.HasSuffix(target, ".md") {
		return href
	}

	resolved, err := pathutil.Normalize(joinFromSource(sourcePath, target))
	if err != nil {
		return href
	}

	out := htmlFileName(resolved)
	if anchor != "" {
		out += "#" + anchor
	}
	return out
}

func joinFromSource(sourcePath, target string) string {
	dir := path.Dir(sourcePath)
	if dir == "." {
		return target
	}
	return dir + "/" + target
}
