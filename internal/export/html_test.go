package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/frontmatter"
)

func TestRewriteHref_Shaping(t *testing.T) {
	cases := []struct {
		href   string
		source string
		want   string
	}{
		{"other.md", "docs/guide.md", "docs_other.html"},
		{"../README.md", "docs/guide.md", "README.html"},
		{"sub/page.md#setup", "docs/guide.md", "docs_sub_page.html#setup"},
		{"CONTRIBUTING.md", "README.md", "CONTRIBUTING.html"},
		{"https://example.com/a.md", "docs/guide.md", "https://example.com/a.md"},
		{"mailto:docs@example.com", "docs/guide.md", "mailto:docs@example.com"},
		{"#install", "docs/guide.md", "#install"},
		{"/rooted/a.md", "docs/guide.md", "/rooted/a.md"},
		{"diagram.png", "docs/guide.md", "diagram.png"},
		{"../../outside.md", "docs/guide.md", "../../outside.md"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, rewriteHref(tc.href, tc.source), "%s from %s", tc.href, tc.source)
	}
}

func TestRewriteMarkdownHrefs_TouchesOnlyMarkdownAnchors(t *testing.T) {
	fragment := []byte(`<p><a href="docs/a.md">A</a> and <a href="https://example.com/x">X</a></p>`)

	out, err := rewriteMarkdownHrefs(fragment, "README.md")
	require.NoError(t, err)

	require.Contains(t, string(out), `href="docs_a.html"`)
	require.Contains(t, string(out), `href="https://example.com/x"`)
}

func TestRenderPage_FullPageShape(t *testing.T) {
	e := New(config.ExportConfig{BaseURL: "https://docs.example.com/"})
	doc := processedDoc("docs/guide.md", "Tips & Tricks",
		"# Guide\n\nSee [Other](other.md).\n\n| a | b |\n|---|---|\n| 1 | 2 |\n",
		frontmatter.Fields{{Key: "title", Value: "Tips & Tricks"}})
	navHTML := `<nav class="docs-nav"><ul class="docs-nav__list"></ul></nav>`

	page, err := e.renderPage(doc, navHTML)
	require.NoError(t, err)
	out := string(page)

	require.Contains(t, out, `<h1 id="guide">Guide</h1>`)
	require.Contains(t, out, `href="docs_other.html"`)
	require.Contains(t, out, "<table>")
	require.Contains(t, out, "<title>Tips &amp; Tricks</title>")
	require.Contains(t, out, `<link rel="canonical" href="https://docs.example.com/docs/guide">`)
	require.Contains(t, out, navHTML)
}

func TestRenderPage_NoBaseURL_NoCanonical(t *testing.T) {
	e := New(config.ExportConfig{})
	doc := processedDoc("README.md", "Readme", "hello", nil)

	page, err := e.renderPage(doc, "")
	require.NoError(t, err)
	require.NotContains(t, string(page), "canonical")
}

func TestExport_HTMLFormat_WritesPagesAndNavigation(t *testing.T) {
	dir, _ := exportAll(t, FormatHTML)

	for _, name := range []string{"docs_guide.html", "README.html", "navigation.html"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}

	nav, err := os.ReadFile(filepath.Join(dir, "navigation.html"))
	require.NoError(t, err)
	require.Contains(t, string(nav), `<nav class="docs-nav">`)
}

func TestHTMLFileName_Flattening(t *testing.T) {
	require.Equal(t, "docs_guide.html", htmlFileName("docs/guide.md"))
	require.Equal(t, "README.html", htmlFileName("README.md"))
	require.Equal(t, "notes.txt.html", htmlFileName("notes.txt"))
}
