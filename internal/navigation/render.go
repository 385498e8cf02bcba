package navigation

import (
	"html"
	"strings"

	"git.home.luguber.info/inful/docpipe/internal/docmodel"
)

// RenderHTML renders the tree as a nested list. The synthetic root itself is
// not rendered; its children form the top-level list.
func RenderHTML(root *docmodel.NavNode) string {
	var b strings.Builder
	b.WriteString("<nav class=\"docs-nav\">\n")
	b.WriteString("  <ul class=\"docs-nav__list\">\n")
	for _, child := range root.Children {
		renderNode(&b, child, 2)
	}
	b.WriteString("  </ul>\n")
	b.WriteString("</nav>\n")
	return b.String()
}

func renderNode(b *strings.Builder, node *docmodel.NavNode, indent int) {
	pad := strings.Repeat("  ", indent)
	title := html.EscapeString(node.Title)

	if node.URL != "" {
		b.WriteString(pad + "<li class=\"docs-nav__item\"><a class=\"docs-nav__link\" href=\"" +
			html.EscapeString(node.URL) + "\">" + title + "</a>")
	} else {
		b.WriteString(pad + "<li class=\"docs-nav__section\"><span class=\"docs-nav__section-title\">" +
			title + "</span>")
	}

	if len(node.Children) > 0 {
		b.WriteString("\n" + pad + "  <ul class=\"docs-nav__list\">\n")
		for _, child := range node.Children {
			renderNode(b, child, indent+2)
		}
		b.WriteString(pad + "  </ul>\n" + pad + "</li>\n")
	} else {
		b.WriteString("</li>\n")
	}
}
