// Package processing turns validated files into processed documents. Every
// function here is pure over its input; a file that reaches this stage always
// yields a document, whatever its content looks like.
//
// The extractors are deliberately permissive line/byte scanners, not a
// markdown AST. Fences do not shield headings or links from extraction, and
// a '[' inside link text starts a fresh link parse. Exporters rely on this
// behavior staying stable.
package processing

import (
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode"

	"git.home.luguber.info/inful/docpipe/internal/docmodel"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

// UntitledTitle is the fallback when neither front matter nor any heading
// provides a title.
const UntitledTitle = "Untitled Document"

// ProcessBatch processes files in order. The output can be shorter than the
// input only when the input is empty; processing itself never drops a file.
func ProcessBatch(files []docmodel.ValidatedFile) []docmodel.ProcessedDocument {
	docs := make([]docmodel.ProcessedDocument, 0, len(files))
	for i := range files {
		docs = append(docs, ProcessFile(files[i]))
	}
	slog.Debug("content processing finished", logfields.Files(len(docs)))
	return docs
}

// ProcessFile extracts structure and metrics from one validated file.
func ProcessFile(file docmodel.ValidatedFile) docmodel.ProcessedDocument {
	start := time.Now()

	headings := extractHeadings(file.Body)
	links := extractLinks(file.Body)
	images := extractImages(file.Body)
	codeBlocks := extractCodeBlocks(file.Body)

	return docmodel.ProcessedDocument{
		FilePath:             file.Discovered.Path,
		Title:                resolveTitle(file.FrontMatter.Map(), headings),
		Body:                 file.Body,
		FrontMatter:          file.FrontMatter,
		WordCount:            len(strings.Fields(file.Body)),
		Headings:             headings,
		Links:                links,
		Images:               images,
		CodeBlocks:           codeBlocks,
		ProcessedAt:          time.Now().UTC(),
		ProcessingDurationMS: time.Since(start).Milliseconds(),
		Warnings:             file.Warnings,
		QualityScore:         qualityScore(len(file.Warnings), headings, links),
	}
}

// lines splits on newlines with any carriage returns stripped, so CRLF
// documents scan the same as LF ones.
func lines(s string) []string {
	out := strings.Split(s, "\n")
	for i, line := range out {
		out[i] = strings.TrimSuffix(line, "\r")
	}
	return out
}

// resolveTitle prefers the front matter title, then the first heading.
func resolveTitle(fm map[string]string, headings []docmodel.Heading) string {
	if title, ok := fm["title"]; ok {
		return title
	}
	if len(headings) > 0 {
		return headings[0].Text
	}
	return UntitledTitle
}

// extractHeadings records every line opening with one to six '#' characters.
// Seven or more markers make the line invisible rather than a level-6
// heading.
func extractHeadings(body string) []docmodel.Heading {
	var headings []docmodel.Heading
	for _, line := range lines(body) {
		if !strings.HasPrefix(line, "#") {
			continue
		}
		level := 0
		for level < len(line) && line[level] == '#' {
			level++
		}
		if level > 6 {
			continue
		}
		text := strings.TrimSpace(strings.TrimLeft(line, "#"))
		headings = append(headings, docmodel.Heading{
			Level:  level,
			Text:   text,
			Anchor: anchorFor(text),
		})
	}
	return headings
}

// anchorFor slugs heading text: lowercase, every non-alphanumeric rune
// becomes a hyphen, leading and trailing hyphens are dropped. Interior runs
// of hyphens are kept as-is, so "Hello, World!" slugs to "hello--world".
func anchorFor(text string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return r
		}
		return '-'
	}, strings.ToLower(text))
	return strings.Trim(mapped, "-")
}

// extractLinks scans for the [text](url) shape. Each '[' starts a candidate
// parse over the rest of the document, so the url may sit on a later line.
func extractLinks(body string) []docmodel.Link {
	var links []docmodel.Link
	for i := 0; i < len(body); i++ {
		if body[i] != '[' {
			continue
		}
		if link, ok := parseLink(body[i:]); ok {
			links = append(links, link)
		}
	}
	return links
}

// parseLink reads one [text](url) occurrence from the start of s. Malformed
// shapes (no "](", unclosed paren) report false rather than an error.
func parseLink(s string) (docmodel.Link, bool) {
	bracket := strings.Index(s, "](")
	if bracket < 0 {
		return docmodel.Link{}, false
	}
	paren := strings.Index(s[bracket+2:], ")")
	if paren < 0 {
		return docmodel.Link{}, false
	}
	url := s[bracket+2 : bracket+2+paren]
	return docmodel.Link{
		Text:       s[1:bracket],
		URL:        url,
		IsInternal: isInternalURL(url),
	}, true
}

// isInternalURL treats everything except absolute http(s) URLs as internal,
// including mailto: and protocol-relative forms.
func isInternalURL(url string) bool {
	return !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://")
}

// extractImages records the first ![alt](url) occurrence per line. A second
// image on the same line is ignored; images must sit on separate lines to
// all be captured.
func extractImages(body string) []docmodel.Image {
	var images []docmodel.Image
	for _, line := range lines(body) {
		if !strings.Contains(line, "![") {
			continue
		}
		if img, ok := parseImage(line); ok {
			images = append(images, img)
		}
	}
	return images
}

func parseImage(line string) (docmodel.Image, bool) {
	start := strings.Index(line, "![")
	rest := line[start:]
	bracket := strings.Index(rest, "](")
	if bracket < 0 {
		return docmodel.Image{}, false
	}
	paren := strings.Index(rest[bracket+2:], ")")
	if paren < 0 {
		return docmodel.Image{}, false
	}
	url := rest[bracket+2 : bracket+2+paren]
	return docmodel.Image{
		AltText:    rest[2:bracket],
		URL:        url,
		IsInternal: isInternalURL(url),
	}, true
}

// extractCodeBlocks pairs ``` fence lines. The text after an opening fence
// is the language tag; text after a closing fence is discarded. An opened
// fence that never closes contributes nothing.
func extractCodeBlocks(body string) []docmodel.CodeBlock {
	var blocks []docmodel.CodeBlock
	var blockLines []string
	var language string
	inBlock := false

	for _, line := range lines(body) {
		if strings.HasPrefix(line, "```") {
			if inBlock {
				blocks = append(blocks, docmodel.CodeBlock{
					Language:  language,
					Content:   strings.Join(blockLines, "\n"),
					LineCount: len(blockLines),
				})
				blockLines = nil
				language = ""
				inBlock = false
			} else {
				language = strings.TrimSpace(line[3:])
				inBlock = true
			}
			continue
		}
		if inBlock {
			blockLines = append(blockLines, line)
		}
	}

	return blocks
}

// qualityScore is a bounded document health heuristic, not a correctness
// measure. Warnings subtract, structure and internal cross-links add, and
// the result clamps to [0, 1].
func qualityScore(warnings int, headings []docmodel.Heading, links []docmodel.Link) float64 {
	score := 1.0 - float64(warnings)*0.1

	if len(headings) > 0 {
		score += 0.1
	}

	internal := 0
	for i := range links {
		if links[i].IsInternal {
			internal++
		}
	}
	if internal > 0 {
		score += math.Min(float64(internal)*0.05, 0.2)
	}

	return math.Max(0.0, math.Min(score, 1.0))
}
