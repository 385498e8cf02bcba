// Package validation fetches discovered file content and attaches heuristic
// quality warnings. Warnings never stop a file from being processed; only a
// failed batch fetch aborts the stage.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/docpipe/internal/docmodel"
	"git.home.luguber.info/inful/docpipe/internal/frontmatter"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/repohost"
)

// Warning texts attached to documents. Exporters and tests match on these,
// so changing them is a breaking change for downstream consumers.
const (
	WarnMissingTitle = "Missing title in frontmatter or as first heading"
	WarnTooShort     = "Content is too short, consider adding more information"
)

// minBodyLength is the trimmed body size below which a document is flagged
// as too short.
const minBodyLength = 50

// Validator turns discovered files into validated files with content.
type Validator struct {
	client repohost.Client
}

// NewValidator returns a Validator reading through the given client.
func NewValidator(client repohost.Client) *Validator {
	return &Validator{client: client}
}

// ValidateBatch fetches all file bodies in one batched call, splits front
// matter from body, and attaches warnings. Files missing from the repository
// are dropped with a log line rather than failing the batch.
func (v *Validator) ValidateBatch(ctx context.Context, repo string, files []docmodel.DiscoveredFile) ([]docmodel.ValidatedFile, error) {
	if len(files) == 0 {
		return nil, nil
	}

	paths := make([]string, len(files))
	for i := range files {
		paths[i] = files[i].Path
	}
	contents, err := v.client.BatchFetchFiles(ctx, repo, paths)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content for validation: %w", err)
	}

	validated := make([]docmodel.ValidatedFile, 0, len(files))
	for _, f := range files {
		raw, ok := contents[f.Path]
		if !ok {
			slog.Warn("discovered file missing from repository, dropping",
				logfields.Repository(repo), logfields.Path(f.Path))
			continue
		}
		validated = append(validated, validateFile(f, raw))
	}

	slog.Debug("content validation finished",
		logfields.Repository(repo),
		logfields.Files(len(validated)),
		logfields.Warnings(totalWarnings(validated)))
	return validated, nil
}

// validateFile is total: any content yields a ValidatedFile. An unterminated
// front matter block is not an error; the whole content becomes the body.
func validateFile(f docmodel.DiscoveredFile, raw []byte) docmodel.ValidatedFile {
	fmRaw, body, had, _, err := frontmatter.Split(raw)
	if err != nil {
		had = false
		body = raw
	}

	var fields frontmatter.Fields
	bodyStr := string(body)
	if had {
		fields = frontmatter.ParseFlat(fmRaw)
		// Blank lines after the closing delimiter are not content. Documents
		// without front matter keep their body byte for byte.
		bodyStr = strings.TrimSpace(bodyStr)
	}

	return docmodel.ValidatedFile{
		Discovered:  f,
		RawContent:  raw,
		FrontMatter: fields,
		Body:        bodyStr,
		Warnings:    contentWarnings(fields, bodyStr),
	}
}

// contentWarnings applies the heuristic checks. All warnings are advisory.
func contentWarnings(fm frontmatter.Fields, body string) []string {
	var warnings []string

	if !fm.Has("title") && !strings.HasPrefix(body, "#") {
		warnings = append(warnings, WarnMissingTitle)
	}
	if len(strings.TrimSpace(body)) < minBodyLength {
		warnings = append(warnings, WarnTooShort)
	}
	if strings.Contains(body, "](") {
		if n := countBrokenLinkLines(body); n > 0 {
			warnings = append(warnings, fmt.Sprintf("Found %d potentially broken links", n))
		}
	}

	return warnings
}

// countBrokenLinkLines counts lines carrying a link with an empty target or
// a parent-relative target. The count is per line, not per link.
func countBrokenLinkLines(body string) int {
	n := 0
	for _, line := range strings.Split(body, "\n") {
		if strings.Contains(line, "]()") || strings.Contains(line, "](../") {
			n++
		}
	}
	return n
}

func totalWarnings(files []docmodel.ValidatedFile) int {
	n := 0
	for i := range files {
		n += len(files[i].Warnings)
	}
	return n
}
