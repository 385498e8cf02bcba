// Package export turns a pipeline run into on-disk artifacts: fragment files,
// a JSON collection, rendered HTML pages, a processing summary, and a
// manifest with per-document content fingerprints.
package export

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/docmodel"
	"git.home.luguber.info/inful/docpipe/internal/frontmatter"
)

// FragmentType distinguishes document content from generated artifacts.
type FragmentType string

const (
	FragmentContent    FragmentType = "Content"
	FragmentNavigation FragmentType = "Navigation"
)

// navigationPath is the pseudo path under which the navigation fragment is filed.
const navigationPath = "_navigation"

// Fragment is one exportable unit of a processed repository.
type Fragment struct {
	ID        string            `json:"id"` // "<repository>#<file path>"
	FilePath  string            `json:"file_path"`
	Type      FragmentType      `json:"fragment_type"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata"`
	WordCount int               `json:"word_count"`

	// Ordered front matter pairs, carried for the fragment file writer.
	// The flattened Metadata map cannot reconstruct field order.
	fields frontmatter.Fields
}

// Result is the serializable outcome of one export-worthy run.
type Result struct {
	Repository         string     `json:"repository"`
	ProcessedAt        time.Time  `json:"processed_at"`
	FilesProcessed     int        `json:"file_processed"` // singular wire name, consumers match on it
	FragmentsGenerated int        `json:"fragments_generated"`
	ProcessingTimeMS   int64      `json:"processing_time_ms"`
	Fragments          []Fragment `json:"fragments"`
}

// ContentFragments converts processed documents into content fragments,
// preserving document order.
func ContentFragments(repository string, docs []docmodel.ProcessedDocument) []Fragment {
	fragments := make([]Fragment, 0, len(docs))
	for _, doc := range docs {
		fragments = append(fragments, Fragment{
			ID:        repository + "#" + doc.FilePath,
			FilePath:  doc.FilePath,
			Type:      FragmentContent,
			Title:     doc.Title,
			Content:   doc.Body,
			Metadata:  doc.FrontMatter.Map(),
			WordCount: doc.WordCount,
			fields:    doc.FrontMatter,
		})
	}
	return fragments
}

// NavigationFragment serializes the assembled navigation tree as a fragment.
// The synthetic root is not part of the payload; its children are. Returns
// false when there is no tree or the tree is empty.
func NavigationFragment(repository string, nav *docmodel.NavNode) (Fragment, bool) {
	if nav == nil || len(nav.Children) == 0 {
		return Fragment{}, false
	}

	content, _ := json.Marshal(nav.Children)
	return Fragment{
		ID:        repository + "#" + navigationPath,
		FilePath:  navigationPath,
		Type:      FragmentNavigation,
		Title:     "Navigation",
		Content:   string(content),
		Metadata:  map[string]string{},
		WordCount: 0,
	}, true
}

// NewResult assembles the run outcome around a fragment list.
func NewResult(repository string, fragments []Fragment, elapsed time.Duration) Result {
	return Result{
		Repository:         repository,
		ProcessedAt:        time.Now().UTC(),
		FilesProcessed:     len(fragments),
		FragmentsGenerated: len(fragments),
		ProcessingTimeMS:   elapsed.Milliseconds(),
		Fragments:          fragments,
	}
}
