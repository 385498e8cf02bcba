package export

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/docmodel"
	"git.home.luguber.info/inful/docpipe/internal/frontmatterops"
)

// Manifest records what an export run produced, one entry per processed
// document. Consumers diff manifests by fingerprint to detect changed
// documents without re-reading fragment files.
type Manifest struct {
	Repository string          `json:"repository"`
	CreatedAt  time.Time       `json:"created_at"`
	Formats    []string        `json:"formats"`
	Documents  []ManifestEntry `json:"documents"`
}

// ManifestEntry describes one exported document.
type ManifestEntry struct {
	Path         string  `json:"path"`
	Title        string  `json:"title"`
	Fingerprint  string  `json:"fingerprint"`
	WordCount    int     `json:"word_count"`
	QualityScore float64 `json:"quality_score"`
}

// BuildManifest fingerprints every document and assembles the manifest in
// document order.
func BuildManifest(repository string, formats []string, docs []docmodel.ProcessedDocument) (Manifest, error) {
	entries := make([]ManifestEntry, 0, len(docs))
	for _, doc := range docs {
		fingerprint, err := frontmatterops.ComputeFingerprint(doc.FrontMatter, doc.Body)
		if err != nil {
			return Manifest{}, fmt.Errorf("failed to fingerprint %s: %w", doc.FilePath, err)
		}
		entries = append(entries, ManifestEntry{
			Path:         doc.FilePath,
			Title:        doc.Title,
			Fingerprint:  fingerprint,
			WordCount:    doc.WordCount,
			QualityScore: doc.QualityScore,
		})
	}

	return Manifest{
		Repository: repository,
		CreatedAt:  time.Now().UTC(),
		Formats:    formats,
		Documents:  entries,
	}, nil
}

// Hash digests the manifest's document paths and fingerprints. Two manifests
// hash equal exactly when the same paths carry the same content, independent
// of when they were created.
func (m Manifest) Hash() string {
	h := sha256.New()
	for _, d := range m.Documents {
		fmt.Fprintf(h, "%s\x00%s\x00", d.Path, d.Fingerprint)
	}
	return hex.EncodeToString(h.Sum(nil))
}
