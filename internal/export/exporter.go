package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/docmodel"
	"git.home.luguber.info/inful/docpipe/internal/frontmatter"
	"git.home.luguber.info/inful/docpipe/internal/frontmatterops"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

// Formats accepted in the export configuration.
const (
	FormatFiles = "files"
	FormatJSON  = "json"
	FormatHTML  = "html"
)

// Artifact names inside the export directory.
const (
	fragmentsFile      = "fragments.json"
	summaryFile        = "processing-summary.json"
	manifestFile       = "manifest.json"
	navigationHTMLFile = "navigation.html"
)

// Exporter writes run artifacts into a single flat directory. Fragment and
// page names are the repository path with slashes flattened to underscores,
// so repeated runs overwrite their previous output.
type Exporter struct {
	cfg config.ExportConfig
}

// New returns an exporter for the given export configuration.
func New(cfg config.ExportConfig) *Exporter {
	return &Exporter{cfg: cfg}
}

// Export writes the run in every configured format. The processing summary
// and the manifest are written regardless of format selection. Unknown
// formats are skipped with a warning rather than failing the run.
func (e *Exporter) Export(result Result, docs []docmodel.ProcessedDocument, nav *docmodel.NavNode) error {
	if err := os.MkdirAll(e.cfg.Directory, 0o750); err != nil {
		return fmt.Errorf("failed to create export directory %s: %w", e.cfg.Directory, err)
	}

	for _, format := range e.cfg.Formats {
		switch format {
		case FormatFiles:
			if err := e.writeFiles(result.Fragments); err != nil {
				return err
			}
		case FormatJSON:
			if err := e.writeJSON(result); err != nil {
				return err
			}
		case FormatHTML:
			if err := e.writeHTML(docs, nav); err != nil {
				return err
			}
		default:
			slog.Warn("unknown export format, skipping", slog.String("format", format))
		}
	}

	if err := e.writeSummary(result); err != nil {
		return err
	}
	if err := e.writeManifest(result.Repository, docs); err != nil {
		return err
	}

	slog.Info("export complete",
		logfields.Repository(result.Repository),
		slog.String("directory", e.cfg.Directory),
		slog.Int("fragments", len(result.Fragments)))
	return nil
}

// writeFiles writes one file per fragment. Content fragments become markdown
// documents with their front matter re-serialized and a content fingerprint
// upserted; the navigation fragment keeps its JSON payload.
func (e *Exporter) writeFiles(fragments []Fragment) error {
	for _, fragment := range fragments {
		var (
			name string
			data []byte
		)
		switch fragment.Type {
		case FragmentNavigation:
			name = flattenPath(fragment.FilePath) + "-Navigation.json"
			data = []byte(fragment.Content)
		default:
			name = flattenPath(fragment.FilePath) + "-Content.md"
			body, err := fingerprintedDocument(fragment)
			if err != nil {
				return fmt.Errorf("failed to assemble fragment %s: %w", fragment.FilePath, err)
			}
			data = body
		}

		path := filepath.Join(e.cfg.Directory, name)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("failed to write fragment %s: %w", path, err)
		}
	}

	slog.Debug("fragment files written", slog.Int("count", len(fragments)))
	return nil
}

// fingerprintedDocument reassembles a content fragment as a standalone
// markdown document. Every exported document carries a front matter block,
// even if the source had none, so the fingerprint always has a home.
func fingerprintedDocument(fragment Fragment) ([]byte, error) {
	fields, _, _, err := frontmatterops.UpsertFingerprint(fragment.fields, fragment.Content)
	if err != nil {
		return nil, err
	}

	style := frontmatter.Style{Newline: "\n"}
	serialized, err := frontmatter.SerializeOrdered(fields, style)
	if err != nil {
		return nil, err
	}

	return frontmatter.Join(serialized, []byte(fragment.Content), true, style), nil
}

// writeJSON writes the whole result as one pretty-printed collection.
func (e *Exporter) writeJSON(result Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fragment collection: %w", err)
	}

	path := filepath.Join(e.cfg.Directory, fragmentsFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (e *Exporter) writeSummary(result Result) error {
	summary := struct {
		Repository         string    `json:"repository"`
		ProcessedAt        time.Time `json:"processed_at"`
		FilesProcessed     int       `json:"file_processed"`
		FragmentsGenerated int       `json:"fragments_generated"`
		ProcessingTimeMS   int64     `json:"processing_time_ms"`
	}{
		Repository:         result.Repository,
		ProcessedAt:        result.ProcessedAt,
		FilesProcessed:     result.FilesProcessed,
		FragmentsGenerated: result.FragmentsGenerated,
		ProcessingTimeMS:   result.ProcessingTimeMS,
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal processing summary: %w", err)
	}

	path := filepath.Join(e.cfg.Directory, summaryFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (e *Exporter) writeManifest(repository string, docs []docmodel.ProcessedDocument) error {
	manifest, err := BuildManifest(repository, e.cfg.Formats, docs)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	path := filepath.Join(e.cfg.Directory, manifestFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// flattenPath maps a repository path onto a single export file name.
func flattenPath(path string) string {
	return strings.ReplaceAll(path, "/", "_")
}
