// Package discovery expands a repository's document tree configuration plus
// a set of convention patterns into the deduplicated, sorted list of files
// the rest of the pipeline operates on.
package discovery

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/docmodel"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/repohost"
	"git.home.luguber.info/inful/docpipe/internal/util/sets"
)

// Discoverer resolves configured documents and convention patterns against a
// repository host. The zero value is not usable; construct with NewDiscoverer.
type Discoverer struct {
	client      repohost.Client
	conventions []string
}

// NewDiscoverer returns a Discoverer using the built-in convention list.
func NewDiscoverer(client repohost.Client) *Discoverer {
	return &Discoverer{client: client, conventions: DefaultConventions()}
}

// NewDiscovererWithConventions overrides the convention list, e.g. from
// configuration. An empty list disables convention discovery entirely.
func NewDiscovererWithConventions(client repohost.Client, conventions []string) *Discoverer {
	return &Discoverer{client: client, conventions: conventions}
}

// Discover walks the document tree configuration and the convention patterns
// and returns the union of matched files, sorted by path and deduplicated.
// When the same path is selected by both a config entry and a pattern, the
// config entry's selector is kept.
//
// Invalid patterns and listing failures inside a subtree are logged and
// skipped; only context cancellation aborts the pass.
func (d *Discoverer) Discover(ctx context.Context, repo string, cfg *config.ProjectConfig) ([]docmodel.DiscoveredFile, error) {
	var discovered []docmodel.DiscoveredFile
	collectConfigured(cfg.Documents, "", &discovered)

	for _, raw := range d.conventions {
		pattern, err := ClassifyPattern(raw)
		if err != nil {
			slog.Warn("skipping invalid convention pattern", logfields.Pattern(raw), logfields.Error(err))
			continue
		}
		matches, err := d.resolvePattern(ctx, repo, pattern)
		if err != nil {
			return nil, err
		}
		discovered = append(discovered, matches...)
	}

	sort.SliceStable(discovered, func(i, j int) bool {
		return discovered[i].Path < discovered[j].Path
	})
	discovered = dedupeByPath(discovered)

	slog.Debug("file discovery finished",
		logfields.Repository(repo),
		logfields.Files(len(discovered)))
	return discovered, nil
}

// collectConfigured gathers every node with a path, depth first in declared
// order. Top-level nodes are tagged with their config key, nested nodes with
// "parentKey:childTitle". Structural nodes contribute nothing themselves.
func collectConfigured(nodes []config.DocumentNode, parentKey string, out *[]docmodel.DiscoveredFile) {
	for i := range nodes {
		node := &nodes[i]
		if node.HasPath() {
			selector := node.Key
			if parentKey != "" {
				selector = parentKey + ":" + node.Title
			}
			*out = append(*out, docmodel.DiscoveredFile{
				Path:           node.Path,
				OriginSelector: selector,
			})
		}
		collectConfigured(node.Children, node.Key, out)
	}
}

// resolvePattern matches one compiled pattern against the repository.
func (d *Discoverer) resolvePattern(ctx context.Context, repo string, pattern Pattern) ([]docmodel.DiscoveredFile, error) {
	selector := "pattern:" + pattern.Canonical

	if pattern.Kind == KindExact {
		exists, err := d.client.FileExists(ctx, repo, pattern.Canonical)
		if err != nil {
			if ctxDone(err) {
				return nil, err
			}
			slog.Debug("existence check failed for convention pattern",
				logfields.Pattern(pattern.Canonical), logfields.Error(err))
			return nil, nil
		}
		if !exists {
			return nil, nil
		}
		return []docmodel.DiscoveredFile{{Path: pattern.Canonical, OriginSelector: selector}}, nil
	}

	// Wildcard kinds walk the whole tree. Each pattern gets its own worklist
	// and visited set; the visited set guards against listing anomalies that
	// would otherwise revisit a directory forever.
	var matches []docmodel.DiscoveredFile
	visited := sets.New[string]()
	worklist := []string{""}

	for len(worklist) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if visited.Has(dir) {
			continue
		}
		visited.Add(dir)

		entries, err := d.client.ListDirectory(ctx, repo, dir)
		if err != nil {
			if ctxDone(err) {
				return nil, err
			}
			// The subtree contributes no matches; the rest of the walk continues.
			slog.Debug("directory listing failed during pattern discovery",
				logfields.Repository(repo),
				logfields.Path(dir),
				logfields.Pattern(pattern.Canonical),
				logfields.Error(err))
			continue
		}

		for _, entry := range entries {
			if entry.IsDir {
				worklist = append(worklist, entry.Path)
				continue
			}
			if pattern.Matches(entry.Path) {
				matches = append(matches, docmodel.DiscoveredFile{
					Path:           entry.Path,
					OriginSelector: selector,
					EstimatedSize:  entry.Size,
				})
			}
		}
	}
	return matches, nil
}

// dedupeByPath removes adjacent duplicates from a path-sorted slice, keeping
// the first occurrence. Config entries precede pattern entries before the
// stable sort, so their selectors survive deduplication.
func dedupeByPath(files []docmodel.DiscoveredFile) []docmodel.DiscoveredFile {
	if len(files) < 2 {
		return files
	}
	out := files[:1]
	for _, f := range files[1:] {
		if f.Path != out[len(out)-1].Path {
			out = append(out, f)
		}
	}
	return out
}

func ctxDone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
