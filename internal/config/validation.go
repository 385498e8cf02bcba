package config

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/docpipe/internal/util/sets"
)

// ValidationResult accumulates structural findings on a document tree.
// Errors make the tree unusable; warnings are advisory only.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// Valid reports whether the tree can be handed to the pipeline.
func (r *ValidationResult) Valid() bool { return len(r.Errors) == 0 }

func (r *ValidationResult) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// maxNestingDepth is the depth beyond which navigation becomes unwieldy.
const maxNestingDepth = 4

// reservedNames are device names rejected on Windows filesystems.
var reservedNames = sets.New(
	"con", "prn", "aux", "nul",
	"com1", "com2", "com3", "com4",
	"lpt1", "lpt2", "lpt3", "lpt4",
)

// ValidateProjectConfig checks a parsed document tree for structural problems.
// The pipeline assumes it receives a tree where Errors is empty.
func ValidateProjectConfig(cfg *ProjectConfig) ValidationResult {
	var result ValidationResult

	if cfg.Project.Name == "" {
		result.addWarning("project name is empty")
	}
	if len(cfg.Documents) == 0 {
		result.addWarning("no documents declared")
	}

	seen := make(map[string]string) // path -> first key that declared it
	for i := range cfg.Documents {
		validateNode(&cfg.Documents[i], cfg.Documents[i].Key, 1, seen, &result)
	}

	return result
}

func validateNode(n *DocumentNode, selector string, depth int, seen map[string]string, result *ValidationResult) {
	if n.Title == "" {
		result.addError("document %q has an empty title", selector)
	}
	if n.Path == "" && len(n.Children) == 0 {
		// Tolerated downstream as a no-op branch, but worth surfacing.
		result.addWarning("document %q has neither path nor children", selector)
	}
	if depth > maxNestingDepth {
		result.addWarning("document %q exceeds nesting depth %d", selector, maxNestingDepth)
	}

	if n.Path != "" {
		if prior, ok := seen[n.Path]; ok {
			result.addError("document %q duplicates path %q already declared by %q", selector, n.Path, prior)
		} else {
			seen[n.Path] = selector
		}
		checkPathCharacters(n.Path, selector, result)
	}

	for i := range n.Children {
		child := &n.Children[i]
		validateNode(child, selector+":"+child.Title, depth+1, seen, result)
	}
}

func checkPathCharacters(path, selector string, result *ValidationResult) {
	if strings.ContainsAny(path, "<>:\"|?*") {
		result.addError("document %q path %q contains illegal characters", selector, path)
	}
	if strings.Contains(path, "\\") {
		result.addWarning("document %q path %q uses backslashes; forward slashes are canonical", selector, path)
	}
	for _, segment := range strings.Split(path, "/") {
		base := segment
		if dot := strings.IndexByte(base, '.'); dot >= 0 {
			base = base[:dot]
		}
		if reservedNames.Has(strings.ToLower(base)) {
			result.addError("document %q path segment %q is a reserved device name", selector, segment)
		}
	}
}
