package discovery

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidPattern is returned when a convention pattern cannot be compiled.
// Discovery skips the offending pattern and continues with the rest.
var ErrInvalidPattern = errors.New("invalid discovery pattern")

// regexMarker prefixes convention entries that should be compiled as regular
// expressions rather than globs.
const regexMarker = "regex:"

// PatternKind says how a convention pattern is resolved against the tree.
type PatternKind int

const (
	// KindExact matches a single repository path via one existence check.
	KindExact PatternKind = iota
	// KindGlob matches shell-style wildcards against every file in the tree.
	KindGlob
	// KindRegex matches a compiled expression against every file in the tree.
	KindRegex
)

func (k PatternKind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindGlob:
		return "glob"
	case KindRegex:
		return "regex"
	default:
		return "unknown"
	}
}

// Pattern is one compiled convention entry. Canonical retains the original
// string form and tags discovered files as "pattern:<canonical>".
type Pattern struct {
	Canonical string
	Kind      PatternKind

	expr string         // exact path or glob expression
	re   *regexp.Regexp // compiled expression for KindRegex
}

// ClassifyPattern decides the kind of a raw convention string and compiles
// it. A "regex:" prefix forces a regular expression (the marker is stripped
// before compiling); any of the wildcard characters *, ? or [ makes a glob;
// everything else is an exact path.
func ClassifyPattern(raw string) (Pattern, error) {
	if expr, ok := strings.CutPrefix(raw, regexMarker); ok {
		re, err := regexp.Compile(expr)
		if err != nil {
			return Pattern{}, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, raw, err)
		}
		return Pattern{Canonical: raw, Kind: KindRegex, expr: expr, re: re}, nil
	}
	if strings.ContainsAny(raw, "*?[") {
		if !doublestar.ValidatePattern(raw) {
			return Pattern{}, fmt.Errorf("%w: %q: malformed glob", ErrInvalidPattern, raw)
		}
		return Pattern{Canonical: raw, Kind: KindGlob, expr: raw}, nil
	}
	return Pattern{Canonical: raw, Kind: KindExact, expr: raw}, nil
}

// Matches reports whether a repository-relative file path satisfies the
// pattern. Exact patterns compare the whole path; globs and regexes match
// against the whole path as well, so "*.md" only matches root-level files.
func (p Pattern) Matches(path string) bool {
	switch p.Kind {
	case KindExact:
		return p.expr == path
	case KindGlob:
		return doublestar.MatchUnvalidated(p.expr, path)
	case KindRegex:
		return p.re.MatchString(path)
	default:
		return false
	}
}

// DefaultConventions is the built-in pattern list applied on top of the
// configured document tree. Order matters only for log output; results are
// merged and deduplicated by path.
func DefaultConventions() []string {
	return []string{
		"README.md",
		"CONTRIBUTING.md",
		"CHANGELOG.md",
		"docs/**/*.md",
		"*.md",
		`regex:^[A-Z]+\.md$`,
	}
}
