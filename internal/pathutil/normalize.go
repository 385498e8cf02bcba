// Package pathutil normalizes and validates repository-relative document paths.
package pathutil

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrEmptyPath indicates the candidate path was empty after trimming.
	ErrEmptyPath = errors.New("empty path")

	// ErrPathTooLong indicates the candidate path exceeds the length cap.
	ErrPathTooLong = errors.New("path too long")

	// ErrPathTraversal indicates the path escapes the repository root.
	ErrPathTraversal = errors.New("path escapes repository root")

	// ErrUnsupportedExtension indicates the file extension is not a documentation format.
	ErrUnsupportedExtension = errors.New("unsupported file extension")
)

// MaxPathLength bounds accepted paths; longer ones are rejected outright.
const MaxPathLength = 1000

// allowedExtensions are the documentation formats the pipeline accepts.
var allowedExtensions = []string{".md", ".mdx", ".markdown", ".txt"}

// Normalize cleans a repository-relative path: Unicode NFC, forward slashes,
// no leading slash, "." and ".." segments resolved. Traversal above the
// repository root is an error, not a clamp.
func Normalize(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", ErrEmptyPath
	}
	if len(p) > MaxPathLength {
		return "", fmt.Errorf("%w: %d characters", ErrPathTooLong, len(p))
	}

	// Paths from config files written on Windows may carry backslashes.
	p = strings.ReplaceAll(p, "\\", "/")
	p = norm.NFC.String(p)
	p = strings.TrimPrefix(p, "/")

	var resolved []string
	for _, segment := range strings.Split(p, "/") {
		switch segment {
		case "", ".":
			continue
		case "..":
			if len(resolved) == 0 {
				return "", fmt.Errorf("%w: %s", ErrPathTraversal, path)
			}
			resolved = resolved[:len(resolved)-1]
		default:
			resolved = append(resolved, segment)
		}
	}
	if len(resolved) == 0 {
		return "", ErrEmptyPath
	}

	return strings.Join(resolved, "/"), nil
}

// NormalizeDocPath is Normalize plus an extension check for document files.
func NormalizeDocPath(path string) (string, error) {
	p, err := Normalize(path)
	if err != nil {
		return "", err
	}
	lower := strings.ToLower(p)
	for _, ext := range allowedExtensions {
		if strings.HasSuffix(lower, ext) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedExtension, path)
}
