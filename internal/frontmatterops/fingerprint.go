// Package frontmatterops computes content fingerprints over split documents.
// A fingerprint covers the front matter (minus the fingerprint field itself)
// and the body, so re-fingerprinting a document is a stable operation.
package frontmatterops

import (
	"strings"

	"git.home.luguber.info/inful/docpipe/internal/frontmatter"
	"github.com/inful/mdfp"
)

// ComputeFingerprint computes the canonical content fingerprint for a document.
//
// Canonicalization rules:
//   - an existing fingerprint field is excluded from the hash
//   - front matter serializes with LF newlines, field order preserved
//   - a single trailing newline is trimmed from the serialized block before hashing
func ComputeFingerprint(fields frontmatter.Fields, body string) (string, error) {
	forHash := make(frontmatter.Fields, 0, len(fields))
	for _, f := range fields {
		if f.Key == mdfp.FingerprintField {
			continue
		}
		forHash = append(forHash, f)
	}

	serialized := ""
	if len(forHash) > 0 {
		out, err := frontmatter.SerializeOrdered(forHash, frontmatter.Style{Newline: "\n"})
		if err != nil {
			return "", err
		}
		serialized = trimSingleTrailingNewline(string(out))
	}

	return mdfp.CalculateFingerprintFromParts(serialized, body), nil
}

// UpsertFingerprint returns a copy of fields with the computed fingerprint
// set: an existing fingerprint field is updated in place, otherwise one is
// appended at the end. The input slice is never mutated.
func UpsertFingerprint(fields frontmatter.Fields, body string) (updated frontmatter.Fields, fingerprint string, changed bool, err error) {
	fingerprint, err = ComputeFingerprint(fields, body)
	if err != nil {
		return fields, "", false, err
	}

	updated = make(frontmatter.Fields, len(fields))
	copy(updated, fields)
	for i := range updated {
		if updated[i].Key == mdfp.FingerprintField {
			changed = updated[i].Value != fingerprint
			updated[i].Value = fingerprint
			return updated, fingerprint, changed, nil
		}
	}

	updated = append(updated, frontmatter.Field{Key: mdfp.FingerprintField, Value: fingerprint})
	return updated, fingerprint, true, nil
}

func trimSingleTrailingNewline(s string) string {
	if before, ok := strings.CutSuffix(s, "\r\n"); ok {
		return before
	}
	if before, ok := strings.CutSuffix(s, "\n"); ok {
		return before
	}
	return s
}
