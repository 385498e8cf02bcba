package repohost

import (
	"crypto/hmac"
	"crypto/sha1" // #nosec G505 -- legacy X-Hub-Signature fallback only
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// PushEvent is the subset of a GitHub push payload the webhook server acts on.
type PushEvent struct {
	Repository    string // full name, e.g. "acme/docs"
	Branch        string
	DefaultBranch string
}

// ValidateGitHubSignature checks a webhook payload against its signature header.
// The preferred format is sha256=<hex>; sha1=<hex> is accepted for older hooks.
func ValidateGitHubSignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	if expected, ok := strings.CutPrefix(signature, "sha256="); ok {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(payload)
		calc := hex.EncodeToString(mac.Sum(nil))
		return hmac.Equal([]byte(expected), []byte(calc))
	}

	if expected, ok := strings.CutPrefix(signature, "sha1="); ok {
		mac := hmac.New(sha1.New, []byte(secret))
		mac.Write(payload)
		calc := hex.EncodeToString(mac.Sum(nil))
		return hmac.Equal([]byte(expected), []byte(calc))
	}

	return false
}

// ParsePushEvent extracts the repository and branch from a push payload.
func ParsePushEvent(payload []byte) (PushEvent, error) {
	var raw struct {
		Ref        string `json:"ref"`
		Repository struct {
			FullName      string `json:"full_name"`
			DefaultBranch string `json:"default_branch"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return PushEvent{}, fmt.Errorf("parse push event: %w", err)
	}
	if raw.Repository.FullName == "" {
		return PushEvent{}, fmt.Errorf("push event missing repository full name")
	}
	return PushEvent{
		Repository:    raw.Repository.FullName,
		Branch:        strings.TrimPrefix(raw.Ref, "refs/heads/"),
		DefaultBranch: raw.Repository.DefaultBranch,
	}, nil
}
