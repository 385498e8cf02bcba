// Package repohost abstracts read access to a repository host. Backends exist
// for the GitHub API and for local checkouts; both expose single-level
// directory listings, batched file fetches, existence checks and quota
// introspection behind one Client interface.
package repohost

import (
	"context"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/quota"
)

// Repository describes a repository discovered on the host.
type Repository struct {
	Name          string    `json:"name"`           // Repository name
	FullName      string    `json:"full_name"`      // Full name (org/repo)
	DefaultBranch string    `json:"default_branch"` // Default branch name
	Description   string    `json:"description"`    // Repository description
	Private       bool      `json:"private"`        // Is repository private
	Archived      bool      `json:"archived"`       // Is repository archived
	Fork          bool      `json:"fork"`           // Is repository a fork
	LastUpdated   time.Time `json:"last_updated"`   // Last update timestamp
	Topics        []string  `json:"topics"`         // Repository topics/tags
}

// TreeEntry is a single entry from a directory listing.
type TreeEntry struct {
	Path  string `json:"path"`   // Full path from the repository root
	Name  string `json:"name"`   // Base name of the entry
	IsDir bool   `json:"is_dir"` // Entry is a directory
	Size  int64  `json:"size"`   // File size in bytes, zero for directories
}

// Client is the contract for repository host backends.
type Client interface {
	// GetType returns the host backend type.
	GetType() config.HostType

	// GetOrganization returns the organization this client reads from.
	GetOrganization() string

	// ListRepositories returns all repositories of the configured organization.
	// Pagination is handled internally; a failed page fails the whole listing.
	ListRepositories(ctx context.Context) ([]*Repository, error)

	// ListDirectory lists the immediate entries of one directory without
	// recursing. A missing path yields ErrNotFound.
	ListDirectory(ctx context.Context, repo, path string) ([]TreeEntry, error)

	// BatchFetchFiles fetches the contents of many files at once. Paths that
	// do not exist in the repository are absent from the result rather than
	// an error; an empty file is present with empty content.
	BatchFetchFiles(ctx context.Context, repo string, paths []string) (map[string][]byte, error)

	// FileExists reports whether a file exists at the given path.
	FileExists(ctx context.Context, repo, path string) (bool, error)

	// CurrentQuota reports the remaining API quota and its reset time.
	CurrentQuota(ctx context.Context) (quota.Status, error)
}
