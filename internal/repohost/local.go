package repohost

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/quota"
)

// LocalClient reads repository content from git checkouts under one root
// directory, one subdirectory per repository. Content comes from the HEAD
// commit tree, not the working directory, so uncommitted edits never leak
// into a run.
type LocalClient struct {
	root string
	org  string
}

// NewLocalClient creates a client over a directory of local checkouts.
func NewLocalClient(hostCfg config.HostConfig) (*LocalClient, error) {
	if hostCfg.LocalRoot == "" {
		return nil, fmt.Errorf("no local root directory configured")
	}
	info, err := os.Stat(hostCfg.LocalRoot)
	if err != nil {
		return nil, fmt.Errorf("local root not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local root is not a directory: %s", hostCfg.LocalRoot)
	}
	return &LocalClient{root: hostCfg.LocalRoot, org: hostCfg.Organization}, nil
}

// GetType returns the host backend type.
func (c *LocalClient) GetType() config.HostType { return config.HostTypeLocal }

// GetOrganization returns the organization this client reads from.
func (c *LocalClient) GetOrganization() string { return c.org }

// ListRepositories returns one Repository per git checkout under the root.
// Subdirectories that are not git repositories are skipped.
func (c *LocalClient) ListRepositories(ctx context.Context) ([]*Repository, error) {
	dirEntries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read local root: %w", err)
	}

	var repos []*Repository
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		r, err := git.PlainOpen(filepath.Join(c.root, de.Name()))
		if err != nil {
			continue
		}

		repo := &Repository{Name: de.Name(), FullName: de.Name()}
		if c.org != "" {
			repo.FullName = c.org + "/" + de.Name()
		}
		if ref, err := r.Head(); err == nil {
			repo.DefaultBranch = ref.Name().Short()
			if commit, err := r.CommitObject(ref.Hash()); err == nil {
				repo.LastUpdated = commit.Committer.When
			}
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

// ListDirectory lists the immediate entries of one directory in the HEAD tree.
func (c *LocalClient) ListDirectory(ctx context.Context, repo, dirPath string) ([]TreeEntry, error) {
	tree, err := c.headTree(repo)
	if err != nil {
		return nil, err
	}

	dirPath = strings.Trim(dirPath, "/")
	if dirPath != "" {
		subtree, err := tree.Tree(dirPath)
		if err != nil {
			if errors.Is(err, object.ErrDirectoryNotFound) || errors.Is(err, object.ErrEntryNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, dirPath)
			}
			return nil, fmt.Errorf("failed to open directory %s: %w", dirPath, err)
		}
		tree = subtree
	}

	entries := make([]TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entry := TreeEntry{
			Name:  e.Name,
			Path:  path.Join(dirPath, e.Name),
			IsDir: e.Mode == filemode.Dir,
		}
		if !entry.IsDir {
			if f, err := tree.File(e.Name); err == nil {
				entry.Size = f.Size
			}
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// BatchFetchFiles reads the requested paths from the HEAD tree. Missing paths
// are absent from the result; they are not an error.
func (c *LocalClient) BatchFetchFiles(ctx context.Context, repo string, paths []string) (map[string][]byte, error) {
	tree, err := c.headTree(repo)
	if err != nil {
		return nil, err
	}

	found := make(map[string][]byte, len(paths))
	for _, p := range paths {
		f, err := tree.File(strings.TrimPrefix(p, "/"))
		if err != nil {
			if errors.Is(err, object.ErrFileNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		content, err := f.Contents()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		found[p] = []byte(content)
	}
	return found, nil
}

// FileExists reports whether a file exists in the HEAD tree.
func (c *LocalClient) FileExists(ctx context.Context, repo, filePath string) (bool, error) {
	tree, err := c.headTree(repo)
	if err != nil {
		return false, err
	}

	if _, err := tree.File(strings.TrimPrefix(filePath, "/")); err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CurrentQuota reports an effectively unlimited quota; local reads are free.
func (c *LocalClient) CurrentQuota(ctx context.Context) (quota.Status, error) {
	return quota.Status{Remaining: math.MaxInt32, Limit: math.MaxInt32}, nil
}

func (c *LocalClient) headTree(repo string) (*object.Tree, error) {
	r, err := git.PlainOpen(filepath.Join(c.root, repo))
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, repo)
		}
		return nil, fmt.Errorf("failed to open repository %s: %w", repo, err)
	}
	ref, err := r.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD for %s: %w", repo, err)
	}
	commit, err := r.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to load HEAD commit for %s: %w", repo, err)
	}
	return commit.Tree()
}
