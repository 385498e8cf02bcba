package repohost

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/quota"
)

// MockClient is an in-memory Client for tests and offline development. Files
// are held in a repo -> path -> content map and directory listings are derived
// from the stored paths, so it behaves like a real host for tree walks.
type MockClient struct {
	mu    sync.Mutex
	org   string
	repos []*Repository
	files map[string]map[string][]byte
	calls map[string]int

	// Failure simulation. The *Err fields fail every call of that operation;
	// DirectoryErrs fails listings of specific directory paths only.
	ListRepositoriesErr error
	ListDirectoryErr    error
	DirectoryErrs       map[string]error
	BatchFetchErr       error
	FileExistsErr       error
	CurrentQuotaErr     error

	// QuotaStatus is what CurrentQuota reports; the zero value means
	// effectively unlimited.
	QuotaStatus quota.Status
}

// NewMockClient creates an empty mock for the given organization.
func NewMockClient(org string) *MockClient {
	return &MockClient{
		org:           org,
		files:         make(map[string]map[string][]byte),
		calls:         make(map[string]int),
		DirectoryErrs: make(map[string]error),
	}
}

// AddRepository registers a repository with the given name.
func (m *MockClient) AddRepository(name string) *Repository {
	m.mu.Lock()
	defer m.mu.Unlock()

	repo := &Repository{
		Name:          name,
		FullName:      m.org + "/" + name,
		DefaultBranch: "main",
	}
	m.repos = append(m.repos, repo)
	if m.files[name] == nil {
		m.files[name] = make(map[string][]byte)
	}
	return repo
}

// AddFile stores file content; the repository is registered if needed.
func (m *MockClient) AddFile(repo, path string, content []byte) {
	m.mu.Lock()
	known := m.files[repo] != nil
	m.mu.Unlock()
	if !known {
		m.AddRepository(repo)
	}

	m.mu.Lock()
	m.files[repo][strings.TrimPrefix(path, "/")] = content
	m.mu.Unlock()
}

// Calls returns how many times the named operation has run.
func (m *MockClient) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockClient) record(op string) {
	m.mu.Lock()
	m.calls[op]++
	m.mu.Unlock()
}

// GetType returns the host backend type.
func (m *MockClient) GetType() config.HostType { return config.HostType("mock") }

// GetOrganization returns the organization this client reads from.
func (m *MockClient) GetOrganization() string { return m.org }

// ListRepositories returns the registered repositories.
func (m *MockClient) ListRepositories(ctx context.Context) ([]*Repository, error) {
	m.record("ListRepositories")
	if m.ListRepositoriesErr != nil {
		return nil, m.ListRepositoriesErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	repos := make([]*Repository, len(m.repos))
	copy(repos, m.repos)
	return repos, nil
}

// ListDirectory derives a single-level listing from the stored file paths.
func (m *MockClient) ListDirectory(ctx context.Context, repo, dirPath string) ([]TreeEntry, error) {
	m.record("ListDirectory")
	if m.ListDirectoryErr != nil {
		return nil, m.ListDirectoryErr
	}
	if err := m.DirectoryErrs[strings.Trim(dirPath, "/")]; err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	paths, ok := m.files[repo]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, repo)
	}

	prefix := strings.Trim(dirPath, "/")
	if prefix != "" {
		prefix += "/"
	}

	seen := make(map[string]TreeEntry)
	for p, content := range paths {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if rest == "" {
			continue
		}
		name, _, nested := strings.Cut(rest, "/")
		if nested {
			seen[name] = TreeEntry{Path: strings.TrimSuffix(prefix+name, "/"), Name: name, IsDir: true}
		} else {
			seen[name] = TreeEntry{Path: p, Name: name, Size: int64(len(content))}
		}
	}

	if len(seen) == 0 && prefix != "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, dirPath)
	}

	entries := make([]TreeEntry, 0, len(seen))
	for _, e := range seen {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// BatchFetchFiles returns the stored contents for the requested paths.
// Unknown paths are absent from the result.
func (m *MockClient) BatchFetchFiles(ctx context.Context, repo string, paths []string) (map[string][]byte, error) {
	m.record("BatchFetchFiles")
	if m.BatchFetchErr != nil {
		return nil, m.BatchFetchErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.files[repo]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, repo)
	}

	found := make(map[string][]byte, len(paths))
	for _, p := range paths {
		if content, ok := stored[strings.TrimPrefix(p, "/")]; ok {
			found[p] = content
		}
	}
	return found, nil
}

// FileExists reports whether a file was stored at the given path.
func (m *MockClient) FileExists(ctx context.Context, repo, path string) (bool, error) {
	m.record("FileExists")
	if m.FileExistsErr != nil {
		return false, m.FileExistsErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.files[repo]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrRepositoryNotFound, repo)
	}
	_, ok = stored[strings.TrimPrefix(path, "/")]
	return ok, nil
}

// CurrentQuota reports the configured QuotaStatus.
func (m *MockClient) CurrentQuota(ctx context.Context) (quota.Status, error) {
	m.record("CurrentQuota")
	if m.CurrentQuotaErr != nil {
		return quota.Status{}, m.CurrentQuotaErr
	}
	if m.QuotaStatus == (quota.Status{}) {
		return quota.Status{Remaining: math.MaxInt32, Limit: math.MaxInt32}, nil
	}
	return m.QuotaStatus, nil
}
