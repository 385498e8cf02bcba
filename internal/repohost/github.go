package repohost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/quota"
	"git.home.luguber.info/inful/docpipe/internal/retry"
)

const (
	defaultAPIURL  = "https://api.github.com"
	reposPerPage   = 100
	defaultTimeout = 30 * time.Second
)

// GitHubClient reads repository content through the GitHub REST and GraphQL
// APIs. All requests share one retry policy and one quota guard, so concurrent
// callers never race each other into a spent rate limit.
type GitHubClient struct {
	httpClient *http.Client
	apiURL     string
	org        string
	token      string
	batchSize  int
	policy     retry.Policy
	guard      *quota.Guard

	mu        sync.Mutex
	quotaSeen bool
	lastQuota quota.Status
}

// NewGitHubClient creates a client for the GitHub API.
func NewGitHubClient(hostCfg config.HostConfig, pipeCfg config.PipelineConfig) (*GitHubClient, error) {
	if hostCfg.Type != config.HostTypeGitHub {
		return nil, fmt.Errorf("invalid host type for GitHub client: %s", hostCfg.Type)
	}
	if hostCfg.Organization == "" {
		return nil, fmt.Errorf("no organization configured for GitHub host")
	}
	if hostCfg.Token == "" {
		return nil, fmt.Errorf("no authentication token configured for GitHub host")
	}

	apiURL := hostCfg.BaseURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	batchSize := pipeCfg.BatchSize
	if batchSize <= 0 {
		batchSize = config.DefaultBatchSize
	}

	policy := retry.HostPolicy()
	if pipeCfg.MaxRetries > 0 {
		policy.MaxRetries = pipeCfg.MaxRetries
	}
	if mode := config.NormalizeRetryBackoff(string(pipeCfg.RetryBackoff)); mode != "" {
		policy.Mode = mode
	}

	return &GitHubClient{
		httpClient: &http.Client{Timeout: defaultTimeout},
		apiURL:     strings.TrimRight(apiURL, "/"),
		org:        hostCfg.Organization,
		token:      hostCfg.Token,
		batchSize:  batchSize,
		policy:     policy,
		guard:      quota.NewGuard(pipeCfg.QuotaBuffer),
	}, nil
}

// GetType returns the host backend type.
func (c *GitHubClient) GetType() config.HostType { return config.HostTypeGitHub }

// GetOrganization returns the organization this client reads from.
func (c *GitHubClient) GetOrganization() string { return c.org }

// githubRepo models the subset of the GitHub repository payload we read.
type githubRepo struct {
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	DefaultBranch string    `json:"default_branch"`
	Description   string    `json:"description"`
	Private       bool      `json:"private"`
	Archived      bool      `json:"archived"`
	Fork          bool      `json:"fork"`
	UpdatedAt     time.Time `json:"updated_at"`
	Topics        []string  `json:"topics"`
}

// githubContent models one entry from the contents API.
type githubContent struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // "file", "dir", "symlink" or "submodule"
	Size int64  `json:"size"`
}

// ListRepositories returns all repositories of the configured organization.
// Pages are fetched transparently; if any page fails after retries the whole
// enumeration fails rather than returning a silently truncated list.
func (c *GitHubClient) ListRepositories(ctx context.Context) ([]*Repository, error) {
	var all []*Repository
	page := 1

	for {
		endpoint := fmt.Sprintf("/orgs/%s/repos?per_page=%d&page=%d&sort=updated", c.org, reposPerPage, page)

		var repos []githubRepo
		err := c.withRetry(ctx, "list repositories", func(ctx context.Context) error {
			req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return err
			}
			repos = nil
			return c.doRequest(req, &repos)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories for org %s (page %d): %w", c.org, page, err)
		}

		for i := range repos {
			all = append(all, convertGitHubRepo(&repos[i]))
		}

		if len(repos) < reposPerPage {
			break
		}
		page++
	}

	slog.Debug("Listed organization repositories", logfields.Organization(c.org), slog.Int("count", len(all)))
	return all, nil
}

func convertGitHubRepo(g *githubRepo) *Repository {
	return &Repository{
		Name:          g.Name,
		FullName:      g.FullName,
		DefaultBranch: g.DefaultBranch,
		Description:   g.Description,
		Private:       g.Private,
		Archived:      g.Archived,
		Fork:          g.Fork,
		LastUpdated:   g.UpdatedAt,
		Topics:        g.Topics,
	}
}

// ListDirectory lists the immediate entries of one directory via the contents
// API. The API already returns a single level, so no recursion happens here.
func (c *GitHubClient) ListDirectory(ctx context.Context, repo, dirPath string) ([]TreeEntry, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s", c.org, repo, strings.TrimPrefix(dirPath, "/"))

	var raw []byte
	err := c.withRetry(ctx, "list directory", func(ctx context.Context) error {
		req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		body, err := c.doRequestRaw(req)
		if err != nil {
			return err
		}
		raw = body
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The contents API returns an object for files and an array for
	// directories.
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return nil, fmt.Errorf("%s is not a directory in %s/%s", dirPath, c.org, repo)
	}

	var contents []githubContent
	if err := json.Unmarshal(trimmed, &contents); err != nil {
		return nil, fmt.Errorf("failed to decode directory listing for %s: %w", dirPath, err)
	}

	entries := make([]TreeEntry, 0, len(contents))
	for _, item := range contents {
		entries = append(entries, TreeEntry{
			Path:  item.Path,
			Name:  item.Name,
			IsDir: item.Type == "dir",
			Size:  item.Size,
		})
	}
	return entries, nil
}

// FileExists reports whether a file exists at the given path.
func (c *GitHubClient) FileExists(ctx context.Context, repo, filePath string) (bool, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s", c.org, repo, strings.TrimPrefix(filePath, "/"))

	var exists bool
	err := c.withRetry(ctx, "check file", func(ctx context.Context) error {
		req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		if _, err := c.doRequestRaw(req); err != nil {
			if errors.Is(err, ErrNotFound) {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

// BatchFetchFiles fetches many file contents with one GraphQL query per chunk
// of at most batchSize paths. Paths missing at HEAD are absent from the
// result; they are not an error.
func (c *GitHubClient) BatchFetchFiles(ctx context.Context, repo string, paths []string) (map[string][]byte, error) {
	found := make(map[string][]byte, len(paths))
	for _, chunk := range chunkPaths(paths, c.batchSize) {
		if err := c.fetchChunk(ctx, repo, chunk, found); err != nil {
			return nil, err
		}
	}
	return found, nil
}

type graphQLRequest struct {
	Query     string            `json:"query"`
	Variables map[string]string `json:"variables"`
}

type graphQLError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type blobNode struct {
	Text        *string `json:"text"`
	IsBinary    bool    `json:"isBinary"`
	IsTruncated bool    `json:"isTruncated"`
}

func (c *GitHubClient) fetchChunk(ctx context.Context, repo string, chunk []string, found map[string][]byte) error {
	reqBody := graphQLRequest{
		Query:     buildBlobQuery(chunk),
		Variables: map[string]string{"owner": c.org, "name": repo},
	}

	var payload struct {
		Data struct {
			Repository map[string]*blobNode `json:"repository"`
		} `json:"data"`
		Errors []graphQLError `json:"errors"`
	}

	err := c.withRetry(ctx, "batch fetch", func(ctx context.Context) error {
		req, err := c.newRequest(ctx, http.MethodPost, "/graphql", reqBody)
		if err != nil {
			return err
		}
		payload.Data.Repository = nil
		payload.Errors = nil
		if err := c.doRequest(req, &payload); err != nil {
			return err
		}
		if len(payload.Errors) > 0 {
			return classifyGraphQLErrors(payload.Errors)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to fetch %d files from %s/%s: %w", len(chunk), c.org, repo, err)
	}

	if payload.Data.Repository == nil {
		return fmt.Errorf("%w: %s/%s", ErrRepositoryNotFound, c.org, repo)
	}

	for i, p := range chunk {
		node := payload.Data.Repository[fmt.Sprintf("f%d", i)]
		if node == nil {
			continue // path absent at HEAD
		}
		if node.Text == nil {
			// Binary and oversized blobs carry no text; the pipeline only
			// consumes text content, so they count as missing.
			slog.Debug("Skipping non-text blob", logfields.Repository(repo), logfields.Path(p))
			continue
		}
		found[p] = []byte(*node.Text)
	}
	return nil
}

// buildBlobQuery renders an aliased blob query for one chunk of paths. Each
// path becomes an alias fN on the repository object, so a single round trip
// resolves the whole chunk.
func buildBlobQuery(chunk []string) string {
	var b strings.Builder
	b.WriteString("query($owner: String!, $name: String!) { repository(owner: $owner, name: $name) {")
	for i, p := range chunk {
		fmt.Fprintf(&b, " f%d: object(expression: %s) { ... on Blob { text isBinary isTruncated } }",
			i, strconv.Quote("HEAD:"+p))
	}
	b.WriteString(" } }")
	return b.String()
}

// classifyGraphQLErrors maps the GraphQL error list onto package sentinels.
// Complexity rejections surface as ErrQueryTooComplex and are never retried;
// only splitting the batch can make them succeed.
func classifyGraphQLErrors(errs []graphQLError) error {
	for _, e := range errs {
		if e.Type == "MAX_NODE_LIMIT_EXCEEDED" || strings.Contains(strings.ToLower(e.Message), "complexity") {
			return fmt.Errorf("%w: %s", ErrQueryTooComplex, e.Message)
		}
		if e.Type == "NOT_FOUND" {
			return fmt.Errorf("%w: %s", ErrRepositoryNotFound, e.Message)
		}
	}
	return fmt.Errorf("%w: graphql: %s", ErrTransport, errs[0].Message)
}

// chunkPaths splits paths into chunks of at most size entries.
func chunkPaths(paths []string, size int) [][]string {
	if size <= 0 {
		size = config.DefaultBatchSize
	}
	var chunks [][]string
	for len(paths) > size {
		chunks = append(chunks, paths[:size])
		paths = paths[size:]
	}
	if len(paths) > 0 {
		chunks = append(chunks, paths)
	}
	return chunks
}

// CurrentQuota reports the remaining API quota. The state cached from rate
// limit response headers is preferred; only a cold client pays for a
// /rate_limit round trip, which GitHub does not count against the quota.
func (c *GitHubClient) CurrentQuota(ctx context.Context) (quota.Status, error) {
	if st, ok := c.cachedQuota(); ok {
		return st, nil
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/rate_limit", nil)
	if err != nil {
		return quota.Status{}, err
	}

	var payload struct {
		Resources struct {
			Core struct {
				Limit     int   `json:"limit"`
				Remaining int   `json:"remaining"`
				Reset     int64 `json:"reset"`
			} `json:"core"`
		} `json:"resources"`
	}
	if err := c.doRequest(req, &payload); err != nil {
		return quota.Status{}, err
	}

	st := quota.Status{
		Remaining: payload.Resources.Core.Remaining,
		Limit:     payload.Resources.Core.Limit,
		ResetAt:   time.Unix(payload.Resources.Core.Reset, 0),
	}
	c.mu.Lock()
	c.lastQuota = st
	c.quotaSeen = true
	c.mu.Unlock()
	return st, nil
}

// withRetry runs one host call under the quota guard and the retry policy.
// The guard waits before every attempt so a nearly spent quota is slept out
// instead of burned. When retries are exhausted while the quota is flat, the
// failure surfaces as ErrQuotaExceeded.
func (c *GitHubClient) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("Retrying host call",
				slog.String("operation", op),
				slog.Int("attempt", attempt),
				logfields.Error(lastErr))
			if err := c.policy.Sleep(ctx, attempt); err != nil {
				return err
			}
		}

		if err := c.guard.Wait(ctx, c.CurrentQuota); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, ErrTransport) {
			return lastErr
		}
	}

	if st, ok := c.cachedQuota(); ok && st.Remaining == 0 {
		return fmt.Errorf("%w: %w", ErrQuotaExceeded,
			&quota.ExhaustedError{Remaining: st.Remaining, ResetAt: st.ResetAt})
	}
	return lastErr
}

func (c *GitHubClient) newRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Request, error) {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, err
	}
	endpointPath, query, _ := strings.Cut(endpoint, "?")
	u.Path = path.Join(u.Path, endpointPath)
	u.RawQuery = query

	var req *http.Request
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		req, err = http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
	} else {
		var err error
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
		if err != nil {
			return nil, err
		}
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", "DocPipe/1.0")

	return req, nil
}

func (c *GitHubClient) doRequest(req *http.Request, result interface{}) error {
	body, err := c.doRequestRaw(req)
	if err != nil {
		return err
	}
	if result != nil {
		return json.Unmarshal(body, result)
	}
	return nil
}

// doRequestRaw executes the request, refreshes the cached quota state from
// the rate limit headers and maps failure statuses onto package sentinels.
func (c *GitHubClient) doRequestRaw(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	c.updateQuota(resp.Header)

	if resp.StatusCode >= 400 {
		return nil, c.statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}
	return body, nil
}

func (c *GitHubClient) statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, resp.Request.URL.Path)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("github authentication failed: %s", resp.Status)
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.Header.Get("Retry-After") != "" {
			return fmt.Errorf("%w: rate limited: %s", ErrTransport, resp.Status)
		}
		return fmt.Errorf("github api error: %s", resp.Status)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: github api error: %s", ErrTransport, resp.Status)
	default:
		return fmt.Errorf("github api error: %s", resp.Status)
	}
}

// updateQuota caches the rate limit state carried on every API response.
func (c *GitHubClient) updateQuota(h http.Header) {
	remaining, err := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	if err != nil {
		return
	}
	limit, _ := strconv.Atoi(h.Get("X-RateLimit-Limit"))
	var resetAt time.Time
	if v, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		resetAt = time.Unix(v, 0)
	}

	c.mu.Lock()
	c.lastQuota = quota.Status{Remaining: remaining, Limit: limit, ResetAt: resetAt}
	c.quotaSeen = true
	c.mu.Unlock()
}

func (c *GitHubClient) cachedQuota() (quota.Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastQuota, c.quotaSeen
}
