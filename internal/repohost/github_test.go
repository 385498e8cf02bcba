package repohost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/quota"
	"git.home.luguber.info/inful/docpipe/internal/retry"
)

func newTestGitHubClient(t *testing.T, handler http.Handler) *GitHubClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewGitHubClient(
		config.HostConfig{
			Type:         config.HostTypeGitHub,
			Organization: "acme",
			Token:        "test-token",
			BaseURL:      srv.URL,
		},
		config.PipelineConfig{BatchSize: 50, MaxRetries: 3},
	)
	require.NoError(t, err)

	// Millisecond backoff keeps retry tests fast.
	client.policy = retry.Policy{
		Mode:       config.RetryBackoffFixed,
		Initial:    time.Millisecond,
		Max:        time.Millisecond,
		MaxRetries: 3,
	}
	return client
}

// serveRateLimit answers the quota probe with plenty of headroom.
func serveRateLimit(mux *http.ServeMux) {
	mux.HandleFunc("/rate_limit", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"resources":{"core":{"limit":5000,"remaining":4000,"reset":%d}}}`,
			time.Now().Add(30*time.Minute).Unix())
	})
}

func TestNewGitHubClient_MissingToken_Error(t *testing.T) {
	_, err := NewGitHubClient(
		config.HostConfig{Type: config.HostTypeGitHub, Organization: "acme"},
		config.PipelineConfig{},
	)
	require.Error(t, err)
	require.Contains(t, err.Error(), "token")
}

func TestNewGitHubClient_WrongHostType_Error(t *testing.T) {
	_, err := NewGitHubClient(
		config.HostConfig{Type: config.HostTypeLocal, Organization: "acme", Token: "x"},
		config.PipelineConfig{},
	)
	require.Error(t, err)
}

func TestGitHubClient_ListDirectory_ReturnsEntries(t *testing.T) {
	mux := http.NewServeMux()
	serveRateLimit(mux)
	mux.HandleFunc("/repos/acme/docs-repo/contents/docs", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		io.WriteString(w, `[
			{"name":"guide.md","path":"docs/guide.md","type":"file","size":120},
			{"name":"img","path":"docs/img","type":"dir","size":0}
		]`)
	})

	client := newTestGitHubClient(t, mux)
	entries, err := client.ListDirectory(context.Background(), "docs-repo", "docs")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "docs/guide.md", entries[0].Path)
	require.False(t, entries[0].IsDir)
	require.Equal(t, int64(120), entries[0].Size)
	require.True(t, entries[1].IsDir)
}

func TestGitHubClient_ListDirectory_Missing_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	serveRateLimit(mux)

	client := newTestGitHubClient(t, mux)
	_, err := client.ListDirectory(context.Background(), "docs-repo", "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGitHubClient_ListDirectory_FilePath_Error(t *testing.T) {
	mux := http.NewServeMux()
	serveRateLimit(mux)
	mux.HandleFunc("/repos/acme/docs-repo/contents/README.md", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"name":"README.md","path":"README.md","type":"file","size":42}`)
	})

	client := newTestGitHubClient(t, mux)
	_, err := client.ListDirectory(context.Background(), "docs-repo", "README.md")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a directory")
}

func TestGitHubClient_FileExists(t *testing.T) {
	mux := http.NewServeMux()
	serveRateLimit(mux)
	mux.HandleFunc("/repos/acme/docs-repo/contents/README.md", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"name":"README.md","path":"README.md","type":"file"}`)
	})

	client := newTestGitHubClient(t, mux)

	exists, err := client.FileExists(context.Background(), "docs-repo", "README.md")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = client.FileExists(context.Background(), "docs-repo", "MISSING.md")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestGitHubClient_ListRepositories_Pagination(t *testing.T) {
	var pages atomic.Int32
	mux := http.NewServeMux()
	serveRateLimit(mux)
	mux.HandleFunc("/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		if r.URL.Query().Get("page") == "1" {
			var b strings.Builder
			b.WriteString("[")
			for i := 0; i < 100; i++ {
				if i > 0 {
					b.WriteString(",")
				}
				fmt.Fprintf(&b, `{"name":"repo-%03d","full_name":"acme/repo-%03d","default_branch":"main"}`, i, i)
			}
			b.WriteString("]")
			io.WriteString(w, b.String())
			return
		}
		io.WriteString(w, `[{"name":"repo-last","full_name":"acme/repo-last","default_branch":"main","archived":true}]`)
	})

	client := newTestGitHubClient(t, mux)
	repos, err := client.ListRepositories(context.Background())
	require.NoError(t, err)
	require.Len(t, repos, 101)
	require.Equal(t, int32(2), pages.Load())
	require.Equal(t, "acme/repo-000", repos[0].FullName)
	require.True(t, repos[100].Archived)
}

func TestGitHubClient_ListRepositories_PageFailure_Aborts(t *testing.T) {
	mux := http.NewServeMux()
	serveRateLimit(mux)
	mux.HandleFunc("/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			var b strings.Builder
			b.WriteString("[")
			for i := 0; i < 100; i++ {
				if i > 0 {
					b.WriteString(",")
				}
				fmt.Fprintf(&b, `{"name":"repo-%03d"}`, i)
			}
			b.WriteString("]")
			io.WriteString(w, b.String())
			return
		}
		http.Error(w, "not found", http.StatusNotFound)
	})

	client := newTestGitHubClient(t, mux)
	repos, err := client.ListRepositories(context.Background())
	require.Error(t, err)
	require.Nil(t, repos)
	require.Contains(t, err.Error(), "page 2")
}

func TestGitHubClient_BatchFetchFiles_MissingPathsAbsent(t *testing.T) {
	mux := http.NewServeMux()
	serveRateLimit(mux)
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "acme", req.Variables["owner"])
		require.Equal(t, "docs-repo", req.Variables["name"])
		require.Contains(t, req.Query, `object(expression: "HEAD:docs/guide.md")`)

		io.WriteString(w, `{"data":{"repository":{
			"f0":{"text":"# Guide","isBinary":false},
			"f1":null,
			"f2":{"text":"","isBinary":false}
		}}}`)
	})

	client := newTestGitHubClient(t, mux)
	found, err := client.BatchFetchFiles(context.Background(), "docs-repo",
		[]string{"docs/guide.md", "docs/missing.md", "docs/empty.md"})
	require.NoError(t, err)

	require.Equal(t, []byte("# Guide"), found["docs/guide.md"])
	_, ok := found["docs/missing.md"]
	require.False(t, ok)
	content, ok := found["docs/empty.md"]
	require.True(t, ok)
	require.Empty(t, content)
}

func TestGitHubClient_BatchFetchFiles_ChunksAtBatchSize(t *testing.T) {
	var chunkSizes []int
	mux := http.NewServeMux()
	serveRateLimit(mux)
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		count := strings.Count(req.Query, "object(expression:")
		chunkSizes = append(chunkSizes, count)

		aliases := make([]string, 0, count)
		for i := 0; i < count; i++ {
			aliases = append(aliases, fmt.Sprintf(`"f%d":{"text":"x","isBinary":false}`, i))
		}
		fmt.Fprintf(w, `{"data":{"repository":{%s}}}`, strings.Join(aliases, ","))
	})

	client := newTestGitHubClient(t, mux)

	paths := make([]string, 120)
	for i := range paths {
		paths[i] = fmt.Sprintf("docs/file-%03d.md", i)
	}

	found, err := client.BatchFetchFiles(context.Background(), "docs-repo", paths)
	require.NoError(t, err)
	require.Len(t, found, 120)
	require.Equal(t, []int{50, 50, 20}, chunkSizes)
}

func TestGitHubClient_BatchFetchFiles_TooComplex_NoRetry(t *testing.T) {
	var requests atomic.Int32
	mux := http.NewServeMux()
	serveRateLimit(mux)
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		io.WriteString(w, `{"errors":[{"type":"MAX_NODE_LIMIT_EXCEEDED","message":"query exceeds maximum complexity"}]}`)
	})

	client := newTestGitHubClient(t, mux)
	_, err := client.BatchFetchFiles(context.Background(), "docs-repo", []string{"a.md", "b.md"})
	require.ErrorIs(t, err, ErrQueryTooComplex)
	require.Equal(t, int32(1), requests.Load())
}

func TestGitHubClient_WithRetry_TransientThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	mux := http.NewServeMux()
	serveRateLimit(mux)
	mux.HandleFunc("/repos/acme/docs-repo/contents/docs", func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		io.WriteString(w, `[{"name":"guide.md","path":"docs/guide.md","type":"file","size":7}]`)
	})

	client := newTestGitHubClient(t, mux)
	entries, err := client.ListDirectory(context.Background(), "docs-repo", "docs")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int32(3), attempts.Load())
}

func TestGitHubClient_WithRetry_QuotaExhausted_Terminal(t *testing.T) {
	reset := time.Now().Add(-time.Minute).Unix()
	var attempts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/rate_limit", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"resources":{"core":{"limit":5000,"remaining":0,"reset":%d}}}`, reset)
	})
	mux.HandleFunc("/repos/acme/docs-repo/contents/docs", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset))
		http.Error(w, "rate limit exceeded", http.StatusForbidden)
	})

	client := newTestGitHubClient(t, mux)
	_, err := client.ListDirectory(context.Background(), "docs-repo", "docs")
	require.ErrorIs(t, err, ErrQuotaExceeded)

	var exhausted *quota.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 0, exhausted.Remaining)

	// Initial attempt plus MaxRetries.
	require.Equal(t, int32(4), attempts.Load())
}

func TestGitHubClient_CurrentQuota_UsesHeaderCache(t *testing.T) {
	var probes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/rate_limit", func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		fmt.Fprintf(w, `{"resources":{"core":{"limit":5000,"remaining":4999,"reset":%d}}}`,
			time.Now().Add(time.Hour).Unix())
	})
	mux.HandleFunc("/repos/acme/docs-repo/contents/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "1234")
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(time.Hour).Unix()))
		io.WriteString(w, `[{"name":"guide.md","path":"docs/guide.md","type":"file","size":7}]`)
	})

	client := newTestGitHubClient(t, mux)

	// Cold client probes /rate_limit once.
	st, err := client.CurrentQuota(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4999, st.Remaining)
	require.Equal(t, int32(1), probes.Load())

	// A real API response refreshes the cache from headers.
	_, err = client.ListDirectory(context.Background(), "docs-repo", "docs")
	require.NoError(t, err)

	st, err = client.CurrentQuota(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1234, st.Remaining)
	require.Equal(t, int32(1), probes.Load())
}

func TestChunkPaths(t *testing.T) {
	paths := []string{"a", "b", "c", "d", "e"}

	chunks := chunkPaths(paths, 2)
	require.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, chunks)

	chunks = chunkPaths(paths, 10)
	require.Equal(t, [][]string{{"a", "b", "c", "d", "e"}}, chunks)

	require.Empty(t, chunkPaths(nil, 3))
}
