package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRepository(fullName string) *Repository {
	return &Repository{
		Name:          fullName[len("acme/"):],
		FullName:      fullName,
		DefaultBranch: "main",
	}
}

func TestOpen_InMemory_Healthy(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Health(context.Background()))
}

func TestUpsertRepository_InsertFillsIdentity(t *testing.T) {
	store := newTestStore(t)

	repo, err := store.UpsertRepository(context.Background(), testRepository("acme/docs"))
	require.NoError(t, err)

	require.NotEmpty(t, repo.ID)
	require.Equal(t, "acme/docs", repo.FullName)
	require.Equal(t, "docs", repo.Name)
	require.False(t, repo.CreatedAt.IsZero())
	require.Nil(t, repo.LastScannedAt)
}

func TestUpsertRepository_ConflictKeepsIdentity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.UpsertRepository(ctx, testRepository("acme/docs"))
	require.NoError(t, err)

	updated := testRepository("acme/docs")
	updated.Description = "team handbook"
	updated.HasDocumentsConfig = true
	updated.Fork = true
	second, err := store.UpsertRepository(ctx, updated)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "team handbook", second.Description)
	require.True(t, second.HasDocumentsConfig)
	require.True(t, second.Fork)
	require.True(t, second.CreatedAt.Equal(first.CreatedAt))
}

func TestUpsertRepository_UpdateKeepsScanStamps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	scanned := time.Unix(1700000000, 0).UTC()
	withStamp := testRepository("acme/docs")
	withStamp.LastScannedAt = &scanned
	_, err := store.UpsertRepository(ctx, withStamp)
	require.NoError(t, err)

	// A later upsert without the stamp must not erase it.
	got, err := store.UpsertRepository(ctx, testRepository("acme/docs"))
	require.NoError(t, err)
	require.NotNil(t, got.LastScannedAt)
	require.True(t, got.LastScannedAt.Equal(scanned))
}

func TestGetRepository_Missing_ReturnsErrNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRepository(context.Background(), "acme/ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListRepositoriesWithDocuments_FiltersAndSorts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, fullName := range []string{"acme/beta", "acme/alpha", "acme/gamma"} {
		repo := testRepository(fullName)
		repo.HasDocumentsConfig = fullName != "acme/gamma"
		_, err := store.UpsertRepository(ctx, repo)
		require.NoError(t, err)
	}

	repos, err := store.ListRepositoriesWithDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	require.Equal(t, "alpha", repos[0].Name)
	require.Equal(t, "beta", repos[1].Name)
}

func TestMarkProcessed_StampsRepository(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.UpsertRepository(ctx, testRepository("acme/docs"))
	require.NoError(t, err)

	at := time.Unix(1712000000, 0).UTC()
	require.NoError(t, store.MarkProcessed(ctx, "acme/docs", at))

	got, err := store.GetRepository(ctx, "acme/docs")
	require.NoError(t, err)
	require.NotNil(t, got.LastProcessedAt)
	require.True(t, got.LastProcessedAt.Equal(at))
}

func TestUpsertDocument_ConflictUpdatesContent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	repo, err := store.UpsertRepository(ctx, testRepository("acme/docs"))
	require.NoError(t, err)

	first, err := store.UpsertDocument(ctx, &Document{
		RepositoryID: repo.ID,
		FilePath:     "README.md",
		Title:        "Readme",
		Content:      "first draft",
		ContentHash:  "hash-1",
		FileSize:     11,
	})
	require.NoError(t, err)

	second, err := store.UpsertDocument(ctx, &Document{
		RepositoryID: repo.ID,
		FilePath:     "README.md",
		Title:        "Readme",
		Content:      "second draft",
		ContentHash:  "hash-2",
		FileSize:     12,
	})
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "second draft", second.Content)
	require.Equal(t, "hash-2", second.ContentHash)

	docs, err := store.DocumentsByRepository(ctx, repo.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestDocumentsByRepository_OrderedByPath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	repo, err := store.UpsertRepository(ctx, testRepository("acme/docs"))
	require.NoError(t, err)

	for _, path := range []string{"docs/z.md", "README.md", "docs/a.md"} {
		_, err := store.UpsertDocument(ctx, &Document{
			RepositoryID: repo.ID,
			FilePath:     path,
			Title:        path,
			Content:      "body",
			ContentHash:  "hash",
		})
		require.NoError(t, err)
	}

	docs, err := store.DocumentsByRepository(ctx, repo.ID)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	require.Equal(t, "README.md", docs[0].FilePath)
	require.Equal(t, "docs/a.md", docs[1].FilePath)
	require.Equal(t, "docs/z.md", docs[2].FilePath)
}

func TestGetDocument_Missing_ReturnsErrNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetDocument(context.Background(), "repo-1", "missing.md")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateJob_DefaultsToPending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, &Job{JobType: JobScanOrganization})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	require.Equal(t, JobStatusPending, job.Status)

	active, err := store.ActiveJobs(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, job.ID, active[0].ID)
}

func TestUpdateJobStatus_RunningStampsStart(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, &Job{JobType: JobProcessRepository, RepositoryID: "repo-1"})
	require.NoError(t, err)

	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, JobStatusRunning, ""))

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, JobStatusRunning, got.Status)
	require.NotNil(t, got.StartedAt)
	require.Nil(t, got.CompletedAt)
}

func TestUpdateJobStatus_CompletionLeavesActiveSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, &Job{JobType: JobProcessRepository})
	require.NoError(t, err)

	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, JobStatusRunning, ""))
	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, ""))

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, JobStatusCompleted, got.Status)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)

	active, err := store.ActiveJobs(ctx)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestUpdateJobStatus_FailureKeepsError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, &Job{JobType: JobProcessRepository})
	require.NoError(t, err)

	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "fetch config: quota exhausted"))

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, JobStatusFailed, got.Status)
	require.Equal(t, "fetch config: quota exhausted", got.ErrorMessage)
	require.NotNil(t, got.CompletedAt)
}

func TestGetJob_Missing_ReturnsErrNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetJob(context.Background(), "no-such-job")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListSummaries_CountsDocuments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alpha, err := store.UpsertRepository(ctx, testRepository("acme/alpha"))
	require.NoError(t, err)
	_, err = store.UpsertRepository(ctx, testRepository("acme/beta"))
	require.NoError(t, err)

	for _, path := range []string{"README.md", "docs/guide.md"} {
		_, err := store.UpsertDocument(ctx, &Document{
			RepositoryID: alpha.ID,
			FilePath:     path,
			Title:        path,
			Content:      "body",
			ContentHash:  "hash",
		})
		require.NoError(t, err)
	}

	summaries, err := store.ListSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, "acme/alpha", summaries[0].FullName)
	require.Equal(t, 2, summaries[0].DocumentCount)
	require.Equal(t, "acme/beta", summaries[1].FullName)
	require.Equal(t, 0, summaries[1].DocumentCount)
}
