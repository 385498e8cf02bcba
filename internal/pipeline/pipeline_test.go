package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/repohost"
)

func testProjectConfig(t *testing.T) *config.ProjectConfig {
	t.Helper()
	cfg, err := config.ParseProjectConfig([]byte(`
project:
  name: Test Project
  description: A test project
documents:
  doc1:
    title: Document 1
    path: docs/doc1.md
`))
	require.NoError(t, err)
	return cfg
}

func TestExecute_FullRun(t *testing.T) {
	mock := repohost.NewMockClient("acme")
	mock.AddFile("test-repo", "docs/doc1.md",
		[]byte("---\ntitle: Test Document\n---\n# Test Document\n\nThis is a test document."))
	mock.AddFile("test-repo", "README.md",
		[]byte("# Readme\n\nEnough text here to stay clear of the short-content warning line."))

	p := New(mock, "test-repo", testProjectConfig(t))
	docs, report, err := p.Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, docs, 2)
	require.Equal(t, "README.md", docs[0].FilePath)
	require.Equal(t, "docs/doc1.md", docs[1].FilePath)
	require.Equal(t, "Test Document", docs[1].Title)

	require.Equal(t, StateDone, report.State)
	require.NotEmpty(t, report.RunID)
	require.Equal(t, "test-repo", report.Repository)
	require.Len(t, report.Stages, 3)
	require.Equal(t, StageDiscovering, report.Stages[0].Stage)
	require.Equal(t, StageValidating, report.Stages[1].Stage)
	require.Equal(t, StageProcessing, report.Stages[2].Stage)
	require.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestExecute_ValidationFetchFailure_AbortsRun(t *testing.T) {
	mock := repohost.NewMockClient("acme")
	mock.AddFile("test-repo", "docs/doc1.md", []byte("# Doc"))
	mock.BatchFetchErr = errors.New("backend unavailable")

	p := New(mock, "test-repo", testProjectConfig(t))
	docs, report, err := p.Execute(context.Background())

	require.Nil(t, docs)
	require.Equal(t, StateFailed, report.State)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, StageValidating, stageErr.Stage)

	// Discovery completed before the failure and is still reported.
	require.Len(t, report.Stages, 1)
	require.Equal(t, StageDiscovering, report.Stages[0].Stage)
}

func TestExecute_MissingConfiguredFile_RunStillSucceeds(t *testing.T) {
	// doc1 is configured but absent from the repository; conventions find
	// nothing else. The run succeeds with an empty document set.
	mock := repohost.NewMockClient("acme")
	mock.AddRepository("test-repo")

	p := New(mock, "test-repo", testProjectConfig(t))
	docs, report, err := p.Execute(context.Background())

	require.NoError(t, err)
	require.Empty(t, docs)
	require.Equal(t, StateDone, report.State)
}

func TestExecute_Cancelled_NoPartialResults(t *testing.T) {
	mock := repohost.NewMockClient("acme")
	mock.AddFile("test-repo", "docs/doc1.md", []byte("# Doc"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(mock, "test-repo", testProjectConfig(t))
	docs, report, err := p.Execute(ctx)

	require.Nil(t, docs)
	require.Equal(t, StateCancelled, report.State)
	require.ErrorIs(t, err, context.Canceled)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, StageDiscovering, stageErr.Stage)
}

func TestExecute_ConventionOverride(t *testing.T) {
	mock := repohost.NewMockClient("acme")
	mock.AddFile("test-repo", "docs/doc1.md", []byte("# Doc one, short"))
	mock.AddFile("test-repo", "SECURITY.md", []byte("# Security policy"))

	p := New(mock, "test-repo", testProjectConfig(t), WithConventions([]string{"SECURITY.md"}))
	docs, _, err := p.Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, docs, 2)
	require.Equal(t, "SECURITY.md", docs[0].FilePath)
	require.Equal(t, "docs/doc1.md", docs[1].FilePath)
}

func TestStageError_UnwrapsCause(t *testing.T) {
	cause := errors.New("root cause")
	err := &StageError{Stage: StageValidating, Err: cause}

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "validating stage failed")
}
