// Package docstore persists scan and pipeline results in SQLite: the
// repositories seen during organization scans, the documents each run
// produced, and the processing job ledger.
package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Job types recorded in the processing job ledger.
const (
	JobScanOrganization  = "scan_organization"
	JobProcessRepository = "process_repository"
)

// Job statuses. Pending and running jobs count as active.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Repository is one row of the repositories table.
type Repository struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	FullName           string     `json:"full_name"`
	Description        string     `json:"description,omitempty"`
	DefaultBranch      string     `json:"default_branch"`
	Private            bool       `json:"private"`
	Archived           bool       `json:"archived"`
	Fork               bool       `json:"fork"`
	HasDocumentsConfig bool       `json:"has_documents_config"`
	DocumentsConfig    string     `json:"documents_config,omitempty"` // raw config file content
	LastScannedAt      *time.Time `json:"last_scanned_at,omitempty"`
	LastProcessedAt    *time.Time `json:"last_processed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Document is one row of the documents table.
type Document struct {
	ID           string    `json:"id"`
	RepositoryID string    `json:"repository_id"`
	FilePath     string    `json:"file_path"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	ContentHash  string    `json:"content_hash"` // content fingerprint, drives change detection
	Metadata     string    `json:"metadata,omitempty"`
	FileSize     int64     `json:"file_size"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Job is one row of the processing job ledger.
type Job struct {
	ID           string     `json:"id"`
	RepositoryID string     `json:"repository_id,omitempty"`
	JobType      string     `json:"job_type"`
	Status       string     `json:"status"`
	Parameters   string     `json:"parameters,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RepositorySummary backs the CLI listing: one line per repository with its
// stored document count.
type RepositorySummary struct {
	FullName        string     `json:"full_name"`
	Description     string     `json:"description,omitempty"`
	DocumentCount   int        `json:"document_count"`
	LastProcessedAt *time.Time `json:"last_processed_at,omitempty"`
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite is single-writer; one pooled connection also keeps :memory:
	// databases coherent across calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS repositories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		full_name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		default_branch TEXT NOT NULL DEFAULT 'main',
		is_private INTEGER NOT NULL DEFAULT 0,
		is_archived INTEGER NOT NULL DEFAULT 0,
		is_fork INTEGER NOT NULL DEFAULT 0,
		has_documents_config INTEGER NOT NULL DEFAULT 0,
		documents_config TEXT NOT NULL DEFAULT '',
		last_scanned_at INTEGER,
		last_processed_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		repository_id TEXT NOT NULL REFERENCES repositories(id),
		file_path TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '',
		file_size INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE (repository_id, file_path)
	);
	CREATE TABLE IF NOT EXISTS processing_jobs (
		id TEXT PRIMARY KEY,
		repository_id TEXT NOT NULL DEFAULT '',
		job_type TEXT NOT NULL,
		status TEXT NOT NULL,
		parameters TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		started_at INTEGER,
		completed_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_repository ON documents(repository_id);
	CREATE INDEX IF NOT EXISTS idx_jobs_status ON processing_jobs(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Health verifies the database answers queries.
func (s *Store) Health(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// UpsertRepository inserts or updates a repository keyed by full name and
// returns the stored row. On update the original id and created_at survive.
func (s *Store) UpsertRepository(ctx context.Context, repo *Repository) (*Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	id := repo.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repositories (
			id, name, full_name, description, default_branch,
			is_private, is_archived, is_fork,
			has_documents_config, documents_config,
			last_scanned_at, last_processed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (full_name) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			default_branch = excluded.default_branch,
			is_private = excluded.is_private,
			is_archived = excluded.is_archived,
			is_fork = excluded.is_fork,
			has_documents_config = excluded.has_documents_config,
			documents_config = excluded.documents_config,
			last_scanned_at = COALESCE(excluded.last_scanned_at, last_scanned_at),
			last_processed_at = COALESCE(excluded.last_processed_at, last_processed_at),
			updated_at = excluded.updated_at`,
		id, repo.Name, repo.FullName, repo.Description, repo.DefaultBranch,
		repo.Private, repo.Archived, repo.Fork,
		repo.HasDocumentsConfig, repo.DocumentsConfig,
		ptrUnix(repo.LastScannedAt), ptrUnix(repo.LastProcessedAt), now.Unix(), now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert repository %s: %w", repo.FullName, err)
	}

	return s.getRepository(ctx, repo.FullName)
}

// GetRepository looks a repository up by full name.
func (s *Store) GetRepository(ctx context.Context, fullName string) (*Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getRepository(ctx, fullName)
}

func (s *Store) getRepository(ctx context.Context, fullName string) (*Repository, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, full_name, description, default_branch,
			is_private, is_archived, is_fork,
			has_documents_config, documents_config,
			last_scanned_at, last_processed_at, created_at, updated_at
		FROM repositories WHERE full_name = ?`, fullName)

	repo, err := scanRepository(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("repository %s: %w", fullName, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", fullName, err)
	}
	return repo, nil
}

// ListRepositoriesWithDocuments returns repositories whose scan found a
// document configuration, ordered by name.
func (s *Store) ListRepositoriesWithDocuments(ctx context.Context) ([]Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, full_name, description, default_branch,
			is_private, is_archived, is_fork,
			has_documents_config, documents_config,
			last_scanned_at, last_processed_at, created_at, updated_at
		FROM repositories WHERE has_documents_config = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var repos []Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, *repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}
	return repos, nil
}

// MarkProcessed stamps last_processed_at on a repository.
func (s *Store) MarkProcessed(ctx context.Context, fullName string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE repositories SET last_processed_at = ?, updated_at = ? WHERE full_name = ?",
		at.Unix(), time.Now().UTC().Unix(), fullName)
	if err != nil {
		return fmt.Errorf("mark processed %s: %w", fullName, err)
	}
	return nil
}

// UpsertDocument inserts or updates a document keyed by (repository, path)
// and returns the stored row.
func (s *Store) UpsertDocument(ctx context.Context, doc *Document) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (
			id, repository_id, file_path, title, content, content_hash,
			metadata, file_size, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (repository_id, file_path) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			content_hash = excluded.content_hash,
			metadata = excluded.metadata,
			file_size = excluded.file_size,
			updated_at = excluded.updated_at`,
		id, doc.RepositoryID, doc.FilePath, doc.Title, doc.Content, doc.ContentHash,
		doc.Metadata, doc.FileSize, now.Unix(), now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert document %s: %w", doc.FilePath, err)
	}

	return s.getDocument(ctx, doc.RepositoryID, doc.FilePath)
}

// GetDocument looks a document up by repository and path.
func (s *Store) GetDocument(ctx context.Context, repositoryID, filePath string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getDocument(ctx, repositoryID, filePath)
}

func (s *Store) getDocument(ctx context.Context, repositoryID, filePath string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, repository_id, file_path, title, content, content_hash,
			metadata, file_size, created_at, updated_at
		FROM documents WHERE repository_id = ? AND file_path = ?`, repositoryID, filePath)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", filePath, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", filePath, err)
	}
	return doc, nil
}

// DocumentsByRepository returns a repository's documents ordered by path.
func (s *Store) DocumentsByRepository(ctx context.Context, repositoryID string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repository_id, file_path, title, content, content_hash,
			metadata, file_size, created_at, updated_at
		FROM documents WHERE repository_id = ? ORDER BY file_path`, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// CreateJob records a new processing job and returns it with id and
// timestamps filled in.
func (s *Store) CreateJob(ctx context.Context, job *Job) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored := *job
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.Status == "" {
		stored.Status = JobStatusPending
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_jobs (
			id, repository_id, job_type, status, parameters, error_message,
			started_at, completed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.RepositoryID, stored.JobType, stored.Status,
		stored.Parameters, stored.ErrorMessage,
		ptrUnix(stored.StartedAt), ptrUnix(stored.CompletedAt), now.Unix(), now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return &stored, nil
}

// UpdateJobStatus transitions a job. Moving to running stamps started_at
// once; completed and failed stamp completed_at.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID, status, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var startedAt, completedAt any
	switch status {
	case JobStatusRunning:
		startedAt = now.Unix()
	case JobStatusCompleted, JobStatusFailed:
		completedAt = now.Unix()
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE processing_jobs SET
			status = ?,
			error_message = ?,
			started_at = COALESCE(started_at, ?),
			completed_at = COALESCE(completed_at, ?),
			updated_at = ?
		WHERE id = ?`,
		status, errorMessage, startedAt, completedAt, now.Unix(), jobID)
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	return nil
}

// GetJob looks a job up by id.
func (s *Store) GetJob(ctx context.Context, jobID string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, repository_id, job_type, status, parameters, error_message,
			started_at, completed_at, created_at, updated_at
		FROM processing_jobs WHERE id = ?`, jobID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return job, nil
}

// ActiveJobs returns pending and running jobs, oldest first.
func (s *Store) ActiveJobs(ctx context.Context) ([]Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repository_id, job_type, status, parameters, error_message,
			started_at, completed_at, created_at, updated_at
		FROM processing_jobs
		WHERE status IN (?, ?) ORDER BY created_at, id`,
		JobStatusPending, JobStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// ListSummaries returns one line per repository with its document count,
// ordered by full name. Repositories without stored documents count zero.
func (s *Store) ListSummaries(ctx context.Context) ([]RepositorySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.full_name, r.description, COUNT(d.id), r.last_processed_at
		FROM repositories r
		LEFT JOIN documents d ON d.repository_id = r.id
		GROUP BY r.id ORDER BY r.full_name`)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var summaries []RepositorySummary
	for rows.Next() {
		var (
			summary     RepositorySummary
			processedAt sql.NullInt64
		)
		if err := rows.Scan(&summary.FullName, &summary.Description, &summary.DocumentCount, &processedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summary.LastProcessedAt = unixPtr(processedAt)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return summaries, nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRepository(row scanner) (*Repository, error) {
	var (
		repo                  Repository
		lastScanned, lastProc sql.NullInt64
		createdAt, updatedAt  int64
	)
	err := row.Scan(
		&repo.ID, &repo.Name, &repo.FullName, &repo.Description, &repo.DefaultBranch,
		&repo.Private, &repo.Archived, &repo.Fork,
		&repo.HasDocumentsConfig, &repo.DocumentsConfig,
		&lastScanned, &lastProc, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	repo.LastScannedAt = unixPtr(lastScanned)
	repo.LastProcessedAt = unixPtr(lastProc)
	repo.CreatedAt = time.Unix(createdAt, 0).UTC()
	repo.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &repo, nil
}

func scanDocument(row scanner) (*Document, error) {
	var (
		doc                  Document
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&doc.ID, &doc.RepositoryID, &doc.FilePath, &doc.Title, &doc.Content,
		&doc.ContentHash, &doc.Metadata, &doc.FileSize, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.CreatedAt = time.Unix(createdAt, 0).UTC()
	doc.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &doc, nil
}

func scanJob(row scanner) (*Job, error) {
	var (
		job                  Job
		started, completed   sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&job.ID, &job.RepositoryID, &job.JobType, &job.Status,
		&job.Parameters, &job.ErrorMessage,
		&started, &completed, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.StartedAt = unixPtr(started)
	job.CompletedAt = unixPtr(completed)
	job.CreatedAt = time.Unix(createdAt, 0).UTC()
	job.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &job, nil
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func ptrUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}
