package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/docmodel"
	"git.home.luguber.info/inful/docpipe/internal/docstore"
	"git.home.luguber.info/inful/docpipe/internal/events"
	"git.home.luguber.info/inful/docpipe/internal/export"
	"git.home.luguber.info/inful/docpipe/internal/frontmatter"
	"git.home.luguber.info/inful/docpipe/internal/frontmatterops"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/metrics"
	"git.home.luguber.info/inful/docpipe/internal/navigation"
	"git.home.luguber.info/inful/docpipe/internal/pipeline"
	"git.home.luguber.info/inful/docpipe/internal/repohost"
)

// ErrNoDocumentsConfig reports a repository without a document configuration
// file at the configured path.
var ErrNoDocumentsConfig = errors.New("repository has no document configuration")

// Runner is the standard Service implementation. Store, publisher, and
// recorder are optional; absent ones degrade to no-ops so the one-shot CLI
// path and the daemon path share the same code.
type Runner struct {
	cfg       *config.Config
	client    repohost.Client
	store     *docstore.Store
	publisher events.Publisher
	recorder  metrics.Recorder
}

var _ Service = (*Runner)(nil)

// NewRunner creates a runner over the given host client. client may be nil
// when only store-backed operations (ExportStored) will be used.
func NewRunner(cfg *config.Config, client repohost.Client) *Runner {
	return &Runner{
		cfg:       cfg,
		client:    client,
		publisher: events.NoopPublisher{},
		recorder:  metrics.NoopRecorder{},
	}
}

// WithStore enables result persistence.
func (r *Runner) WithStore(store *docstore.Store) *Runner {
	r.store = store
	return r
}

// WithPublisher enables run event publishing.
func (r *Runner) WithPublisher(p events.Publisher) *Runner {
	if p != nil {
		r.publisher = p
	}
	return r
}

// WithRecorder enables metrics recording.
func (r *Runner) WithRecorder(rec metrics.Recorder) *Runner {
	if rec != nil {
		r.recorder = rec
	}
	return r
}

// ProcessRepository runs the full pipeline for one repository.
func (r *Runner) ProcessRepository(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	name, fullName := r.repoNames(req.Repository)
	start := time.Now()

	if d := r.runTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	raw, projectCfg, err := r.fetchProjectConfig(ctx, name)
	if err != nil {
		return nil, err
	}

	vr := config.ValidateProjectConfig(projectCfg)
	for _, warning := range vr.Warnings {
		slog.Warn("document configuration warning",
			logfields.Repository(fullName),
			slog.String("warning", warning))
	}
	if !vr.Valid() {
		return nil, fmt.Errorf("document configuration invalid: %s", strings.Join(vr.Errors, "; "))
	}

	docs, report, runErr := pipeline.New(r.client, name, projectCfg).Execute(ctx)
	warnings := countWarnings(docs)
	r.recordRun(report, runErr)
	r.publishRun(ctx, fullName, report, len(docs), warnings, runErr)

	result := &ProcessResult{
		Repository: fullName,
		RunID:      report.RunID,
		State:      report.State,
		Documents:  len(docs),
		Warnings:   warnings,
		Duration:   time.Since(start),
		Report:     report,
	}
	if runErr != nil {
		return result, runErr
	}

	r.recorder.AddDocumentsProcessed(len(docs))
	r.recorder.AddWarnings(warnings)

	nav := navigation.NewAssembler(navigation.WithURLPrefix(r.cfg.Export.BaseURL)).
		Build(projectCfg.Documents, processedByPath(docs))

	if req.Export {
		if err := r.export(fullName, docs, nav, time.Since(start)); err != nil {
			return result, err
		}
		result.Exported = true
	}

	if r.store != nil {
		stored, err := r.persistRun(ctx, name, fullName, raw, docs)
		if err != nil {
			return result, fmt.Errorf("store run results: %w", err)
		}
		result.Stored = stored
	}

	result.Duration = time.Since(start)
	slog.Info("repository processed",
		logfields.Repository(fullName),
		logfields.RunID(report.RunID),
		logfields.Files(len(docs)),
		logfields.Warnings(warnings))
	return result, nil
}

// ScanOrganization enumerates the organization and records which repositories
// carry a document configuration. Per-repository failures are counted and
// skipped; only the listing itself is fatal.
func (r *Runner) ScanOrganization(ctx context.Context) (*ScanResult, error) {
	org := r.client.GetOrganization()
	start := time.Now()
	slog.Info("organization scan starting", logfields.Organization(org))

	repos, err := r.client.ListRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}

	result := &ScanResult{Organization: org, Repositories: len(repos)}
	configPath := r.cfg.Pipeline.ConfigPath
	scannedAt := time.Now()

	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if repo.Archived {
			result.Archived++
			continue
		}

		files, err := r.client.BatchFetchFiles(ctx, repo.Name, []string{configPath})
		if err != nil {
			slog.Warn("config check failed",
				logfields.Repository(repo.FullName),
				logfields.Error(err))
			result.Failed++
			continue
		}
		raw, hasConfig := files[configPath]
		if hasConfig {
			result.WithConfig++
		}

		if r.store != nil {
			_, err := r.store.UpsertRepository(ctx, &docstore.Repository{
				Name:               repo.Name,
				FullName:           repo.FullName,
				Description:        repo.Description,
				DefaultBranch:      repo.DefaultBranch,
				Private:            repo.Private,
				Fork:               repo.Fork,
				HasDocumentsConfig: hasConfig,
				DocumentsConfig:    string(raw),
				LastScannedAt:      &scannedAt,
			})
			if err != nil {
				slog.Warn("repository upsert failed",
					logfields.Repository(repo.FullName),
					logfields.Error(err))
				result.Failed++
			}
		}
	}

	if st, err := r.client.CurrentQuota(ctx); err == nil {
		r.recorder.SetQuotaRemaining(st.Remaining)
	}

	result.Duration = time.Since(start)
	slog.Info("organization scan finished",
		logfields.Organization(org),
		slog.Int("repositories", result.Repositories),
		slog.Int("with_config", result.WithConfig),
		slog.Int("failed", result.Failed),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))
	return result, nil
}

// ValidateRepository fetches and validates a repository's document tree.
func (r *Runner) ValidateRepository(ctx context.Context, repository string) (*ValidateResult, error) {
	name, fullName := r.repoNames(repository)

	_, projectCfg, err := r.fetchProjectConfig(ctx, name)
	if err != nil {
		return nil, err
	}

	return &ValidateResult{
		Repository: fullName,
		Project:    projectCfg.Project.Name,
		Documents:  countPathNodes(projectCfg.Documents),
		Result:     config.ValidateProjectConfig(projectCfg),
	}, nil
}

// ExportStored rebuilds export artifacts from the store. Extraction artifacts
// (headings, links, code blocks) are not persisted, so the re-export carries
// content, titles, and front matter only.
func (r *Runner) ExportStored(ctx context.Context, repository string) (*ExportResult, error) {
	if r.store == nil {
		return nil, errors.New("no store configured")
	}
	_, fullName := r.repoNames(repository)

	repoRow, err := r.store.GetRepository(ctx, fullName)
	if err != nil {
		return nil, fmt.Errorf("load repository %s: %w", fullName, err)
	}
	rows, err := r.store.DocumentsByRepository(ctx, repoRow.ID)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: no stored documents", fullName)
	}

	docs := make([]docmodel.ProcessedDocument, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, storedDocument(row))
	}

	var nav *docmodel.NavNode
	if repoRow.DocumentsConfig != "" {
		projectCfg, err := config.ParseProjectConfig([]byte(repoRow.DocumentsConfig))
		if err != nil {
			slog.Warn("stored document configuration unparsable, exporting without navigation",
				logfields.Repository(fullName),
				logfields.Error(err))
		} else {
			nav = navigation.NewAssembler(navigation.WithURLPrefix(r.cfg.Export.BaseURL)).
				Build(projectCfg.Documents, processedByPath(docs))
		}
	}

	if err := r.export(fullName, docs, nav, 0); err != nil {
		return nil, err
	}

	return &ExportResult{
		Repository: fullName,
		Documents:  len(docs),
		Directory:  r.cfg.Export.Directory,
	}, nil
}

// repoNames splits an optionally organization-qualified repository into the
// bare name used for host calls and the full name used for storage and events.
func (r *Runner) repoNames(repository string) (name, fullName string) {
	name = repository
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name, r.organization() + "/" + name
}

// organization resolves the owning organization, preferring the live client.
func (r *Runner) organization() string {
	if r.client != nil {
		return r.client.GetOrganization()
	}
	return r.cfg.Host.Organization
}

// runTimeout parses the configured per-run deadline; zero means none.
func (r *Runner) runTimeout() time.Duration {
	if r.cfg.Pipeline.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(r.cfg.Pipeline.Timeout)
	if err != nil {
		slog.Warn("invalid pipeline timeout, running without deadline",
			slog.String("timeout", r.cfg.Pipeline.Timeout))
		return 0
	}
	return d
}

// fetchProjectConfig retrieves and parses the repository's document
// configuration file. A missing file yields ErrNoDocumentsConfig.
func (r *Runner) fetchProjectConfig(ctx context.Context, name string) ([]byte, *config.ProjectConfig, error) {
	path := r.cfg.Pipeline.ConfigPath
	files, err := r.client.BatchFetchFiles(ctx, name, []string{path})
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	raw, ok := files[path]
	if !ok {
		return nil, nil, fmt.Errorf("%s: %s: %w", name, path, ErrNoDocumentsConfig)
	}

	projectCfg, err := config.ParseProjectConfig(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return raw, projectCfg, nil
}

func (r *Runner) export(fullName string, docs []docmodel.ProcessedDocument, nav *docmodel.NavNode, elapsed time.Duration) error {
	fragments := export.ContentFragments(fullName, docs)
	if navFragment, ok := export.NavigationFragment(fullName, nav); ok {
		fragments = append(fragments, navFragment)
	}
	result := export.NewResult(fullName, fragments, elapsed)
	if err := export.New(r.cfg.Export).Export(result, docs, nav); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	return nil
}

// recordRun translates a run report into recorder observations. The failing
// stage is absent from report.Stages; it is attributed via the stage error.
func (r *Runner) recordRun(report *pipeline.RunReport, runErr error) {
	for _, st := range report.Stages {
		r.recorder.ObserveStageDuration(string(st.Stage), time.Duration(st.DurationMS)*time.Millisecond)
		r.recorder.IncStageResult(string(st.Stage), metrics.ResultSuccess)
	}
	if runErr != nil {
		outcome := metrics.ResultFailed
		if report.State == pipeline.StateCancelled {
			outcome = metrics.ResultCancelled
		}
		var stageErr *pipeline.StageError
		if errors.As(runErr, &stageErr) {
			r.recorder.IncStageResult(string(stageErr.Stage), outcome)
		}
	}
	r.recorder.ObserveRunDuration(time.Duration(report.DurationMS) * time.Millisecond)
	r.recorder.IncRunOutcome(string(report.State))
}

// publishRun emits the run lifecycle event. Publishing is best effort and
// survives run cancellation, so failed and cancelled runs are reported too.
func (r *Runner) publishRun(ctx context.Context, fullName string, report *pipeline.RunReport, documents, warnings int, runErr error) {
	evt := events.RunEvent{
		RunID:      report.RunID,
		Repository: fullName,
		State:      string(report.State),
		Documents:  documents,
		Warnings:   warnings,
		DurationMS: report.DurationMS,
	}
	if runErr != nil {
		evt.Error = runErr.Error()
	}
	if err := r.publisher.PublishRun(context.WithoutCancel(ctx), evt); err != nil {
		slog.Warn("run event publish failed",
			logfields.RunID(report.RunID),
			logfields.Error(err))
	}
}

func (r *Runner) persistRun(ctx context.Context, name, fullName string, rawConfig []byte, docs []docmodel.ProcessedDocument) (int, error) {
	row := &docstore.Repository{
		Name:               name,
		FullName:           fullName,
		HasDocumentsConfig: true,
		DocumentsConfig:    string(rawConfig),
	}
	// Processing learns nothing about host metadata; carry forward what an
	// earlier scan recorded so the upsert does not blank it.
	if existing, err := r.store.GetRepository(ctx, fullName); err == nil {
		row.Description = existing.Description
		row.DefaultBranch = existing.DefaultBranch
		row.Private = existing.Private
		row.Archived = existing.Archived
		row.Fork = existing.Fork
	}
	repoRow, err := r.store.UpsertRepository(ctx, row)
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, doc := range docs {
		fingerprint, err := frontmatterops.ComputeFingerprint(doc.FrontMatter, doc.Body)
		if err != nil {
			slog.Warn("fingerprint failed, storing without hash",
				logfields.Path(doc.FilePath),
				logfields.Error(err))
		}
		metadata, err := json.Marshal(doc.FrontMatter.Map())
		if err != nil {
			metadata = []byte("{}")
		}
		_, err = r.store.UpsertDocument(ctx, &docstore.Document{
			RepositoryID: repoRow.ID,
			FilePath:     doc.FilePath,
			Title:        doc.Title,
			Content:      doc.Body,
			ContentHash:  fingerprint,
			Metadata:     string(metadata),
			FileSize:     int64(len(doc.Body)),
		})
		if err != nil {
			return stored, err
		}
		stored++
	}

	if err := r.store.MarkProcessed(ctx, fullName, time.Now()); err != nil {
		return stored, err
	}
	return stored, nil
}

// storedDocument rebuilds the processed form from a stored row. Front matter
// order is not persisted, so rebuilt fields are key-sorted.
func storedDocument(row docstore.Document) docmodel.ProcessedDocument {
	doc := docmodel.ProcessedDocument{
		FilePath:    row.FilePath,
		Title:       row.Title,
		Body:        row.Content,
		WordCount:   len(strings.Fields(row.Content)),
		ProcessedAt: row.UpdatedAt,
	}

	if row.Metadata != "" {
		var meta map[string]string
		if err := json.Unmarshal([]byte(row.Metadata), &meta); err == nil && len(meta) > 0 {
			keys := make([]string, 0, len(meta))
			for key := range meta {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			fields := make(frontmatter.Fields, 0, len(keys))
			for _, key := range keys {
				fields = append(fields, frontmatter.Field{Key: key, Value: meta[key]})
			}
			doc.FrontMatter = fields
		}
	}
	return doc
}

func processedByPath(docs []docmodel.ProcessedDocument) map[string]docmodel.ProcessedDocument {
	byPath := make(map[string]docmodel.ProcessedDocument, len(docs))
	for _, doc := range docs {
		byPath[doc.FilePath] = doc
	}
	return byPath
}

func countWarnings(docs []docmodel.ProcessedDocument) int {
	n := 0
	for i := range docs {
		n += len(docs[i].Warnings)
	}
	return n
}

func countPathNodes(nodes []config.DocumentNode) int {
	n := 0
	for i := range nodes {
		if nodes[i].HasPath() {
			n++
		}
		n += countPathNodes(nodes[i].Children)
	}
	return n
}
