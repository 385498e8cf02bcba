// Package pipeline sequences the three content stages for one repository:
// discovery, validation, processing. Stages run strictly in order and each
// consumes the full output of the previous one; per-file problems are
// handled inside the stages, so an error here always means the whole run
// stopped.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/discovery"
	"git.home.luguber.info/inful/docpipe/internal/docmodel"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/processing"
	"git.home.luguber.info/inful/docpipe/internal/repohost"
	"git.home.luguber.info/inful/docpipe/internal/validation"
)

// StageName identifies one pipeline stage in reports and errors.
type StageName string

const (
	StageDiscovering StageName = "discovering"
	StageValidating  StageName = "validating"
	StageProcessing  StageName = "processing"
)

// RunState is the terminal state of a pipeline run.
type RunState string

const (
	StateDone      RunState = "done"
	StateFailed    RunState = "failed"
	StateCancelled RunState = "cancelled"
)

// StageError wraps a stage-aborting failure with the stage it happened in.
type StageError struct {
	Stage StageName
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageTiming records wall-clock duration and output size per stage.
type StageTiming struct {
	Stage      StageName `json:"stage"`
	DurationMS int64     `json:"duration_ms"`
	Items      int       `json:"items"`
}

// RunReport is the run-level metadata returned alongside the documents.
// It is filled in even when the run fails, up to the failing stage.
type RunReport struct {
	RunID      string        `json:"run_id"`
	Repository string        `json:"repository"`
	State      RunState      `json:"state"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	DurationMS int64         `json:"duration_ms"`
	Stages     []StageTiming `json:"stages,omitempty"`
}

// Pipeline runs the content stages for one repository.
type Pipeline struct {
	client      repohost.Client
	repo        string
	cfg         *config.ProjectConfig
	conventions []string
}

// Option adjusts pipeline behavior.
type Option func(*Pipeline)

// WithConventions overrides the built-in convention pattern list.
func WithConventions(patterns []string) Option {
	return func(p *Pipeline) { p.conventions = patterns }
}

// New builds a pipeline over the given client and project configuration.
func New(client repohost.Client, repo string, cfg *config.ProjectConfig, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:      client,
		repo:        repo,
		cfg:         cfg,
		conventions: discovery.DefaultConventions(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs discovery, validation, and processing in order. On failure it
// returns no documents, a report covering the stages that did run, and a
// StageError naming the stage that stopped the run. Cancellation surfaces
// the context error with report state "cancelled" and no partial results.
func (p *Pipeline) Execute(ctx context.Context) ([]docmodel.ProcessedDocument, *RunReport, error) {
	report := &RunReport{
		RunID:      uuid.NewString(),
		Repository: p.repo,
		StartedAt:  time.Now().UTC(),
	}
	slog.Info("pipeline run starting",
		logfields.RunID(report.RunID),
		logfields.Repository(p.repo))

	discoverer := discovery.NewDiscovererWithConventions(p.client, p.conventions)
	var discovered []docmodel.DiscoveredFile
	err := p.runStage(ctx, report, StageDiscovering, func(ctx context.Context) (int, error) {
		var err error
		discovered, err = discoverer.Discover(ctx, p.repo, p.cfg)
		return len(discovered), err
	})
	if err != nil {
		return nil, report, err
	}

	validator := validation.NewValidator(p.client)
	var validated []docmodel.ValidatedFile
	err = p.runStage(ctx, report, StageValidating, func(ctx context.Context) (int, error) {
		var err error
		validated, err = validator.ValidateBatch(ctx, p.repo, discovered)
		return len(validated), err
	})
	if err != nil {
		return nil, report, err
	}

	var documents []docmodel.ProcessedDocument
	err = p.runStage(ctx, report, StageProcessing, func(ctx context.Context) (int, error) {
		documents = processing.ProcessBatch(validated)
		return len(documents), nil
	})
	if err != nil {
		return nil, report, err
	}

	p.finish(report, StateDone)
	slog.Info("pipeline run finished",
		logfields.RunID(report.RunID),
		logfields.Repository(p.repo),
		logfields.Files(len(documents)),
		logfields.DurationMS(float64(report.DurationMS)))
	return documents, report, nil
}

// runStage wraps one stage with the cancellation check, timing capture, and
// error attribution shared by all stages.
func (p *Pipeline) runStage(ctx context.Context, report *RunReport, name StageName, fn func(context.Context) (int, error)) error {
	if err := ctx.Err(); err != nil {
		p.finish(report, StateCancelled)
		return &StageError{Stage: name, Err: err}
	}

	start := time.Now()
	items, err := fn(ctx)
	if err != nil {
		state := StateFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			state = StateCancelled
		}
		p.finish(report, state)
		slog.Error("pipeline stage failed",
			logfields.RunID(report.RunID),
			logfields.Stage(string(name)),
			logfields.Error(err))
		return &StageError{Stage: name, Err: err}
	}

	report.Stages = append(report.Stages, StageTiming{
		Stage:      name,
		DurationMS: time.Since(start).Milliseconds(),
		Items:      items,
	})
	slog.Debug("pipeline stage finished",
		logfields.RunID(report.RunID),
		logfields.Stage(string(name)),
		logfields.Files(items))
	return nil
}

func (p *Pipeline) finish(report *RunReport, state RunState) {
	report.State = state
	report.FinishedAt = time.Now().UTC()
	report.DurationMS = report.FinishedAt.Sub(report.StartedAt).Milliseconds()
}
