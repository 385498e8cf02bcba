// Package services provides the canonical application operations: processing
// one repository end to end, scanning an organization for document
// configurations, validating a repository's document tree, and re-exporting
// stored documents. The CLI, the daemon, and the webhook path all route
// through the Service interface so behavior stays identical across entry
// points.
package services

import (
	"context"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/pipeline"
)

// Service is the interface for executing docpipe operations.
type Service interface {
	// ProcessRepository runs the full content pipeline for one repository:
	// fetch and validate its document configuration, discover, validate and
	// process the files, then optionally export and persist the outcome.
	ProcessRepository(ctx context.Context, req ProcessRequest) (*ProcessResult, error)

	// ScanOrganization enumerates the organization's repositories and records
	// which of them carry a document configuration.
	ScanOrganization(ctx context.Context) (*ScanResult, error)

	// ValidateRepository fetches and validates a repository's document
	// configuration without running the pipeline.
	ValidateRepository(ctx context.Context, repository string) (*ValidateResult, error)

	// ExportStored re-exports a repository's stored documents without
	// contacting the host.
	ExportStored(ctx context.Context, repository string) (*ExportResult, error)
}

// ProcessRequest contains the inputs for one repository run.
type ProcessRequest struct {
	// Repository is the repository to process, bare or organization-qualified.
	Repository string

	// Export writes the run artifacts to the configured export directory.
	Export bool
}

// ProcessResult is the outcome of one repository run. On failure it still
// carries the run report covering the stages that did run.
type ProcessResult struct {
	Repository string              `json:"repository"`
	RunID      string              `json:"run_id"`
	State      pipeline.RunState   `json:"state"`
	Documents  int                 `json:"documents"`
	Warnings   int                 `json:"warnings"`
	Stored     int                 `json:"stored,omitempty"`
	Exported   bool                `json:"exported,omitempty"`
	Duration   time.Duration       `json:"duration"`
	Report     *pipeline.RunReport `json:"report,omitempty"`
}

// ScanResult summarizes one organization scan.
type ScanResult struct {
	Organization string        `json:"organization"`
	Repositories int           `json:"repositories"`
	WithConfig   int           `json:"with_config"`
	Archived     int           `json:"archived,omitempty"`
	Failed       int           `json:"failed,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// ValidateResult is the outcome of a configuration check.
type ValidateResult struct {
	Repository string                  `json:"repository"`
	Project    string                  `json:"project,omitempty"`
	Documents  int                     `json:"documents"`
	Result     config.ValidationResult `json:"result"`
}

// ExportResult is the outcome of a stored-document export.
type ExportResult struct {
	Repository string `json:"repository"`
	Documents  int    `json:"documents"`
	Directory  string `json:"directory"`
}
