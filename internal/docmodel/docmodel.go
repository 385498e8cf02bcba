// Package docmodel defines the artifacts that flow through the content
// pipeline: what discovery found, what validation attached, and the final
// processed document handed to exporters and storage.
//
// All types here are plain data. They are created, transformed, and discarded
// within a single run; nothing in this package caches across runs.
package docmodel

import (
	"time"

	"git.home.luguber.info/inful/docpipe/internal/frontmatter"
)

// DiscoveredFile is a single repository path selected for processing,
// together with the selector that produced it.
type DiscoveredFile struct {
	Path           string `json:"path"`                     // Repository-relative file path
	OriginSelector string `json:"origin_selector"`          // Config key, "parent:Child Title", or "pattern:<canonical>"
	EstimatedSize  int64  `json:"estimated_size,omitempty"` // Size from the directory listing; 0 when unknown
}

// ValidatedFile carries a discovered file through validation: the raw bytes,
// the split front matter, and any warnings attached along the way.
//
// It is an intermediate stage artifact and is never serialized.
type ValidatedFile struct {
	Discovered  DiscoveredFile
	RawContent  []byte
	FrontMatter frontmatter.Fields
	Body        string
	Warnings    []string
}

// Heading is one markdown heading extracted from a document body.
type Heading struct {
	Level  int    `json:"level"`  // 1 through 6
	Text   string `json:"text"`   // Heading text with markers stripped
	Anchor string `json:"anchor"` // Lowercased slug; consecutive hyphens are not collapsed
}

// Link is one markdown link extracted from a document body.
//
// IsValid is nil until a link checker has run; the pipeline itself never
// sets it.
type Link struct {
	Text       string `json:"text"`
	URL        string `json:"url"`
	IsInternal bool   `json:"is_internal"`
	IsValid    *bool  `json:"is_valid,omitempty"`
}

// Image is one markdown image reference extracted from a document body.
type Image struct {
	AltText    string `json:"alt_text"`
	URL        string `json:"url"`
	IsInternal bool   `json:"is_internal"`
}

// CodeBlock is one fenced code block. Only well-closed fences are recorded;
// an unterminated fence contributes nothing.
type CodeBlock struct {
	Language  string `json:"language,omitempty"` // Text after the opening fence; empty when absent
	Content   string `json:"content"`
	LineCount int    `json:"line_count"`
}

// ProcessedDocument is the terminal artifact of the pipeline, one per source
// file. It is immutable once built; exporters and storage serialize it as-is.
type ProcessedDocument struct {
	FilePath             string             `json:"file_path"`
	Title                string             `json:"title"`
	Body                 string             `json:"body"` // Markdown body without front matter
	FrontMatter          frontmatter.Fields `json:"front_matter,omitempty"`
	WordCount            int                `json:"word_count"`
	Headings             []Heading          `json:"headings,omitempty"`
	Links                []Link             `json:"links,omitempty"`
	Images               []Image            `json:"images,omitempty"`
	CodeBlocks           []CodeBlock        `json:"code_blocks,omitempty"`
	ProcessedAt          time.Time          `json:"processed_at"`
	ProcessingDurationMS int64              `json:"processing_duration_ms"`
	Warnings             []string           `json:"warnings,omitempty"`
	QualityScore         float64            `json:"quality_score"` // 0.0 through 1.0
}

// NavNode is one entry in the assembled navigation tree. A node with
// children and no URL is a purely structural section.
type NavNode struct {
	Title    string     `json:"title"`
	URL      string     `json:"url,omitempty"` // Empty for structural sections
	Children []*NavNode `json:"children,omitempty"`
}
