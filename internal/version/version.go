// Package version exposes build metadata stamped in via ldflags.
package version

// Version is the release tag, "unknown" for untagged builds. Override with:
//
//	go build -ldflags "-X git.home.luguber.info/inful/docpipe/internal/version.Version=v1.2.0"
var Version = "unknown"

// BuildTime and GitCommit carry the remaining stamp fields.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)
