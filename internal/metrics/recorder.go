package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess   ResultLabel = "success"
	ResultFailed    ResultLabel = "failed"
	ResultCancelled ResultLabel = "cancelled"
)

// Recorder defines observability hooks for pipeline runs. Implementations
// may forward to Prometheus or stay silent; callers never check for nil.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncRunOutcome(outcome string) // outcome: done|failed|cancelled
	AddDocumentsProcessed(n int)
	AddWarnings(n int)
	IncJobResult(jobType, status string)
	SetQuotaRemaining(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncRunOutcome(string)                       {}
func (NoopRecorder) AddDocumentsProcessed(int)                  {}
func (NoopRecorder) AddWarnings(int)                            {}
func (NoopRecorder) IncJobResult(string, string)                {}
func (NoopRecorder) SetQuotaRemaining(int)                      {}
