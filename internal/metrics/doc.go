// Package metrics provides observability hooks for pipeline runs.
//
// The package follows the null object pattern: components receive a Recorder
// through injection and default to NoopRecorder, so collection points never
// nil-check. The serve and daemon entry points swap in a PrometheusRecorder
// and expose its registry over /metrics; one-shot CLI runs keep the noop.
package metrics
