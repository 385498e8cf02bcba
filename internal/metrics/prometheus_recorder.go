package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
// A nil *PrometheusRecorder is safe to call; every method no-ops.
type PrometheusRecorder struct {
	stageDuration  *prom.HistogramVec
	runDuration    prom.Histogram
	stageResults   *prom.CounterVec
	runOutcomes    *prom.CounterVec
	documents      prom.Counter
	warnings       prom.Counter
	jobs           *prom.CounterVec
	quotaRemaining prom.Gauge
}

// NewPrometheusRecorder constructs the metric set and registers it with reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docpipe",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docpipe",
			Name:      "run_duration_seconds",
			Help:      "Total pipeline run duration",
			Buckets:   prom.DefBuckets,
		}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docpipe",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docpipe",
			Name:      "run_outcomes_total",
			Help:      "Pipeline run outcomes by final state",
		}, []string{"outcome"}),
		documents: prom.NewCounter(prom.CounterOpts{
			Namespace: "docpipe",
			Name:      "documents_processed_total",
			Help:      "Documents that completed processing",
		}),
		warnings: prom.NewCounter(prom.CounterOpts{
			Namespace: "docpipe",
			Name:      "validation_warnings_total",
			Help:      "Validation warnings attached to documents",
		}),
		jobs: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docpipe",
			Name:      "jobs_total",
			Help:      "Processing job transitions by type and status",
		}, []string{"type", "status"}),
		quotaRemaining: prom.NewGauge(prom.GaugeOpts{
			Namespace: "docpipe",
			Name:      "host_quota_remaining",
			Help:      "Remaining API requests reported by the repository host",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.runDuration, pr.stageResults, pr.runOutcomes,
		pr.documents, pr.warnings, pr.jobs, pr.quotaRemaining)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	p.runOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) AddDocumentsProcessed(n int) {
	if p == nil || p.documents == nil {
		return
	}
	p.documents.Add(float64(n))
}

func (p *PrometheusRecorder) AddWarnings(n int) {
	if p == nil || p.warnings == nil {
		return
	}
	p.warnings.Add(float64(n))
}

func (p *PrometheusRecorder) IncJobResult(jobType, status string) {
	if p == nil || p.jobs == nil {
		return
	}
	p.jobs.WithLabelValues(jobType, status).Inc()
}

func (p *PrometheusRecorder) SetQuotaRemaining(n int) {
	if p == nil || p.quotaRemaining == nil {
		return
	}
	p.quotaRemaining.Set(float64(n))
}
