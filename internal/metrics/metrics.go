// Package metrics exposes Prometheus instrumentation for the snapshot
// pipeline. A nil *Pipeline is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "snapshot"

// Run outcomes.
const (
	OutcomePublished  = "published"
	OutcomeCanceled   = "canceled"
	OutcomeFailed     = "failed"
	OutcomeSuperseded = "superseded"
)

// Pipeline holds the collectors for one orchestrator.
type Pipeline struct {
	// RunsTotal counts pipeline requests by outcome.
	// Labels: outcome (published, canceled, failed, superseded)
	RunsTotal *prometheus.CounterVec

	// BinningAttemptsTotal counts all-to-all binning attempts.
	// Labels: result (ok, overflow, canceled)
	BinningAttemptsTotal *prometheus.CounterVec

	// RunDurationSeconds measures executed runs by outcome.
	RunDurationSeconds *prometheus.HistogramVec

	// Pc is the most recently published collision probability.
	Pc prometheus.Gauge

	// Epochs is the number of usable epochs currently loaded.
	Epochs prometheus.Gauge

	// MalformedLinesTotal counts skipped input lines.
	MalformedLinesTotal prometheus.Counter
}

// NewPipeline registers the pipeline collectors with reg. Pass
// prometheus.NewRegistry() in tests to avoid global state.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	f := promauto.With(reg)
	return &Pipeline{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline requests by outcome",
		}, []string{"outcome"}),
		BinningAttemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "binning",
			Name:      "attempts_total",
			Help:      "All-to-all binning attempts by result",
		}, []string{"result"}),
		RunDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of executed pipeline runs",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"outcome"}),
		Pc: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pc",
			Help:      "Most recently published probability of collision",
		}),
		Epochs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "epochs",
			Help:      "Usable epochs currently loaded",
		}),
		MalformedLinesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "malformed_lines_total",
			Help:      "Input lines skipped as malformed",
		}),
	}
}

// RecordSuperseded counts a request that never ran.
func (p *Pipeline) RecordSuperseded() {
	if p == nil {
		return
	}
	p.RunsTotal.WithLabelValues(OutcomeSuperseded).Inc()
}

// RecordRun counts an executed run and its duration.
func (p *Pipeline) RecordRun(outcome string, d time.Duration) {
	if p == nil {
		return
	}
	p.RunsTotal.WithLabelValues(outcome).Inc()
	p.RunDurationSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

// BinningAttempt counts one binning attempt.
func (p *Pipeline) BinningAttempt(result string) {
	if p == nil {
		return
	}
	p.BinningAttemptsTotal.WithLabelValues(result).Inc()
}

// SetPc records the latest published Pc.
func (p *Pipeline) SetPc(pc float64) {
	if p == nil {
		return
	}
	p.Pc.Set(pc)
}

// SetEpochs records the loaded epoch count.
func (p *Pipeline) SetEpochs(n int) {
	if p == nil {
		return
	}
	p.Epochs.Set(float64(n))
}

// AddMalformed counts skipped input lines.
func (p *Pipeline) AddMalformed(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.MalformedLinesTotal.Add(float64(n))
}
