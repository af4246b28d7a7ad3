// Package metrics exposes Prometheus collectors for the analysis pipeline.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Capabilities observed by ObserveCall
const (
	CapabilityEmbedding    = "embedding"
	CapabilityIndex        = "vector_index"
	CapabilityGeneration   = "generation"
	CapabilityVerification = "verification"
)

// Collector groups the pipeline metrics
type Collector struct {
	branches     *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	callErrors   *prometheus.CounterVec
	verifyScore  prometheus.Histogram
	analyses     prometheus.Counter
	analysisTime prometheus.Histogram
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		branches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contractlens",
			Name:      "branches_total",
			Help:      "Theme branches by terminal status.",
		}, []string{"status"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "contractlens",
			Name:      "external_call_duration_seconds",
			Help:      "Latency of calls to external capabilities.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"capability"}),
		callErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contractlens",
			Name:      "external_call_errors_total",
			Help:      "Failed calls to external capabilities.",
		}, []string{"capability"}),
		verifyScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "contractlens",
			Name:      "verification_score",
			Help:      "Faithfulness scores of scored verdicts.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		analyses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "contractlens",
			Name:      "analyses_total",
			Help:      "Completed contract analyses.",
		}),
		analysisTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "contractlens",
			Name:      "analysis_duration_seconds",
			Help:      "Wall-clock duration of contract analyses.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
	}

	for _, col := range []prometheus.Collector{c.branches, c.callDuration, c.callErrors, c.verifyScore, c.analyses, c.analysisTime} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveCall records the latency of a capability call and whether it failed
func (c *Collector) ObserveCall(capability string, start time.Time, err error) {
	if c == nil {
		return
	}
	c.callDuration.WithLabelValues(capability).Observe(time.Since(start).Seconds())
	if err != nil {
		c.callErrors.WithLabelValues(capability).Inc()
	}
}

// ObserveBranch counts a branch by its terminal status
func (c *Collector) ObserveBranch(status string) {
	if c == nil {
		return
	}
	c.branches.WithLabelValues(status).Inc()
}

// ObserveVerification records a scored verdict
func (c *Collector) ObserveVerification(score float64) {
	if c == nil {
		return
	}
	c.verifyScore.Observe(score)
}

// ObserveAnalysis records a finished analysis
func (c *Collector) ObserveAnalysis(start time.Time) {
	if c == nil {
		return
	}
	c.analyses.Inc()
	c.analysisTime.Observe(time.Since(start).Seconds())
}
