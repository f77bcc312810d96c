// Package metrics exposes Prometheus metrics for claim analysis and the HTTP
// surface. Every Collector owns a private registry so tests and multiple
// servers in one process never collide on registration.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/claimlens/claimlens/internal/claims"
	"github.com/claimlens/claimlens/internal/config"
	"github.com/claimlens/claimlens/internal/nlp"
)

// Collector records analysis outcomes and request counters.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	analyses         *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	fraudScore       prometheus.Histogram
	stageFailures    *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	batchClaims      *prometheus.CounterVec
}

// NewCollector builds a collector on registry. A nil registry gets a fresh one.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "claimlens"
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
		analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "analysis",
				Name:      "total",
				Help:      "Completed claim analyses by severity and fraud tier",
			},
			[]string{"severity", "fraud_risk"},
		),
		analysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "analysis",
				Name:      "duration_seconds",
				Help:      "End-to-end analysis latency in seconds",
				// Model inference on CPU: 5ms - 5s
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		fraudScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "analysis",
				Name:      "fraud_score",
				Help:      "Distribution of fraud scores",
				Buckets:   []float64{0, 1, 2, 3, 4, 6, 8},
			},
		),
		stageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "analysis",
				Name:      "stage_failures_total",
				Help:      "Pipeline stage failures by stage and kind",
			},
			[]string{"stage", "kind"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		batchClaims: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "batch",
				Name:      "claims_total",
				Help:      "Claims processed by batch runs, by outcome",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		c.analyses,
		c.analysisDuration,
		c.fraudScore,
		c.stageFailures,
		c.httpRequests,
		c.httpDuration,
		c.batchClaims,
	)
	return c
}

// Registry returns the registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// AnalysisDone implements claims.Observer.
func (c *Collector) AnalysisDone(res *claims.AnalysisResult, elapsed time.Duration) {
	if c == nil || !c.config.Enabled || res == nil {
		return
	}
	c.analyses.WithLabelValues(string(res.Severity), string(res.FraudRisk)).Inc()
	c.analysisDuration.Observe(elapsed.Seconds())
	c.fraudScore.Observe(float64(res.FraudScore))
}

// StageFailed implements claims.Observer. kind is "model_unavailable" or "error".
func (c *Collector) StageFailed(stage string, err error) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.stageFailures.WithLabelValues(stage, failureKind(err)).Inc()
}

// RecordHTTP counts one served request. route must be a route pattern, never a raw path.
func (c *Collector) RecordHTTP(route string, code int, duration time.Duration) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.httpRequests.WithLabelValues(route, statusLabel(code)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordBatchClaim counts one batch row; status is "ok" or "error".
func (c *Collector) RecordBatchClaim(status string) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.batchClaims.WithLabelValues(status).Inc()
}

func failureKind(err error) string {
	if errors.Is(err, nlp.ErrModelUnavailable) {
		return "model_unavailable"
	}
	return "error"
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
