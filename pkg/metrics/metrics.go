// Package metrics provides Prometheus instrumentation for the evaluation
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the pipeline's Prometheus collectors.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	itemsCompleted prometheus.Counter
	itemsFailed    *prometheus.CounterVec
	itemsSkipped   prometheus.Counter

	candidatesPerItem prometheus.Histogram
	promptChars       prometheus.Histogram

	llmRequestSeconds prometheus.Histogram
	llmRetries        prometheus.Counter

	dataQualityWarnings prometheus.Counter
	sessionsStarted     prometheus.Counter
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithRegistry supplies a custom registry (used by tests).
func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// NewManager creates a Manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "lootcouncil",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)

	m.itemsCompleted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "eval",
		Name: "items_completed_total", Help: "Items with a successful decision.",
	})
	m.itemsFailed = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "eval",
		Name: "items_failed_total", Help: "Items that failed, by error kind.",
	}, []string{"kind"})
	m.itemsSkipped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "eval",
		Name: "items_skipped_total", Help: "Items skipped after cancellation.",
	})
	m.candidatesPerItem = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "eval",
		Name: "candidates_per_item", Help: "Eligible candidates per evaluated item.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
	})
	m.promptChars = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "prompt",
		Name: "chars", Help: "Serialized user prompt size in characters.",
		Buckets: prometheus.ExponentialBuckets(1024, 2, 8),
	})
	m.llmRequestSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "llm",
		Name: "request_seconds", Help: "Latency of model completions.",
		Buckets: prometheus.DefBuckets,
	})
	m.llmRetries = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "llm",
		Name: "retries_total", Help: "Model call retries (transient errors and malformed replies).",
	})
	m.dataQualityWarnings = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "normalize",
		Name: "warnings_total", Help: "Data-quality warnings (skipped candidates).",
	})
	m.sessionsStarted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "eval",
		Name: "sessions_total", Help: "Evaluation sessions started.",
	})

	return m
}

// Handler exposes the registry over HTTP.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Global manager used by the package-level record helpers.
var globalManager = NewManager()

// Default returns the global manager.
func Default() *Manager { return globalManager }

// Package-level record helpers mirroring the Manager's collectors.

func RecordItemCompleted() { globalManager.itemsCompleted.Inc() }

func RecordItemFailed(kind string) { globalManager.itemsFailed.WithLabelValues(kind).Inc() }

func RecordItemSkipped() { globalManager.itemsSkipped.Inc() }

func RecordCandidates(n int) { globalManager.candidatesPerItem.Observe(float64(n)) }

func RecordPromptChars(n int) { globalManager.promptChars.Observe(float64(n)) }

func RecordLLMRequestSeconds(s float64) { globalManager.llmRequestSeconds.Observe(s) }

func RecordLLMRetry() { globalManager.llmRetries.Inc() }

func RecordDataQualityWarning() { globalManager.dataQualityWarnings.Inc() }

func RecordSessionStarted() { globalManager.sessionsStarted.Inc() }
