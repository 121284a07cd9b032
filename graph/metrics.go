package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects execution metrics for production monitoring.
//
// Metrics exposed (all namespaced "agentgraph"):
//
//  1. node_executions_total (counter): completed node transitions.
//     Labels: node.
//  2. node_latency_ms (histogram): node execution duration in ms.
//     Labels: node. Buckets 1ms..10s.
//  3. cache_hits_total (counter): node-cache hits that skipped execution.
//     Labels: node.
//  4. interrupts_total (counter): interrupts raised (before, after, in-node).
//     Labels: node.
//  5. checkpoint_writes_total (counter): checkpoints persisted.
//     Labels: thread.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := NewPrometheusMetrics(registry)
//	g, err := sg.Compile(graph.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// All methods are safe for concurrent use.
type PrometheusMetrics struct {
	nodeExecutions   *prometheus.CounterVec
	nodeLatency      *prometheus.HistogramVec
	cacheHits        *prometheus.CounterVec
	interrupts       *prometheus.CounterVec
	checkpointWrites *prometheus.CounterVec

	registry prometheus.Registerer
}

// NewPrometheusMetrics creates and registers all executor metrics with the
// provided registry. Pass nil to use the default global registerer; a
// dedicated registry is recommended for isolation.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		registry: registry,
		nodeExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentgraph",
			Name:      "node_executions_total",
			Help:      "Completed node transitions by node name.",
		}, []string{"node"}),
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentgraph",
			Name:      "node_latency_ms",
			Help:      "Node execution duration in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"node"}),
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentgraph",
			Name:      "cache_hits_total",
			Help:      "Node-cache hits that skipped execution.",
		}, []string{"node"}),
		interrupts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentgraph",
			Name:      "interrupts_total",
			Help:      "Interrupts raised, by interrupting node.",
		}, []string{"node"}),
		checkpointWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentgraph",
			Name:      "checkpoint_writes_total",
			Help:      "Checkpoints persisted, by thread.",
		}, []string{"thread"}),
	}
}

// RecordNodeExecution increments the transition counter for a node.
func (m *PrometheusMetrics) RecordNodeExecution(node string) {
	m.nodeExecutions.WithLabelValues(node).Inc()
}

// RecordNodeLatency observes a node's execution duration.
func (m *PrometheusMetrics) RecordNodeLatency(node string, d time.Duration) {
	m.nodeLatency.WithLabelValues(node).Observe(float64(d.Milliseconds()))
}

// RecordCacheHit increments the cache-hit counter for a node.
func (m *PrometheusMetrics) RecordCacheHit(node string) {
	m.cacheHits.WithLabelValues(node).Inc()
}

// RecordInterrupt increments the interrupt counter for a node.
func (m *PrometheusMetrics) RecordInterrupt(node string) {
	m.interrupts.WithLabelValues(node).Inc()
}

// RecordCheckpointWrite increments the checkpoint counter for a thread.
func (m *PrometheusMetrics) RecordCheckpointWrite(thread string) {
	m.checkpointWrites.WithLabelValues(thread).Inc()
}
