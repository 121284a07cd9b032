package graph

import (
	"github.com/flowmind-ai/agentgraph/graph/emit"
)

// graphConfig accumulates Compile-time configuration.
type graphConfig struct {
	checkpointer   Checkpointer
	emitter        emit.Emitter
	metrics        *PrometheusMetrics
	costTracker    *CostTracker
	recursionLimit int
}

// defaultRecursionLimit bounds node transitions per invocation.
const defaultRecursionLimit = 100

func newGraphConfig() *graphConfig {
	return &graphConfig{recursionLimit: defaultRecursionLimit}
}

// Option configures a graph at Compile time.
//
// Example:
//
//	g, err := sg.Compile(
//	    graph.WithCheckpointer(graph.NewMemorySaver()),
//	    graph.WithRecursionLimit(50),
//	)
type Option func(*graphConfig) error

// WithCheckpointer enables checkpoint persistence. A checkpoint is written
// after every node transition, before interrupt_before, and after
// interrupt_after, under the thread named by the invocation's
// CheckpointConfig.
func WithCheckpointer(cp Checkpointer) Option {
	return func(cfg *graphConfig) error {
		cfg.checkpointer = cp
		return nil
	}
}

// WithEmitter attaches an observability emitter receiving node start/end,
// routing, interrupt, cache, and checkpoint events.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *graphConfig) error {
		cfg.emitter = e
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(cfg *graphConfig) error {
		cfg.metrics = m
		return nil
	}
}

// WithCostTracker attaches a cost tracker that nodes (typically the agent
// loop's model node) can record token usage into.
func WithCostTracker(t *CostTracker) Option {
	return func(cfg *graphConfig) error {
		cfg.costTracker = t
		return nil
	}
}

// WithRecursionLimit overrides the default bound of 100 node transitions
// per invocation. Limits below 1 are rejected.
func WithRecursionLimit(limit int) Option {
	return func(cfg *graphConfig) error {
		if limit < 1 {
			return NewError(KindConfig, "recursion limit must be at least 1", nil)
		}
		cfg.recursionLimit = limit
		return nil
	}
}
