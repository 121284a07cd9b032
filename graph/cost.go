package graph

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/flowmind-ai/agentgraph/graph/model"
)

// ModelPricing defines input and output token costs for a model family,
// in USD per million tokens.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// defaultPricing covers the model families the model/ adapters target.
// Lookup is by longest matching prefix, so dated releases such as
// "gpt-4o-2024-08-06" or "claude-3-5-sonnet-20241022" inherit their
// family's rates without the table enumerating every snapshot.
//
// Prices are in USD per 1M tokens, as published by the providers; update
// as they adjust pricing.
var defaultPricing = map[string]ModelPricing{
	"gpt-4o":            {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":       {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4-turbo":       {InputPer1M: 10.00, OutputPer1M: 30.00},
	"gpt-3.5-turbo":     {InputPer1M: 0.50, OutputPer1M: 1.50},
	"claude-3-5-sonnet": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-opus":     {InputPer1M: 15.00, OutputPer1M: 75.00},
	"claude-3-sonnet":   {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-haiku":    {InputPer1M: 0.25, OutputPer1M: 1.25},
	"gemini-1.5-pro":    {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-1.5-flash":  {InputPer1M: 0.075, OutputPer1M: 0.30},
}

// CostEntry is one priced model call.
type CostEntry struct {
	// Model is the model name the call was recorded under.
	Model string
	// Node is the graph node that made the call.
	Node string
	// Usage is the provider-reported token accounting.
	Usage model.Usage
	// Cost is the priced value of Usage in USD.
	Cost float64
	// At is when the call was recorded.
	At time.Time
}

// CostTracker accumulates provider-reported token usage (model.Usage)
// across an invocation and prices it against a per-family table. Attach
// one via WithCostTracker; the agent loop records after every model call,
// attributed to the node that made it.
//
//	tracker := graph.NewCostTracker()
//	g, _ := agent.New(chat, tools, agent.WithCostTracker(tracker, "gpt-4o"))
//	g.Invoke(ctx, state)
//	fmt.Printf("$%.4f across %d calls\n", tracker.Total(), len(tracker.Entries()))
//
// All methods are safe for concurrent use; fan-out branches may record
// into the same tracker.
type CostTracker struct {
	mu      sync.RWMutex
	pricing map[string]ModelPricing
	entries []CostEntry
	byModel map[string]float64
	byNode  map[string]float64
	total   float64
	input   int64
	output  int64
}

// NewCostTracker creates a tracker with its own copy of the default
// pricing table.
func NewCostTracker() *CostTracker {
	pricing := make(map[string]ModelPricing, len(defaultPricing))
	for family, rates := range defaultPricing {
		pricing[family] = rates
	}
	return &CostTracker{
		pricing: pricing,
		byModel: make(map[string]float64),
		byNode:  make(map[string]float64),
	}
}

// SetPricing overrides or adds a model family's rates, for custom
// deployments or price updates. The name participates in prefix matching
// like the built-in entries.
func (t *CostTracker) SetPricing(modelName string, inputPer1M, outputPer1M float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pricing[modelName] = ModelPricing{InputPer1M: inputPer1M, OutputPer1M: outputPer1M}
}

// pricingFor resolves a model name: exact match first, then the longest
// prefix entry. Unknown models price at zero so their tokens still count.
// Callers hold at least the read lock.
func (t *CostTracker) pricingFor(modelName string) ModelPricing {
	if p, ok := t.pricing[modelName]; ok {
		return p
	}
	best := ""
	for family := range t.pricing {
		if strings.HasPrefix(modelName, family) && len(family) > len(best) {
			best = family
		}
	}
	if best == "" {
		return ModelPricing{}
	}
	return t.pricing[best]
}

// Record prices one call's usage, attributes it to node, and returns the
// cost of that call.
func (t *CostTracker) Record(modelName string, usage model.Usage, node string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	pricing := t.pricingFor(modelName)
	cost := float64(usage.InputTokens)/1_000_000*pricing.InputPer1M +
		float64(usage.OutputTokens)/1_000_000*pricing.OutputPer1M

	t.entries = append(t.entries, CostEntry{
		Model: modelName,
		Node:  node,
		Usage: usage,
		Cost:  cost,
		At:    time.Now(),
	})
	t.total += cost
	t.byModel[modelName] += cost
	t.byNode[node] += cost
	t.input += int64(usage.InputTokens)
	t.output += int64(usage.OutputTokens)
	return cost
}

// Estimate prices a prospective request: the messages' estimated input
// tokens per counter, plus an assumed output budget. Nothing is recorded.
// Useful for budget checks before an expensive call.
func (t *CostTracker) Estimate(counter model.TokenCounter, modelName string, messages []model.Message, outputTokens int) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pricing := t.pricingFor(modelName)
	inputTokens := counter.CountMessages(messages)
	return float64(inputTokens)/1_000_000*pricing.InputPer1M +
		float64(outputTokens)/1_000_000*pricing.OutputPer1M
}

// Total returns the accumulated cost in USD.
func (t *CostTracker) Total() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// ByModel returns the cost attributed to each model name.
func (t *CostTracker) ByModel() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]float64, len(t.byModel))
	for k, v := range t.byModel {
		out[k] = v
	}
	return out
}

// ByNode returns the cost attributed to each graph node.
func (t *CostTracker) ByNode() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]float64, len(t.byNode))
	for k, v := range t.byNode {
		out[k] = v
	}
	return out
}

// TokenUsage returns total input and output tokens across all calls.
func (t *CostTracker) TokenUsage() (inputTokens, outputTokens int64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.input, t.output
}

// Entries returns every recorded call in chronological order.
func (t *CostTracker) Entries() []CostEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]CostEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Reset clears recorded calls and totals, preserving pricing overrides.
func (t *CostTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.byModel = make(map[string]float64)
	t.byNode = make(map[string]float64)
	t.total = 0
	t.input = 0
	t.output = 0
}

// String summarizes the tracker for logs.
func (t *CostTracker) String() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return fmt.Sprintf("CostTracker{Calls: %d, Total: $%.4f, InputTokens: %d, OutputTokens: %d}",
		len(t.entries), t.total, t.input, t.output)
}
