package middleware

import (
	"context"
	"sync/atomic"

	"github.com/flowmind-ai/agentgraph/graph"
)

// ModelCallLimit fails an invocation once more than Limit model calls have
// been made. The counter covers the whole chain instance: share one across
// an agent loop to bound its total model traffic.
type ModelCallLimit struct {
	Base
	// Limit is the maximum number of model calls allowed.
	Limit int

	count atomic.Int64
}

// NewModelCallLimit builds the limiter.
func NewModelCallLimit(limit int) *ModelCallLimit {
	return &ModelCallLimit{Base: Base{MiddlewareName: "model_call_limit"}, Limit: limit}
}

// Count returns how many model calls have been observed, including the one
// that tripped the limit.
func (m *ModelCallLimit) Count() int {
	return int(m.count.Load())
}

// WrapModelCall implements Middleware. The counter increments before the
// check, so the failing call is counted.
func (m *ModelCallLimit) WrapModelCall(ctx context.Context, req ModelRequest, next ModelNext) (ModelResponse, error) {
	n := m.count.Add(1)
	if int(n) > m.Limit {
		return ModelResponse{}, graph.NewMaxStepsExceeded(m.Limit)
	}
	return next(ctx, req)
}

// ToolCallLimit fails an invocation once more than Limit tool calls have
// been made. With Limit 0 the very first tool call fails and the counter
// reads 1.
type ToolCallLimit struct {
	Base
	// Limit is the maximum number of tool calls allowed.
	Limit int

	count atomic.Int64
}

// NewToolCallLimit builds the limiter.
func NewToolCallLimit(limit int) *ToolCallLimit {
	return &ToolCallLimit{Base: Base{MiddlewareName: "tool_call_limit"}, Limit: limit}
}

// Count returns how many tool calls have been observed, including the one
// that tripped the limit.
func (t *ToolCallLimit) Count() int {
	return int(t.count.Load())
}

// WrapToolCall implements Middleware.
func (t *ToolCallLimit) WrapToolCall(ctx context.Context, req ToolCallRequest, next ToolNext) (map[string]interface{}, error) {
	n := t.count.Add(1)
	if int(n) > t.Limit {
		return nil, graph.NewMaxStepsExceeded(t.Limit)
	}
	return next(ctx, req)
}
