package middleware

import (
	"context"

	"github.com/flowmind-ai/agentgraph/graph/model"
)

// ContextStrategy selects how ContextEditing trims conversation history
// before each model call.
type ContextStrategy int

const (
	// StrategyLastN keeps the last N non-system messages, always
	// preserving leading system messages.
	StrategyLastN ContextStrategy = iota
	// StrategyStripToolCalls removes tool-result messages and AI messages
	// that carry only tool calls.
	StrategyStripToolCalls
	// StrategyStripAndTruncate strips tool calls, then keeps the last N.
	StrategyStripAndTruncate
)

// ContextEditing keeps the context window manageable without full
// summarization by trimming or filtering messages before each model call.
type ContextEditing struct {
	Base
	Strategy ContextStrategy
	// N is the window size for the LastN strategies.
	N int
}

// LastN keeps the last n messages, preserving leading system messages.
func LastN(n int) *ContextEditing {
	return &ContextEditing{Base: Base{MiddlewareName: "context_editing"}, Strategy: StrategyLastN, N: n}
}

// StripToolCalls removes tool call/result pairs from history.
func StripToolCalls() *ContextEditing {
	return &ContextEditing{Base: Base{MiddlewareName: "context_editing"}, Strategy: StrategyStripToolCalls}
}

// StripAndTruncate strips tool calls, then keeps the last n messages.
func StripAndTruncate(n int) *ContextEditing {
	return &ContextEditing{Base: Base{MiddlewareName: "context_editing"}, Strategy: StrategyStripAndTruncate, N: n}
}

// BeforeModel implements Middleware.
func (c *ContextEditing) BeforeModel(_ context.Context, req *ModelRequest) {
	switch c.Strategy {
	case StrategyLastN:
		req.Messages = applyLastN(req.Messages, c.N)
	case StrategyStripToolCalls:
		req.Messages = applyStripToolCalls(req.Messages)
	case StrategyStripAndTruncate:
		req.Messages = applyLastN(applyStripToolCalls(req.Messages), c.N)
	}
}

// applyLastN keeps the trailing n messages after any leading system run.
func applyLastN(messages []model.Message, n int) []model.Message {
	systemCount := 0
	for _, m := range messages {
		if !m.IsSystem() {
			break
		}
		systemCount++
	}
	rest := messages[systemCount:]
	if len(rest) <= n {
		return messages
	}
	out := make([]model.Message, 0, systemCount+n)
	out = append(out, messages[:systemCount]...)
	return append(out, rest[len(rest)-n:]...)
}

// applyStripToolCalls drops tool-result messages and AI messages that are
// nothing but tool calls, leaving the human/AI narrative.
func applyStripToolCalls(messages []model.Message) []model.Message {
	out := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if m.IsTool() {
			continue
		}
		if m.IsAI() && m.HasToolCalls() && m.Content == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}
