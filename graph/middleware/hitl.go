package middleware

import (
	"context"
	"fmt"

	"github.com/flowmind-ai/agentgraph/graph"
)

// ApprovalCallback decides whether a tool call may proceed. Returning
// false denies the call; a non-nil error aborts it outright.
type ApprovalCallback func(ctx context.Context, req ToolCallRequest) (bool, error)

// HumanInTheLoop gates every tool call behind an approval callback. Denied
// calls fail with the Tool error kind, which the agent loop surfaces to
// the caller.
type HumanInTheLoop struct {
	Base
	Approve ApprovalCallback
}

// NewHumanInTheLoop builds the middleware.
func NewHumanInTheLoop(approve ApprovalCallback) *HumanInTheLoop {
	return &HumanInTheLoop{Base: Base{MiddlewareName: "human_in_the_loop"}, Approve: approve}
}

// WrapToolCall implements Middleware.
func (h *HumanInTheLoop) WrapToolCall(ctx context.Context, req ToolCallRequest, next ToolNext) (map[string]interface{}, error) {
	approved, err := h.Approve(ctx, req)
	if err != nil {
		return nil, graph.NewError(graph.KindTool, fmt.Sprintf("approval callback failed for tool '%s'", req.ToolName), err)
	}
	if !approved {
		return nil, graph.NewError(graph.KindTool, fmt.Sprintf("tool call '%s' rejected by approval callback", req.ToolName), nil)
	}
	return next(ctx, req)
}
