package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/flowmind-ai/agentgraph/graph"
	"github.com/flowmind-ai/agentgraph/graph/middleware"
	"github.com/flowmind-ai/agentgraph/graph/model"
	"github.com/flowmind-ai/agentgraph/graph/store"
	"github.com/flowmind-ai/agentgraph/graph/tool"
)

// toolRuntime is everything the tool node needs to execute a batch of tool
// calls: the registry, the middleware chain, and the runtime context
// handed to runtime-aware tools.
type toolRuntime struct {
	tools  map[string]tool.Tool
	chain  *middleware.Chain
	store  store.Store
	config map[string]interface{}
}

// executeToolCalls runs every call concurrently, each through the
// middleware chain's wrap_tool_call stack, and returns one tool message
// per call in the order of the originating calls, not completion order.
func (rt *toolRuntime) executeToolCalls(ctx context.Context, calls []model.ToolCall, state MessageState) ([]model.Message, error) {
	results := make([]model.Message, len(calls))
	grp, grpCtx := errgroup.WithContext(ctx)
	for i, call := range calls {
		grp.Go(func() error {
			req := middleware.ToolCallRequest{
				ToolName:   call.Name,
				ToolCallID: call.ID,
				Input:      call.Input,
				State:      state,
				Store:      rt.store,
				Config:     rt.config,
			}
			out, err := rt.chain.CallTool(grpCtx, req, rt.callTool)
			if err != nil {
				return err
			}
			results[i] = model.ToolMessage(renderToolResult(out), call.ID)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// callTool is the innermost tool caller: it resolves the tool by name and
// executes it, preferring the runtime-aware entry point.
func (rt *toolRuntime) callTool(ctx context.Context, req middleware.ToolCallRequest) (map[string]interface{}, error) {
	t, ok := rt.tools[req.ToolName]
	if !ok {
		return nil, graph.NewError(graph.KindTool, fmt.Sprintf("tool '%s' not found", req.ToolName), nil)
	}
	if runtimeTool, ok := t.(tool.RuntimeTool); ok {
		return runtimeTool.CallWithRuntime(ctx, req.Input, tool.Invocation{
			ToolCallID: req.ToolCallID,
			State:      req.State,
			Store:      req.Store,
			Config:     req.Config,
		})
	}
	out, err := t.Call(ctx, req.Input)
	if err != nil {
		return nil, graph.NewError(graph.KindTool, fmt.Sprintf("tool '%s' failed", req.ToolName), err)
	}
	return out, nil
}

// toolsNode executes every tool call of the last AI message and appends
// the results. A state with no pending tool calls passes through.
func (rt *toolRuntime) toolsNode() graph.NodeFunc[MessageState] {
	return func(ctx context.Context, state MessageState) (graph.NodeOutput[MessageState], error) {
		last, ok := state.LastMessage()
		if !ok || !last.HasToolCalls() {
			return graph.StateOutput(state)
		}
		results, err := rt.executeToolCalls(ctx, last.ToolCalls, state)
		if err != nil {
			return graph.NodeOutput[MessageState]{}, err
		}
		return graph.StateOutput(MessageState{Messages: append(state.Messages, results...)})
	}
}

// renderToolResult encodes a tool's output map as the tool message body.
func renderToolResult(out map[string]interface{}) string {
	if out == nil {
		return "null"
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf("%v", out)
	}
	return string(data)
}
